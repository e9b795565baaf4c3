// Package catalog loads the operator's internal product list and renders it for prompts.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// Messages the prompt receives in place of a product list when the catalog is unusable.
const (
	MissingMessage = "No internal product list found. Proceed with external deduction only."
	ErrorMessage   = "Error loading internal database."
)

// Product is one record of the trusted internal catalog.
type Product struct {
	Category string `json:"category"`
	Maker    string `json:"maker"`
	Model    string `json:"model"`
	Specs    any    `json:"specs"`
}

// State describes how a catalog load ended.
type State int

const (
	StateLoaded State = iota
	StateMissing
	StateError
)

// Catalog is the result of one load. It is never nil from Load.
type Catalog struct {
	Path     string
	State    State
	Products []Product
	Err      error
}

// Load reads path. A missing or corrupt file yields a degraded Catalog, not an error:
// the pipeline falls back to external-only inference.
func Load(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("catalog.missing", "path", path, "hint", "searching external products only")
			c.State = StateMissing
			return c
		}
		logger.Warn("catalog.read_failed", "path", path, "error", err)
		c.State, c.Err = StateError, err
		return c
	}

	products, err := decode(data)
	if err != nil {
		logger.Warn("catalog.load_failed", "path", path, "error", err)
		c.State, c.Err = StateError, err
		return c
	}

	c.State = StateLoaded
	c.Products = products
	logger.Info("catalog.loaded", "path", path, "products", len(products))
	return c
}

func decode(data []byte) ([]Product, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return products, nil
}

// Loaded reports whether the product list is usable.
func (c *Catalog) Loaded() bool { return c.State == StateLoaded }

// Render formats the catalog as the prompt's internal product list.
func (c *Catalog) Render() string {
	switch c.State {
	case StateMissing:
		return MissingMessage
	case StateError:
		return ErrorMessage
	}
	var b strings.Builder
	for _, p := range c.Products {
		fmt.Fprintf(&b, "- [OUR STOCK] Category: %s | Maker: %s | Model: %s | Specs: %s\n",
			p.Category, p.Maker, p.Model, renderSpecs(p.Specs))
	}
	return b.String()
}

func renderSpecs(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}

// StatusReport is the shape returned by the catalog status endpoint.
type StatusReport struct {
	Loaded  bool   `json:"loaded"`
	Message string `json:"message,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// Status reports whether the catalog at path loads, with either a reason or the rendered text.
func Status(path string, logger *slog.Logger) StatusReport {
	c := Load(path, logger)
	if !c.Loaded() {
		return StatusReport{Loaded: false, Message: c.Render()}
	}
	return StatusReport{Loaded: true, Preview: c.Render()}
}
