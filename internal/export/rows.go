package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/spec-matcher/internal/llm"
)

// Row is one spreadsheet line derived from an extracted item.
type Row struct {
	ItemNumber string
	Name       string
	Maker      string
	Model      string
	Quantity   float64
	UnitKRW    float64
	UnitUSD    float64
	TotalKRW   float64
	Link       string // formula, including the leading "="
}

// BuildRows converts items into rows, one per item. Missing or non-numeric
// quantity and prices become 0 before the total is computed.
func BuildRows(items []llm.Item) []Row {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		qty := Number(it["quantity"])
		krw := Number(it["estimated_krw"])
		rows = append(rows, Row{
			ItemNumber: Text(it["item_number"]),
			Name:       Text(it["name"]),
			Maker:      Text(it["maker"]),
			Model:      Text(it["model"]),
			Quantity:   qty,
			UnitKRW:    krw,
			UnitUSD:    Number(it["estimated_usd"]),
			TotalKRW:   qty * krw,
			Link:       PurchaseLink(it),
		})
	}
	return rows
}

// Number coerces a decoded JSON value to a finite float, 0 when it cannot.
func Number(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case bool:
		if t {
			f = 1
		}
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Text renders a decoded JSON value for a text column.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
