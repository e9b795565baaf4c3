package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

// OllamaConfig configures the local inference endpoint.
type OllamaConfig struct {
	ServerURL   string  // default http://127.0.0.1:11434
	Temperature float64 // 0.1 keeps answers close to the specs
	NumCtx      int     // context window, 8192 by default
}

// ModelFactory builds a langchaingo model for one model name.
type ModelFactory func(cfg OllamaConfig, model string) (llms.Model, error)

// OllamaClient streams completions from an Ollama server.
type OllamaClient struct {
	cfg      OllamaConfig
	echo     io.Writer
	newModel ModelFactory
	logger   *slog.Logger
}

// ClientOption customizes an OllamaClient.
type ClientOption func(*OllamaClient)

// WithEcho copies streamed chunks to w as they arrive.
func WithEcho(w io.Writer) ClientOption {
	return func(c *OllamaClient) { c.echo = w }
}

// WithModelFactory replaces how models are constructed. Used by tests.
func WithModelFactory(f ModelFactory) ClientOption {
	return func(c *OllamaClient) { c.newModel = f }
}

func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger, opts ...ClientOption) *OllamaClient {
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://127.0.0.1:11434"
	}
	if cfg.NumCtx <= 0 {
		cfg.NumCtx = 8192
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &OllamaClient{cfg: cfg, newModel: newOllamaModel, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newOllamaModel(cfg OllamaConfig, model string) (llms.Model, error) {
	return ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(cfg.ServerURL),
		ollama.WithRunnerNumCtx(cfg.NumCtx),
	)
}

// Complete streams a single-turn chat and returns the concatenated chunks.
func (c *OllamaClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	logger := common.LoggerFrom(ctx, c.logger)

	logger.Info("llm.complete.start",
		"req_id", rid,
		"model", model,
		"temp", c.cfg.Temperature,
		"num_ctx", c.cfg.NumCtx,
		"prompt_len", len(prompt),
	)

	m, err := c.newModel(c.cfg, model)
	if err != nil {
		logger.Error("llm.complete.init_error", "req_id", rid, "error", err)
		return "", common.NewAppError("INFERENCE", "init model "+model, fmt.Errorf("%w: %v", common.ErrInference, err))
	}

	var buf strings.Builder
	stream := func(_ context.Context, chunk []byte) error {
		buf.Write(chunk)
		if c.echo != nil {
			_, _ = c.echo.Write(chunk)
		}
		return nil
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, m, prompt,
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithStreamingFunc(stream),
	)
	if c.echo != nil {
		_, _ = io.WriteString(c.echo, "\n")
	}
	if err != nil {
		logger.Error("llm.complete.error",
			"req_id", rid, "error", err,
			"streamed_bytes", buf.Len(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewAppError("INFERENCE", "ollama chat", fmt.Errorf("%w: %v", common.ErrInference, err))
	}

	text := buf.String()
	if text == "" {
		text = out
	}
	logger.Info("llm.complete.ok",
		"req_id", rid,
		"model", model,
		"response_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
