package llm

import "context"

// Item is one extracted line item as returned by the model. Keys are kept
// verbatim, including ones the prompt did not ask for.
type Item map[string]any

// Completer sends one prompt to a model and returns the full response text.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}
