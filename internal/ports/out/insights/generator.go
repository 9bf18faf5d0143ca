package insights

import "context"

// Generator turns a prompt into a short narrative.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
