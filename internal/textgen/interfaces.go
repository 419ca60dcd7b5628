package textgen

import "context"

// Generator produces text from a single prompt. Backends may be synchronous
// model calls; the pipeline wraps them as single-shot jobs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
