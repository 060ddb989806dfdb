// Package translate wraps a single-text-in/single-text-out translation
// capability for a fixed source→target language pair.
package translate

import "context"

// Sentinel is substituted for a region's translation when the translator
// fails for that region. The pipeline records it instead of failing the
// task.
const Sentinel = "[Translation failed]"

// Translator converts one text fragment to the target language. Each
// call is independent; implementations must not assume batching.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Func adapts a plain function to the Translator interface.
type Func func(ctx context.Context, text string) (string, error)

// Translate implements Translator.
func (f Func) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
