package provider

import (
	"context"
	"fmt"
)

// ErrorKind classifies provider failures. Rate limits and timeouts are
// transient; auth and malformed responses are permanent.
type ErrorKind string

const (
	ErrKindRateLimited     ErrorKind = "rate_limited"
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindAuth            ErrorKind = "auth"
	ErrKindInvalidResponse ErrorKind = "invalid_response"
)

// Error is the provider error taxonomy shared by embedding and completion
// calls.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry is likely to succeed.
func (e *Error) Transient() bool {
	return e.Kind == ErrKindRateLimited || e.Kind == ErrKindTimeout
}

// Provider is the language-model boundary used by the retrieval engines and
// the pipeline. Every call blocks on external I/O and honors ctx deadlines.
type Provider interface {
	// Embed returns the embedding vector for text. The dimension is fixed
	// per provider configuration.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Complete returns a free-text completion for prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteJSON requests a structured completion and unmarshals it into
	// out at the boundary; a response that does not fit the schema is an
	// invalid_response error, never a loosely-typed payload.
	CompleteJSON(ctx context.Context, prompt string, out any) error
}
