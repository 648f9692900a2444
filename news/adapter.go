package news

import (
	"context"
	"fmt"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	// ErrKindRateLimited means the source rejected the request for quota reasons.
	ErrKindRateLimited ErrorKind = "rate_limited"
	// ErrKindNetwork covers transport-level failures and unexpected statuses.
	ErrKindNetwork ErrorKind = "network"
	// ErrKindAuth means the API key was rejected.
	ErrKindAuth ErrorKind = "auth"
)

// AdapterError is returned by SourceAdapter implementations. Research treats
// every kind as fatal; the kind is surfaced so callers can report the cause.
type AdapterError struct {
	Kind ErrorKind
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("news adapter %s: %v", e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// SourceAdapter fetches an ordered batch of articles for a search query.
// The returned order is significant: the pipeline analyzes and reports
// articles in exactly this order.
type SourceAdapter interface {
	Fetch(ctx context.Context, query string, pageSize int) ([]Article, error)
}

// StaticAdapter serves a fixed article list; useful for tests and offline runs.
type StaticAdapter struct {
	Articles []Article
}

// Fetch returns up to pageSize of the configured articles, in order.
func (s *StaticAdapter) Fetch(ctx context.Context, query string, pageSize int) ([]Article, error) {
	if pageSize <= 0 || pageSize > len(s.Articles) {
		pageSize = len(s.Articles)
	}
	out := make([]Article, pageSize)
	copy(out, s.Articles[:pageSize])
	return out, nil
}
