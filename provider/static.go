package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// StaticProvider is a deterministic in-process Provider for tests and offline
// runs. Embeddings are derived from a hash of the text, completions echo a
// canned response or the prompt itself.
type StaticProvider struct {
	mu sync.Mutex

	// Dimension of generated embeddings; defaults to 8.
	Dimension int

	// CompleteResponse, when non-empty, is returned by Complete.
	CompleteResponse string

	// JSONResponses are consumed in order by CompleteJSON; when exhausted or
	// empty, CompleteJSON returns an empty JSON object.
	JSONResponses []string

	// Err, when set, is returned by every call.
	Err error

	// FailFirst makes the first FailFirst calls return FailErr before
	// succeeding, for retry tests.
	FailFirst int
	FailErr   error

	calls     int
	jsonCalls int
}

func (s *StaticProvider) nextErr() error {
	s.calls++
	if s.Err != nil {
		return s.Err
	}
	if s.calls <= s.FailFirst {
		if s.FailErr != nil {
			return s.FailErr
		}
		return &Error{Kind: ErrKindTimeout, Err: fmt.Errorf("transient failure %d", s.calls)}
	}
	return nil
}

// Calls returns how many provider calls were made.
func (s *StaticProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StaticProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextErr(); err != nil {
		return nil, err
	}

	dim := s.Dimension
	if dim <= 0 {
		dim = 8
	}

	// Hash-seeded pseudo-embedding: identical text yields identical vectors.
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>32)) / float32(math.MaxInt32)
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (s *StaticProvider) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextErr(); err != nil {
		return "", err
	}
	if s.CompleteResponse != "" {
		return s.CompleteResponse, nil
	}
	return "completion for: " + prompt, nil
}

func (s *StaticProvider) CompleteJSON(ctx context.Context, prompt string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextErr(); err != nil {
		return err
	}

	payload := "{}"
	if s.jsonCalls < len(s.JSONResponses) {
		payload = s.JSONResponses[s.jsonCalls]
	}
	s.jsonCalls++

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return &Error{Kind: ErrKindInvalidResponse, Err: err}
	}
	return nil
}
