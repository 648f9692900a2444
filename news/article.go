package news

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is a single news article as returned by a source adapter.
// Body holds the extracted main text; Description is the source's own teaser.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ArticleID derives a stable article identifier from its URL, so refetching
// the same article yields the same ID across builds.
func ArticleID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}
