package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/yliasolom/graph-search/log"
)

// NewsAPIClient implements SourceAdapter against the NewsAPI "everything"
// endpoint.
type NewsAPIClient struct {
	APIKey   string
	BaseURL  string
	Language string
	client   *http.Client
}

// NewsAPIOption customizes a NewsAPIClient.
type NewsAPIOption func(*NewsAPIClient)

// WithNewsAPIBaseURL overrides the endpoint, mainly for tests.
func WithNewsAPIBaseURL(baseURL string) NewsAPIOption {
	return func(c *NewsAPIClient) {
		c.BaseURL = baseURL
	}
}

// WithNewsAPILanguage sets the article language filter (e.g. "en").
func WithNewsAPILanguage(lang string) NewsAPIOption {
	return func(c *NewsAPIClient) {
		c.Language = lang
	}
}

// WithNewsAPIHTTPClient sets a custom HTTP client, e.g. one carrying a
// transport-level timeout.
func WithNewsAPIHTTPClient(client *http.Client) NewsAPIOption {
	return func(c *NewsAPIClient) {
		c.client = client
	}
}

// NewNewsAPIClient creates a NewsAPI adapter.
// If apiKey is empty, it tries the NEWS_API_KEY environment variable.
func NewNewsAPIClient(apiKey string, opts ...NewsAPIOption) (*NewsAPIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("NEWS_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("NEWS_API_KEY not set")
	}

	c := &NewsAPIClient{
		APIKey:   apiKey,
		BaseURL:  "https://newsapi.org/v2/everything",
		Language: "en",
		client:   &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// Fetch retrieves up to pageSize articles matching query, preserving the
// source's relevance order.
func (c *NewsAPIClient) Fetch(ctx context.Context, query string, pageSize int) ([]Article, error) {
	if pageSize <= 0 {
		pageSize = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", fmt.Sprintf("%d", pageSize))
	if c.Language != "" {
		params.Set("language", c.Language)
	}

	reqURL := fmt.Sprintf("%s?%s", c.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &AdapterError{Kind: ErrKindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &AdapterError{Kind: ErrKindNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, &AdapterError{Kind: ErrKindRateLimited, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case http.StatusUnauthorized:
		return nil, &AdapterError{Kind: ErrKindAuth, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return nil, &AdapterError{Kind: ErrKindNetwork, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &AdapterError{Kind: ErrKindNetwork, Err: fmt.Errorf("decode response: %w", err)}
	}

	if body.Status != "ok" {
		kind := ErrKindNetwork
		switch body.Code {
		case "rateLimited":
			kind = ErrKindRateLimited
		case "apiKeyInvalid", "apiKeyMissing", "apiKeyDisabled":
			kind = ErrKindAuth
		}
		return nil, &AdapterError{Kind: kind, Err: fmt.Errorf("newsapi: %s", body.Message)}
	}

	now := time.Now()
	articles := make([]Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, Article{
			ID:          ArticleID(a.URL),
			Title:       a.Title,
			Body:        a.Content,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: published,
			FetchedAt:   now,
		})
	}

	log.Debug("newsapi: fetched %d articles for %q", len(articles), query)
	return articles, nil
}
