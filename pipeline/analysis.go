package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/yliasolom/graph-search/news"
	"github.com/yliasolom/graph-search/provider"
)

const analysisPromptTemplate = `Analyze the news article below.

Respond with a JSON object:
{"topic": "short topic phrase", "sentiment": "positive|negative|neutral", "key_facts": ["...", "..."], "importance": 1-10}

Title: %s
Source: %s

Article:
%s`

// maxAnalysisBodyChars bounds the article text sent for analysis.
const maxAnalysisBodyChars = 8000

// rawAnalysis is the provider-side schema before validation.
type rawAnalysis struct {
	Topic      string   `json:"topic"`
	Sentiment  string   `json:"sentiment"`
	KeyFacts   []string `json:"key_facts"`
	Importance int      `json:"importance"`
}

// analyzeArticle runs one provider analysis call and validates the result.
// Unrecognized sentiments coerce to neutral; importance clamps to 1..10.
func analyzeArticle(ctx context.Context, p provider.Provider, article news.Article) (*AnalysisResult, error) {
	body := article.Body
	if len(body) > maxAnalysisBodyChars {
		body = body[:maxAnalysisBodyChars]
	}

	var raw rawAnalysis
	prompt := fmt.Sprintf(analysisPromptTemplate, article.Title, article.Source, body)
	if err := p.CompleteJSON(ctx, prompt, &raw); err != nil {
		return nil, fmt.Errorf("analyze article %s: %w", article.ID, err)
	}

	sentiment := strings.ToLower(strings.TrimSpace(raw.Sentiment))
	switch sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		sentiment = SentimentNeutral
	}

	importance := raw.Importance
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}

	return &AnalysisResult{
		ArticleID:       article.ID,
		Topic:           strings.TrimSpace(raw.Topic),
		Sentiment:       sentiment,
		ImportanceScore: importance,
		KeyFacts:        raw.KeyFacts,
	}, nil
}
