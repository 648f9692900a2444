// Package pipeline runs the three-stage research, analysis, and summary
// workflow over a news topic as an explicit state machine.
package pipeline

import (
	"fmt"
	"time"

	"github.com/yliasolom/graph-search/news"
)

// Stage is a pipeline lifecycle stage.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageResearching Stage = "researching"
	StageAnalyzing   Stage = "analyzing"
	StageSummarizing Stage = "summarizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// allowedTransitions is the full transition table. Failed is reachable from
// every non-terminal stage; Done and Failed are terminal.
var allowedTransitions = map[Stage][]Stage{
	StageIdle:        {StageResearching, StageFailed},
	StageResearching: {StageAnalyzing, StageFailed},
	StageAnalyzing:   {StageSummarizing, StageFailed},
	StageSummarizing: {StageDone, StageFailed},
	StageDone:        {},
	StageFailed:      {},
}

// CanTransition reports whether the table permits moving from one stage to
// another.
func CanTransition(from, to Stage) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage permits no further transitions.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Sentiment values an analysis may carry. Anything else is coerced to
// neutral at the provider boundary.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// AnalysisResult is the validated per-article analysis.
type AnalysisResult struct {
	ArticleID       string   `json:"article_id"`
	Topic           string   `json:"topic"`
	Sentiment       string   `json:"sentiment"`
	ImportanceScore int      `json:"importance_score"`
	KeyFacts        []string `json:"key_facts"`
}

// StageError records a failure observed at a stage. ArticleID is empty for
// stage-level failures.
type StageError struct {
	Stage     Stage  `json:"stage"`
	ArticleID string `json:"article_id,omitempty"`
	Message   string `json:"message"`
}

func (e StageError) Error() string {
	if e.ArticleID != "" {
		return fmt.Sprintf("%s (article %s): %s", e.Stage, e.ArticleID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// RunError is the terminal cause of a failed run.
type RunError struct {
	Cause     error
	LastStage Stage
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed after %s: %v", e.LastStage, e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// Progress counts articles the analysis stage has processed, successfully or
// not, out of the total fetched.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Report is the summary stage output. Themes and ranking preserve fetch
// order among equals.
type Report struct {
	SummaryText     string         `json:"summary_text"`
	Themes          []string       `json:"themes"`
	SentimentCounts map[string]int `json:"sentiment_counts"`
	TopArticleIDs   []string       `json:"top_article_ids"`
	SourceCount     int            `json:"source_count"`
	SkippedIDs      []string       `json:"skipped_ids"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// State is the observable snapshot of one run. Articles are frozen once the
// research stage completes; analyses only ever gain entries.
type State struct {
	RunID     string                    `json:"run_id"`
	Query     string                    `json:"query"`
	Stage     Stage                     `json:"stage"`
	Articles  []news.Article            `json:"articles"`
	Analyses  map[string]AnalysisResult `json:"analyses"`
	Report    *Report                   `json:"report,omitempty"`
	Errors    []StageError              `json:"errors,omitempty"`
	Progress  Progress                  `json:"progress"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Clone returns a deep copy so callers can never mutate a live run.
func (s *State) Clone() *State {
	clone := *s

	clone.Articles = append([]news.Article(nil), s.Articles...)
	clone.Errors = append([]StageError(nil), s.Errors...)

	clone.Analyses = make(map[string]AnalysisResult, len(s.Analyses))
	for id, analysis := range s.Analyses {
		analysis.KeyFacts = append([]string(nil), analysis.KeyFacts...)
		clone.Analyses[id] = analysis
	}

	if s.Report != nil {
		report := *s.Report
		report.Themes = append([]string(nil), s.Report.Themes...)
		report.TopArticleIDs = append([]string(nil), s.Report.TopArticleIDs...)
		report.SkippedIDs = append([]string(nil), s.Report.SkippedIDs...)
		report.SentimentCounts = make(map[string]int, len(s.Report.SentimentCounts))
		for k, v := range s.Report.SentimentCounts {
			report.SentimentCounts[k] = v
		}
		clone.Report = &report
	}

	return &clone
}

// advance moves the state to the next stage, enforcing the transition table.
func (s *State) advance(to Stage) error {
	if !CanTransition(s.Stage, to) {
		return fmt.Errorf("illegal transition %s -> %s", s.Stage, to)
	}
	s.Stage = to
	s.UpdatedAt = time.Now()
	return nil
}
