package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yliasolom/graph-search/log"
	"github.com/yliasolom/graph-search/news"
	"github.com/yliasolom/graph-search/provider"
)

// Options tune one run. Zero values fall back to defaults.
type Options struct {
	// PageSize is the article count requested from the source adapter;
	// defaults to 10.
	PageSize int

	// CallTimeout applies to every external call the run makes; defaults to
	// 30 seconds.
	CallTimeout time.Duration

	// Retry governs transient provider failures; defaults to one retry with
	// a short fixed backoff.
	Retry *provider.RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 10
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.Retry == nil {
		o.Retry = provider.DefaultRetryPolicy()
	}
	return o
}

// run is the live, mutable side of one pipeline execution.
type run struct {
	mu        sync.Mutex
	state     *State
	cancelled chan struct{}
	cancel    sync.Once
}

func (r *run) requestCancel() {
	r.cancel.Do(func() { close(r.cancelled) })
}

func (r *run) isCancelled() bool {
	select {
	case <-r.cancelled:
		return true
	default:
		return false
	}
}

// Orchestrator starts and tracks pipeline runs.
type Orchestrator struct {
	adapter  news.SourceAdapter
	provider provider.Provider
	store    RunStore

	mu   sync.Mutex
	runs map[string]*run
}

// NewOrchestrator wires the orchestrator. A nil store defaults to the
// in-memory run store.
func NewOrchestrator(adapter news.SourceAdapter, p provider.Provider, store RunStore) (*Orchestrator, error) {
	if adapter == nil {
		return nil, fmt.Errorf("source adapter is required")
	}
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if store == nil {
		store = NewMemoryRunStore()
	}

	return &Orchestrator{
		adapter:  adapter,
		provider: p,
		store:    store,
		runs:     make(map[string]*run),
	}, nil
}

// Start launches a run for query and returns its ID without blocking.
func (o *Orchestrator) Start(query string, opts Options) (string, error) {
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	opts = opts.withDefaults()

	r := &run{
		state: &State{
			RunID:     uuid.NewString(),
			Query:     query,
			Stage:     StageIdle,
			Analyses:  make(map[string]AnalysisResult),
			UpdatedAt: time.Now(),
		},
		cancelled: make(chan struct{}),
	}

	o.mu.Lock()
	o.runs[r.state.RunID] = r
	o.mu.Unlock()

	o.persist(r)
	go o.execute(r, opts)

	log.Info("run %s started for query %q", r.state.RunID, query)
	return r.state.RunID, nil
}

// Status returns a deep-copied snapshot of the run.
func (o *Orchestrator) Status(runID string) (*State, error) {
	o.mu.Lock()
	r, ok := o.runs[runID]
	o.mu.Unlock()

	if !ok {
		return o.store.Load(context.Background(), runID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone(), nil
}

// Cancel requests cooperative cancellation. The run stops at the next
// between-article check, leaving its last stage observable.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	r, ok := o.runs[runID]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}

	r.mu.Lock()
	terminal := r.state.Stage.Terminal()
	r.mu.Unlock()
	if terminal {
		return fmt.Errorf("run %s already finished", runID)
	}

	r.requestCancel()
	log.Info("run %s cancellation requested", runID)
	return nil
}

// execute drives one run through the state machine.
func (o *Orchestrator) execute(r *run, opts Options) {
	articles, err := o.research(r, opts)
	if err != nil {
		o.fail(r, StageResearching, err)
		return
	}
	if r.isCancelled() {
		return
	}

	if err := o.analyze(r, articles, opts); err != nil {
		o.fail(r, StageAnalyzing, err)
		return
	}
	if r.isCancelled() {
		return
	}

	if err := o.summarize(r, articles, opts); err != nil {
		o.fail(r, StageSummarizing, err)
		return
	}

	o.transition(r, StageDone)
	log.Info("run %s done", r.state.RunID)
}

// research fetches the article set and freezes it on the state.
func (o *Orchestrator) research(r *run, opts Options) ([]news.Article, error) {
	o.transition(r, StageResearching)

	ctx, cancel := context.WithTimeout(context.Background(), opts.CallTimeout)
	defer cancel()

	articles, err := o.adapter.Fetch(ctx, r.state.Query, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch articles: %w", err)
	}

	r.mu.Lock()
	r.state.Articles = articles
	r.state.Progress = Progress{Total: len(articles)}
	r.mu.Unlock()

	log.Info("run %s fetched %d articles", r.state.RunID, len(articles))
	return articles, nil
}

// analyze processes articles strictly in fetch order. A failed article is
// recorded and skipped; an auth outage fails the run; cancellation is honored
// between articles.
func (o *Orchestrator) analyze(r *run, articles []news.Article, opts Options) error {
	o.transition(r, StageAnalyzing)

	for _, article := range articles {
		if r.isCancelled() {
			log.Info("run %s cancelled during analysis", r.state.RunID)
			return nil
		}

		analysis, err := o.analyzeOne(article, opts)
		if err != nil && isAuthError(err) {
			return err
		}
		if err != nil {
			log.Warn("run %s: article %s analysis failed: %v", r.state.RunID, article.ID, err)
		}

		r.mu.Lock()
		if err != nil {
			r.state.Errors = append(r.state.Errors, StageError{
				Stage:     StageAnalyzing,
				ArticleID: article.ID,
				Message:   err.Error(),
			})
		} else {
			r.state.Analyses[article.ID] = *analysis
		}
		r.state.Progress.Processed++
		r.state.UpdatedAt = time.Now()
		r.mu.Unlock()

		o.persist(r)
	}

	return nil
}

func (o *Orchestrator) analyzeOne(article news.Article, opts Options) (*AnalysisResult, error) {
	var analysis *AnalysisResult
	err := opts.Retry.Do(context.Background(), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
		defer cancel()

		var err error
		analysis, err = analyzeArticle(callCtx, o.provider, article)
		return err
	})
	return analysis, err
}

// summarize composes the report. Runs with no successful analyses reach Done
// with a locally composed outcome and no provider call; a failed summary call
// falls back to the local summary and records the error.
func (o *Orchestrator) summarize(r *run, articles []news.Article, opts Options) error {
	o.transition(r, StageSummarizing)

	r.mu.Lock()
	analyses := r.state.Analyses
	errs := r.state.Errors
	r.mu.Unlock()

	report := composeReport(articles, analyses, errs)

	if report.SourceCount == 0 {
		report.SummaryText = localSummary(r.state.Query, report)
	} else {
		summary, err := o.completeSummary(r.state.Query, articles, analyses, opts)
		if err != nil {
			if isAuthError(err) {
				return err
			}
			log.Warn("run %s: summary generation failed, using local fallback: %v", r.state.RunID, err)
			report.SummaryText = localSummary(r.state.Query, report)
			r.mu.Lock()
			r.state.Errors = append(r.state.Errors, StageError{
				Stage:   StageSummarizing,
				Message: err.Error(),
			})
			r.mu.Unlock()
		} else {
			report.SummaryText = summary
		}
	}

	r.mu.Lock()
	r.state.Report = report
	r.mu.Unlock()
	return nil
}

func (o *Orchestrator) completeSummary(query string, articles []news.Article, analyses map[string]AnalysisResult, opts Options) (string, error) {
	var summary string
	err := opts.Retry.Do(context.Background(), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, opts.CallTimeout)
		defer cancel()

		var err error
		summary, err = o.provider.Complete(callCtx, summaryPrompt(query, articles, analyses))
		return err
	})
	return summary, err
}

// transition advances the run and persists the snapshot.
func (o *Orchestrator) transition(r *run, to Stage) {
	r.mu.Lock()
	if err := r.state.advance(to); err != nil {
		r.mu.Unlock()
		log.Error("run %s: %v", r.state.RunID, err)
		return
	}
	r.mu.Unlock()

	o.persist(r)
}

// fail moves the run to Failed, recording the cause and the stage it was in.
func (o *Orchestrator) fail(r *run, at Stage, cause error) {
	runErr := &RunError{Cause: cause, LastStage: at}
	log.Error("run %s failed: %v", r.state.RunID, runErr)

	r.mu.Lock()
	r.state.Errors = append(r.state.Errors, StageError{Stage: at, Message: cause.Error()})
	if err := r.state.advance(StageFailed); err != nil {
		log.Error("run %s: %v", r.state.RunID, err)
	}
	r.mu.Unlock()

	o.persist(r)
}

// persist snapshots the run; persistence errors are logged, never fatal to
// the run itself.
func (o *Orchestrator) persist(r *run) {
	r.mu.Lock()
	snapshot := r.state.Clone()
	r.mu.Unlock()

	if err := o.store.Save(context.Background(), snapshot); err != nil {
		log.Warn("run %s: snapshot save failed: %v", snapshot.RunID, err)
	}
}

func isAuthError(err error) bool {
	var provErr *provider.Error
	return errors.As(err, &provErr) && provErr.Kind == provider.ErrKindAuth
}
