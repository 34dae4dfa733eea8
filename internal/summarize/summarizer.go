// Package summarize turns batches of pull requests into validated review bullets
// using a language-model provider.
package summarize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danielolaszy/prreview/internal/llm"
	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxRetries  = 3
	defaultConcurrency = 10
	defaultMaxTokens   = 2048
)

// BatchError is returned when a batch could not be summarized within its retry budget.
type BatchError struct {
	Key      models.BatchKey
	Attempts int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("summarizing batch %s failed after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Options configures a Summarizer. Zero values select the defaults.
type Options struct {
	MaxRetries  int
	Concurrency int
	MaxTokens   int
}

// Input carries the per-run data shared by every batch.
type Input struct {
	Year            int
	JobRequirements string
	Tickets         map[string][]models.Ticket
}

// Summarizer runs summarization calls against a provider. It is safe for
// concurrent use.
type Summarizer struct {
	provider    llm.Provider
	maxRetries  int
	concurrency int
	maxTokens   int
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a Summarizer for the given provider.
func New(provider llm.Provider, opts Options) *Summarizer {
	s := &Summarizer{
		provider:    provider,
		maxRetries:  opts.MaxRetries,
		concurrency: opts.Concurrency,
		maxTokens:   opts.MaxTokens,
		sleep:       sleepContext,
	}
	if s.maxRetries < 1 {
		s.maxRetries = defaultMaxRetries
	}
	if s.concurrency < 1 {
		s.concurrency = defaultConcurrency
	}
	if s.maxTokens < 1 {
		s.maxTokens = defaultMaxTokens
	}
	return s
}

// SummarizeBatch summarizes one batch. Provider errors, malformed output and
// foreign citations are all retried, sleeping 1s, 2s, 4s... between attempts,
// until the retry budget runs out.
func (s *Summarizer) SummarizeBatch(ctx context.Context, batch models.Batch, in Input) (models.SummaryResponse, error) {
	log := logging.FromContext(ctx).With("batch", batch.Key.String(), "pull_requests", len(batch.PullRequests))

	req := llm.Request{
		Prompt: BuildPrompt(PromptInput{
			Label:           batch.Key.Label,
			Year:            in.Year,
			JobRequirements: in.JobRequirements,
			PullRequests:    batch.PullRequests,
			Tickets:         in.Tickets,
		}),
		MaxTokens: s.maxTokens,
		Schema:    ResponseSchema(),
	}
	areas := RequirementAreas(in.JobRequirements)

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			log.Debug("retrying summarization", "attempt", attempt+1, "delay", delay)
			if err := s.sleep(ctx, delay); err != nil {
				return models.SummaryResponse{}, &BatchError{Key: batch.Key, Attempts: attempt, Err: err}
			}
		}

		resp, err := s.attempt(ctx, req, batch, areas)
		if err == nil {
			log.Info("summarized batch", "attempt", attempt+1, "bullets", len(resp.Bullets))
			return resp, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.SummaryResponse{}, &BatchError{Key: batch.Key, Attempts: attempt + 1, Err: ctxErr}
		}
		log.Warn("summarization attempt failed", "attempt", attempt+1, "max_retries", s.maxRetries, "error", err)
	}

	log.Error("giving up on batch", "attempts", s.maxRetries, "error", lastErr)
	return models.SummaryResponse{}, &BatchError{Key: batch.Key, Attempts: s.maxRetries, Err: lastErr}
}

func (s *Summarizer) attempt(ctx context.Context, req llm.Request, batch models.Batch, areas []string) (models.SummaryResponse, error) {
	out, err := s.provider.Complete(ctx, req)
	if err != nil {
		return models.SummaryResponse{}, err
	}

	resp, err := ParseResponse(out.Content)
	if err != nil {
		return models.SummaryResponse{}, err
	}
	if err := ValidateCitations(resp, batch); err != nil {
		return models.SummaryResponse{}, err
	}

	for i := range resp.Bullets {
		resp.Bullets[i].CareerArea = CanonicalArea(resp.Bullets[i].CareerArea, areas)
	}
	return resp, nil
}

// SummarizeAll summarizes the batches concurrently, with at most
// min(len(batches), concurrency) calls in flight. The first irrecoverable batch
// failure cancels the remaining batches and is returned.
func (s *Summarizer) SummarizeAll(ctx context.Context, batches []models.Batch, in Input) (map[models.BatchKey]models.SummaryResponse, error) {
	results := make(map[models.BatchKey]models.SummaryResponse, len(batches))
	if len(batches) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(batches), s.concurrency))

	var mu sync.Mutex
	for _, b := range batches {
		b := b
		g.Go(func() error {
			resp, err := s.SummarizeBatch(gctx, b, in)
			if err != nil {
				return err
			}
			mu.Lock()
			results[b.Key] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
