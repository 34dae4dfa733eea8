// Package pipeline wires fetching, batching, summarization and rendering into the
// single operation exposed to the CLI and the HTTP backend.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielolaszy/prreview/internal/batch"
	"github.com/danielolaszy/prreview/internal/config"
	"github.com/danielolaszy/prreview/internal/github"
	"github.com/danielolaszy/prreview/internal/jira"
	"github.com/danielolaszy/prreview/internal/llm"
	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/internal/report"
	"github.com/danielolaszy/prreview/internal/summarize"
	"github.com/danielolaszy/prreview/pkg/models"
	"github.com/google/uuid"
)

const (
	minYear = 2000
	maxYear = 9999
)

// Fetcher lists a user's merged pull requests in one repository.
type Fetcher interface {
	FetchMergedPRs(ctx context.Context, username, repository string, year int) ([]models.PullRequest, error)
}

// FetcherFactory builds a Fetcher for a per-request credential.
type FetcherFactory func(token string) (Fetcher, error)

// TicketResolver looks up issue-tracker tickets referenced by pull requests.
// Implementations are best-effort and never fail.
type TicketResolver interface {
	ResolveTickets(ctx context.Context, prs []models.PullRequest) map[string]models.Ticket
}

// Request is the input of one summary generation.
type Request struct {
	Repositories    []string
	Year            int
	Username        string
	Token           string
	JobRequirements string
}

// ValidationError reports request fields that are missing or malformed.
type ValidationError struct {
	Missing  []string
	Problems []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "Missing required fields: "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Problems...)
	return strings.Join(parts, "; ")
}

// FetchError is returned when pull requests could not be fetched from a repository.
type FetchError struct {
	Repo string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching PRs from %s: %v", e.Repo, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Validate checks the request before any I/O happens.
func (r Request) Validate() error {
	return r.validate(true)
}

func (r Request) validate(needRequirements bool) error {
	verr := &ValidationError{}

	if len(r.Repositories) == 0 {
		verr.Missing = append(verr.Missing, "repositories")
	}
	if r.Year == 0 {
		verr.Missing = append(verr.Missing, "year")
	}
	if strings.TrimSpace(r.Username) == "" {
		verr.Missing = append(verr.Missing, "username")
	}
	if strings.TrimSpace(r.Token) == "" {
		verr.Missing = append(verr.Missing, "token")
	}
	if needRequirements && strings.TrimSpace(r.JobRequirements) == "" {
		verr.Missing = append(verr.Missing, "job_requirements")
	}

	if r.Year != 0 && (r.Year < minYear || r.Year > maxYear) {
		verr.Problems = append(verr.Problems, fmt.Sprintf("year must be between %d and %d, got %d", minYear, maxYear, r.Year))
	}
	for _, repo := range r.Repositories {
		if _, _, err := github.SplitRepository(repo); err != nil {
			verr.Problems = append(verr.Problems, fmt.Sprintf("invalid repository %q: expected owner/name", repo))
		}
	}

	if len(verr.Missing) > 0 || len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// Result is the outcome of a generation.
type Result struct {
	RunID        string
	Markdown     string
	Empty        bool
	PullRequests int
	Batches      int
}

// Options configures a Service.
type Options struct {
	Strategy batch.Strategy
	Timeout  time.Duration
	Tickets  TicketResolver
}

// Service generates performance-review summaries.
type Service struct {
	newFetcher FetcherFactory
	summarizer *summarize.Summarizer
	tickets    TicketResolver
	strategy   batch.Strategy
	timeout    time.Duration
}

// NewService creates a Service from its collaborators. summarizer may be nil
// for a Service that is only used to Fetch.
func NewService(newFetcher FetcherFactory, summarizer *summarize.Summarizer, opts Options) *Service {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = batch.PerLabel
	}
	return &Service{
		newFetcher: newFetcher,
		summarizer: summarizer,
		tickets:    opts.Tickets,
		strategy:   strategy,
		timeout:    opts.Timeout,
	}
}

// New builds a Service from configuration: GitHub fetcher, language-model
// provider, batching strategy and, when configured, JIRA enrichment.
func New(cfg *config.Config) (*Service, error) {
	if err := config.ValidateLLMConfig(cfg); err != nil {
		return nil, err
	}

	provider, err := llm.New(llm.Options{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey(),
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}

	strategy, err := batch.ParseStrategy(cfg.Batch.Strategy)
	if err != nil {
		return nil, err
	}

	opts := Options{Strategy: strategy, Timeout: cfg.Server.RequestTimeout}
	if cfg.Jira.URL != "" {
		if err := config.ValidateJiraConfig(cfg); err != nil {
			return nil, err
		}
		client, err := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.Token)
		if err != nil {
			return nil, err
		}
		opts.Tickets = client
	}

	summarizer := summarize.New(provider, summarize.Options{
		MaxRetries:  cfg.LLM.MaxRetries,
		Concurrency: cfg.LLM.Concurrency,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	logging.Info("pipeline configured",
		"provider", provider.Name(),
		"model", cfg.LLM.Model,
		"strategy", strategy,
		"jira", cfg.Jira.Enabled())

	return NewService(NewFetcherFactory(cfg.GitHub), summarizer, opts), nil
}

// NewFetcherFactory returns a FetcherFactory creating GitHub clients for the
// configured domain.
func NewFetcherFactory(gh config.GitHubConfig) FetcherFactory {
	return func(token string) (Fetcher, error) {
		client, err := github.NewClient(token,
			github.WithDomain(gh.Domain),
			github.WithTimeout(gh.Timeout),
			github.WithEarlyExit(gh.EarlyExit),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Generate fetches the user's merged pull requests from every repository and
// renders the summary. No matching pull requests yields a Result with Empty set,
// not an error.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := logging.FromContext(ctx).With("run_id", runID)
	ctx = logging.NewContext(ctx, log)

	repos := dedupe(req.Repositories)
	log.Info("generating summary", "repositories", len(repos), "year", req.Year, "username", req.Username)

	prs, err := s.fetch(ctx, log, req.Token, req.Username, repos, req.Year)
	if err != nil {
		return nil, err
	}

	if len(prs) == 0 {
		log.Warn("no pull requests found", "username", req.Username, "year", req.Year)
		return &Result{
			RunID:    runID,
			Markdown: report.NoPullRequests(req.Username, repos, req.Year),
			Empty:    true,
		}, nil
	}

	return s.summarize(ctx, log, runID, prs, req.Year, req.JobRequirements)
}

// Fetch returns the de-duplicated merged pull requests of username across repos.
// Repositories are fetched in order and the first failure aborts the fetch.
func (s *Service) Fetch(ctx context.Context, token, username string, repos []string, year int) ([]models.PullRequest, error) {
	req := Request{Repositories: repos, Year: year, Username: username, Token: token}
	if err := req.validate(false); err != nil {
		return nil, err
	}
	return s.fetch(ctx, logging.FromContext(ctx), token, username, dedupe(repos), year)
}

// Summarize runs enrichment, batching, summarization and rendering over
// already-fetched pull requests.
func (s *Service) Summarize(ctx context.Context, prs []models.PullRequest, year int, jobRequirements string) (*Result, error) {
	if strings.TrimSpace(jobRequirements) == "" {
		return nil, &ValidationError{Missing: []string{"job_requirements"}}
	}
	if len(prs) == 0 {
		return nil, errors.New("no pull requests to summarize")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := logging.FromContext(ctx).With("run_id", runID)
	return s.summarize(logging.NewContext(ctx, log), log, runID, dedupePullRequests(prs), year, jobRequirements)
}

func (s *Service) fetch(ctx context.Context, log *slog.Logger, token, username string, repos []string, year int) ([]models.PullRequest, error) {
	fetcher, err := s.newFetcher(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}

	var all []models.PullRequest
	for _, repo := range repos {
		log.Info("fetching pull requests", "repository", repo)

		prs, err := fetcher.FetchMergedPRs(ctx, username, repo, year)
		if err != nil {
			log.Error("failed to fetch pull requests", "repository", repo, "error", err)
			return nil, &FetchError{Repo: repo, Err: err}
		}

		log.Info("fetched pull requests", "repository", repo, "count", len(prs))
		all = append(all, prs...)
	}

	return dedupePullRequests(all), nil
}

func (s *Service) summarize(ctx context.Context, log *slog.Logger, runID string, prs []models.PullRequest, year int, jobRequirements string) (*Result, error) {
	if s.summarizer == nil {
		return nil, errors.New("service has no summarizer configured")
	}

	tickets := s.resolveTickets(ctx, log, prs)

	batches := s.strategy.Build(prs)
	log.Info("summarizing pull requests", "pull_requests", len(prs), "batches", len(batches), "strategy", s.strategy)

	results, err := s.summarizer.SummarizeAll(ctx, batches, summarize.Input{
		Year:            year,
		JobRequirements: jobRequirements,
		Tickets:         tickets,
	})
	if err != nil {
		return nil, fmt.Errorf("error generating summary: %w", err)
	}

	markdown := report.Assemble(year, results, prs)
	log.Info("summary generated", "bytes", len(markdown))

	return &Result{
		RunID:        runID,
		Markdown:     markdown,
		PullRequests: len(prs),
		Batches:      len(batches),
	}, nil
}

// resolveTickets maps each pull request URL to the tickets its title references.
func (s *Service) resolveTickets(ctx context.Context, log *slog.Logger, prs []models.PullRequest) map[string][]models.Ticket {
	if s.tickets == nil {
		return nil
	}

	found := s.tickets.ResolveTickets(ctx, prs)
	if len(found) == 0 {
		return nil
	}

	byURL := make(map[string][]models.Ticket)
	for _, pr := range prs {
		for _, key := range jira.ExtractKeys(pr.Title) {
			if t, ok := found[key]; ok {
				byURL[pr.URL] = append(byURL[pr.URL], t)
			}
		}
	}
	log.Info("attached ticket context", "tickets", len(found), "pull_requests", len(byURL))
	return byURL
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupePullRequests(prs []models.PullRequest) []models.PullRequest {
	seen := make(map[string]struct{}, len(prs))
	out := make([]models.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if _, ok := seen[pr.URL]; ok {
			continue
		}
		seen[pr.URL] = struct{}{}
		out = append(out, pr)
	}
	return out
}
