// Package github provides functionality for fetching merged pull requests from the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

const (
	defaultDomain  = "github.com"
	defaultTimeout = 30 * time.Second
	perPage        = 100

	// stalePageLimit is the number of consecutive pages with only pre-year
	// pull requests after which early exit stops paginating.
	stalePageLimit = 2
)

// ErrInvalidRepository is returned when a repository is not in "owner/repo" form.
var ErrInvalidRepository = errors.New("invalid repository format")

// Client encapsulates the GitHub API client.
type Client struct {
	client    *github.Client
	earlyExit bool
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	domain     string
	timeout    time.Duration
	earlyExit  bool
	baseURL    string
	httpClient *http.Client
}

// WithDomain points the client at a GitHub Enterprise domain.
func WithDomain(domain string) Option {
	return func(o *clientOptions) { o.domain = domain }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithEarlyExit enables the reverse-chronological pagination heuristic.
func WithEarlyExit(enabled bool) Option {
	return func(o *clientOptions) { o.earlyExit = enabled }
}

// WithBaseURL overrides the API base URL. It is used to talk to test servers.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// APIURL returns the REST API root for a GitHub domain.
func APIURL(domain string) string {
	if domain == "" || domain == defaultDomain {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a GitHub API client authenticated with token. It performs no
// network I/O; an invalid token surfaces on the first request.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	o := clientOptions{
		domain:  defaultDomain,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	apiURL := o.baseURL
	if apiURL == "" {
		apiURL = APIURL(o.domain)
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	logging.Debug("github configuration",
		"domain", o.domain,
		"api_url", apiURL,
		"token_length", len(token))

	// Create the oauth2 client
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = o.timeout

	client := github.NewClient(tc)

	if apiURL != APIURL(defaultDomain) {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}

		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	return &Client{client: client, earlyExit: o.earlyExit}, nil
}

// SplitRepository parses "owner/repo" into its parts.
func SplitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s, expected format: owner/repo", ErrInvalidRepository, repository)
	}
	return parts[0], parts[1], nil
}

// YearBounds returns the inclusive [Jan 1 00:00:00, Dec 31 23:59:59] range of year.
func YearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

// inYear compares the wall-clock reading of mergedAt, with its zone dropped, against the year bounds.
func inYear(mergedAt time.Time, start, end time.Time) bool {
	naive := time.Date(mergedAt.Year(), mergedAt.Month(), mergedAt.Day(),
		mergedAt.Hour(), mergedAt.Minute(), mergedAt.Second(), mergedAt.Nanosecond(), time.UTC)
	return !naive.Before(start) && !naive.After(end)
}

// FetchMergedPRs retrieves every pull request in repository that was authored by
// username and merged during year. The repository should be in the format "owner/repo".
// Any API error aborts the fetch.
func (c *Client) FetchMergedPRs(ctx context.Context, username, repository string, year int) ([]models.PullRequest, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return nil, err
	}

	start, end := YearBounds(year)
	log := logging.FromContext(ctx).With("repository", repository)

	opts := &github.PullRequestListOptions{
		State: "closed",
		ListOptions: github.ListOptions{
			Page:    1,
			PerPage: perPage,
		},
	}
	if c.earlyExit {
		opts.Sort = "created"
		opts.Direction = "desc"
	}

	log.Info("fetching merged pull requests",
		"username", username,
		"year", year)

	var result []models.PullRequest
	stalePages := 0
	for {
		prs, _, err := c.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			log.Error("failed to fetch github pull requests",
				"page", opts.Page,
				"error", err)
			return nil, fmt.Errorf("failed to fetch pull requests from %s (page %d): %w", repository, opts.Page, err)
		}

		if len(prs) == 0 {
			break
		}

		matched, before := 0, 0
		for _, pr := range prs {
			if pr.MergedAt == nil {
				continue
			}
			if !strings.EqualFold(pr.GetUser().GetLogin(), username) {
				continue
			}

			mergedAt := pr.GetMergedAt()
			if !inYear(mergedAt, start, end) {
				if mergedAt.Year() < year {
					before++
				}
				continue
			}

			matched++
			result = append(result, toModel(pr, repository))
		}

		log.Debug("processed page",
			"page", opts.Page,
			"pull_requests", len(prs),
			"matched", matched)

		if c.earlyExit {
			if matched == 0 && before > 0 {
				stalePages++
			} else {
				stalePages = 0
			}
			if stalePages >= stalePageLimit {
				log.Debug("stopping pagination early", "page", opts.Page)
				break
			}
		}

		opts.Page++
	}

	log.Info("fetched merged pull requests", "count", len(result))

	return result, nil
}

// toModel converts a GitHub API pull request to our internal model.
func toModel(pr *github.PullRequest, repository string) models.PullRequest {
	seen := make(map[string]bool, len(pr.Labels))
	labelNames := make([]string, 0, len(pr.Labels))
	for _, label := range pr.Labels {
		name := label.GetName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		labelNames = append(labelNames, name)
	}

	return models.PullRequest{
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		URL:         pr.GetHTMLURL(),
		MergedAt:    pr.GetMergedAt().UTC(),
		Labels:      labelNames,
		SourceRepo:  repository,
	}
}
