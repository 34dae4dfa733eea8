// Package jira resolves JIRA tickets referenced from pull request titles so
// their context can be shown to the summarization model.
package jira

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 5
	defaultTimeout     = 15 * time.Second
)

// ticketKeyPattern matches keys such as "PROJ-123" anywhere in a title.
var ticketKeyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]+-\d+)\b`)

// Client handles interactions with the JIRA API
type Client struct {
	client      *jira.Client
	concurrency int
}

// NewClient creates a new JIRA client authenticated with basic auth.
func NewClient(baseURL, username, token string) (*Client, error) {
	if baseURL == "" || username == "" || token == "" {
		return nil, fmt.Errorf("jira url, username and token are required")
	}

	// Create JIRA authentication transport
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: token,
	}
	httpClient := tp.Client()
	httpClient.Timeout = defaultTimeout

	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	return &Client{
		client:      client,
		concurrency: defaultConcurrency,
	}, nil
}

// ExtractKeys returns the distinct ticket keys mentioned in text, in order of appearance.
func ExtractKeys(text string) []string {
	matches := ticketKeyPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var keys []string
	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			seen[match[1]] = true
			keys = append(keys, match[1])
		}
	}
	return keys
}

// GetTicket fetches a single ticket by key.
func (c *Client) GetTicket(ctx context.Context, key string) (models.Ticket, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{
		Fields: "summary,status,issuetype",
	})
	if err != nil {
		status := 0
		if resp != nil && resp.Response != nil {
			status = resp.StatusCode
		}
		return models.Ticket{}, fmt.Errorf("failed to get JIRA ticket %s: %w (status: %d)", key, err, status)
	}
	if issue == nil || issue.Fields == nil {
		return models.Ticket{}, fmt.Errorf("JIRA ticket %s has no fields", key)
	}

	ticket := models.Ticket{
		Key:     issue.Key,
		Summary: issue.Fields.Summary,
		Type:    issue.Fields.Type.Name,
	}
	if ticket.Key == "" {
		ticket.Key = key
	}
	if issue.Fields.Status != nil {
		ticket.Status = issue.Fields.Status.Name
	}
	return ticket, nil
}

// ResolveTickets looks up every ticket referenced from the pull request titles.
// Lookups are best effort: a ticket that cannot be fetched is logged and left out.
func (c *Client) ResolveTickets(ctx context.Context, prs []models.PullRequest) map[string]models.Ticket {
	seen := make(map[string]bool)
	var keys []string
	for _, pr := range prs {
		for _, key := range ExtractKeys(pr.Title) {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	tickets := make(map[string]models.Ticket, len(keys))
	if len(keys) == 0 {
		return tickets
	}

	log := logging.FromContext(ctx)
	log.Info("resolving jira tickets", "count", len(keys))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			ticket, err := c.GetTicket(gctx, key)
			if err != nil {
				log.Warn("skipping jira ticket", "key", key, "error", err)
				return nil
			}
			mu.Lock()
			tickets[key] = ticket
			mu.Unlock()
			return nil
		})
	}
	// Lookups never return an error, so Wait only joins the goroutines.
	g.Wait()

	log.Info("resolved jira tickets",
		"requested", len(keys),
		"resolved", len(tickets))

	return tickets
}
