// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"time"
)

const (
	// UnlabeledLabel is the batch label for pull requests that carry no labels.
	UnlabeledLabel = "unlabeled"

	// AllLabel is the batch label used when every pull request is summarized in one call.
	AllLabel = "all"
)

// PullRequest represents one merged pull request. It is created by the fetcher
// and never mutated afterwards.
type PullRequest struct {
	// Title is the pull request's title
	Title string `json:"title"`

	// Description is the body text, empty when the author left none
	Description string `json:"description"`

	// URL is the canonical html URL and identifies the pull request within a run
	URL string `json:"url"`

	// MergedAt is the merge timestamp in UTC
	MergedAt time.Time `json:"merged_at"`

	// Labels holds the label names in the order the API returned them, without duplicates
	Labels []string `json:"labels"`

	// SourceRepo is the "owner/name" repository the pull request was fetched from
	SourceRepo string `json:"source_repo"`
}

// MergedDate returns the merge date formatted as YYYY-MM-DD.
func (p PullRequest) MergedDate() string {
	return p.MergedAt.UTC().Format("2006-01-02")
}

// BatchKey identifies a batch of pull requests summarized together.
type BatchKey struct {
	Repo  string
	Label string
}

// String renders the key as "repo:label", or just the label for cross-repository batches.
func (k BatchKey) String() string {
	if k.Repo == "" {
		return k.Label
	}
	return fmt.Sprintf("%s:%s", k.Repo, k.Label)
}

// Less orders keys by repository, then label.
func (k BatchKey) Less(other BatchKey) bool {
	if k.Repo != other.Repo {
		return k.Repo < other.Repo
	}
	return k.Label < other.Label
}

// Batch is a group of pull requests processed by one summarization call.
type Batch struct {
	Key          BatchKey
	PullRequests []PullRequest
}

// URLs returns the set of pull request URLs in the batch.
func (b Batch) URLs() map[string]struct{} {
	urls := make(map[string]struct{}, len(b.PullRequests))
	for _, pr := range b.PullRequests {
		urls[pr.URL] = struct{}{}
	}
	return urls
}

// Citation points from a summary bullet back to a source pull request.
type Citation struct {
	PRTitle string `json:"pr_title"`
	PRURL   string `json:"pr_url"`
}

// SummaryBullet is one review point produced by the model.
type SummaryBullet struct {
	Title        string     `json:"title"`
	WorkDone     string     `json:"work_done"`
	Significance string     `json:"significance"`
	CareerArea   string     `json:"career_area"`
	Citations    []Citation `json:"citations"`
}

// SummaryResponse is the structured model output for one batch.
type SummaryResponse struct {
	Bullets []SummaryBullet `json:"bullets"`
}

// Ticket holds issue-tracker context referenced from a pull request title.
type Ticket struct {
	// Key is the full ticket identifier (e.g., "ABC-123")
	Key string

	// Summary is the ticket's summary field
	Summary string

	// Status is the workflow status name (e.g., "Done")
	Status string

	// Type is the issue type name (e.g., "Story")
	Type string
}
