// Package batch groups pull requests into the units summarized by one model call.
package batch

import (
	"fmt"
	"sort"

	"github.com/danielolaszy/prreview/pkg/models"
)

// Strategy selects how pull requests are split into batches.
type Strategy string

const (
	// PerLabel creates one batch per (repository, label) pair.
	PerLabel Strategy = "per-label"

	// SingleCall puts every pull request into one batch.
	SingleCall Strategy = "single"
)

// ParseStrategy converts a configuration value into a Strategy. An empty value
// selects PerLabel.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", PerLabel:
		return PerLabel, nil
	case SingleCall:
		return SingleCall, nil
	default:
		return "", fmt.Errorf("unknown batch strategy: %s", s)
	}
}

// Build groups prs according to the strategy and returns the batches in key order.
func (s Strategy) Build(prs []models.PullRequest) []models.Batch {
	if s == SingleCall {
		return Single(prs)
	}
	return Batches(GroupIntoBatches(prs))
}

// GroupIntoBatches groups pull requests by source repository and then by label.
// A pull request with several labels appears in each of those batches; one with
// no labels goes to the UnlabeledLabel batch of its repository. Input order is
// preserved inside each batch.
func GroupIntoBatches(prs []models.PullRequest) map[models.BatchKey][]models.PullRequest {
	grouped := make(map[models.BatchKey][]models.PullRequest)
	for _, pr := range prs {
		if len(pr.Labels) == 0 {
			key := models.BatchKey{Repo: pr.SourceRepo, Label: models.UnlabeledLabel}
			grouped[key] = append(grouped[key], pr)
			continue
		}

		seen := make(map[string]struct{}, len(pr.Labels))
		for _, label := range pr.Labels {
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}

			key := models.BatchKey{Repo: pr.SourceRepo, Label: label}
			grouped[key] = append(grouped[key], pr)
		}
	}
	return grouped
}

// Single returns one cross-repository batch holding every pull request, or no
// batches when prs is empty.
func Single(prs []models.PullRequest) []models.Batch {
	if len(prs) == 0 {
		return nil
	}
	items := make([]models.PullRequest, len(prs))
	copy(items, prs)
	return []models.Batch{{
		Key:          models.BatchKey{Label: models.AllLabel},
		PullRequests: items,
	}}
}

// Batches flattens a grouping into a slice ordered by repository, then label.
func Batches(grouped map[models.BatchKey][]models.PullRequest) []models.Batch {
	keys := make([]models.BatchKey, 0, len(grouped))
	for key, prs := range grouped {
		if len(prs) == 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	batches := make([]models.Batch, 0, len(keys))
	for _, key := range keys {
		batches = append(batches, models.Batch{Key: key, PullRequests: grouped[key]})
	}
	return batches
}
