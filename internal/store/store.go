// Package store reads and writes the local artifacts produced by the CLI.
package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/pkg/models"
)

// DefaultSummaryFile is the markdown output written when no path is given.
const DefaultSummaryFile = "self_review_summary.md"

// ArtifactName returns the file name of the per-year pull request artifact.
func ArtifactName(year int) string {
	return fmt.Sprintf("merged_prs_%d.json", year)
}

// SavePullRequests writes prs, ordered by merge date, to dir/merged_prs_<year>.json
// and returns the written path.
func SavePullRequests(dir string, year int, prs []models.PullRequest) (string, error) {
	sorted := make([]models.PullRequest, len(prs))
	copy(sorted, prs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MergedAt.Before(sorted[j].MergedAt) })

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode pull requests: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, ArtifactName(year))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Info("saved pull requests", "path", path, "count", len(sorted))
	return path, nil
}

// LoadPullRequests reads the artifact written by SavePullRequests.
func LoadPullRequests(dir string, year int) ([]models.PullRequest, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ArtifactName(year))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var prs []models.PullRequest
	if err := json.Unmarshal(data, &prs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	inferred := 0
	for i := range prs {
		if prs[i].SourceRepo == "" {
			if repo := RepositoryFromURL(prs[i].URL); repo != "" {
				prs[i].SourceRepo = repo
				inferred++
			}
		}
	}

	logging.Debug("loaded pull requests", "path", path, "count", len(prs), "inferred_source_repo", inferred)
	return prs, nil
}

// RepositoryFromURL extracts "owner/name" from a pull request page URL such as
// https://github.com/owner/name/pull/7. It returns "" for any other shape.
func RepositoryFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "/" + parts[1]
}

// DefaultSourceRepo sets SourceRepo to repo on every pull request that still has
// none and returns how many were changed.
func DefaultSourceRepo(prs []models.PullRequest, repo string) int {
	if repo == "" {
		return 0
	}
	changed := 0
	for i := range prs {
		if prs[i].SourceRepo == "" {
			prs[i].SourceRepo = repo
			changed++
		}
	}
	return changed
}

// WriteSummary writes the markdown document to path, creating parent directories.
func WriteSummary(path, markdown string) error {
	if path == "" {
		path = DefaultSummaryFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Info("wrote summary", "path", path, "bytes", len(markdown))
	return nil
}
