// Package report renders summarized batches into the final markdown document.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielolaszy/prreview/pkg/models"
)

// UnknownRepository heads bullets whose citations match no fetched pull request.
const UnknownRepository = "Other"

// Assemble regroups the bullets of every batch by repository and career area
// and renders them as markdown. Repositories and career areas are sorted
// alphabetically; bullets keep the order the model returned them in. The output
// depends only on the contents of results, never on the order batches finished.
func Assemble(year int, results map[models.BatchKey]models.SummaryResponse, prs []models.PullRequest) string {
	byURL := make(map[string]models.PullRequest, len(prs))
	for _, pr := range prs {
		byURL[pr.URL] = pr
	}

	keys := make([]models.BatchKey, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	grouped := make(map[string]map[string][]models.SummaryBullet)
	for _, key := range keys {
		for _, bullet := range results[key].Bullets {
			repo := bulletRepository(key, bullet, byURL)
			if grouped[repo] == nil {
				grouped[repo] = make(map[string][]models.SummaryBullet)
			}
			grouped[repo][bullet.CareerArea] = append(grouped[repo][bullet.CareerArea], bullet)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Performance Self-Review Summary (%d)\n\n", year)

	for _, repo := range sortedKeys(grouped) {
		fmt.Fprintf(&b, "## %s\n\n", repo)

		areas := grouped[repo]
		for _, area := range sortedKeys(areas) {
			fmt.Fprintf(&b, "### %s\n\n", area)
			for _, bullet := range areas[area] {
				writeBullet(&b, bullet, byURL)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// bulletRepository picks the section a bullet belongs to. Cross-repository
// batches attribute a bullet to the repository of its first known citation.
func bulletRepository(key models.BatchKey, bullet models.SummaryBullet, byURL map[string]models.PullRequest) string {
	if key.Repo != "" {
		return key.Repo
	}
	for _, c := range bullet.Citations {
		if pr, ok := byURL[c.PRURL]; ok && pr.SourceRepo != "" {
			return pr.SourceRepo
		}
	}
	return UnknownRepository
}

func writeBullet(b *strings.Builder, bullet models.SummaryBullet, byURL map[string]models.PullRequest) {
	fmt.Fprintf(b, "- **%s**\n", strings.TrimSpace(bullet.Title))
	fmt.Fprintf(b, "  **Work Done:** %s\n", strings.TrimSpace(bullet.WorkDone))
	for _, c := range bullet.Citations {
		title := c.PRTitle
		if pr, ok := byURL[c.PRURL]; ok {
			title = pr.Title
		}
		if title == "" {
			title = c.PRURL
		}
		fmt.Fprintf(b, "  - [%s](%s)\n", escapeLinkText(title), c.PRURL)
	}
	fmt.Fprintf(b, "  **Significance:** %s\n\n", strings.TrimSpace(bullet.Significance))
}

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NoPullRequests renders the document returned when no merged pull requests matched.
func NoPullRequests(username string, repositories []string, year int) string {
	quoted := make([]string, 0, len(repositories))
	for _, repo := range repositories {
		quoted = append(quoted, fmt.Sprintf("**%s**", repo))
	}
	return fmt.Sprintf("# No PRs Found\n\nNo merged PRs found for user **%s** in repositories %s for year **%d**.",
		username, strings.Join(quoted, ", "), year)
}
