package summarize

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/prreview/pkg/models"
)

// PromptInput is everything rendered into one batch prompt.
type PromptInput struct {
	Label           string
	Year            int
	JobRequirements string
	PullRequests    []models.PullRequest

	// Tickets maps a pull request URL to the issue-tracker tickets its title references.
	Tickets map[string][]models.Ticket
}

const promptTemplate = `You are helping an engineer write their performance self-review. Below are %d pull requests they merged in %d%s.

JOB REQUIREMENTS:
%s

Analyze these PRs and summarize the key themes, accomplishments, and impact into 3-7 high-level bullet points. For each bullet point, provide:
- **title**: A 3-5 word title summarizing the bullet point (e.g., "Built Feature X", "Refactored Component Y", "Added Test Coverage")
- **work_done**: A factual description of what was done (e.g., "Built feature X", "Refactored component Y", "Added tests for Z")
- **significance**: How this work aligns with the job requirements above and could be represented in a performance review context. Reference specific aspects of the job requirements that this work demonstrates
- **career_area**: The job requirements area this bullet point belongs to. Use the exact section heading name from the document above (e.g., if the document has a section called "Ownership & Impact", use that exact name)

Focus on:
- Major features or capabilities delivered
- Technical improvements and optimizations
- Process improvements or tooling
- Cross-team collaboration or leadership
- Impact and value delivered

Be specific but concise. Use action verbs. Quantify impact where possible. When describing significance, explicitly connect the work to the job requirements.

For each bullet point, cite the PRs that support it with their exact title and URL. A bullet point can cite one or more PRs. Only cite URLs that appear in the list below.

PRs:
%s`

// BuildPrompt renders the summarization prompt for one batch.
func BuildPrompt(in PromptInput) string {
	scope := ""
	switch in.Label {
	case "", models.AllLabel:
	default:
		scope = fmt.Sprintf(" under the %q project/label", in.Label)
	}

	return fmt.Sprintf(promptTemplate,
		len(in.PullRequests),
		in.Year,
		scope,
		strings.TrimSpace(in.JobRequirements),
		formatPullRequests(in.PullRequests, in.Tickets),
	)
}

func formatPullRequests(prs []models.PullRequest, tickets map[string][]models.Ticket) string {
	var b strings.Builder
	for _, pr := range prs {
		fmt.Fprintf(&b, "## %s\n", pr.Title)
		if body := strings.TrimSpace(pr.Description); body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Merged: %s\n", pr.MergedDate())
		fmt.Fprintf(&b, "URL: %s\n", pr.URL)
		for _, t := range tickets[pr.URL] {
			fmt.Fprintf(&b, "Ticket: %s (%s): %s\n", t.Key, t.Status, t.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}
