package summarize

import "github.com/danielolaszy/prreview/internal/llm"

const schemaName = "summary_response"

// ResponseSchema returns the strict JSON schema of models.SummaryResponse sent
// to the provider. Every property is required, no extra properties are allowed
// and every bullet cites at least one pull request, matching ParseResponse.
func ResponseSchema() llm.Schema {
	citation := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"pr_title", "pr_url"},
		"properties": map[string]any{
			"pr_title": map[string]any{"type": "string", "description": "Title of the cited pull request"},
			"pr_url":   map[string]any{"type": "string", "description": "URL of the cited pull request"},
		},
	}

	bullet := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "work_done", "significance", "career_area", "citations"},
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "A 3-5 word title summarizing the bullet point",
			},
			"work_done": map[string]any{
				"type":        "string",
				"description": "Description of what was done",
			},
			"significance": map[string]any{
				"type":        "string",
				"description": "How the work aligns with the job requirements in a performance review",
			},
			"career_area": map[string]any{
				"type":        "string",
				"description": "The job requirements area this bullet point belongs to",
			},
			"citations": map[string]any{
				"type":        "array",
				"description": "Pull requests that support this bullet point; at least one",
				"minItems":    1,
				"items":       citation,
			},
		},
	}

	return llm.Schema{
		Name:        schemaName,
		Description: "Performance review bullet points with pull request citations",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"bullets"},
			"properties": map[string]any{
				"bullets": map[string]any{
					"type":        "array",
					"description": "List of summary bullet points",
					"items":       bullet,
				},
			},
		},
	}
}
