package summarize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/danielolaszy/prreview/pkg/models"
)

// ErrInvalidResponse marks model output that does not satisfy the response schema.
var ErrInvalidResponse = errors.New("invalid model response")

// CitationError is returned when a bullet cites a URL outside its batch.
type CitationError struct {
	URL string
}

func (e *CitationError) Error() string {
	return fmt.Sprintf("cited URL %s is not in the provided PRs", e.URL)
}

// ParseResponse decodes the model's JSON content into a SummaryResponse. The
// content must be a single JSON object. Unknown fields, missing required fields
// and bullets without citations are rejected; an empty bullet list is valid and
// contributes nothing to the report.
func ParseResponse(content string) (models.SummaryResponse, error) {
	var resp models.SummaryResponse

	dec := json.NewDecoder(bytes.NewReader([]byte(stripCodeFence(content))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&resp); err != nil {
		return models.SummaryResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.SummaryResponse{}, fmt.Errorf("%w: trailing content after the JSON object", ErrInvalidResponse)
	}
	for i, b := range resp.Bullets {
		switch {
		case strings.TrimSpace(b.Title) == "":
			return models.SummaryResponse{}, fmt.Errorf("%w: bullet %d is missing title", ErrInvalidResponse, i)
		case strings.TrimSpace(b.WorkDone) == "":
			return models.SummaryResponse{}, fmt.Errorf("%w: bullet %d is missing work_done", ErrInvalidResponse, i)
		case strings.TrimSpace(b.Significance) == "":
			return models.SummaryResponse{}, fmt.Errorf("%w: bullet %d is missing significance", ErrInvalidResponse, i)
		case strings.TrimSpace(b.CareerArea) == "":
			return models.SummaryResponse{}, fmt.Errorf("%w: bullet %d is missing career_area", ErrInvalidResponse, i)
		case len(b.Citations) == 0:
			return models.SummaryResponse{}, fmt.Errorf("%w: bullet %d has no citations", ErrInvalidResponse, i)
		}
		for _, c := range b.Citations {
			if strings.TrimSpace(c.PRURL) == "" {
				return models.SummaryResponse{}, fmt.Errorf("%w: bullet %d has a citation without pr_url", ErrInvalidResponse, i)
			}
		}
	}

	return resp, nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ValidateCitations checks that every cited URL belongs to the batch.
func ValidateCitations(resp models.SummaryResponse, batch models.Batch) error {
	allowed := batch.URLs()
	for _, b := range resp.Bullets {
		for _, c := range b.Citations {
			if _, ok := allowed[c.PRURL]; !ok {
				return &CitationError{URL: c.PRURL}
			}
		}
	}
	return nil
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)(?:[ \t]+#+)?[ \t]*$`)

// RequirementAreas returns the section headings of a job-requirements document
// in document order.
func RequirementAreas(jobRequirements string) []string {
	var areas []string
	for _, m := range headingPattern.FindAllStringSubmatch(jobRequirements, -1) {
		if area := strings.TrimSpace(m[1]); area != "" {
			areas = append(areas, area)
		}
	}
	return areas
}

// CanonicalArea maps a model-produced career area to the matching heading,
// ignoring case and surrounding whitespace. Areas without a match are returned
// trimmed.
func CanonicalArea(area string, areas []string) string {
	trimmed := strings.TrimSpace(area)
	for _, candidate := range areas {
		if strings.EqualFold(trimmed, candidate) {
			return candidate
		}
	}
	return trimmed
}
