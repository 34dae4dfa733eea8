package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/danielolaszy/prreview/internal/pipeline"
	"github.com/go-chi/chi/v5/middleware"
)

// requiredFields lists the body fields of a generate-summary request in the
// order they are reported when missing.
var requiredFields = []string{"repos", "year", "github_username", "github_token", "role_requirements"}

// SummaryResponse is the success body of POST /api/generate-summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// generateSummary handles POST /api/generate-summary. The handler is stateless:
// every credential arrives with the request.
func (s *Server) generateSummary(w http.ResponseWriter, r *http.Request) {
	log := logging.With("request_id", middleware.GetReqID(r.Context()))

	var body map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil || body == nil {
		log.Warn("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}

	var missing []string
	for _, field := range requiredFields {
		if isBlank(body[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		log.Warn("missing required fields", "fields", missing)
		writeError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	req, err := decodeRequest(body)
	if err != nil {
		log.Warn("invalid request", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info("generating summary",
		"repositories", req.Repositories,
		"year", req.Year,
		"github_username", req.Username)

	result, err := s.generator.Generate(logging.NewContext(r.Context(), log), req)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("summary generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info("summary generated", "run_id", result.RunID, "empty", result.Empty, "bytes", len(result.Markdown))
	writeJSON(w, http.StatusOK, SummaryResponse{Summary: result.Markdown})
}

func decodeRequest(body map[string]json.RawMessage) (pipeline.Request, error) {
	var req pipeline.Request

	if err := json.Unmarshal(body["repos"], &req.Repositories); err != nil || len(req.Repositories) == 0 {
		return req, errors.New("repos must be a non-empty list")
	}

	year, err := decodeYear(body["year"])
	if err != nil {
		return req, err
	}
	req.Year = year

	fields := []struct {
		name string
		dst  *string
	}{
		{"github_username", &req.Username},
		{"github_token", &req.Token},
		{"role_requirements", &req.JobRequirements},
	}
	for _, f := range fields {
		if err := json.Unmarshal(body[f.name], f.dst); err != nil {
			return req, fmt.Errorf("%s must be a string", f.name)
		}
	}

	return req, nil
}

// decodeYear accepts the year as a JSON number or a numeric string.
func decodeYear(raw json.RawMessage) (int, error) {
	var year int
	if err := json.Unmarshal(raw, &year); err == nil {
		return year, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if year, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return year, nil
		}
	}
	return 0, fmt.Errorf("year must be an integer, got %s", string(raw))
}

// isBlank reports whether a JSON value is absent or falsy.
func isBlank(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return true
	}
	switch string(v) {
	case "null", `""`, "0", "false", "[]", "{}":
		return true
	}
	return false
}
