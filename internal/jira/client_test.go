package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/prreview/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		username string
		token    string
		wantErr  bool
	}{
		{name: "All credentials provided", url: "https://example.atlassian.net", username: "test@example.com", token: "test-token"},
		{name: "Missing URL", username: "test@example.com", token: "test-token", wantErr: true},
		{name: "Missing username", url: "https://example.atlassian.net", token: "test-token", wantErr: true},
		{name: "Missing token", url: "https://example.atlassian.net", username: "test@example.com", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.url, tc.username, tc.token)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

func TestExtractKeys(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "Bracketed prefix", text: "[PAY-12] Add refunds", expected: []string{"PAY-12"}},
		{name: "Several keys", text: "PAY-12, OPS-7: wire alerts for PAY-12", expected: []string{"PAY-12", "OPS-7"}},
		{name: "Alphanumeric project", text: "fix(B2B-301): retry", expected: []string{"B2B-301"}},
		{name: "Lower case is ignored", text: "pay-12 add refunds", expected: nil},
		{name: "No keys", text: "Refactor scheduler", expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractKeys(tc.text))
		})
	}
}

func newJiraServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret", pass)

		key := strings.TrimPrefix(r.URL.Path, "/rest/api/2/issue/")
		switch key {
		case "PAY-12":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"key": "PAY-12",
				"fields": map[string]any{
					"summary":   "Support partial refunds",
					"status":    map[string]any{"name": "Done"},
					"issuetype": map[string]any{"name": "Story"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
		}
	}))
}

func TestGetTicket(t *testing.T) {
	server := newJiraServer(t)
	defer server.Close()

	client, err := NewClient(server.URL, "bot@example.com", "secret")
	require.NoError(t, err)

	ticket, err := client.GetTicket(context.Background(), "PAY-12")
	require.NoError(t, err)
	assert.Equal(t, models.Ticket{Key: "PAY-12", Summary: "Support partial refunds", Status: "Done", Type: "Story"}, ticket)

	_, err = client.GetTicket(context.Background(), "OPS-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPS-404")
	assert.Contains(t, err.Error(), "404")
}

func TestResolveTicketsIsBestEffort(t *testing.T) {
	server := newJiraServer(t)
	defer server.Close()

	client, err := NewClient(server.URL, "bot@example.com", "secret")
	require.NoError(t, err)

	prs := []models.PullRequest{
		{Title: "[PAY-12] Add refunds", MergedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "PAY-12 follow-up"},
		{Title: "[OPS-404] Missing ticket"},
		{Title: "No ticket at all"},
	}

	tickets := client.ResolveTickets(context.Background(), prs)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Support partial refunds", tickets["PAY-12"].Summary)
}

func TestResolveTicketsWithoutKeys(t *testing.T) {
	client, err := NewClient("https://jira.example.com", "bot@example.com", "secret")
	require.NoError(t, err)

	tickets := client.ResolveTickets(context.Background(), []models.PullRequest{{Title: "Refactor"}})
	assert.Empty(t, tickets)
}
