package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielolaszy/prreview/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiPR struct {
	Title    string     `json:"title"`
	Body     *string    `json:"body"`
	HTMLURL  string     `json:"html_url"`
	MergedAt *string    `json:"merged_at"`
	User     apiUser    `json:"user"`
	Labels   []apiLabel `json:"labels"`
}

type apiUser struct {
	Login string `json:"login"`
}

type apiLabel struct {
	Name string `json:"name"`
}

func merged(ts string) *string { return &ts }

func body(s string) *string { return &s }

// newPagedServer serves pages[i] for ?page=i+1 and an empty list afterwards.
func newPagedServer(t *testing.T, pages [][]apiPR, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			atomic.AddInt32(requests, 1)
		}
		assert.Equal(t, "/repos/acme/api/pulls", r.URL.Path)
		assert.Equal(t, "closed", r.URL.Query().Get("state"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		items := []apiPR{}
		if page >= 1 && page <= len(pages) {
			items = pages[page-1]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	}))
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(server.URL)}, opts...)
	client, err := NewClient("test-token", opts...)
	require.NoError(t, err)
	return client
}

func TestGitHubDomainToAPIURL(t *testing.T) {
	testCases := []struct {
		name           string
		domain         string
		expectedAPIURL string
	}{
		{name: "Default GitHub.com", domain: "github.com", expectedAPIURL: "https://api.github.com/"},
		{name: "GitHub Enterprise", domain: "github.example.com", expectedAPIURL: "https://github.example.com/api/v3/"},
		{name: "Empty Domain (should default to github.com)", domain: "", expectedAPIURL: "https://api.github.com/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			apiURL := APIURL(tc.domain)
			assert.Equal(t, tc.expectedAPIURL, apiURL)

			parsedURL, err := url.Parse(apiURL)
			require.NoError(t, err)
			assert.Equal(t, apiURL, parsedURL.String())
		})
	}
}

func TestNewClientEnterpriseBaseURL(t *testing.T) {
	client, err := NewClient("test-token", WithDomain("github.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", client.client.BaseURL.String())

	_, err = NewClient("")
	assert.Error(t, err)
}

func TestNewClientLogsTokenLengthOnly(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupLogger(&buf, logging.LevelDebug, logging.FormatText)
	t.Cleanup(func() { logging.ConfigureFromEnv(os.Stderr) })

	_, err := NewClient("ghp_9f8e7d6c5b4a")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "token_length=16")
	assert.NotContains(t, buf.String(), "ghp_")
}

func TestSplitRepository(t *testing.T) {
	owner, repo, err := SplitRepository("acme/api")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "api", repo)

	for _, invalid := range []string{"invalid-repo-format", "acme/", "/api", "a/b/c", ""} {
		_, _, err := SplitRepository(invalid)
		assert.ErrorIs(t, err, ErrInvalidRepository, invalid)
	}
}

func TestFetchMergedPRsInvalidRepository(t *testing.T) {
	client := &Client{}

	_, err := client.FetchMergedPRs(context.Background(), "alice", "invalid-repo-format", 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repository format")
}

func TestFetchMergedPRsFilters(t *testing.T) {
	pages := [][]apiPR{
		{
			{
				Title:    "Add retries",
				Body:     body("Retries failed jobs."),
				HTMLURL:  "https://github.com/acme/api/pull/1",
				MergedAt: merged("2025-03-01T10:00:00Z"),
				User:     apiUser{Login: "Alice"},
				Labels:   []apiLabel{{Name: "backend"}, {Name: "reliability"}, {Name: "backend"}},
			},
			{
				Title:   "Closed without merge",
				HTMLURL: "https://github.com/acme/api/pull/2",
				User:    apiUser{Login: "alice"},
			},
			{
				Title:    "Someone else's work",
				HTMLURL:  "https://github.com/acme/api/pull/3",
				MergedAt: merged("2025-04-01T10:00:00Z"),
				User:     apiUser{Login: "bob"},
			},
			{
				Title:    "Last year",
				HTMLURL:  "https://github.com/acme/api/pull/4",
				MergedAt: merged("2024-12-31T23:59:59Z"),
				User:     apiUser{Login: "alice"},
			},
		},
		{
			{
				Title:    "New year's eve",
				HTMLURL:  "https://github.com/acme/api/pull/5",
				MergedAt: merged("2025-12-31T23:59:59Z"),
				User:     apiUser{Login: "ALICE"},
			},
			{
				Title:    "Next year",
				HTMLURL:  "https://github.com/acme/api/pull/6",
				MergedAt: merged("2026-01-01T00:00:00Z"),
				User:     apiUser{Login: "alice"},
			},
			{
				Title:    "First second",
				HTMLURL:  "https://github.com/acme/api/pull/7",
				MergedAt: merged("2025-01-01T00:00:00Z"),
				User:     apiUser{Login: "alice"},
			},
		},
	}

	var requests int32
	server := newPagedServer(t, pages, &requests)
	defer server.Close()

	client := newTestClient(t, server)
	prs, err := client.FetchMergedPRs(context.Background(), "alice", "acme/api", 2025)
	require.NoError(t, err)

	require.Len(t, prs, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests), "pagination stops on the first empty page")

	assert.Equal(t, "Add retries", prs[0].Title)
	assert.Equal(t, "Retries failed jobs.", prs[0].Description)
	assert.Equal(t, "https://github.com/acme/api/pull/1", prs[0].URL)
	assert.Equal(t, []string{"backend", "reliability"}, prs[0].Labels)
	assert.Equal(t, "acme/api", prs[0].SourceRepo)
	assert.Equal(t, "2025-03-01", prs[0].MergedDate())

	assert.Equal(t, "New year's eve", prs[1].Title)
	assert.Equal(t, "", prs[1].Description)
	assert.Empty(t, prs[1].Labels)
	assert.Equal(t, "First second", prs[2].Title)

	start, end := YearBounds(2025)
	for _, pr := range prs {
		assert.False(t, pr.MergedAt.Before(start))
		assert.False(t, pr.MergedAt.After(end))
		assert.Equal(t, time.UTC, pr.MergedAt.Location())
	}
}

func TestFetchMergedPRsEarlyExit(t *testing.T) {
	stale := func(n int) []apiPR {
		return []apiPR{{
			Title:    "old",
			HTMLURL:  "https://github.com/acme/api/pull/" + strconv.Itoa(n),
			MergedAt: merged("2023-06-01T00:00:00Z"),
			User:     apiUser{Login: "alice"},
		}}
	}
	pages := [][]apiPR{
		{{
			Title:    "Current",
			HTMLURL:  "https://github.com/acme/api/pull/100",
			MergedAt: merged("2025-06-01T00:00:00Z"),
			User:     apiUser{Login: "alice"},
		}},
		stale(1),
		stale(2),
		stale(3),
		stale(4),
	}

	t.Run("disabled walks every page", func(t *testing.T) {
		var requests int32
		server := newPagedServer(t, pages, &requests)
		defer server.Close()

		prs, err := newTestClient(t, server).FetchMergedPRs(context.Background(), "alice", "acme/api", 2025)
		require.NoError(t, err)
		assert.Len(t, prs, 1)
		assert.Equal(t, int32(6), atomic.LoadInt32(&requests))
	})

	t.Run("enabled stops after two stale pages", func(t *testing.T) {
		var requests int32
		server := newPagedServer(t, pages, &requests)
		defer server.Close()

		prs, err := newTestClient(t, server, WithEarlyExit(true)).FetchMergedPRs(context.Background(), "alice", "acme/api", 2025)
		require.NoError(t, err)
		assert.Len(t, prs, 1)
		assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	})
}

func TestFetchMergedPRsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).FetchMergedPRs(context.Background(), "alice", "acme/api", 2025)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/api")
	assert.Contains(t, err.Error(), "page 1")
}

func TestFetchMergedPRsContextCancelled(t *testing.T) {
	server := newPagedServer(t, nil, nil)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, server).FetchMergedPRs(ctx, "alice", "acme/api", 2025)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
