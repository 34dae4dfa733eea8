package batch

import (
	"testing"

	"github.com/danielolaszy/prreview/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pr(repo, url string, labels ...string) models.PullRequest {
	return models.PullRequest{Title: "PR " + url, URL: url, Labels: labels, SourceRepo: repo}
}

func urls(prs []models.PullRequest) []string {
	out := make([]string, 0, len(prs))
	for _, p := range prs {
		out = append(out, p.URL)
	}
	return out
}

func TestGroupIntoBatches(t *testing.T) {
	prs := []models.PullRequest{
		pr("acme/api", "u1", "A", "B"),
		pr("acme/api", "u2"),
		pr("acme/api", "u3", "A"),
		pr("acme/web", "u4", "A"),
		pr("acme/web", "u5", "B", "B"),
	}

	grouped := GroupIntoBatches(prs)

	expected := map[models.BatchKey][]string{
		{Repo: "acme/api", Label: "A"}:                   {"u1", "u3"},
		{Repo: "acme/api", Label: "B"}:                   {"u1"},
		{Repo: "acme/api", Label: models.UnlabeledLabel}: {"u2"},
		{Repo: "acme/web", Label: "A"}:                   {"u4"},
		{Repo: "acme/web", Label: "B"}:                   {"u5"},
	}
	require.Len(t, grouped, len(expected))
	for key, want := range expected {
		assert.Equal(t, want, urls(grouped[key]), key.String())
	}
}

func TestGroupIntoBatchesMembership(t *testing.T) {
	prs := []models.PullRequest{
		pr("acme/api", "u1", "A", "B"),
		pr("acme/api", "u2"),
	}

	grouped := GroupIntoBatches(prs)

	var withU1, withU2 []models.BatchKey
	for key, items := range grouped {
		assert.NotEmpty(t, items, "no batch may be empty")
		for _, p := range items {
			switch p.URL {
			case "u1":
				withU1 = append(withU1, key)
			case "u2":
				withU2 = append(withU2, key)
			}
		}
	}

	assert.ElementsMatch(t, []models.BatchKey{
		{Repo: "acme/api", Label: "A"},
		{Repo: "acme/api", Label: "B"},
	}, withU1)
	assert.Equal(t, []models.BatchKey{{Repo: "acme/api", Label: models.UnlabeledLabel}}, withU2)
}

func TestGroupIntoBatchesEmpty(t *testing.T) {
	assert.Empty(t, GroupIntoBatches(nil))
	assert.Empty(t, Batches(GroupIntoBatches(nil)))
	assert.Empty(t, Single(nil))
}

func TestBatchesOrder(t *testing.T) {
	grouped := map[models.BatchKey][]models.PullRequest{
		{Repo: "b/repo", Label: "A"}:     {pr("b/repo", "u1", "A")},
		{Repo: "a/repo", Label: "zeta"}:  {pr("a/repo", "u2", "zeta")},
		{Repo: "a/repo", Label: "alpha"}: {pr("a/repo", "u3", "alpha")},
		{Repo: "a/repo", Label: "empty"}: {},
	}

	batches := Batches(grouped)

	keys := make([]string, 0, len(batches))
	for _, b := range batches {
		keys = append(keys, b.Key.String())
	}
	assert.Equal(t, []string{"a/repo:alpha", "a/repo:zeta", "b/repo:A"}, keys)
}

func TestSingle(t *testing.T) {
	prs := []models.PullRequest{
		pr("acme/api", "u1", "A"),
		pr("acme/web", "u2"),
	}

	batches := Single(prs)

	require.Len(t, batches, 1)
	assert.Equal(t, models.BatchKey{Label: models.AllLabel}, batches[0].Key)
	assert.Equal(t, "all", batches[0].Key.String())
	assert.Equal(t, []string{"u1", "u2"}, urls(batches[0].PullRequests))
}

func TestParseStrategy(t *testing.T) {
	testCases := []struct {
		input    string
		expected Strategy
		wantErr  bool
	}{
		{input: "", expected: PerLabel},
		{input: "per-label", expected: PerLabel},
		{input: "single", expected: SingleCall},
		{input: "per-repo", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			s, err := ParseStrategy(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s)
		})
	}
}

func TestStrategyBuild(t *testing.T) {
	prs := []models.PullRequest{
		pr("acme/api", "u1", "A"),
		pr("acme/api", "u2", "B"),
	}

	assert.Len(t, PerLabel.Build(prs), 2)
	assert.Len(t, SingleCall.Build(prs), 1)
}
