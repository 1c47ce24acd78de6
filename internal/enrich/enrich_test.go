package enrich

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gitboard/gitboard/internal/githubapi"
)

type staticSource struct{}

func (staticSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "ghp_test", TokenType: "token"}, nil
}

// fakeGitHub serves canned responses by path and is safe for the enricher's
// concurrent sub-fetches.
type fakeGitHub struct {
	mu     sync.Mutex
	routes map[string]fakeResponse
	calls  map[string]int
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeGitHub) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.URL.Path]++

	route, ok := f.routes[req.URL.Path]
	if !ok {
		route = fakeResponse{status: 404, body: `{"message":"Not Found"}`}
	}
	return &http.Response{
		StatusCode: route.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(route.body)),
	}, nil
}

func newTestEnricher(t *testing.T, fake *fakeGitHub) *Enricher {
	t.Helper()
	client := githubapi.NewClient(
		fake,
		staticSource{},
		nil,
		githubapi.RetryConfig{MaxAttempts: 1, Delay: time.Millisecond},
		githubapi.RateLimitPolicy{FallbackBackoff: time.Millisecond},
		time.Second,
	)
	client.Sleep = func(time.Duration) {}

	data, err := githubapi.NewDataClient("https://api.github.example/", client, githubapi.NewPaginator(client, nil))
	require.NoError(t, err)
	return New(data, nil, 4)
}

func TestRepositoriesEnrichmentFillsLanguagesAndContributors(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]fakeResponse{
		"/repos/octocat/hello/languages": {
			status: 200,
			body:   `{"Go": 1200, "Makefile": 40}`,
		},
		"/repos/octocat/hello/contributors": {
			status: 200,
			body:   `[{"login": "octocat", "contributions": 42}, {"login": "ada", "contributions": 7}]`,
		},
	}}
	enricher := newTestEnricher(t, fake)

	repos := []githubapi.Repository{{ID: 1, FullName: "octocat/hello", Name: "hello"}}
	require.NoError(t, enricher.Repositories(context.Background(), repos))

	assert.Equal(t, int64(1200), repos[0].Languages["Go"])
	require.Len(t, repos[0].Contributors, 2)
	assert.Equal(t, "octocat", repos[0].Contributors[0].Login)
	assert.Equal(t, 2, repos[0].ContributorCount)
}

func TestRepositoriesEnrichmentToleratesContributorFailure(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]fakeResponse{
		"/repos/octocat/hello/languages": {
			status: 200,
			body:   `{"Go": 1200}`,
		},
		"/repos/octocat/hello/contributors": {
			status: 500,
			body:   "boom",
		},
	}}
	enricher := newTestEnricher(t, fake)

	repos := []githubapi.Repository{{
		ID:       1,
		FullName: "octocat/hello",
		Name:     "hello",
		Stars:    42,
	}}
	require.NoError(t, enricher.Repositories(context.Background(), repos))

	// Base fields survive and the failed enrichment stays empty.
	assert.Equal(t, "hello", repos[0].Name)
	assert.Equal(t, 42, repos[0].Stars)
	assert.Empty(t, repos[0].Contributors)
	assert.Zero(t, repos[0].ContributorCount)
	assert.Equal(t, int64(1200), repos[0].Languages["Go"])
}

func TestRepositoriesEnrichmentIsIndexStable(t *testing.T) {
	routes := map[string]fakeResponse{}
	var repos []githubapi.Repository
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, name := range names {
		repos = append(repos, githubapi.Repository{ID: int64(i + 1), FullName: "octocat/" + name, Name: name})
		routes["/repos/octocat/"+name+"/languages"] = fakeResponse{status: 200, body: `{"Go": 1}`}
		routes["/repos/octocat/"+name+"/contributors"] = fakeResponse{status: 200, body: `[]`}
	}
	enricher := newTestEnricher(t, &fakeGitHub{routes: routes})

	require.NoError(t, enricher.Repositories(context.Background(), repos))
	for i, name := range names {
		assert.Equal(t, name, repos[i].Name, "index %d must keep its entity", i)
	}
}

func TestCommitsEnrichmentFillsStats(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]fakeResponse{
		"/repos/octocat/hello/commits/abc": {
			status: 200,
			body:   `{"sha": "abc", "stats": {"additions": 7, "deletions": 2, "total": 9}, "files": [{"filename": "x.go"}]}`,
		},
		"/repos/octocat/hello/commits/def": {
			status: 500,
			body:   "boom",
		},
	}}
	enricher := newTestEnricher(t, fake)

	commits := []githubapi.Commit{{SHA: "abc"}, {SHA: "def", Message: "keep me"}}
	require.NoError(t, enricher.Commits(context.Background(), "octocat/hello", commits))

	require.NotNil(t, commits[0].Stats)
	assert.Equal(t, 7, commits[0].Stats.Additions)
	require.Len(t, commits[0].Files, 1)

	assert.Nil(t, commits[1].Stats)
	assert.Equal(t, "keep me", commits[1].Message)
}

func TestUserProfileEnrichmentTolerantPerField(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]fakeResponse{
		"/users/octocat/events": {
			status: 200,
			body:   `[{"id": "1", "type": "PushEvent", "repo": {"name": "octocat/hello"}, "created_at": "2026-08-27T10:00:00Z"}]`,
		},
		"/user/orgs": {
			status: 500,
			body:   "boom",
		},
		"/user/starred": {
			status: 200,
			body:   `[{"id": 9, "full_name": "golang/go"}]`,
		},
	}}
	enricher := newTestEnricher(t, fake)

	user := githubapi.User{Login: "octocat"}
	require.NoError(t, enricher.UserProfile(context.Background(), &user))

	require.Len(t, user.Events, 1)
	assert.Equal(t, "PushEvent", user.Events[0].Type)
	assert.Empty(t, user.Orgs)
	require.Len(t, user.Starred, 1)
	assert.Equal(t, "golang/go", user.Starred[0].FullName)
}

func TestCommitsEnrichmentEmptyBatch(t *testing.T) {
	enricher := newTestEnricher(t, &fakeGitHub{})
	require.NoError(t, enricher.Commits(context.Background(), "octocat/hello", nil))
}
