package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitboard/gitboard/internal/analytics"
	"github.com/gitboard/gitboard/internal/enrich"
	"github.com/gitboard/gitboard/internal/githubapi"
	"github.com/gitboard/gitboard/internal/store"
	"github.com/gitboard/gitboard/internal/token"
)

// fakeGitHub routes requests by path with optional pagination awareness.
type fakeGitHub struct {
	mu     sync.Mutex
	routes map[string]func(req *http.Request) (int, string)
	calls  map[string]int
}

func (f *fakeGitHub) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.URL.Path]++
	handler, ok := f.routes[req.URL.Path]
	f.mu.Unlock()

	status, body := 404, `{"message":"Not Found"}`
	if ok {
		status, body = handler(req)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func (f *fakeGitHub) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func repoJSON(id int, fullName string, updatedAt time.Time) string {
	name := fullName[strings.IndexByte(fullName, '/')+1:]
	return fmt.Sprintf(
		`{"id": %d, "name": %q, "full_name": %q, "updated_at": %q, "html_url": "https://github.example/%s"}`,
		id, name, fullName, updatedAt.UTC().Format(time.RFC3339), fullName,
	)
}

func commitJSON(sha string, at time.Time) string {
	return fmt.Sprintf(`{
		"sha": %q,
		"commit": {
			"message": "update %s",
			"author": {"name": "Ada", "email": "ada@example.com", "date": %q},
			"committer": {"name": "Ada", "email": "ada@example.com", "date": %q}
		}
	}`, sha, sha, at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339))
}

// pagedRepoRoute serves pageSizes[i] repositories on page i+1, descending
// update times so upstream order matches the service's expected order.
func pagedRepoRoute(pageSizes []int) func(req *http.Request) (int, string) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	return func(req *http.Request) (int, string) {
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		if page < 1 || page > len(pageSizes) {
			return 200, "[]"
		}

		offset := 0
		for i := 0; i < page-1; i++ {
			offset += pageSizes[i]
		}
		items := make([]string, 0, pageSizes[page-1])
		for i := 0; i < pageSizes[page-1]; i++ {
			id := offset + i + 1
			items = append(items, repoJSON(id, fmt.Sprintf("octocat/repo-%04d", id), base.Add(-time.Duration(id)*time.Minute)))
		}
		return 200, "[" + strings.Join(items, ",") + "]"
	}
}

type harness struct {
	fake    *fakeGitHub
	tokens  *token.Store
	cache   *githubapi.ResponseCache
	service *Service
}

func newHarness(t *testing.T, fake *fakeGitHub) *harness {
	t.Helper()

	tokens := token.NewStore(store.NewMemoryStore(), nil)
	_, err := tokens.Set(context.Background(), "ghp_test")
	require.NoError(t, err)

	cache := githubapi.NewResponseCache(5*time.Minute, nil)
	client := githubapi.NewClient(
		fake,
		tokens,
		cache,
		githubapi.RetryConfig{MaxAttempts: 1, Delay: time.Millisecond},
		githubapi.RateLimitPolicy{FallbackBackoff: time.Millisecond},
		time.Second,
	)
	client.Sleep = func(time.Duration) {}

	data, err := githubapi.NewDataClient("https://api.github.example/", client, githubapi.NewPaginator(client, nil))
	require.NoError(t, err)

	svc := New(data, enrich.New(data, nil, 4), tokens, cache, nil)
	svc.Sleep = func(time.Duration) {}
	return &harness{fake: fake, tokens: tokens, cache: cache, service: svc}
}

func TestFetchRepositoriesTwoPages(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{150, 40}),
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchRepositories(context.Background()))

	state := h.service.Snapshot()
	require.Len(t, state.Repositories, 190)
	assert.False(t, state.LoadingRepositories)
	assert.Empty(t, state.RepositoryError)

	for i := 1; i < len(state.Repositories); i++ {
		previous, current := state.Repositories[i-1], state.Repositories[i]
		assert.False(t, current.UpdatedAt.After(previous.UpdatedAt),
			"repositories must be sorted by updated_at descending at index %d", i)
	}
}

func TestFetchRepositoriesErrorKeepsPreviousData(t *testing.T) {
	healthy := true
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": func(req *http.Request) (int, string) {
			if !healthy {
				return 401, `{"message":"Bad credentials"}`
			}
			return pagedRepoRoute([]int{3})(req)
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchRepositories(context.Background()))
	require.Len(t, h.service.Repositories(), 3)

	healthy = false
	h.cache.Clear()
	err := h.service.FetchRepositories(context.Background())
	require.Error(t, err)

	state := h.service.Snapshot()
	assert.Len(t, state.Repositories, 3, "failed refresh must not wipe held data")
	assert.Equal(t, "github rejected the access token", state.RepositoryError)
	assert.False(t, state.LoadingRepositories)
}

func TestFetchRepositoriesWithoutToken(t *testing.T) {
	h := newHarness(t, &fakeGitHub{})
	require.NoError(t, h.tokens.Clear(context.Background()))

	err := h.service.FetchRepositories(context.Background())
	require.Error(t, err)
	assert.Equal(t, "no access token configured", h.service.Snapshot().RepositoryError)
	assert.Zero(t, h.fake.callCount("/user/repos"), "no network call without a credential")
}

func TestFetchCommitsTagsSourceRepo(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{1}),
		"/repos/octocat/repo-0001/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("abc", now) + "]"
		},
		"/repos/octocat/repo-0001/commits/abc": func(*http.Request) (int, string) {
			return 200, `{"sha": "abc", "stats": {"additions": 2, "deletions": 1, "total": 3}}`
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchRepositories(context.Background()))
	require.NoError(t, h.service.FetchCommits(context.Background(), "octocat/repo-0001", CommitFetchOptions{}))

	commits := h.service.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "octocat/repo-0001", commits[0].SourceRepo.FullName)
	assert.Equal(t, "repo-0001", commits[0].SourceRepo.Name)
	require.NotNil(t, commits[0].Stats)
	assert.Equal(t, 2, commits[0].Stats.Additions)

	state := h.service.Snapshot()
	assert.Equal(t, "octocat/repo-0001", state.CommitsRepo)
	assert.Empty(t, state.CommitError)
}

func TestFetchCommitsMissingBranchFallsBackToDefault(t *testing.T) {
	now := time.Now()
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/repos/octocat/hello/commits": func(req *http.Request) (int, string) {
			if req.URL.Query().Get("sha") == "gone-branch" {
				return 404, `{"message":"Not Found"}`
			}
			return 200, "[" + commitJSON("abc", now) + "]"
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchCommits(context.Background(), "octocat/hello", CommitFetchOptions{Branch: "gone-branch"}))
	assert.Len(t, h.service.Commits(), 1)
}

func TestFetchCommitsMissingRepoKeepsHeldCommits(t *testing.T) {
	now := time.Now()
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/repos/octocat/hello/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("abc", now) + "]"
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchCommits(context.Background(), "octocat/hello", CommitFetchOptions{}))
	require.Len(t, h.service.Commits(), 1)

	// A vanished repository is recoverable: the held collection survives and
	// no blocking error is set.
	require.NoError(t, h.service.FetchCommits(context.Background(), "octocat/ghost", CommitFetchOptions{}))

	state := h.service.Snapshot()
	assert.Len(t, state.Commits, 1, "404 fetch must not wipe held commits")
	assert.Equal(t, "octocat/hello", state.CommitsRepo)
	assert.Empty(t, state.CommitError)
	assert.False(t, state.LoadingCommits)
}

func TestFetchUserEnrichmentFailuresDegrade(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user": func(*http.Request) (int, string) {
			return 200, `{"login": "octocat", "name": "The Octocat", "followers": 10}`
		},
		// events/orgs/starred all 404 -> enrichment fields stay empty
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchUser(context.Background()))

	user, ok := h.service.User()
	require.True(t, ok)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, 10, user.Followers)
	assert.Empty(t, user.Orgs)
}

func TestTokenRotationClearsHeldState(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{2}),
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchRepositories(context.Background()))
	require.Len(t, h.service.Repositories(), 2)
	require.NotZero(t, h.cache.Len())

	require.NoError(t, h.service.UpdateToken(context.Background(), "ghp_other_account"))

	state := h.service.Snapshot()
	assert.Empty(t, state.Repositories, "previous account's data must not survive rotation")
	assert.False(t, state.HasUser)
	assert.Zero(t, h.cache.Len(), "response cache must be dropped on rotation")
}

func TestUpdateTokenRejectsInvalidShape(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{1}),
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchRepositories(context.Background()))
	require.Error(t, h.service.UpdateToken(context.Background(), "bogus"))
	assert.Len(t, h.service.Repositories(), 1, "rejected token must not clear state")
}

func TestFetchAllRepositoriesCommitsMergesSortedDescending(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{2}),
		"/repos/octocat/repo-0001/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("old", base.Add(-2*time.Hour)) + "]"
		},
		"/repos/octocat/repo-0002/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("new", base.Add(-time.Hour)) + "]"
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchAllRepositoriesCommits(context.Background()))

	commits := h.service.Commits()
	require.Len(t, commits, 2)
	assert.Equal(t, "new", commits[0].SHA)
	assert.Equal(t, "old", commits[1].SHA)
	assert.Equal(t, "octocat/repo-0001", commits[1].SourceRepo.FullName)
	assert.Empty(t, h.service.Snapshot().CommitsRepo, "merged view belongs to no single repo")
}

func TestFetchAllRepositoriesCommitsSkipsWhileInFlight(t *testing.T) {
	base := time.Now()
	release := make(chan struct{})
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{2}),
		"/repos/octocat/repo-0001/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("a", base) + "]"
		},
		"/repos/octocat/repo-0002/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("b", base) + "]"
		},
	}}
	h := newHarness(t, fake)
	require.NoError(t, h.service.FetchRepositories(context.Background()))

	started := make(chan struct{})
	h.service.Sleep = func(time.Duration) {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- h.service.FetchAllRepositoriesCommits(context.Background()) }()

	<-started
	// Second call must be a guarded no-op while the sweep is paused.
	require.NoError(t, h.service.FetchAllRepositoriesCommits(context.Background()))
	assert.Equal(t, 1, h.fake.callCount("/repos/octocat/repo-0001/commits"))

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, h.service.Commits(), 2)
}

func TestFetchAllRepositoriesCommitsToleratesPerRepoFailure(t *testing.T) {
	base := time.Now()
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{2}),
		"/repos/octocat/repo-0001/commits": func(*http.Request) (int, string) {
			return 500, "boom"
		},
		"/repos/octocat/repo-0002/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("ok", base) + "]"
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchAllRepositoriesCommits(context.Background()))

	commits := h.service.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "ok", commits[0].SHA)
	assert.True(t, h.service.Snapshot().PartialResults)
}

func TestSearchRepositoriesBestEffort(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/search/repositories": func(*http.Request) (int, string) {
			return 200, `{"total_count": 1, "items": [{"id": 7, "full_name": "golang/go"}]}`
		},
	}}
	h := newHarness(t, fake)

	repos := h.service.SearchRepositories(context.Background(), "go", githubapi.SearchOptions{})
	require.Len(t, repos, 1)
	assert.Equal(t, "golang/go", repos[0].FullName)

	// Blank query is invalid; best-effort means empty result, not an error.
	assert.Empty(t, h.service.SearchRepositories(context.Background(), "  ", githubapi.SearchOptions{}))
}

func TestGetRepositoryContentsBestEffort(t *testing.T) {
	h := newHarness(t, &fakeGitHub{})
	items := h.service.GetRepositoryContents(context.Background(), "octocat/ghost", "", "")
	assert.Empty(t, items)
}

func TestRefreshAllClearsCacheAndRefetches(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{1}),
		"/user": func(*http.Request) (int, string) {
			return 200, `{"login": "octocat"}`
		},
	}}
	h := newHarness(t, fake)

	require.NoError(t, h.service.FetchRepositories(context.Background()))
	require.Equal(t, 1, h.fake.callCount("/user/repos"))

	require.NoError(t, h.service.RefreshAll(context.Background()))
	assert.Equal(t, 2, h.fake.callCount("/user/repos"), "refresh must bypass the response cache")

	_, ok := h.service.User()
	assert.True(t, ok)

	state := h.service.Snapshot()
	assert.False(t, state.Loading, "global loading flag must reset after the refresh")
	assert.Empty(t, state.GlobalError)
}

func TestRefreshAllScopesFailIndependently(t *testing.T) {
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/user/repos": pagedRepoRoute([]int{1}),
		"/user": func(*http.Request) (int, string) {
			return 401, `{"message":"Bad credentials"}`
		},
	}}
	h := newHarness(t, fake)

	err := h.service.RefreshAll(context.Background())
	require.Error(t, err)

	state := h.service.Snapshot()
	assert.Len(t, state.Repositories, 1, "user failure must not abort the repository fetch")
	assert.Empty(t, state.RepositoryError)
	assert.Equal(t, "github rejected the access token", state.UserError)
	assert.Equal(t, "github rejected the access token", state.GlobalError)
	assert.False(t, state.Loading)
}

func TestAnalyticsOverHeldCommits(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	fake := &fakeGitHub{routes: map[string]func(*http.Request) (int, string){
		"/repos/octocat/hello/commits": func(*http.Request) (int, string) {
			return 200, "[" + commitJSON("abc", now.Add(-time.Hour)) + "]"
		},
	}}
	h := newHarness(t, fake)
	h.service.Now = func() time.Time { return now }

	require.NoError(t, h.service.FetchCommits(context.Background(), "octocat/hello", CommitFetchOptions{}))

	snapshot := h.service.Analytics(analytics.FilterSpec{Window: analytics.WindowDay})
	assert.Equal(t, 1, snapshot.Summary.TotalCommits)
	assert.Equal(t, "Ada", snapshot.Summary.MostActiveAuthor)
}
