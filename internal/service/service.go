// Package service composes the GitHub data client, enricher, and analytics
// into the facade the HTTP layer talks to. The service exclusively owns the
// live repository/commit/user collections and their loading and error state;
// every fetch replaces a collection atomically, never merges incrementally,
// so readers only ever observe complete result sets.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitboard/gitboard/internal/analytics"
	"github.com/gitboard/gitboard/internal/enrich"
	"github.com/gitboard/gitboard/internal/githubapi"
	"github.com/gitboard/gitboard/internal/token"
)

const (
	// maxBulkRepos caps how many repositories a cross-repository commit
	// sweep touches, newest first.
	maxBulkRepos = 10
	// bulkRepoDelay spaces sequential per-repository sweeps to stay clear
	// of secondary rate limits.
	bulkRepoDelay = 500 * time.Millisecond
)

// CommitFetchOptions narrows a repository commit fetch.
type CommitFetchOptions struct {
	Branch      string
	Since       time.Time
	Until       time.Time
	Author      string
	Path        string
	FullHistory bool
}

// State is a point-in-time copy of the service's collections and flags,
// safe for the caller to hold across further fetches.
type State struct {
	Repositories []githubapi.Repository
	Commits      []githubapi.Commit
	User         githubapi.User
	HasUser      bool

	LoadingRepositories bool
	LoadingCommits      bool
	LoadingUser         bool
	BulkFetchInFlight   bool

	// Loading and GlobalError cover a whole-state refresh; the per-scope
	// fields below track individual fetches.
	Loading     bool
	GlobalError string

	RepositoryError string
	CommitError     string
	UserError       string

	CommitsRepo    string
	PartialResults bool
	LastFetchedAt  time.Time
}

// Service is the data facade. All exported methods are safe for concurrent
// use; fetches for different scopes may interleave, and each scope's state
// transitions independently.
type Service struct {
	data     *githubapi.DataClient
	enricher *enrich.Enricher
	tokens   *token.Store
	cache    *githubapi.ResponseCache
	logger   *zap.Logger

	// Now and Sleep are injected for testability.
	Now   func() time.Time
	Sleep func(time.Duration)

	mu    sync.RWMutex
	state State

	bulkMu       sync.Mutex
	bulkInFlight bool
}

// New creates the service and hooks credential rotation to state
// invalidation: a new or cleared token drops all held collections and the
// response cache, so stale account data never leaks across credentials.
func New(data *githubapi.DataClient, enricher *enrich.Enricher, tokens *token.Store, cache *githubapi.ResponseCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		data:     data,
		enricher: enricher,
		tokens:   tokens,
		cache:    cache,
		logger:   logger,
		Now:      time.Now,
		Sleep:    time.Sleep,
	}
	if tokens != nil {
		tokens.OnChange(func() {
			svc.clearState()
			if cache != nil {
				cache.Clear()
			}
		})
	}
	return svc
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := s.state
	copied.Repositories = append([]githubapi.Repository(nil), s.state.Repositories...)
	copied.Commits = append([]githubapi.Commit(nil), s.state.Commits...)
	s.bulkMu.Lock()
	copied.BulkFetchInFlight = s.bulkInFlight
	s.bulkMu.Unlock()
	return copied
}

// Repositories returns a copy of the held repository collection.
func (s *Service) Repositories() []githubapi.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]githubapi.Repository(nil), s.state.Repositories...)
}

// Commits returns a copy of the held commit collection.
func (s *Service) Commits() []githubapi.Commit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]githubapi.Commit(nil), s.state.Commits...)
}

// User returns the held profile and whether one has been fetched.
func (s *Service) User() (githubapi.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User, s.state.HasUser
}

// Analytics computes a derived snapshot over the held commit collection.
func (s *Service) Analytics(spec analytics.FilterSpec) analytics.Snapshot {
	return analytics.Compute(s.Commits(), spec, s.Now())
}

// RepositoryAnalytics computes portfolio rollups over the held repositories.
func (s *Service) RepositoryAnalytics() analytics.RepoSummary {
	return analytics.SummarizeRepos(s.Repositories())
}

// FetchRepositories retrieves and enriches the viewer's repositories,
// replacing the held collection sorted by last update, newest first. On
// failure the previous collection stays in place and only the error string
// changes.
func (s *Service) FetchRepositories(ctx context.Context) error {
	s.setLoading(scopeRepositories, true)
	defer s.setLoading(scopeRepositories, false)

	result, err := s.data.ListViewerRepos(ctx)
	if err != nil {
		s.setError(scopeRepositories, userMessage(err))
		return err
	}
	if result.Status != githubapi.EndpointStatusOK {
		err := statusError(result.Status)
		s.setError(scopeRepositories, userMessage(err))
		return err
	}

	repos := result.Repos
	sort.SliceStable(repos, func(i, j int) bool {
		if !repos[i].UpdatedAt.Equal(repos[j].UpdatedAt) {
			return repos[i].UpdatedAt.After(repos[j].UpdatedAt)
		}
		return repos[i].ID < repos[j].ID
	})

	if err := s.enricher.Repositories(ctx, repos); err != nil {
		// Only context cancellation reaches here; per-repository failures
		// degrade silently.
		s.setError(scopeRepositories, userMessage(err))
		return err
	}

	s.mu.Lock()
	s.state.Repositories = repos
	s.state.RepositoryError = ""
	s.state.PartialResults = result.Partial
	s.state.LastFetchedAt = s.Now()
	s.mu.Unlock()

	s.logger.Info("repositories fetched",
		zap.Int("count", len(repos)),
		zap.Bool("partial", result.Partial),
	)
	return nil
}

// FetchCommits retrieves, enriches, and replaces the held commit collection
// for one repository. A missing branch falls back to the default branch; a
// missing repository is recoverable: the held collection stays in place and
// no error is set.
func (s *Service) FetchCommits(ctx context.Context, fullName string, opts CommitFetchOptions) error {
	s.setLoading(scopeCommits, true)
	defer s.setLoading(scopeCommits, false)

	commits, partial, err := s.fetchRepoCommits(ctx, fullName, opts, true)
	if errors.Is(err, githubapi.ErrNotFound) {
		s.logger.Warn("repository not found, held commits left in place",
			zap.String("repo", fullName),
		)
		return nil
	}
	if err != nil {
		s.setError(scopeCommits, userMessage(err))
		return err
	}

	s.mu.Lock()
	s.state.Commits = commits
	s.state.CommitsRepo = fullName
	s.state.CommitError = ""
	s.state.PartialResults = partial
	s.state.LastFetchedAt = s.Now()
	s.mu.Unlock()

	s.logger.Info("commits fetched",
		zap.String("repo", fullName),
		zap.Int("count", len(commits)),
		zap.Bool("partial", partial),
	)
	return nil
}

// fetchRepoCommits runs one repository's commit listing plus enrichment.
// When the listing 404s and a branch was requested, it retries once on the
// default branch: a stale branch selection should degrade, not error.
func (s *Service) fetchRepoCommits(ctx context.Context, fullName string, opts CommitFetchOptions, enrichStats bool) ([]githubapi.Commit, bool, error) {
	listOpts := githubapi.CommitListOptions{
		Branch: opts.Branch,
		Since:  opts.Since,
		Until:  opts.Until,
		Author: opts.Author,
		Path:   opts.Path,
	}
	if opts.FullHistory {
		listOpts.MaxPages = githubapi.FullHistoryMaxPages
	}

	result, err := s.data.ListRepoCommits(ctx, fullName, listOpts)
	if err != nil {
		return nil, false, err
	}
	if result.Status == githubapi.EndpointStatusNotFound && opts.Branch != "" {
		listOpts.Branch = ""
		result, err = s.data.ListRepoCommits(ctx, fullName, listOpts)
		if err != nil {
			return nil, false, err
		}
	}
	if result.Status != githubapi.EndpointStatusOK {
		return nil, false, statusError(result.Status)
	}

	commits := result.Commits
	if enrichStats {
		if err := s.enricher.Commits(ctx, fullName, commits); err != nil {
			return nil, false, err
		}
	}

	var repoRef githubapi.RepoRef
	s.mu.RLock()
	for _, repo := range s.state.Repositories {
		if repo.FullName == fullName {
			repoRef = githubapi.RepoRef{Name: repo.Name, FullName: repo.FullName, HTMLURL: repo.HTMLURL}
			break
		}
	}
	s.mu.RUnlock()
	if repoRef.FullName == "" {
		repoRef = githubapi.RepoRef{FullName: fullName}
	}
	for i := range commits {
		commits[i].SourceRepo = repoRef
	}
	return commits, result.Partial, nil
}

// FetchAllRepositoriesCommits sweeps commits across the most recently
// updated repositories, sequentially with a fixed delay between
// repositories, and replaces the held commit collection with the merged
// result sorted by author date descending. Calling it while a sweep is in
// flight is a no-op.
func (s *Service) FetchAllRepositoriesCommits(ctx context.Context) error {
	s.bulkMu.Lock()
	if s.bulkInFlight {
		s.bulkMu.Unlock()
		s.logger.Debug("bulk commit fetch already in flight, skipping")
		return nil
	}
	s.bulkInFlight = true
	s.bulkMu.Unlock()
	defer func() {
		s.bulkMu.Lock()
		s.bulkInFlight = false
		s.bulkMu.Unlock()
	}()

	repos := s.Repositories()
	if len(repos) == 0 {
		if err := s.FetchRepositories(ctx); err != nil {
			return err
		}
		repos = s.Repositories()
	}
	if len(repos) > maxBulkRepos {
		repos = repos[:maxBulkRepos]
	}

	s.setLoading(scopeCommits, true)
	defer s.setLoading(scopeCommits, false)

	var merged []githubapi.Commit
	partial := false
	failures := 0
	for i, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			s.Sleep(bulkRepoDelay)
		}

		commits, repoPartial, err := s.fetchRepoCommits(ctx, repo.FullName, CommitFetchOptions{}, false)
		if errors.Is(err, githubapi.ErrNotFound) {
			s.logger.Debug("repository disappeared during sweep", zap.String("repo", repo.FullName))
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Warn("bulk commit fetch failed for repository",
				zap.String("repo", repo.FullName),
				zap.Error(err),
			)
			failures++
			partial = true
			continue
		}
		partial = partial || repoPartial
		merged = append(merged, commits...)
	}

	if len(merged) == 0 && failures == len(repos) && failures > 0 {
		err := fmt.Errorf("all %d repository fetches failed", failures)
		s.setError(scopeCommits, userMessage(err))
		return err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].AuthoredAt.After(merged[j].AuthoredAt)
	})

	s.mu.Lock()
	s.state.Commits = merged
	s.state.CommitsRepo = ""
	s.state.CommitError = ""
	s.state.PartialResults = partial
	s.state.LastFetchedAt = s.Now()
	s.mu.Unlock()

	s.logger.Info("bulk commits fetched",
		zap.Int("repos", len(repos)),
		zap.Int("commits", len(merged)),
		zap.Int("failed_repos", failures),
	)
	return nil
}

// FetchUser retrieves the authenticated profile and its enrichments,
// replacing the held profile. Enrichment failures degrade to empty fields.
func (s *Service) FetchUser(ctx context.Context) error {
	s.setLoading(scopeUser, true)
	defer s.setLoading(scopeUser, false)

	result, err := s.data.GetAuthenticatedUser(ctx)
	if err != nil {
		s.setError(scopeUser, userMessage(err))
		return err
	}
	if result.Status != githubapi.EndpointStatusOK {
		err := statusError(result.Status)
		s.setError(scopeUser, userMessage(err))
		return err
	}

	user := result.User
	if err := s.enricher.UserProfile(ctx, &user); err != nil {
		s.setError(scopeUser, userMessage(err))
		return err
	}

	s.mu.Lock()
	s.state.User = user
	s.state.HasUser = true
	s.state.UserError = ""
	s.state.LastFetchedAt = s.Now()
	s.mu.Unlock()

	s.logger.Info("user fetched", zap.String("login", user.Login))
	return nil
}

// RefreshAll clears the response cache and all error strings, then
// refetches the profile and repository collection concurrently. The global
// loading flag wraps the whole operation. Each scope runs to completion on
// its own: a failure in one must not cancel the other, so either scope
// failing leaves the other's fresh result in place.
func (s *Service) RefreshAll(ctx context.Context) error {
	s.setGlobalLoading(true)
	defer s.setGlobalLoading(false)

	if s.cache != nil {
		s.cache.Clear()
	}

	var group errgroup.Group
	group.Go(func() error { return s.FetchUser(ctx) })
	group.Go(func() error { return s.FetchRepositories(ctx) })
	if err := group.Wait(); err != nil {
		s.mu.Lock()
		s.state.GlobalError = userMessage(err)
		s.mu.Unlock()
		return err
	}
	return nil
}

// SearchRepositories is a best-effort lookup: failures log and yield an
// empty result instead of propagating.
func (s *Service) SearchRepositories(ctx context.Context, query string, opts githubapi.SearchOptions) []githubapi.Repository {
	result, err := s.data.SearchRepos(ctx, query, opts)
	if err != nil || result.Status != githubapi.EndpointStatusOK {
		s.logger.Debug("repository search failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return []githubapi.Repository{}
	}
	return result.Repos
}

// GetRepositoryContents is a best-effort lookup mirroring
// SearchRepositories' failure policy.
func (s *Service) GetRepositoryContents(ctx context.Context, fullName, path, ref string) []githubapi.ContentItem {
	result, err := s.data.GetRepoContents(ctx, fullName, path, ref)
	if err != nil || result.Status != githubapi.EndpointStatusOK {
		s.logger.Debug("contents lookup failed",
			zap.String("repo", fullName),
			zap.String("path", path),
			zap.Error(err),
		)
		return []githubapi.ContentItem{}
	}
	return result.Items
}

// GetRepositoryBranches is a best-effort lookup used by the branch picker.
func (s *Service) GetRepositoryBranches(ctx context.Context, fullName string) []githubapi.Branch {
	result, err := s.data.ListRepoBranches(ctx, fullName)
	if err != nil || result.Status != githubapi.EndpointStatusOK {
		s.logger.Debug("branch lookup failed", zap.String("repo", fullName), zap.Error(err))
		return []githubapi.Branch{}
	}
	return result.Branches
}

// GetRepositoryReleases is a best-effort lookup used by the release list.
func (s *Service) GetRepositoryReleases(ctx context.Context, fullName string) []githubapi.Release {
	result, err := s.data.ListRepoReleases(ctx, fullName)
	if err != nil || result.Status != githubapi.EndpointStatusOK {
		s.logger.Debug("release lookup failed", zap.String("repo", fullName), zap.Error(err))
		return []githubapi.Release{}
	}
	return result.Releases
}

// UpdateToken stores a new credential. The token store's change hook clears
// the held state and cache, so the next reads see an empty slate until a
// fresh fetch completes.
func (s *Service) UpdateToken(ctx context.Context, raw string) error {
	_, err := s.tokens.Set(ctx, raw)
	return err
}

// ClearToken removes the credential and, through the change hook, all held
// state.
func (s *Service) ClearToken(ctx context.Context) error {
	return s.tokens.Clear(ctx)
}

// HasToken reports whether a credential is configured.
func (s *Service) HasToken() bool {
	_, ok := s.tokens.Get()
	return ok
}

func (s *Service) clearState() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	s.logger.Info("held collections cleared")
}

type scope int

const (
	scopeRepositories scope = iota
	scopeCommits
	scopeUser
)

func (s *Service) setGlobalLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = loading
	if loading {
		s.state.GlobalError = ""
		s.state.RepositoryError = ""
		s.state.CommitError = ""
		s.state.UserError = ""
	}
}

func (s *Service) setLoading(sc scope, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sc {
	case scopeRepositories:
		s.state.LoadingRepositories = loading
		if loading {
			s.state.RepositoryError = ""
		}
	case scopeCommits:
		s.state.LoadingCommits = loading
		if loading {
			s.state.CommitError = ""
		}
	case scopeUser:
		s.state.LoadingUser = loading
		if loading {
			s.state.UserError = ""
		}
	}
}

func (s *Service) setError(sc scope, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sc {
	case scopeRepositories:
		s.state.RepositoryError = message
	case scopeCommits:
		s.state.CommitError = message
	case scopeUser:
		s.state.UserError = message
	}
}

func statusError(status githubapi.EndpointStatus) error {
	switch status {
	case githubapi.EndpointStatusUnauthorized, githubapi.EndpointStatusForbidden:
		return fmt.Errorf("%w: status %s", githubapi.ErrAuth, status)
	case githubapi.EndpointStatusNotFound:
		return githubapi.ErrNotFound
	default:
		return fmt.Errorf("github responded with status %s", status)
	}
}

// userMessage maps internal errors to the strings surfaced in state for the
// presentation layer.
func userMessage(err error) string {
	switch {
	case errors.Is(err, token.ErrMissingCredential):
		return "no access token configured"
	case errors.Is(err, githubapi.ErrAuth):
		return "github rejected the access token"
	case errors.Is(err, githubapi.ErrRateLimited):
		return "github rate limit exceeded, try again later"
	case errors.Is(err, githubapi.ErrNetwork):
		return "could not reach github"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	default:
		return "fetch failed: " + err.Error()
	}
}
