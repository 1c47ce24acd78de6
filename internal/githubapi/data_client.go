package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const defaultGitHubAPIBaseURL = "https://api.github.com/"

// GitHub owner names: 1-39 alphanumeric or hyphen, not starting with a
// hyphen. Repo names: 1-100 alphanumeric, hyphen, underscore, or dot.
var (
	validOwner = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,38}$`)
	validRepo  = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)
)

// ParseRepoFullName splits and validates an "owner/name" repository
// reference.
func ParseRepoFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(strings.TrimSpace(fullName), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", fullName)
	}
	owner, name = parts[0], parts[1]
	if !validOwner.MatchString(owner) {
		return "", "", fmt.Errorf("invalid repository owner %q", owner)
	}
	if !validRepo.MatchString(name) {
		return "", "", fmt.Errorf("invalid repository name %q", name)
	}
	return owner, name, nil
}

// UserResult is the typed result for the authenticated-user endpoint.
type UserResult struct {
	Status EndpointStatus
	User   User
}

// ReposResult is the typed result for listing the viewer's repositories.
type ReposResult struct {
	Status  EndpointStatus
	Repos   []Repository
	Partial bool
}

// CommitListOptions filters a repository commit listing. Zero values are
// omitted from the request.
type CommitListOptions struct {
	Branch   string
	Since    time.Time
	Until    time.Time
	Author   string
	Path     string
	PerPage  int
	MaxPages int
}

// CommitsResult is the typed result for listing repository commits.
type CommitsResult struct {
	Status  EndpointStatus
	Commits []Commit
	Partial bool
}

// CommitDetailResult is the typed result for one commit detail fetch.
type CommitDetailResult struct {
	Status EndpointStatus
	SHA    string
	Stats  CommitStats
	Files  []CommitFile
}

// LanguagesResult is the typed result for the repository languages endpoint.
type LanguagesResult struct {
	Status    EndpointStatus
	Languages map[string]int64
}

// ContributorsResult is the typed result for the repository contributors endpoint.
type ContributorsResult struct {
	Status       EndpointStatus
	Contributors []Contributor
}

// BranchesResult is the typed result for the repository branches endpoint.
type BranchesResult struct {
	Status   EndpointStatus
	Branches []Branch
}

// SearchOptions configures a repository search.
type SearchOptions struct {
	Sort     string
	Order    string
	PerPage  int
	MaxPages int
}

// SearchResult is the typed result for the repository search endpoint.
type SearchResult struct {
	Status     EndpointStatus
	TotalCount int
	Repos      []Repository
}

// ContentsResult is the typed result for a repository contents listing. A
// file lookup yields a single item.
type ContentsResult struct {
	Status EndpointStatus
	Items  []ContentItem
}

// EventsResult is the typed result for a user's recent events.
type EventsResult struct {
	Status EndpointStatus
	Events []Event
}

// OrgsResult is the typed result for the viewer's organizations.
type OrgsResult struct {
	Status EndpointStatus
	Orgs   []Org
}

// StarredResult is the typed result for the viewer's starred repositories.
type StarredResult struct {
	Status EndpointStatus
	Repos  []Repository
}

// ReleasesResult is the typed result for a repository's releases.
type ReleasesResult struct {
	Status   EndpointStatus
	Releases []Release
}

// RateLimitResult is the typed result for the /rate_limit probe.
type RateLimitResult struct {
	Status EndpointStatus
	Core   RateLimitStatus
}

// DataClient is a typed GitHub REST data client over the caching,
// rate-limit-aware request client. All payload decoding happens here, at the
// HTTP boundary; malformed payloads surface as errors instead of leaking
// partially decoded values into the aggregation layer.
type DataClient struct {
	baseURL   *url.URL
	client    *Client
	paginator *Paginator
}

// NewDataClient creates a typed data client. baseURL may be empty for the
// public GitHub API.
func NewDataClient(baseURL string, client *Client, paginator *Paginator) (*DataClient, error) {
	if client == nil {
		return nil, fmt.Errorf("request client is required")
	}
	if paginator == nil {
		paginator = NewPaginator(client, nil)
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &DataClient{baseURL: parsed, client: client, paginator: paginator}, nil
}

// GetAuthenticatedUser reads the authenticated account's profile.
func (c *DataClient) GetAuthenticatedUser(ctx context.Context) (UserResult, error) {
	result, err := c.client.Get(ctx, c.endpoint("user"))
	if err != nil {
		return UserResult{}, fmt.Errorf("fetch user: %w", err)
	}

	status := EndpointStatusFromHTTP(result.Status)
	if status != EndpointStatusOK {
		return UserResult{Status: status}, nil
	}

	var payload userProfilePayload
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		return UserResult{}, fmt.Errorf("decode user response: %w", err)
	}
	return UserResult{Status: status, User: payload.toUser()}, nil
}

// ListViewerRepos lists the authenticated user's repositories sorted by last
// update, newest first.
func (c *DataClient) ListViewerRepos(ctx context.Context) (ReposResult, error) {
	query := url.Values{}
	query.Set("sort", "updated")
	query.Set("direction", "desc")
	query.Set("type", "all")

	items, err := c.paginator.FetchAll(ctx, c.endpoint("user", "repos"), query, PageOptions{})
	partial, err := splitPartial(err)
	if err != nil {
		return ReposResult{}, fmt.Errorf("list repositories: %w", err)
	}

	repos := make([]Repository, 0, len(items))
	for _, item := range items {
		var payload repositoryPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return ReposResult{}, fmt.Errorf("decode repository item: %w", err)
		}
		repos = append(repos, payload.toRepository())
	}
	return ReposResult{Status: EndpointStatusOK, Repos: repos, Partial: partial}, nil
}

// ListRepoCommits lists commits of one repository, optionally filtered by
// branch, time window, author, and path.
func (c *DataClient) ListRepoCommits(ctx context.Context, fullName string, opts CommitListOptions) (CommitsResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return CommitsResult{}, err
	}

	query := url.Values{}
	if opts.Branch != "" {
		query.Set("sha", opts.Branch)
	}
	if !opts.Since.IsZero() {
		query.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if !opts.Until.IsZero() {
		query.Set("until", opts.Until.UTC().Format(time.RFC3339))
	}
	if opts.Author != "" {
		query.Set("author", opts.Author)
	}
	if opts.Path != "" {
		query.Set("path", opts.Path)
	}

	items, err := c.paginator.FetchAll(
		ctx,
		c.endpoint("repos", owner, name, "commits"),
		query,
		PageOptions{PerPage: opts.PerPage, MaxPages: opts.MaxPages},
	)
	partial, err := splitPartial(err)
	if err != nil {
		return CommitsResult{}, fmt.Errorf("list commits for %s: %w", fullName, err)
	}

	commits := make([]Commit, 0, len(items))
	for _, item := range items {
		var payload commitListPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return CommitsResult{}, fmt.Errorf("decode commit item: %w", err)
		}
		commits = append(commits, payload.toCommit())
	}
	return CommitsResult{Status: EndpointStatusOK, Commits: commits, Partial: partial}, nil
}

// GetCommit reads one commit's detail including change statistics and files.
func (c *DataClient) GetCommit(ctx context.Context, fullName, sha string) (CommitDetailResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return CommitDetailResult{}, err
	}
	if strings.TrimSpace(sha) == "" {
		return CommitDetailResult{}, fmt.Errorf("sha is required")
	}

	result, err := c.client.Get(ctx, c.endpoint("repos", owner, name, "commits", sha))
	if err != nil {
		return CommitDetailResult{}, fmt.Errorf("fetch commit %s: %w", sha, err)
	}

	status := EndpointStatusFromHTTP(result.Status)
	if status != EndpointStatusOK {
		return CommitDetailResult{Status: status}, nil
	}

	var payload commitDetailPayload
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		return CommitDetailResult{}, fmt.Errorf("decode commit detail: %w", err)
	}

	detail := CommitDetailResult{
		Status: status,
		SHA:    payload.SHA,
		Stats: CommitStats{
			Additions: payload.Stats.Additions,
			Deletions: payload.Stats.Deletions,
			Total:     payload.Stats.Total,
		},
	}
	for _, file := range payload.Files {
		detail.Files = append(detail.Files, CommitFile(file))
	}
	return detail, nil
}

// GetRepoLanguages reads the language byte histogram of one repository.
func (c *DataClient) GetRepoLanguages(ctx context.Context, fullName string) (LanguagesResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return LanguagesResult{}, err
	}

	result, err := c.client.Get(ctx, c.endpoint("repos", owner, name, "languages"))
	if err != nil {
		return LanguagesResult{}, fmt.Errorf("fetch languages for %s: %w", fullName, err)
	}

	status := EndpointStatusFromHTTP(result.Status)
	if status != EndpointStatusOK {
		return LanguagesResult{Status: status}, nil
	}

	languages := make(map[string]int64)
	if err := json.Unmarshal(result.Body, &languages); err != nil {
		return LanguagesResult{}, fmt.Errorf("decode languages response: %w", err)
	}
	return LanguagesResult{Status: status, Languages: languages}, nil
}

// ListRepoContributors lists contributors of one repository, first page only:
// the dashboard shows the top contributors, not the complete roster.
func (c *DataClient) ListRepoContributors(ctx context.Context, fullName string) (ContributorsResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return ContributorsResult{}, err
	}

	items, err := c.paginator.FetchAll(
		ctx,
		c.endpoint("repos", owner, name, "contributors"),
		nil,
		PageOptions{MaxPages: 1},
	)
	if _, err = splitPartial(err); err != nil {
		return ContributorsResult{}, fmt.Errorf("list contributors for %s: %w", fullName, err)
	}

	contributors := make([]Contributor, 0, len(items))
	for _, item := range items {
		var payload contributorPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return ContributorsResult{}, fmt.Errorf("decode contributor item: %w", err)
		}
		contributors = append(contributors, Contributor(payload))
	}
	return ContributorsResult{Status: EndpointStatusOK, Contributors: contributors}, nil
}

// ListRepoBranches lists branches of one repository.
func (c *DataClient) ListRepoBranches(ctx context.Context, fullName string) (BranchesResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return BranchesResult{}, err
	}

	items, err := c.paginator.FetchAll(ctx, c.endpoint("repos", owner, name, "branches"), nil, PageOptions{})
	if _, err = splitPartial(err); err != nil {
		return BranchesResult{}, fmt.Errorf("list branches for %s: %w", fullName, err)
	}

	branches := make([]Branch, 0, len(items))
	for _, item := range items {
		var payload branchPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return BranchesResult{}, fmt.Errorf("decode branch item: %w", err)
		}
		branches = append(branches, Branch{
			Name:      payload.Name,
			CommitSHA: payload.Commit.SHA,
			Protected: payload.Protected,
		})
	}
	return BranchesResult{Status: EndpointStatusOK, Branches: branches}, nil
}

// SearchRepos searches repositories. Search has its own response envelope,
// so it bypasses the generic paginator and fetches one page.
func (c *DataClient) SearchRepos(ctx context.Context, searchQuery string, opts SearchOptions) (SearchResult, error) {
	trimmed := strings.TrimSpace(searchQuery)
	if trimmed == "" {
		return SearchResult{}, fmt.Errorf("search query is required")
	}

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 30
	}
	query := url.Values{}
	query.Set("q", trimmed)
	query.Set("per_page", fmt.Sprintf("%d", perPage))
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}
	if opts.Order != "" {
		query.Set("order", opts.Order)
	}

	result, err := c.client.Get(ctx, c.endpoint("search", "repositories")+"?"+query.Encode())
	if err != nil {
		return SearchResult{}, fmt.Errorf("search repositories: %w", err)
	}

	status := EndpointStatusFromHTTP(result.Status)
	if status != EndpointStatusOK {
		return SearchResult{Status: status}, nil
	}

	var payload struct {
		TotalCount int                 `json:"total_count"`
		Items      []repositoryPayload `json:"items"`
	}
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		return SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}

	search := SearchResult{Status: status, TotalCount: payload.TotalCount}
	for _, item := range payload.Items {
		search.Repos = append(search.Repos, item.toRepository())
	}
	return search, nil
}

// GetRepoContents lists a repository path. Directories decode as arrays and
// files as single objects; both come back as a flat item list.
func (c *DataClient) GetRepoContents(ctx context.Context, fullName, path, ref string) (ContentsResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return ContentsResult{}, err
	}

	endpoint := c.endpoint("repos", owner, name, "contents")
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		segments := append([]string{"repos", owner, name, "contents"}, strings.Split(trimmed, "/")...)
		endpoint = c.endpoint(segments...)
	}
	if ref != "" {
		endpoint += "?" + url.Values{"ref": {ref}}.Encode()
	}

	result, err := c.client.Get(ctx, endpoint)
	if err != nil {
		return ContentsResult{}, fmt.Errorf("fetch contents of %s: %w", fullName, err)
	}

	status := EndpointStatusFromHTTP(result.Status)
	if status != EndpointStatusOK {
		return ContentsResult{Status: status}, nil
	}

	var listing []contentItemPayload
	if err := json.Unmarshal(result.Body, &listing); err != nil {
		var single contentItemPayload
		if err := json.Unmarshal(result.Body, &single); err != nil {
			return ContentsResult{}, fmt.Errorf("decode contents response: %w", err)
		}
		listing = []contentItemPayload{single}
	}

	contents := ContentsResult{Status: status}
	for _, item := range listing {
		contents.Items = append(contents.Items, ContentItem(item))
	}
	return contents, nil
}

// ListUserEvents lists recent public events for one user, first page only.
func (c *DataClient) ListUserEvents(ctx context.Context, login string) (EventsResult, error) {
	if !validOwner.MatchString(strings.TrimSpace(login)) {
		return EventsResult{}, fmt.Errorf("invalid login %q", login)
	}

	items, err := c.paginator.FetchAll(
		ctx,
		c.endpoint("users", strings.TrimSpace(login), "events"),
		nil,
		PageOptions{PerPage: 30, MaxPages: 1},
	)
	if _, err = splitPartial(err); err != nil {
		return EventsResult{}, fmt.Errorf("list events for %s: %w", login, err)
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		var payload eventPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return EventsResult{}, fmt.Errorf("decode event item: %w", err)
		}
		events = append(events, Event{
			ID:        payload.ID,
			Type:      payload.Type,
			RepoName:  payload.Repo.Name,
			CreatedAt: parseRFC3339(payload.CreatedAt),
		})
	}
	return EventsResult{Status: EndpointStatusOK, Events: events}, nil
}

// ListViewerOrgs lists the authenticated user's organizations.
func (c *DataClient) ListViewerOrgs(ctx context.Context) (OrgsResult, error) {
	items, err := c.paginator.FetchAll(ctx, c.endpoint("user", "orgs"), nil, PageOptions{MaxPages: 1})
	if _, err = splitPartial(err); err != nil {
		return OrgsResult{}, fmt.Errorf("list organizations: %w", err)
	}

	orgs := make([]Org, 0, len(items))
	for _, item := range items {
		var payload orgPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return OrgsResult{}, fmt.Errorf("decode organization item: %w", err)
		}
		orgs = append(orgs, Org(payload))
	}
	return OrgsResult{Status: EndpointStatusOK, Orgs: orgs}, nil
}

// ListViewerStarred lists the authenticated user's starred repositories,
// first page only.
func (c *DataClient) ListViewerStarred(ctx context.Context) (StarredResult, error) {
	items, err := c.paginator.FetchAll(ctx, c.endpoint("user", "starred"), nil, PageOptions{MaxPages: 1})
	if _, err = splitPartial(err); err != nil {
		return StarredResult{}, fmt.Errorf("list starred repositories: %w", err)
	}

	starred := StarredResult{Status: EndpointStatusOK}
	for _, item := range items {
		var payload repositoryPayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return StarredResult{}, fmt.Errorf("decode starred item: %w", err)
		}
		starred.Repos = append(starred.Repos, payload.toRepository())
	}
	return starred, nil
}

// ListRepoReleases lists releases of one repository, first page only.
func (c *DataClient) ListRepoReleases(ctx context.Context, fullName string) (ReleasesResult, error) {
	owner, name, err := ParseRepoFullName(fullName)
	if err != nil {
		return ReleasesResult{}, err
	}

	items, err := c.paginator.FetchAll(ctx, c.endpoint("repos", owner, name, "releases"), nil, PageOptions{MaxPages: 1})
	if _, err = splitPartial(err); err != nil {
		return ReleasesResult{}, fmt.Errorf("list releases for %s: %w", fullName, err)
	}

	releases := make([]Release, 0, len(items))
	for _, item := range items {
		var payload releasePayload
		if err := json.Unmarshal(item, &payload); err != nil {
			return ReleasesResult{}, fmt.Errorf("decode release item: %w", err)
		}
		releases = append(releases, Release{
			ID:          payload.ID,
			TagName:     payload.TagName,
			Name:        payload.Name,
			Draft:       payload.Draft,
			Prerelease:  payload.Prerelease,
			PublishedAt: parseNullableRFC3339(payload.PublishedAt),
		})
	}
	return ReleasesResult{Status: EndpointStatusOK, Releases: releases}, nil
}

// GetRateLimit reads the core rate-limit bucket. Used by the health probe;
// the endpoint itself does not count against the limit.
func (c *DataClient) GetRateLimit(ctx context.Context) (RateLimitResult, error) {
	result, err := c.client.Get(ctx, c.endpoint("rate_limit"))
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("fetch rate limit: %w", err)
	}

	status := EndpointStatusFromHTTP(result.Status)
	if status != EndpointStatusOK {
		return RateLimitResult{Status: status}, nil
	}

	var payload struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		return RateLimitResult{}, fmt.Errorf("decode rate limit response: %w", err)
	}
	return RateLimitResult{
		Status: status,
		Core: RateLimitStatus{
			Limit:     payload.Resources.Core.Limit,
			Remaining: payload.Resources.Core.Remaining,
			ResetUnix: payload.Resources.Core.Reset,
		},
	}, nil
}

func (c *DataClient) endpoint(segments ...string) string {
	cloned := *c.baseURL
	builder := strings.Builder{}
	builder.WriteString(strings.TrimSuffix(cloned.Path, "/"))
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(url.PathEscape(segment))
	}
	cloned.Path = builder.String()
	return cloned.String()
}

// splitPartial separates the partial-result marker from blocking errors so
// callers can keep the collected data while still observing the condition.
func splitPartial(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if isPartial(err) {
		return true, nil
	}
	return false, err
}

func isPartial(err error) bool {
	for unwrapped := err; unwrapped != nil; {
		if unwrapped == ErrPartialResult {
			return true
		}
		u, ok := unwrapped.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		unwrapped = u.Unwrap()
	}
	return false
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullableRFC3339(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	return parseRFC3339(*raw)
}

type userPayload struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type repositoryPayload struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	FullName        string       `json:"full_name"`
	Owner           *userPayload `json:"owner"`
	Description     string       `json:"description"`
	HTMLURL         string       `json:"html_url"`
	DefaultBranch   string       `json:"default_branch"`
	Private         bool         `json:"private"`
	Fork            bool         `json:"fork"`
	Archived        bool         `json:"archived"`
	IsTemplate      bool         `json:"is_template"`
	Language        *string      `json:"language"`
	Size            int          `json:"size"`
	StargazersCount int          `json:"stargazers_count"`
	ForksCount      int          `json:"forks_count"`
	WatchersCount   int          `json:"watchers_count"`
	OpenIssuesCount int          `json:"open_issues_count"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at"`
	PushedAt        *string      `json:"pushed_at"`
}

func (p repositoryPayload) toRepository() Repository {
	repo := Repository{
		ID:            p.ID,
		Name:          p.Name,
		FullName:      p.FullName,
		Description:   p.Description,
		HTMLURL:       p.HTMLURL,
		DefaultBranch: p.DefaultBranch,
		Private:       p.Private,
		Fork:          p.Fork,
		Archived:      p.Archived,
		Template:      p.IsTemplate,
		SizeKB:        p.Size,
		Stars:         p.StargazersCount,
		Forks:         p.ForksCount,
		Watchers:      p.WatchersCount,
		OpenIssues:    p.OpenIssuesCount,
		CreatedAt:     parseRFC3339(p.CreatedAt),
		UpdatedAt:     parseRFC3339(p.UpdatedAt),
		PushedAt:      parseNullableRFC3339(p.PushedAt),
	}
	if p.Owner != nil {
		repo.Owner = p.Owner.Login
	}
	if p.Language != nil {
		repo.Language = *p.Language
	}
	return repo
}

type commitAuthorBlock struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

type commitListPayload struct {
	SHA     string       `json:"sha"`
	HTMLURL string       `json:"html_url"`
	Author  *userPayload `json:"author"`
	Commit  struct {
		Message   string            `json:"message"`
		Author    commitAuthorBlock `json:"author"`
		Committer commitAuthorBlock `json:"committer"`
	} `json:"commit"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
}

func (p commitListPayload) toCommit() Commit {
	commit := Commit{
		SHA:            p.SHA,
		HTMLURL:        p.HTMLURL,
		Message:        p.Commit.Message,
		AuthorName:     p.Commit.Author.Name,
		AuthorEmail:    p.Commit.Author.Email,
		AuthoredAt:     parseRFC3339(p.Commit.Author.Date),
		CommitterName:  p.Commit.Committer.Name,
		CommitterEmail: p.Commit.Committer.Email,
		CommittedAt:    parseRFC3339(p.Commit.Committer.Date),
	}
	if p.Author != nil {
		commit.AuthorLogin = p.Author.Login
	}
	for _, parent := range p.Parents {
		commit.Parents = append(commit.Parents, parent.SHA)
	}
	return commit
}

type commitFilePayload struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

type commitDetailPayload struct {
	SHA   string `json:"sha"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
		Total     int `json:"total"`
	} `json:"stats"`
	Files []commitFilePayload `json:"files"`
}

type userProfilePayload struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Blog        string `json:"blog"`
	Email       string `json:"email"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PublicRepos int    `json:"public_repos"`
	PublicGists int    `json:"public_gists"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (p userProfilePayload) toUser() User {
	return User{
		Login:       p.Login,
		Name:        p.Name,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		Company:     p.Company,
		Location:    p.Location,
		Blog:        p.Blog,
		Email:       p.Email,
		Followers:   p.Followers,
		Following:   p.Following,
		PublicRepos: p.PublicRepos,
		PublicGists: p.PublicGists,
		CreatedAt:   parseRFC3339(p.CreatedAt),
		UpdatedAt:   parseRFC3339(p.UpdatedAt),
	}
}

type contributorPayload struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Type          string `json:"type"`
	Contributions int    `json:"contributions"`
}

type branchPayload struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Protected bool `json:"protected"`
}

type eventPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt string `json:"created_at"`
}

type orgPayload struct {
	Login       string `json:"login"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

type releasePayload struct {
	ID          int64   `json:"id"`
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	Draft       bool    `json:"draft"`
	Prerelease  bool    `json:"prerelease"`
	PublishedAt *string `json:"published_at"`
}

type contentItemPayload struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int    `json:"size"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}
