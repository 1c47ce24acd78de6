package githubapi

import (
	"net/http"
	"time"
)

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusAccepted indicates GitHub accepted the request and is still computing results.
	EndpointStatusAccepted EndpointStatus = "accepted"
	// EndpointStatusUnauthorized indicates a rejected credential.
	EndpointStatusUnauthorized EndpointStatus = "unauthorized"
	// EndpointStatusForbidden indicates authorization failure or restricted access.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusUnprocessable indicates request validation/processing failure.
	EndpointStatusUnprocessable EndpointStatus = "unprocessable"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// EndpointStatusFromHTTP normalizes an HTTP status code.
func EndpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusAccepted:
		return EndpointStatusAccepted
	case http.StatusUnauthorized:
		return EndpointStatusUnauthorized
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	case http.StatusUnprocessableEntity:
		return EndpointStatusUnprocessable
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

// Repository is one repository owned by or visible to the authenticated user.
// Languages, Contributors, and ContributorCount are enrichment fields filled
// by secondary fetches; they stay empty when enrichment fails.
type Repository struct {
	ID            int64
	Name          string
	FullName      string
	Owner         string
	Description   string
	HTMLURL       string
	DefaultBranch string
	Private       bool
	Fork          bool
	Archived      bool
	Template      bool
	Language      string
	SizeKB        int
	Stars         int
	Forks         int
	Watchers      int
	OpenIssues    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PushedAt      time.Time

	Languages        map[string]int64
	Contributors     []Contributor
	ContributorCount int
}

// RepoRef identifies the repository a commit was fetched from.
type RepoRef struct {
	Name     string
	FullName string
	HTMLURL  string
}

// CommitStats holds per-commit change statistics from the commit detail
// endpoint.
type CommitStats struct {
	Additions int
	Deletions int
	Total     int
}

// CommitFile is one changed file from the commit detail endpoint.
type CommitFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Changes   int
}

// Commit is one commit from the list endpoint. Stats and Files are
// enrichment fields from the per-SHA detail fetch; nil until enrichment
// succeeds.
type Commit struct {
	SHA            string
	Message        string
	HTMLURL        string
	AuthorName     string
	AuthorEmail    string
	AuthorLogin    string
	AuthoredAt     time.Time
	CommitterName  string
	CommitterEmail string
	CommittedAt    time.Time
	Parents        []string

	Stats *CommitStats
	Files []CommitFile

	// SourceRepo is set when commits from several repositories are merged
	// into one collection, so consumers can group by origin.
	SourceRepo RepoRef
}

// Summary returns the first line of the commit message.
func (c Commit) Summary() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

// User is the authenticated account's profile. Events, Orgs, and Starred are
// enrichment fields; empty when their sub-fetches fail.
type User struct {
	Login       string
	Name        string
	AvatarURL   string
	Bio         string
	Company     string
	Location    string
	Blog        string
	Email       string
	Followers   int
	Following   int
	PublicRepos int
	PublicGists int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Events  []Event
	Orgs    []Org
	Starred []Repository
}

// Contributor is one entry from the repository contributors endpoint.
type Contributor struct {
	Login         string
	AvatarURL     string
	Type          string
	Contributions int
}

// Branch is one entry from the repository branches endpoint.
type Branch struct {
	Name      string
	CommitSHA string
	Protected bool
}

// Event is one recent public event on the authenticated user.
type Event struct {
	ID        string
	Type      string
	RepoName  string
	CreatedAt time.Time
}

// Org is one organization membership of the authenticated user.
type Org struct {
	Login       string
	Description string
	AvatarURL   string
}

// Release is one repository release.
type Release struct {
	ID          int64
	TagName     string
	Name        string
	Draft       bool
	Prerelease  bool
	PublishedAt time.Time
}

// ContentItem is one entry of a repository contents listing. A file lookup
// returns a single-element listing.
type ContentItem struct {
	Name        string
	Path        string
	Type        string
	Size        int
	SHA         string
	DownloadURL string
}

// RateLimitStatus is the core rate-limit bucket from /rate_limit.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	ResetUnix int64
}
