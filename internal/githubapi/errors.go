package githubapi

import "errors"

var (
	// ErrAuth marks a 401/403 without rate-limit semantics. The credential is
	// wrong or lacks scope; retrying cannot help.
	ErrAuth = errors.New("githubapi: authorization failed")
	// ErrRateLimited marks a rate-limited request whose wait budget ran out.
	ErrRateLimited = errors.New("githubapi: rate limit wait budget exhausted")
	// ErrNotFound marks a 404 on a singleton resource.
	ErrNotFound = errors.New("githubapi: resource not found")
	// ErrNetwork marks a transport failure that survived the retry budget.
	ErrNetwork = errors.New("githubapi: request failed after retries")
	// ErrPartialResult marks a paginated fetch that stopped early; the items
	// collected before the failure are still returned alongside it.
	ErrPartialResult = errors.New("githubapi: partial result")
)
