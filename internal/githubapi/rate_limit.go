package githubapi

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitHeaders contains parsed GitHub rate-limit response headers.
type RateLimitHeaders struct {
	Remaining        int
	Limit            int
	ResetUnix        int64
	Used             int
	RetryAfter       time.Duration
	PrimaryLimited   bool
	SecondaryLimited bool
}

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  string
}

// RateLimitPolicy evaluates rate-limit actions from parsed headers.
type RateLimitPolicy struct {
	// FallbackBackoff is the wait used when GitHub signals a limit without a
	// usable reset or retry-after header.
	FallbackBackoff time.Duration
	// MinResetBuffer pads the wait past the advertised reset instant.
	MinResetBuffer time.Duration
	Now            func() time.Time
}

// Limited reports whether the headers carry rate-limit semantics for the
// given status code. A 403 without them is an authorization failure.
func (h RateLimitHeaders) Limited() bool {
	return h.PrimaryLimited || h.SecondaryLimited
}

// ParseRateLimitHeaders parses rate-limit and retry headers.
func ParseRateLimitHeaders(header http.Header, statusCode int) RateLimitHeaders {
	parsed := RateLimitHeaders{}
	parsed.Remaining = parseInt(header.Get("X-RateLimit-Remaining"))
	parsed.Limit = parseInt(header.Get("X-RateLimit-Limit"))
	parsed.Used = parseInt(header.Get("X-RateLimit-Used"))
	parsed.ResetUnix = parseInt64(header.Get("X-RateLimit-Reset"))

	retryAfterSeconds := parseInt(header.Get("Retry-After"))
	if retryAfterSeconds > 0 {
		parsed.RetryAfter = time.Duration(retryAfterSeconds) * time.Second
	}

	if statusCode == http.StatusTooManyRequests {
		parsed.SecondaryLimited = true
	}
	if statusCode == http.StatusForbidden {
		if parsed.RetryAfter > 0 {
			parsed.SecondaryLimited = true
		}
		if header.Get("X-RateLimit-Remaining") == "0" {
			parsed.PrimaryLimited = true
		}
	}

	return parsed
}

// Evaluate decides how long to pause before retrying a rate-limited request.
// It is only meaningful when headers.Limited() is true.
func (p RateLimitPolicy) Evaluate(headers RateLimitHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	fallback := p.FallbackBackoff
	if fallback <= 0 {
		fallback = 30 * time.Second
	}

	if headers.SecondaryLimited {
		waitFor := fallback
		if headers.RetryAfter > waitFor {
			waitFor = headers.RetryAfter
		}
		return Decision{Allow: false, WaitFor: waitFor, Reason: "secondary_limit"}
	}

	if headers.PrimaryLimited {
		resetAt := time.Unix(headers.ResetUnix, 0)
		if headers.ResetUnix > 0 && resetAt.After(now) {
			return Decision{
				Allow:   false,
				WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
				Reason:  "primary_limit",
			}
		}
		return Decision{Allow: false, WaitFor: fallback, Reason: "primary_limit_no_reset"}
	}

	return Decision{Allow: true, Reason: "within_budget"}
}

func parseInt(raw string) int {
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
