package githubapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/gitboard/gitboard/internal/metrics"
	"github.com/gitboard/gitboard/internal/telemetry"
)

// DefaultRateLimitWaitBudget caps the total wall-clock time one request may
// spend paused on rate limits before giving up with ErrRateLimited.
const DefaultRateLimitWaitBudget = 15 * time.Minute

// RetryConfig configures transient-failure retry behavior.
type RetryConfig struct {
	// MaxAttempts bounds attempts for 5xx and network failures.
	MaxAttempts int
	// Delay is the fixed pause between transient retries.
	Delay time.Duration
}

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallMetadata reports execution metadata for a client call.
type CallMetadata struct {
	Attempts        int
	WaitedForLimit  time.Duration
	LastRateHeaders RateLimitHeaders
	LastDecision    Decision
}

// Result is the outcome of one GET. Non-2xx statuses are returned here, not
// as errors, so callers can branch on 401/403/404/5xx.
type Result struct {
	Status    int
	Body      []byte
	Headers   RateLimitHeaders
	FromCache bool
	Metadata  CallMetadata
}

// OK reports whether the response status is 2xx.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Client issues authenticated GETs against the GitHub REST API with response
// caching, rate-limit-aware waits, and bounded transient retries.
//
// The per-request retry flow is an explicit state machine:
//
//	Fetching -> BackingOff -> Fetching  (rate limit, within wait budget)
//	Fetching -> Fetching              (transient, within attempt budget)
//	Fetching -> Succeeded | Skipped
//
// Rate-limit waits do not consume the transient attempt budget; they are
// bounded separately by the wall-clock wait budget.
type Client struct {
	doer        HTTPDoer
	credentials oauth2.TokenSource
	cache       *ResponseCache
	retry       RetryConfig
	ratePolicy  RateLimitPolicy
	waitBudget  time.Duration
	// Sleep is injected for testability.
	Sleep func(duration time.Duration)
}

// NewClient creates a GitHub API client. cache may be nil to disable
// memoization. credentials is consulted before any request is issued: no
// credential means no network call.
func NewClient(doer HTTPDoer, credentials oauth2.TokenSource, cache *ResponseCache, retry RetryConfig, ratePolicy RateLimitPolicy, waitBudget time.Duration) *Client {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.Delay <= 0 {
		retry.Delay = 2 * time.Second
	}
	if waitBudget <= 0 {
		waitBudget = DefaultRateLimitWaitBudget
	}
	return &Client{
		doer:        doer,
		credentials: credentials,
		cache:       cache,
		retry:       retry,
		ratePolicy:  ratePolicy,
		waitBudget:  waitBudget,
		Sleep:       time.Sleep,
	}
}

// Cache exposes the response cache for invalidation by the owning service.
func (c *Client) Cache() *ResponseCache {
	return c.cache
}

// Get fetches one URL. The error is non-nil only for a missing credential,
// an exhausted rate-limit wait budget, an exhausted network retry budget, or
// a cancelled context; HTTP-level failures come back in Result.Status.
func (c *Client) Get(ctx context.Context, url string) (Result, error) {
	if c.credentials != nil {
		if _, err := c.credentials.Token(); err != nil {
			return Result{}, fmt.Errorf("github credential: %w", err)
		}
	}

	if c.cache != nil {
		if payload, ok := c.cache.Get(url); ok {
			metrics.CacheHits.Inc()
			return Result{Status: http.StatusOK, Body: payload, FromCache: true}, nil
		}
		metrics.CacheMisses.Inc()
	}

	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer("gitboard/internal/githubapi").Start(
			ctx,
			"githubapi.client.get",
			trace.WithAttributes(attribute.String("http.url", url)),
		)
		defer span.End()
	}

	result, err := c.fetch(ctx, url, span)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}

	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", result.Status))
		span.SetStatus(codes.Ok, "request completed")
	}
	if result.OK() && c.cache != nil {
		c.cache.Set(url, result.Body)
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, url string, span trace.Span) (Result, error) {
	metadata := CallMetadata{}
	transientAttempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return Result{Metadata: metadata}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Result{Metadata: metadata}, fmt.Errorf("build request: %w", err)
		}

		metadata.Attempts++
		resp, err := c.doer.Do(req)
		if err != nil {
			transientAttempts++
			if span != nil {
				span.AddEvent("attempt_failed", trace.WithAttributes(
					attribute.Int("github.attempt", metadata.Attempts),
				))
			}
			if transientAttempts >= c.retry.MaxAttempts {
				metrics.GitHubRequests.WithLabelValues(metrics.OutcomeNetwork).Inc()
				return Result{Metadata: metadata}, fmt.Errorf("%w: %v", ErrNetwork, err)
			}
			c.Sleep(c.retry.Delay)
			continue
		}

		headers := ParseRateLimitHeaders(resp.Header, resp.StatusCode)
		metadata.LastRateHeaders = headers

		if headers.Limited() {
			drainAndClose(resp)
			decision := c.ratePolicy.Evaluate(headers)
			metadata.LastDecision = decision
			if metadata.WaitedForLimit+decision.WaitFor > c.waitBudget {
				metrics.GitHubRequests.WithLabelValues(metrics.OutcomeRateLimited).Inc()
				return Result{Status: resp.StatusCode, Headers: headers, Metadata: metadata}, ErrRateLimited
			}
			metadata.WaitedForLimit += decision.WaitFor
			metrics.RateLimitWaits.Inc()
			metrics.RateLimitWaitSeconds.Add(decision.WaitFor.Seconds())
			if span != nil {
				span.AddEvent("rate_limit_wait", trace.WithAttributes(
					attribute.String("github.rate_limit_reason", decision.Reason),
					attribute.Float64("github.wait_seconds", decision.WaitFor.Seconds()),
				))
			}
			c.Sleep(decision.WaitFor)
			continue
		}

		if isTransientStatus(resp.StatusCode) {
			transientAttempts++
			if transientAttempts >= c.retry.MaxAttempts {
				body := readAndClose(resp)
				metrics.GitHubRequests.WithLabelValues(metrics.OutcomeTransient).Inc()
				return Result{Status: resp.StatusCode, Body: body, Headers: headers, Metadata: metadata}, nil
			}
			drainAndClose(resp)
			c.Sleep(c.retry.Delay)
			continue
		}

		body := readAndClose(resp)
		metrics.GitHubRequests.WithLabelValues(outcomeForStatus(resp.StatusCode)).Inc()
		return Result{Status: resp.StatusCode, Body: body, Headers: headers, Metadata: metadata}, nil
	}
}

func isTransientStatus(statusCode int) bool {
	return statusCode >= 500 && statusCode <= 599
}

func outcomeForStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return metrics.OutcomeOK
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return metrics.OutcomeAuth
	case statusCode == http.StatusNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeTransient
	}
}

func readAndClose(resp *http.Response) []byte {
	if resp.Body == nil {
		return nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return body
}

func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
