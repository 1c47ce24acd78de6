package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/gitboard/gitboard/internal/metrics"
)

const (
	// DefaultPerPage is the page size requested from list endpoints.
	DefaultPerPage = 100
	// DefaultMaxPages bounds pagination for ordinary collections.
	DefaultMaxPages = 20
	// FullHistoryMaxPages bounds full-history commit scans. Effectively
	// unbounded for real repositories while still preventing runaway loops.
	FullHistoryMaxPages = 1000
)

// PageOptions configures one paginated fetch.
type PageOptions struct {
	PerPage  int
	MaxPages int
}

func (o PageOptions) withDefaults() PageOptions {
	if o.PerPage <= 0 {
		o.PerPage = DefaultPerPage
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Paginator fetches list endpoints page by page, concatenating raw items in
// upstream page order. It never reorders items; sorting belongs to the
// analytics layer.
type Paginator struct {
	client *Client
	logger *zap.Logger
}

// NewPaginator creates a paginator over a client.
func NewPaginator(client *Client, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{client: client, logger: logger}
}

// FetchAll retrieves pages 1..MaxPages of baseURL, stopping at the first
// page shorter than PerPage. A page failure that is not rate limiting stops
// pagination and returns everything collected so far wrapped with
// ErrPartialResult; the caller decides whether a partial collection is
// usable. A 404 ends pagination cleanly: the resource ran out or is hidden.
func (p *Paginator) FetchAll(ctx context.Context, baseURL string, query url.Values, opts PageOptions) ([]json.RawMessage, error) {
	opts = opts.withDefaults()

	var items []json.RawMessage
	for page := 1; page <= opts.MaxPages; page++ {
		pageURL, err := pageRequestURL(baseURL, query, page, opts.PerPage)
		if err != nil {
			return items, fmt.Errorf("build page url: %w", err)
		}

		result, err := p.client.Get(ctx, pageURL)
		if err != nil {
			return p.failPage(items, page, err)
		}

		switch {
		case result.OK():
		case result.Status == http.StatusNotFound:
			return items, nil
		case result.Status == http.StatusUnauthorized || result.Status == http.StatusForbidden:
			return p.failPage(items, page, fmt.Errorf("%w: status %d", ErrAuth, result.Status))
		default:
			return p.failPage(items, page, fmt.Errorf("status %d", result.Status))
		}

		var pageItems []json.RawMessage
		if err := json.Unmarshal(result.Body, &pageItems); err != nil {
			return p.failPage(items, page, fmt.Errorf("malformed page payload: %w", err))
		}

		items = append(items, pageItems...)
		if len(pageItems) < opts.PerPage {
			return items, nil
		}
	}
	return items, nil
}

// failPage converts a page-level failure into either a blocking error (no
// data collected yet) or a partial result.
func (p *Paginator) failPage(items []json.RawMessage, page int, cause error) ([]json.RawMessage, error) {
	if len(items) == 0 {
		if errors.Is(cause, ErrAuth) || errors.Is(cause, ErrRateLimited) || errors.Is(cause, ErrNetwork) {
			return nil, cause
		}
		return nil, fmt.Errorf("page %d: %w", page, cause)
	}

	p.logger.Warn("pagination stopped early, returning partial result",
		zap.Int("failed_page", page),
		zap.Int("items_collected", len(items)),
		zap.Error(cause),
	)
	metrics.PartialFetches.Inc()
	return items, fmt.Errorf("%w: page %d: %v", ErrPartialResult, page, cause)
}

func pageRequestURL(baseURL string, query url.Values, page, perPage int) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	merged := parsed.Query()
	for key, values := range query {
		for _, value := range values {
			merged.Set(key, value)
		}
	}
	merged.Set("page", strconv.Itoa(page))
	merged.Set("per_page", strconv.Itoa(perPage))
	parsed.RawQuery = merged.Encode()
	return parsed.String(), nil
}
