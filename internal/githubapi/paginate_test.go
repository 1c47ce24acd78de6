package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"
)

// pagedDoer serves synthetic list pages keyed by the page query parameter.
type pagedDoer struct {
	pages    [][]string
	failPage int
	failWith *http.Response
	requests []string
}

func (d *pagedDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req.URL.String())

	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	if d.failPage > 0 && page == d.failPage {
		if d.failWith != nil {
			return d.failWith, nil
		}
		return nil, errors.New("connection reset")
	}
	if page < 1 || page > len(d.pages) {
		return response(200, "[]", nil), nil
	}

	items := make([]string, 0, len(d.pages[page-1]))
	for _, item := range d.pages[page-1] {
		items = append(items, fmt.Sprintf("%q", item))
	}
	body := "[" + joinComma(items) + "]"
	return response(200, body, nil), nil
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

func makePage(size int, prefix string) []string {
	page := make([]string, size)
	for i := range page {
		page[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return page
}

func newTestPaginator(doer HTTPDoer) *Paginator {
	return NewPaginator(newTestClient(doer, nil), nil)
}

func TestFetchAllStopsAtShortPage(t *testing.T) {
	doer := &pagedDoer{pages: [][]string{
		makePage(100, "a"),
		makePage(100, "b"),
		makePage(37, "c"),
	}}
	paginator := newTestPaginator(doer)

	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 237 {
		t.Fatalf("items = %d, want 237", len(items))
	}
	if len(doer.requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(doer.requests))
	}
}

func TestFetchAllPreservesPageOrder(t *testing.T) {
	doer := &pagedDoer{pages: [][]string{
		makePage(100, "first"),
		makePage(2, "second"),
	}}
	paginator := newTestPaginator(doer)

	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	var first, last string
	if err := json.Unmarshal(items[0], &first); err != nil {
		t.Fatalf("unmarshal first: %v", err)
	}
	if err := json.Unmarshal(items[len(items)-1], &last); err != nil {
		t.Fatalf("unmarshal last: %v", err)
	}
	if first != "first-0" || last != "second-1" {
		t.Fatalf("order broken: first=%s last=%s", first, last)
	}
}

func TestFetchAllHonorsMaxPages(t *testing.T) {
	doer := &pagedDoer{pages: [][]string{
		makePage(100, "a"),
		makePage(100, "b"),
		makePage(100, "c"),
	}}
	paginator := newTestPaginator(doer)

	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{MaxPages: 2})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 200 {
		t.Fatalf("items = %d, want 200", len(items))
	}
	if len(doer.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(doer.requests))
	}
}

func TestFetchAllStopsCleanlyOnNotFound(t *testing.T) {
	doer := &pagedDoer{
		pages:    [][]string{makePage(100, "a")},
		failPage: 2,
		failWith: response(404, `{"message":"Not Found"}`, nil),
	}
	paginator := newTestPaginator(doer)

	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 100 {
		t.Fatalf("items = %d, want 100", len(items))
	}
}

func TestFetchAllReturnsPartialResultAfterMidStreamFailure(t *testing.T) {
	doer := &pagedDoer{
		pages:    [][]string{makePage(100, "a"), makePage(100, "b")},
		failPage: 2,
		failWith: response(500, "boom", nil),
	}
	paginator := newTestPaginator(doer)

	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{})
	if !errors.Is(err, ErrPartialResult) {
		t.Fatalf("err = %v, want ErrPartialResult", err)
	}
	if len(items) != 100 {
		t.Fatalf("items = %d, want 100 collected before the failure", len(items))
	}
}

func TestFetchAllFirstPageAuthFailureIsBlocking(t *testing.T) {
	doer := &pagedDoer{
		failPage: 1,
		failWith: response(401, `{"message":"Bad credentials"}`, nil),
	}
	paginator := newTestPaginator(doer)

	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if items != nil {
		t.Fatalf("items = %v, want nil", items)
	}
}

func TestPageRequestURLMergesQuery(t *testing.T) {
	query := url.Values{}
	query.Set("sort", "updated")

	built, err := pageRequestURL("https://api.github.com/user/repos?type=all", query, 2, 100)
	if err != nil {
		t.Fatalf("pageRequestURL: %v", err)
	}

	parsed, err := url.Parse(built)
	if err != nil {
		t.Fatalf("parse built url: %v", err)
	}
	got := parsed.Query()
	if got.Get("type") != "all" || got.Get("sort") != "updated" {
		t.Fatalf("query lost values: %s", built)
	}
	if got.Get("page") != "2" || got.Get("per_page") != "100" {
		t.Fatalf("pagination params wrong: %s", built)
	}
}

func TestFetchAllDoesNotRetryPastTransientPage(t *testing.T) {
	doer := &pagedDoer{
		pages:    [][]string{makePage(100, "a")},
		failPage: 2,
	}
	paginator := newTestPaginator(doer)

	start := time.Now()
	items, err := paginator.FetchAll(context.Background(), "https://example.test/items", nil, PageOptions{})
	if !errors.Is(err, ErrPartialResult) {
		t.Fatalf("err = %v, want ErrPartialResult", err)
	}
	if len(items) != 100 {
		t.Fatalf("items = %d, want 100", len(items))
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("pagination should not block on retries here")
	}
}
