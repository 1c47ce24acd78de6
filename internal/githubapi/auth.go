package githubapi

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const acceptHeader = "application/vnd.github.v3+json"

// NewHTTPClient creates an HTTP client that authenticates every request with
// the credential from source and attaches the GitHub v3 Accept header. The
// source is consulted per request, so token rotation takes effect without
// rebuilding the client.
func NewHTTPClient(source oauth2.TokenSource, timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: source,
			Base:   headerTransport{base: base},
		},
	}
}

type headerTransport struct {
	base http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Accept", acceptHeader)
	if cloned.Header.Get("User-Agent") == "" {
		cloned.Header.Set("User-Agent", "gitboard")
	}
	return t.base.RoundTrip(cloned)
}
