// Package token holds the GitHub personal access token: shape validation,
// persistence in the keyed store, and an oauth2.TokenSource view consumed by
// the authenticated HTTP transport.
package token

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gitboard/gitboard/internal/store"
)

const storeKey = "gitboard:token"

// Recognized PAT prefixes. Fine-grained tokens use github_pat_, classic ones ghp_.
var validPrefixes = []string{"ghp_", "github_pat_"}

var (
	// ErrMissingCredential is returned when an operation needs a token and none is set.
	ErrMissingCredential = errors.New("token: no credential set")
	// ErrInvalidToken is returned by Set when the token fails the shape check.
	ErrInvalidToken = errors.New("token: invalid token shape")
)

// Store holds the current credential in memory and mirrors it into the
// persistent keyed store. It implements oauth2.TokenSource so the HTTP
// transport always sees the latest credential, including after rotation.
type Store struct {
	kv     store.KV
	logger *zap.Logger

	mu      sync.RWMutex
	current string

	onChange []func()
}

// NewStore creates a token store over a persistent KV. The persisted
// credential, if any, is loaded eagerly; a broken or unreachable KV leaves
// the store in the no-credential state rather than failing.
func NewStore(kv store.KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{kv: kv, logger: logger}
	if kv != nil {
		value, err := kv.Get(context.Background(), storeKey)
		switch {
		case err == nil:
			if normalized, ok := normalize(value); ok {
				s.current = normalized
			}
		case !errors.Is(err, store.ErrNotFound):
			logger.Warn("credential load failed, starting without one", zap.Error(err))
		}
	}
	return s
}

// OnChange registers a hook fired after every successful Set or Clear.
// The service layer uses this to invalidate caches and held collections.
func (s *Store) OnChange(hook func()) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, hook)
}

// Get reports the current credential. The second return is false when no
// credential is set.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return "", false
	}
	return s.current, true
}

// Set validates, persists, and installs a new credential, returning the
// normalized token. Persistence failures are tolerated: the credential is
// still usable for the life of the process.
func (s *Store) Set(ctx context.Context, raw string) (string, error) {
	normalized, ok := normalize(raw)
	if !ok {
		return "", ErrInvalidToken
	}

	s.mu.Lock()
	s.current = normalized
	hooks := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Set(ctx, storeKey, normalized); err != nil {
			s.logger.Warn("credential persistence failed, keeping in-memory copy", zap.Error(err))
		}
	}
	for _, hook := range hooks {
		hook()
	}
	return normalized, nil
}

// Clear removes the credential from memory and the persistent store.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = ""
	hooks := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Delete(ctx, storeKey); err != nil {
			return err
		}
	}
	for _, hook := range hooks {
		hook()
	}
	return nil
}

// Token implements oauth2.TokenSource. The token type is "token" so the
// transport emits the `Authorization: token <pat>` scheme GitHub documents
// for personal access tokens.
func (s *Store) Token() (*oauth2.Token, error) {
	credential, ok := s.Get()
	if !ok {
		return nil, ErrMissingCredential
	}
	return &oauth2.Token{
		AccessToken: credential,
		TokenType:   "token",
	}, nil
}

// Validate reports whether a raw token passes the shape check without
// installing it.
func Validate(raw string) bool {
	_, ok := normalize(raw)
	return ok
}

func normalize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(trimmed, prefix) && len(trimmed) > len(prefix) {
			return trimmed, true
		}
	}
	return "", false
}
