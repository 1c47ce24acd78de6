package token

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gitboard/gitboard/internal/store"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", store.ErrNotFound }
func (failingKV) Set(context.Context, string, string) error   { return errors.New("disk full") }
func (failingKV) Delete(context.Context, string) error        { return errors.New("disk full") }

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "classic token", input: "ghp_abc123", want: true},
		{name: "fine grained token", input: "github_pat_abc123", want: true},
		{name: "surrounding whitespace", input: "  ghp_abc123\n", want: true},
		{name: "wrong prefix", input: "gho_abc123", want: false},
		{name: "prefix only", input: "ghp_", want: false},
		{name: "empty", input: "", want: false},
		{name: "whitespace only", input: "   ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.input); got != tt.want {
				t.Fatalf("Validate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetNormalizesAndPersists(t *testing.T) {
	kv := store.NewMemoryStore()
	tokens := NewStore(kv, nil)

	normalized, err := tokens.Set(context.Background(), "  ghp_abc123  ")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if normalized != "ghp_abc123" {
		t.Fatalf("normalized = %q", normalized)
	}

	persisted, err := kv.Get(context.Background(), "gitboard:token")
	if err != nil {
		t.Fatalf("kv.Get: %v", err)
	}
	if persisted != "ghp_abc123" {
		t.Fatalf("persisted = %q", persisted)
	}
}

func TestSetRejectsInvalidShape(t *testing.T) {
	tokens := NewStore(store.NewMemoryStore(), nil)

	if _, err := tokens.Set(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if _, ok := tokens.Get(); ok {
		t.Fatal("invalid token must not be installed")
	}
}

func TestSetToleratesAndLogsPersistenceFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tokens := NewStore(failingKV{}, zap.New(core))

	normalized, err := tokens.Set(context.Background(), "ghp_abc")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if normalized != "ghp_abc" {
		t.Fatalf("normalized = %q", normalized)
	}
	if credential, ok := tokens.Get(); !ok || credential != "ghp_abc" {
		t.Fatalf("in-memory credential = %q, %v", credential, ok)
	}
	if logs.FilterMessage("credential persistence failed, keeping in-memory copy").Len() != 1 {
		t.Fatal("persistence failure must be logged")
	}
}

func TestNewStoreLoadsPersistedCredential(t *testing.T) {
	kv := store.NewMemoryStore()
	if err := kv.Set(context.Background(), "gitboard:token", "github_pat_xyz"); err != nil {
		t.Fatalf("seed kv: %v", err)
	}

	tokens := NewStore(kv, nil)
	credential, ok := tokens.Get()
	if !ok || credential != "github_pat_xyz" {
		t.Fatalf("Get = %q, %v", credential, ok)
	}
}

func TestNewStoreIgnoresCorruptPersistedValue(t *testing.T) {
	kv := store.NewMemoryStore()
	if err := kv.Set(context.Background(), "gitboard:token", "garbage"); err != nil {
		t.Fatalf("seed kv: %v", err)
	}

	tokens := NewStore(kv, nil)
	if _, ok := tokens.Get(); ok {
		t.Fatal("corrupt persisted value must not be installed")
	}
}

func TestClearRemovesCredential(t *testing.T) {
	kv := store.NewMemoryStore()
	tokens := NewStore(kv, nil)
	if _, err := tokens.Set(context.Background(), "ghp_abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := tokens.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := tokens.Get(); ok {
		t.Fatal("credential should be gone")
	}
	if _, err := kv.Get(context.Background(), "gitboard:token"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("kv err = %v, want ErrNotFound", err)
	}
}

func TestOnChangeFiresForSetAndClear(t *testing.T) {
	tokens := NewStore(store.NewMemoryStore(), nil)

	fired := 0
	tokens.OnChange(func() { fired++ })

	if _, err := tokens.Set(context.Background(), "ghp_abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := tokens.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if fired != 2 {
		t.Fatalf("hook fired %d times, want 2", fired)
	}
}

func TestTokenSourceEmitsTokenScheme(t *testing.T) {
	tokens := NewStore(store.NewMemoryStore(), nil)

	if _, err := tokens.Token(); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}

	if _, err := tokens.Set(context.Background(), "ghp_abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	issued, err := tokens.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if issued.TokenType != "token" || issued.AccessToken != "ghp_abc" {
		t.Fatalf("token = %+v", issued)
	}
}
