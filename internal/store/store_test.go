package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	kv := NewMemoryStore()
	ctx := context.Background()

	if _, err := kv.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := kv.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kv.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "value" {
		t.Fatalf("got = %q", got)
	}

	if err := kv.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
	if err := kv.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	kv, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := kv.Set(ctx, "gitboard:token", "ghp_secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kv.Get(ctx, "gitboard:token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ghp_secret" {
		t.Fatalf("got = %q", got)
	}

	if err := kv.Delete(ctx, "gitboard:token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "gitboard:token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestFileStoreHashesKeyNames(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := kv.Set(context.Background(), "../escape/attempt", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != "" || len(entries[0].Name()) != 64 {
		t.Fatalf("file name %q is not a hex digest", entries[0].Name())
	}
}

func TestFileStoreCreatesDirectoryWithRestrictivePerms(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "nested", "store")

	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("perm = %o, want 700", info.Mode().Perm())
	}
}

type fakeRedis struct {
	values map[string]string
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	value, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.values[key] = value.(string)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	removed := int64(0)
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	fake := &fakeRedis{values: make(map[string]string)}
	kv := newRedisStoreFromCommander(fake, nil, RedisStoreConfig{Namespace: "testns"})
	ctx := context.Background()

	if err := kv.Set(ctx, "gitboard:token", "ghp_abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := fake.values["testns:gitboard:token"]; !ok {
		t.Fatalf("namespaced key missing, have %v", fake.values)
	}

	got, err := kv.Get(ctx, "gitboard:token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ghp_abc" {
		t.Fatalf("got = %q", got)
	}

	if err := kv.Delete(ctx, "gitboard:token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "gitboard:token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRedisStoreDefaultNamespace(t *testing.T) {
	fake := &fakeRedis{values: make(map[string]string)}
	kv := newRedisStoreFromCommander(fake, nil, RedisStoreConfig{})

	if err := kv.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := fake.values["gitboard:k"]; !ok {
		t.Fatalf("default namespace not applied, have %v", fake.values)
	}
}
