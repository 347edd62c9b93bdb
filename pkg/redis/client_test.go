package redis

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/poslane/pkg/config"
	goredis "github.com/redis/go-redis/v9"
)

type stubStore struct {
	values map[string]string
	pings  int
}

func newStubStore() *stubStore {
	return &stubStore{values: map[string]string{}}
}

func (s *stubStore) Ping(ctx context.Context) *goredis.StatusCmd {
	s.pings++
	cmd := goredis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (s *stubStore) Set(ctx context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	s.values[key] = value.(string)
	cmd := goredis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubStore) Get(ctx context.Context, key string) *goredis.StringCmd {
	cmd := goredis.NewStringCmd(ctx)
	if val, ok := s.values[key]; ok {
		cmd.SetVal(val)
	} else {
		cmd.SetErr(goredis.Nil)
	}
	return cmd
}

func (s *stubStore) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	for _, key := range keys {
		delete(s.values, key)
	}
	cmd := goredis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestCartKeyNamespacing(t *testing.T) {
	t.Parallel()

	client := &Client{}
	if got := client.CartKey("abc"); got != "pl:cart:abc" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestSetGetDelRoundTrip(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	client := &Client{store: store}
	ctx := context.Background()

	key := client.CartKey("c1")
	if err := client.Set(ctx, key, "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "payload" {
		t.Fatalf("unexpected value: %s", val)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); err != Nil {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	t.Parallel()

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", PoolSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.PoolSize != 3 {
		t.Fatalf("options not applied: %+v", opts)
	}
}
