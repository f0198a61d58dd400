package cache

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"
)

type testPayload struct {
	Name string `json:"name"`
}

func newTestCacheService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mini := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mini.Addr())
	if err != nil {
		t.Fatalf("failed to split address: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{net.JoinHostPort(host, portStr)},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("failed to create valkey client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		t.Fatalf("failed to ping miniredis: %v", err)
	}
	svc := &Service{client: client, logger: logger}

	t.Cleanup(func() {
		_ = svc.Close()
		mini.Close()
	})

	return svc, mini
}

func TestCacheServiceSetGetAndExists(t *testing.T) {
	svc, mini := newTestCacheService(t)
	ctx := context.Background()

	value := testPayload{Name: "value"}
	if err := svc.Set(ctx, "key", value, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got testPayload
	if err := svc.Get(ctx, "key", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "value" {
		t.Fatalf("unexpected value: %+v", got)
	}

	exists, err := svc.Exists(ctx, "key")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected key to exist")
	}

	if err := svc.Expire(ctx, "key", time.Second); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	mini.FastForward(2 * time.Second)

	exists, err = svc.Exists(ctx, "key")
	if err != nil {
		t.Fatalf("exists after expire failed: %v", err)
	}
	if exists {
		t.Fatalf("expected key to expire")
	}
}

func TestCacheServiceGetMissingKeyIsNotError(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	var got testPayload
	if err := svc.Get(ctx, "missing", &got); err != nil {
		t.Fatalf("get of missing key returned error: %v", err)
	}
	if got.Name != "" {
		t.Fatalf("dest should be untouched for missing key, got %+v", got)
	}

	_, found, err := svc.GetString(ctx, "missing")
	if err != nil {
		t.Fatalf("getstring of missing key returned error: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for missing key")
	}
}

func TestCacheServiceIncrBy(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	got, err := svc.IncrBy(ctx, "counter", 7)
	if err != nil {
		t.Fatalf("incrby failed: %v", err)
	}
	if got != 7 {
		t.Fatalf("first incrby = %d, expected 7", got)
	}

	got, err = svc.IncrBy(ctx, "counter", 100)
	if err != nil {
		t.Fatalf("second incrby failed: %v", err)
	}
	if got != 107 {
		t.Fatalf("second incrby = %d, expected 107", got)
	}

	value, err := svc.GetInt64(ctx, "counter")
	if err != nil {
		t.Fatalf("getint64 failed: %v", err)
	}
	if value != 107 {
		t.Fatalf("getint64 = %d, expected 107", value)
	}

	missing, err := svc.GetInt64(ctx, "no-such-counter")
	if err != nil {
		t.Fatalf("getint64 of missing counter returned error: %v", err)
	}
	if missing != 0 {
		t.Fatalf("getint64 of missing counter = %d, expected 0", missing)
	}
}

func TestCacheServiceSetStringAndDel(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.SetString(ctx, "flag", "true", time.Hour); err != nil {
		t.Fatalf("setstring failed: %v", err)
	}

	value, found, err := svc.GetString(ctx, "flag")
	if err != nil {
		t.Fatalf("getstring failed: %v", err)
	}
	if !found || value != "true" {
		t.Fatalf("getstring = (%q, %v), expected (true, true)", value, found)
	}

	if err := svc.Del(ctx, "flag"); err != nil {
		t.Fatalf("del failed: %v", err)
	}

	exists, err := svc.Exists(ctx, "flag")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatalf("expected key deleted")
	}
}
