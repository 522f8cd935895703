//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/lireddit/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite runs against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a real standalone server is used when REDIS_ADDR is set and a
// sentinel-managed one when REDIS_SENTINEL_ADDRS is set.
//
// Cluster is not listed: the session key and its user index hash to
// different slots.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis sentinel: %v", err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func TestRedisCompat_SaveGet(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, session.Options{Prefix: testPrefix})
			ctx := context.Background()

			if err := store.Save(ctx, makeSession(7, "sid-get", time.Hour), time.Hour); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := store.Get(ctx, "sid-get")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.UserID != 7 {
				t.Errorf("got UserID=%d, want 7", got.UserID)
			}
			if got.SessionID != "sid-get" {
				t.Errorf("got SessionID=%q, want sid-get", got.SessionID)
			}
			if got.UserAgent != "integration/1.0" {
				t.Errorf("got UserAgent=%q", got.UserAgent)
			}
		})
	}
}

func TestRedisCompat_DeleteIdempotent(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, session.Options{Prefix: testPrefix})
			ctx := context.Background()

			if err := store.Save(ctx, makeSession(7, "sid-del", time.Hour), time.Hour); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := store.Delete(ctx, "sid-del"); err != nil {
				t.Fatalf("first delete: %v", err)
			}
			if err := store.Delete(ctx, "sid-del"); err != nil {
				t.Fatalf("second delete should be idempotent: %v", err)
			}
			if _, err := store.Get(ctx, "sid-del"); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestRedisCompat_UserIndex(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(rdb, session.Options{Prefix: testPrefix})
			ctx := context.Background()

			for _, sid := range []string{"sid-a", "sid-b", "sid-c"} {
				if err := store.Save(ctx, makeSession(8, sid, time.Hour), time.Hour); err != nil {
					t.Fatalf("save %s: %v", sid, err)
				}
			}

			ids, err := store.ActiveSessionIDs(ctx, 8)
			if err != nil {
				t.Fatalf("active: %v", err)
			}
			if len(ids) != 3 {
				t.Errorf("expected 3 active sessions, got %d", len(ids))
			}

			if err := store.Delete(ctx, "sid-a"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			ids, err = store.ActiveSessionIDs(ctx, 8)
			if err != nil {
				t.Fatalf("active after delete: %v", err)
			}
			if len(ids) != 2 {
				t.Errorf("expected 2 active sessions after delete, got %d", len(ids))
			}

			n, err := store.DeleteAllForUser(ctx, 8)
			if err != nil {
				t.Fatalf("delete all: %v", err)
			}
			if n != 2 {
				t.Errorf("expected 2 deleted sessions, got %d", n)
			}
		})
	}
}

func TestRedisCompat_EngineRoundTrip(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			engine := newIntegrationEngine(t, rdb)
			res := registerUser(t, engine, "compat")

			if _, err := engine.ResolveSession(context.Background(), res.SessionToken); err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if _, err := engine.ForgotPassword(context.Background(), "compat@example.com"); err != nil {
				t.Fatalf("forgot password: %v", err)
			}
		})
	}
}
