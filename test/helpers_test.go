//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MrEthical07/lireddit"
	"github.com/MrEthical07/lireddit/internal/memstore"
	"github.com/MrEthical07/lireddit/mailer"
	"github.com/MrEthical07/lireddit/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPrefix = "lireddit:"

func newIntegrationStore(t *testing.T) (*session.Store, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(rdb, session.Options{Prefix: testPrefix})

	return store, mr, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func makeSession(userID int64, sessionID string, ttl time.Duration) *session.Session {
	now := time.Now()
	return &session.Session{
		SessionID: sessionID,
		UserID:    userID,
		UserAgent: "integration/1.0",
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// newIntegrationEngine builds an Engine over rdb with in-memory stores and
// cheap password hashing.
func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient) *lireddit.Engine {
	t.Helper()

	cfg := lireddit.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Account.MaxPerIP = 0
	cfg.Audit.Enabled = false
	cfg.Session.RedisPrefix = testPrefix

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := lireddit.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(memstore.NewUsers()).
		WithPostStore(memstore.NewPosts()).
		WithMailer(mailer.NewLog(logger, cfg.Mail.From)).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func registerUser(t *testing.T, engine *lireddit.Engine, username string) *lireddit.AuthResult {
	t.Helper()
	res, err := engine.Register(context.Background(), lireddit.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	if res.SessionToken == "" {
		t.Fatalf("Register(%s) returned no session", username)
	}
	return res
}
