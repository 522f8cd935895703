package lireddit

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func newBenchmarkEngine(b *testing.B) (*Engine, *AuthResult) {
	b.Helper()
	_, rdb := newTestRedis(b)

	cfg := testConfig()
	cfg.Account.MaxPerIP = 0
	cfg.Security.MaxLoginAttempts = 0
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(newMemUserStore()).
		WithPostStore(newMemPostStore()).
		WithMailer(&memMailer{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		b.Fatalf("build failed: %v", err)
	}
	b.Cleanup(engine.Close)

	res, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		b.Fatalf("register failed: %v", err)
	}
	return engine, res
}

func BenchmarkResolveSession(b *testing.B) {
	engine, res := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ResolveSession(context.Background(), res.SessionToken); err != nil {
			b.Fatalf("resolve failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	engine, _ := newBenchmarkEngine(b)
	input := LoginInput{UsernameOrEmail: "alice", Password: "correct-horse"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := engine.Login(context.Background(), input)
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		info, err := engine.ResolveSession(context.Background(), res.SessionToken)
		if err != nil {
			b.Fatalf("resolve failed: %v", err)
		}
		_, _ = engine.Logout(WithSession(context.Background(), info))
	}
}

func BenchmarkPosts(b *testing.B) {
	engine, res := newBenchmarkEngine(b)
	ctx := WithSession(context.Background(), SessionInfo{SessionID: res.SessionID, UserID: res.User.ID})
	for i := 0; i < 50; i++ {
		if _, err := engine.CreatePost(ctx, PostInput{Title: "benchmark post", Text: "body"}); err != nil {
			b.Fatalf("create post failed: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Posts(ctx); err != nil {
			b.Fatalf("posts failed: %v", err)
		}
	}
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricLoginSuccess)
		}
	})
}
