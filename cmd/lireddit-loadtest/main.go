// Command lireddit-loadtest measures session throughput against Redis.
//
// Phases:
//
//	resolve  random session.Store reads
//	rotate   delete a session and save its replacement, as logout+login does
//	engine   Engine.ResolveSession on signed cookies of registered users
//
// Without -redis-addr or REDIS_ADDR it runs against miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/lireddit"
	"github.com/MrEthical07/lireddit/internal"
	"github.com/MrEthical07/lireddit/internal/memstore"
	"github.com/MrEthical07/lireddit/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type sessionState struct {
	sid    string
	userID int64
	mu     sync.Mutex
}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		users       = flag.Int("users", 64, "users registered for the engine phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest:", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewStore(client, session.Options{Prefix: *prefix})

	states := make([]sessionState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range states {
		sid, err := newSID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "session id: %v\n", err)
			os.Exit(1)
		}
		states[i].sid = sid
		states[i].userID = int64(i%1000) + 1
		if err := store.Save(ctx, buildSession(sid, states[i].userID), 24*time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := store.Get(ctx, states[r.Intn(len(states))].sid)
		return err
	})

	rotateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		return rotate(ctx, store, &states[r.Intn(len(states))])
	})

	tokens, engine, err := seedEngine(ctx, client, *prefix, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine setup: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()
	engineStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.ResolveSession(ctx, tokens[r.Intn(len(tokens))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("rotate", rotateStats)
	printStats("engine", engineStats)
}

func newSID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

func rotate(ctx context.Context, store *session.Store, state *sessionState) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	next, err := newSID()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, state.sid); err != nil {
		return err
	}
	if err := store.Save(ctx, buildSession(next, state.userID), 24*time.Hour); err != nil {
		return err
	}
	state.sid = next
	return nil
}

// seedEngine registers users through a real Engine over an in-memory store and
// returns their session cookies.
func seedEngine(ctx context.Context, client redis.UniversalClient, prefix string, users int) ([]string, *lireddit.Engine, error) {
	cfg := lireddit.DefaultConfig()
	cfg.Session.RedisPrefix = prefix + "engine:"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Account.MaxPerIP = 0
	cfg.Audit.Enabled = false

	engine, err := lireddit.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(memstore.NewUsers()).
		WithPostStore(memstore.NewPosts()).
		WithMailer(discardMailer{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return nil, nil, err
	}

	tokens := make([]string, 0, users)
	for i := 0; i < users; i++ {
		name := fmt.Sprintf("load%05d", i)
		res, err := engine.Register(ctx, lireddit.RegisterInput{
			Username: name,
			Email:    name + "@loadtest.local",
			Password: "loadtest-password",
		})
		if err != nil {
			engine.Close()
			return nil, nil, err
		}
		tokens = append(tokens, res.SessionToken)
	}
	return tokens, engine, nil
}

type discardMailer struct{}

func (discardMailer) SendMail(context.Context, string, string, string) error { return nil }

func runPhase(ops, concurrency int, op func(r *rand.Rand, worker int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r, worker)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildSession(sid string, userID int64) *session.Session {
	now := time.Now()
	return &session.Session{
		SessionID: sid,
		UserID:    userID,
		UserAgent: "lireddit-loadtest",
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
	}
}
