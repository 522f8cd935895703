package lireddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]UserRecord
	fail   error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[int64]UserRecord)}
}

func (s *memUserStore) find(match func(UserRecord) bool) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return UserRecord{}, s.fail
	}
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return UserRecord{}, fmt.Errorf("user: %w", ErrNotFound)
}

func (s *memUserStore) GetUserByID(_ context.Context, id int64) (UserRecord, error) {
	return s.find(func(u UserRecord) bool { return u.ID == id })
}

func (s *memUserStore) GetUserByUsername(_ context.Context, username string) (UserRecord, error) {
	return s.find(func(u UserRecord) bool { return u.Username == username })
}

func (s *memUserStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	return s.find(func(u UserRecord) bool { return u.Email == email })
}

func (s *memUserStore) CreateUser(_ context.Context, username, email, passwordHash string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return UserRecord{}, s.fail
	}
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return UserRecord{}, fmt.Errorf("user: %w", ErrDuplicate)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	rec := UserRecord{
		User: User{
			ID:        s.nextID,
			Username:  username,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: passwordHash,
	}
	s.users[rec.ID] = rec
	return rec, nil
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	rec, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	rec.PasswordHash = passwordHash
	rec.UpdatedAt = time.Now().UTC()
	s.users[id] = rec
	return nil
}

func (s *memUserStore) Ping(context.Context) (time.Duration, error) {
	return 0, nil
}

func (s *memUserStore) hash(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].PasswordHash
}

type memPostStore struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]Post
}

func newMemPostStore() *memPostStore {
	return &memPostStore{posts: make(map[int64]Post)}
}

func (s *memPostStore) ListPosts(context.Context) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memPostStore) GetPost(_ context.Context, id int64) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, fmt.Errorf("post: %w", ErrNotFound)
	}
	return p, nil
}

func (s *memPostStore) CreatePost(_ context.Context, title, text string, authorID int64) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	p := Post{ID: s.nextID, Title: title, Text: text, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
	s.posts[p.ID] = p
	return p, nil
}

func (s *memPostStore) UpdatePostTitle(_ context.Context, id int64, title string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return Post{}, fmt.Errorf("post: %w", ErrNotFound)
	}
	p.Title = title
	p.UpdatedAt = time.Now().UTC()
	s.posts[id] = p
	return p, nil
}

func (s *memPostStore) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("post: %w", ErrNotFound)
	}
	delete(s.posts, id)
	return nil
}

type sentMail struct {
	To, Subject, HTML string
}

type memMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *memMailer) SendMail(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *memMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type testEnv struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *memUserStore
	posts  *memPostStore
	mailer *memMailer
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *testEnv) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		mr:     mr,
		rdb:    rdb,
		users:  newMemUserStore(),
		posts:  newMemPostStore(),
		mailer: &memMailer{},
	}
	return env.engine(t, cfg), env
}

// engine builds another Engine over the same Redis and stores.
func (env *testEnv) engine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(env.rdb).
		WithUserStore(env.users).
		WithPostStore(env.posts).
		WithMailer(env.mailer).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

// registerAndAuth registers a user and returns a ctx carrying its session.
func registerAndAuth(t *testing.T, e *Engine, username string) (context.Context, *AuthResult) {
	t.Helper()
	ctx := context.Background()
	res, err := e.Register(ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionToken)

	info, err := e.ResolveSession(ctx, res.SessionToken)
	require.NoError(t, err)
	return WithSession(ctx, info), res
}

var errBoom = errors.New("boom")
