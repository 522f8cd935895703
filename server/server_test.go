package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/lireddit"
	"github.com/MrEthical07/lireddit/internal/memstore"
	promexport "github.com/MrEthical07/lireddit/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	engine *lireddit.Engine
	users  *memstore.Users
	mr     *miniredis.Miniredis
}

func newFixture(t *testing.T, mutate func(*lireddit.Config)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := lireddit.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	cfg.Server.ShutdownTimeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	users := memstore.NewUsers()
	engine, err := lireddit.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithPostStore(memstore.NewPosts()).
		WithMailer(nopMailer{}).
		WithLogger(discard()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return &fixture{engine: engine, users: users, mr: mr}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopMailer struct{}

func (nopMailer) SendMail(context.Context, string, string, string) error { return nil }

func newServer(t *testing.T, f *fixture, gatherer prometheus.Gatherer) *Server {
	t.Helper()
	srv, err := New(Deps{Engine: f.engine, Logger: discard(), Gatherer: gatherer})
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

const registerMutation = `mutation Register($u: CreateUserInput!) { register(userInput: $u) { id username } }`

func registerRequest(t *testing.T, origin string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"query":         registerMutation,
		"operationName": "Register",
		"variables": map[string]any{"u": map[string]any{
			"username": "alice", "email": "alice@example.com", "password": "correct-horse",
		}},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestGraphQLRouteSetsCookieAndCORS(t *testing.T) {
	f := newFixture(t, nil)
	srv := newServer(t, f, nil)

	w := serve(srv, registerRequest(t, "http://localhost:3000"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	var names []string
	for _, c := range w.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "qid")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)
	srv := newServer(t, f, nil)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := serve(srv, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = serve(srv, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNoCORSOrigins(t *testing.T) {
	f := newFixture(t, func(c *lireddit.Config) { c.Server.CORSOrigins = nil })
	srv := newServer(t, f, nil)

	w := serve(srv, registerRequest(t, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGraphQLPathFromConfig(t *testing.T) {
	f := newFixture(t, func(c *lireddit.Config) { c.GraphQL.Path = "/api/graphql" })
	srv := newServer(t, f, nil)

	w := serve(srv, registerRequest(t, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := registerRequest(t, "")
	req.URL.Path = "/api/graphql"
	w = serve(srv, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	srv := newServer(t, f, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Len(t, body.Checks, 2)

	f.users.FailWith(errors.New("connection refused"))
	w = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, nil)
	reg := prometheus.NewRegistry()
	reg.MustRegister(promexport.NewExporter(f.engine))
	srv := newServer(t, f, reg)

	require.Equal(t, http.StatusOK, serve(srv, registerRequest(t, "")).Code)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lireddit_register_success_total 1")
	assert.Contains(t, w.Body.String(), "lireddit_session_created_total 1")
}

func TestMetricsRouteDisabled(t *testing.T) {
	f := newFixture(t, nil)
	srv := newServer(t, f, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecoveryReturns500(t *testing.T) {
	f := newFixture(t, nil)
	srv := newServer(t, f, nil)
	srv.router.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTrustedProxies(t *testing.T) {
	f := newFixture(t, func(c *lireddit.Config) { c.Server.TrustedProxies = []string{"not-an-ip"} })
	_, err := New(Deps{Engine: f.engine, Logger: discard()})
	require.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	srv := newServer(t, f, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
