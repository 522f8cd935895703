package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/lireddit"
	"github.com/MrEthical07/lireddit/graphql"
	"github.com/MrEthical07/lireddit/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the collaborators of a Server.
type Deps struct {
	Engine *lireddit.Engine
	Logger *slog.Logger
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg    lireddit.ServerConfig
	router *gin.Engine
	logger *slog.Logger
	http   *http.Server
}

// New builds the router. It does not listen.
func New(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("server: nil engine")
	}
	logger := deps.Logger
	if logger == nil {
		logger = deps.Engine.Logger()
	}
	cfg := deps.Engine.Config()

	gql, err := graphql.NewHandler(deps.Engine, graphql.OptionsFromConfig(cfg.GraphQL, logger))
	if err != nil {
		return nil, fmt.Errorf("server: graphql: %w", err)
	}

	router := gin.New()
	var proxies []string
	if len(cfg.Server.TrustedProxies) > 0 {
		proxies = cfg.Server.TrustedProxies
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}

	router.Use(
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			logger.ErrorContext(c.Request.Context(), "panic recovered",
				"path", c.Request.URL.Path,
				"panic", fmt.Sprint(recovered),
			)
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		otelgin.Middleware(cfg.Telemetry.ServiceName),
		middleware.RequestContext(),
		middleware.AccessLog(logger),
	)
	// cors.New panics without origins; no origins means same-origin only.
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(cfg.Server)))
	}
	router.Use(middleware.Session(deps.Engine, logger))

	router.POST(cfg.GraphQL.Path, gin.WrapH(gql))
	router.GET("/healthz", healthHandler(deps.Engine))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{
		cfg:    cfg.Server,
		router: router,
		logger: logger,
	}, nil
}

func corsConfig(cfg lireddit.ServerConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowOrigins = cfg.CORSOrigins
	c.AllowCredentials = true
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	c.MaxAge = 12 * time.Hour
	return c
}

type healthResponse struct {
	OK     bool                    `json:"ok"`
	Checks []lireddit.HealthStatus `json:"checks"`
}

func healthHandler(engine *lireddit.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, checks := engine.Health(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, healthResponse{OK: ok, Checks: checks})
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx := context.WithoutCancel(ctx)
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}
