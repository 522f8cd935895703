package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/lireddit"
	"github.com/MrEthical07/lireddit/internal/memstore"
	"github.com/MrEthical07/lireddit/mailer"
	otelexport "github.com/MrEthical07/lireddit/metrics/export/otel"
	promexport "github.com/MrEthical07/lireddit/metrics/export/prometheus"
	"github.com/MrEthical07/lireddit/server"
	"github.com/MrEthical07/lireddit/storage/postgres"
	"github.com/MrEthical07/lireddit/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	users lireddit.UserStore
	posts lireddit.PostStore
	close func()
}

func (a *app) openStores(ctx context.Context) (stores, error) {
	if a.store == storeMemory {
		a.logger.Warn("using in-memory store; data is lost on exit")
		return stores{users: memstore.NewUsers(), posts: memstore.NewPosts(), close: func() {}}, nil
	}
	pg, err := postgres.Open(ctx, a.cfg.Database)
	if err != nil {
		return stores{}, err
	}
	return stores{users: pg, posts: pg, close: pg.Close}, nil
}

func (a *app) serve(ctx context.Context) (err error) {
	cfg := a.cfg

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	rdb := redis.NewUniversalClient(cfg.Redis.UniversalOptions())
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	mail, err := mailer.New(cfg.Mail, a.logger)
	if err != nil {
		return err
	}

	engine, err := lireddit.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(st.users).
		WithPostStore(st.posts).
		WithMailer(mail).
		WithLogger(a.logger).
		Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		promexport.NewExporter(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tel, err := telemetry.New(ctx, cfg.Telemetry, reg)
	if err != nil {
		return err
	}
	tel.Install()
	defer func() {
		err = errors.Join(err, tel.Shutdown(context.WithoutCancel(ctx)))
	}()
	if cfg.Telemetry.MetricExporter != "none" {
		bridge, err := otelexport.NewExporter(tel.Meter(), engine)
		if err != nil {
			return err
		}
		defer bridge.Close()
	}

	srv, err := server.New(server.Deps{Engine: engine, Logger: a.logger, Gatherer: reg})
	if err != nil {
		return err
	}
	a.logger.Info("starting lireddit",
		"addr", cfg.Server.Addr(),
		"store", a.store,
		"graphql_path", cfg.GraphQL.Path,
	)
	return srv.ListenAndServe(ctx)
}

func (a *app) migrate(ctx context.Context) error {
	if a.store != storePostgres {
		return errors.New("migrate requires --store=postgres")
	}
	pg, err := postgres.Open(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	a.logger.Info("schema applied", "database", a.cfg.Database.Name)
	return nil
}
