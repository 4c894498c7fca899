package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/pagecache/cache"
	"github.com/jonwraymond/pagecache/config"
	"github.com/jonwraymond/pagecache/csrf"
	"github.com/jonwraymond/pagecache/health"
	"github.com/jonwraymond/pagecache/observe"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the demo site through the page cache",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.addr"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		f.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, f.Observe)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return err
	}
	store, err := newFileStore(f.Cache, logger)
	if err != nil {
		return err
	}
	pc, err := newPageCache(f.Cache, store, mw)
	if err != nil {
		return err
	}
	if unknown := unknownAttributes(f.Cache.ExtraParams); len(unknown) > 0 {
		logger.Warn(ctx, "cache.extraParams names no request attribute, they will always be empty",
			observe.Field{Key: "names", Value: unknown},
			observe.Field{Key: "known", Value: knownAttributes},
		)
	}

	csrfConfig := f.CSRF.Config()
	if csrfConfig.Secret == "" {
		if csrfConfig.Secret, err = randomSecret(); err != nil {
			return err
		}
		logger.Warn(ctx, "csrf.secret not set, tokens will not survive a restart")
	}
	iss, err := csrf.NewIssuer(csrfConfig)
	if err != nil {
		return err
	}

	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 2 * time.Second})
	agg.Register("cache_dir", health.NewDirChecker("cache_dir", store))

	handler := newHandler(pc, iss, agg, logger, f.Observe.Metrics.Enabled && f.Observe.Metrics.Exporter == "prometheus")

	if path := cmd.String("config"); path != "" {
		w, err := config.Watch(path, func(nf config.File, err error) {
			if err != nil {
				logger.Warn(ctx, "config reload failed", observe.Field{Key: "error", Value: err})
				return
			}
			applyReload(pc, nf)
			logger.Info(ctx, "cache rules reloaded", observe.Field{Key: "path", Value: path})
		})
		if err != nil {
			return err
		}
		w.Start()
		defer func() { _ = w.Close() }()
	}

	srv := &http.Server{
		Addr:              f.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info(ctx, "listening",
		observe.Field{Key: "addr", Value: f.Server.Addr},
		observe.Field{Key: "cache_dir", Value: store.Dir()},
	)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), time.Duration(f.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	logger.Info(sctx, "shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHandler assembles the public mux: health endpoints, optional metrics,
// and the demo site behind csrf then cache middleware.
func newHandler(pc *cache.PageCache, iss *csrf.Issuer, agg *health.Aggregator, logger observe.Logger, metrics bool) http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	if metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	resolver := cache.PathResolver{
		DefaultRoute:  "site",
		DefaultAction: "index",
		Tokens:        csrf.Tokens,
		Attributes:    requestAttributes,
		Routes:        siteRoutes,
	}
	mux.Handle("/", csrf.Middleware(iss, logger)(cache.Middleware(pc, resolver)(newSite())))
	return mux
}

// applyReload swaps the parts of a reloaded file that can change at runtime.
func applyReload(pc *cache.PageCache, f config.File) {
	pc.Rules().Reset(f.Cache.Rules())
	pc.Eligibility().SetDisabled(f.Cache.Disabled)
}

func randomSecret() (string, error) {
	b := make([]byte, csrf.MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
