package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cumbres7/dashboard/assets"
	"github.com/cumbres7/dashboard/internal"
	"github.com/cumbres7/dashboard/internal/keystone"
	"github.com/cumbres7/dashboard/internal/markdown"
	"github.com/cumbres7/dashboard/internal/members"
	"github.com/cumbres7/dashboard/internal/web"
	"github.com/cumbres7/dashboard/internal/web/sessions"
	"github.com/cumbres7/dashboard/internal/web/view"
)

func main() {
	// A .env file is optional, variables already in the environment win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	cfg, cfgErr := configFromEnv()

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: cfg.logLevel,
	}))

	if cfgErr != nil {
		logger.Error("failed to get config from environment", "error", cfgErr)
		return 1
	}

	logger.Debug("loaded config",
		"addr", cfg.http.addr,
		"viewDir", cfg.http.viewDir,
		"secureCookie", cfg.http.server.SecureCookie,
		"loginRate", cfg.http.server.LoginRate,
		"loginBurst", cfg.http.server.LoginBurst,
		"graphqlTimeout", cfg.graphql.timeout,
		"graphqlToken", cfg.graphql.settings.Token,
	)

	viewRenderer, err := newViewRenderer(logger, cfg.http.viewDir)
	if err != nil {
		logger.Error("failed to create view renderer", "error", err)
		return 1
	}

	apiClient := keystone.NewClient(&http.Client{
		Timeout: cfg.graphql.timeout,
	}, cfg.graphql.settings)

	server := web.NewServer(&web.ServerDeps{
		Logger:       logger,
		ViewRenderer: viewRenderer,
		Members:      members.NewService(apiClient),
		Markdown:     markdown.NewRenderer(),
		SessionStore: sessions.NewCookieStore(cfg.http.cookieKeys, cfg.http.server.SecureCookie),
		DistFS:       http.FS(assets.DistFS),
	}, cfg.http.server)

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler:      server,
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"graphqlEndpoint", cfg.graphql.settings.Endpoint.String(),
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

// newViewRenderer renders the embedded templates, unless dir is set. Templates
// on disk are parsed on every render so changes show up without a restart.
func newViewRenderer(logger *slog.Logger, dir string) (web.ViewRenderer, error) {
	if dir != "" {
		logger.Info("loading templates from disk", "dir", dir)
		return view.NewFSRenderer(os.DirFS(dir)), nil
	}

	r, err := view.NewMemRenderer(assets.TemplateFS)
	if err != nil {
		return nil, err
	}

	return r, nil
}
