// Package server initializes and runs the identity service: storage,
// migrations, the HTTP API, tracing and the expired-code janitor.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nrana15/clio/internal/logging"
	"github.com/nrana15/clio/internal/server/api"
	"github.com/nrana15/clio/internal/server/config"
	"github.com/nrana15/clio/internal/server/repositories/repomanager"
	"github.com/nrana15/clio/internal/server/services"
	"github.com/nrana15/clio/internal/telemetry"
)

const (
	serviceName    = "clio-identity"
	purgeInterval  = time.Minute
	shutdownBudget = 5 * time.Second
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	identity *services.IdentityService
	server   *api.Server
	shutdown func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	shutdown, err := telemetry.Setup(ctx, serviceName, c.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	db, err := repomanager.OpenDatabase(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLiteRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	if c.DevMode() {
		logger.Warn(ctx, "Development mode: OTP codes are returned in responses")
	}

	identity := services.NewIdentityService(db, rm, c, logger)
	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		identity: identity,
		server:   api.NewServer(c.Addr, logger, identity),
		shutdown: shutdown,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// purgeExpired removes stale challenges until ctx is done.
func (app *App) purgeExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.identity.PurgeExpiredOtps(ctx)
			if err != nil {
				app.logger.Error(ctx, "purge expired codes", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Debug(ctx, "purged expired codes", "count", n)
			}
		}
	}
}

// Run serves until a signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})
	g.Go(func() error {
		app.purgeExpired(gctx, purgeInterval)
		return nil
	})

	err := g.Wait()
	app.close()
	return err
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancel()

	if err := app.shutdown(ctx); err != nil {
		app.logger.Error(ctx, "telemetry shutdown", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
