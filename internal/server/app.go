// Package server initializes and runs the identity server: storage, the
// identity service, the HTTP and gRPC APIs, tracing and the refresh token
// janitor, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/config"
	"github.com/dmitrijs2005/identity/internal/server/httpapi"
	"github.com/dmitrijs2005/identity/internal/server/metrics"
	"github.com/dmitrijs2005/identity/internal/server/repositories/memory"
	"github.com/dmitrijs2005/identity/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/identity/internal/server/services"
	"github.com/dmitrijs2005/identity/internal/server/tokens"
	"github.com/dmitrijs2005/identity/internal/telemetry"

	gs "github.com/dmitrijs2005/identity/internal/server/grpc"
)

const (
	serviceName = "identity"

	purgeEvery = time.Hour
	// consumed and expired tokens are kept this long for reuse forensics
	purgeGrace = 24 * time.Hour
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	service *services.IdentityService
	issuer  *tokens.Issuer
	closeDB func() error
}

// NewApp validates c, opens storage (running migrations for PostgreSQL) and
// builds the identity service.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, repos, closeDB, err := openStorage(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	svc, issuer, err := services.Build(c, db, repos, logger)
	if err != nil {
		_ = closeDB()
		return nil, err
	}

	return &App{
		config:  c,
		logger:  logger,
		service: svc,
		issuer:  issuer,
		closeDB: closeDB,
	}, nil
}

func openStorage(ctx context.Context, c *config.Config) (dbx.Transactor, repomanager.RepositoryManager, func() error, error) {
	if c.StorageDriver == config.StorageMemory {
		store := memory.NewStore()
		return store, repomanager.NewMemoryRepositoryManager(store), func() error { return nil }, nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, dbx.Classify(err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}

	return dbx.NewSQLTransactor(db, nil), repos, db.Close, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
		return fmt.Errorf("grpc: %w", err)
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	router := httpapi.NewRouter(app.service, app.logger, httpapi.Options{
		LoginRateLimit: app.config.LoginRateLimit,
		LoginRateBurst: app.config.LoginRateBurst,
	})
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// runJanitor deletes long-dead refresh tokens every purgeEvery.
func (app *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(purgeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.purge(ctx)
		}
	}
}

func (app *App) purge(ctx context.Context) {
	n, err := app.issuer.PurgeExpired(ctx, purgeGrace)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			app.logger.Error(ctx, "refresh token purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		app.logger.Info(ctx, "purged refresh tokens", "count", n)
	}
}

// Run serves until ctx is cancelled or a signal arrives, then shuts every
// component down and closes storage.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver)
	reg := app.service.Registry()
	app.logger.Info(ctx, "claim registry loaded", "types", reg.Types(), "values", reg.Values())

	app.initSignalHandler(cancelFunc)
	metrics.Init()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, app.config.OTLPEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
	}

	var (
		wg              sync.WaitGroup
		grpcErr, webErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		grpcErr = app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		webErr = app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.runJanitor(ctx)
	}()

	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	return errors.Join(grpcErr, webErr, shutdownTracing(flushCtx), app.closeDB())
}
