// Package server wires the reference backend: Postgres storage, the
// payment intent services, the HTTP API, the gRPC health service and the
// optional S3 receipt archive. Run blocks until a signal or ctx ends it.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/paykiosk/internal/logging"
	"github.com/dmitrijs2005/paykiosk/internal/server/config"
	"github.com/dmitrijs2005/paykiosk/internal/server/db"
	"github.com/dmitrijs2005/paykiosk/internal/server/httpapi"
	"github.com/dmitrijs2005/paykiosk/internal/server/receipts"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/paykiosk/internal/server/services"

	gs "github.com/dmitrijs2005/paykiosk/internal/server/grpc"
)

// seams for tests
var (
	openDB         = db.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
	newArchive     = func(ctx context.Context, c *config.Config) (receipts.Archive, error) {
		return receipts.NewS3Archive(ctx, c)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	grpc   *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, "info", "json")

	conn, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var archive receipts.Archive = receipts.Nop{}
	if c.ReceiptsEnabled() {
		archive, err = newArchive(ctx, c)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("receipt archive init error: %w", err)
		}
		logger.Info(ctx, "Receipt archive enabled", "bucket", c.S3Bucket)
	}

	intents := services.NewIntentService(conn, rm, archive, logger)
	locations := services.NewLocationService(conn, rm, logger)
	tokens := services.NewTokenService(c.SecretKey, c.ConnectionTokenValidityDuration)

	handler := httpapi.NewHandler(intents, locations, tokens, conn, logger)

	return &App{
		config: c,
		logger: logger,
		db:     conn,
		http:   httpapi.NewServer(c.EndpointAddrHTTP, handler, logger),
		grpc:   gs.NewGRPCServer(c.EndpointAddrGRPC, logger, conn),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// runServer runs one listener; its failure stops the whole app.
func (app *App) runServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
