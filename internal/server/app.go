// Package server wires the gatekeeper service together: storage and
// migrations, seed accounts, services, the HTTP API and the supervisor
// tree running it.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/abtime"
	"github.com/thejerf/suture/v4"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/gatekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/dmitrijs2005/gatekeeper/internal/server/session"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	userService *services.UserService
	server      *httpapi.Server
	janitor     *session.Janitor
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	if c.SessionValidityDuration <= 0 {
		return nil, fmt.Errorf("%w: session validity must be positive, got %s",
			common.ErrorValidation, c.SessionValidityDuration)
	}

	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, rm, err := repomanager.Open(ctx, c.DatabaseDSN, c.IsSQLite(), c.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(c.PasswordHashCost)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clock := abtime.NewRealTime()
	registry := session.NewRegistry(c.SessionValidityDuration, clock)
	tokens := csrf.NewService(registry)

	us := services.NewUserService(db, rm, hasher, clock, logger)
	authenticator := services.NewAuthenticator(services.NewCredentialVerifier(db, rm, hasher), tokens, registry, logger)

	h := httpapi.NewHandler(logger, us, authenticator, tokens, registry,
		auth.NewTokenIssuer([]byte(c.SecretKey), c.SessionValidityDuration, clock), nil, c.SecureCookies)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		userService: us,
		server:      httpapi.NewServer(c.EndpointAddrHTTP, httpapi.NewRouter(h), logger),
		janitor:     session.NewJanitor(registry, 0, clock, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// bootstrap seeds the two initial accounts on an empty store.
func (app *App) bootstrap(ctx context.Context) error {
	created, err := app.userService.Bootstrap(ctx, services.SeedPasswords{
		User:  app.config.BootstrapUserPassword,
		Admin: app.config.BootstrapAdminPassword,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if app.config.UsesDefaultBootstrapPasswords() {
		app.logger.Warn(ctx, "seed accounts use built-in default passwords; rotate them with the passwd tool before exposing the service")
	}
	return nil
}

func (app *App) supervisor() *suture.Supervisor {
	sup := suture.New("gatekeeper", suture.Spec{
		EventHook: func(e suture.Event) {
			app.logger.Warn(context.Background(), "supervisor event", "event", e.String())
		},
	})
	sup.Add(app.server)
	sup.Add(app.janitor)
	return sup
}

// Run serves until a termination signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()
	defer func() { _ = logging.Sync(app.logger) }()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap error: %w", err)
	}

	if err := app.server.Listen(); err != nil {
		return fmt.Errorf("http server error: %w", err)
	}

	// a cancelled ctx is the normal way out
	if err := app.supervisor().Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	app.logger.Info(context.Background(), "App stopped")
	return nil
}
