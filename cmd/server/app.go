package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/task-api/internal/api"
	"github.com/phrazzld/task-api/internal/config"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/platform/postgres"
	"github.com/phrazzld/task-api/internal/service/auth"
)

// application bundles the initialized components of the server process.
type application struct {
	cfg    *config.Config
	db     *sql.DB
	logger *slog.Logger
	router *api.Router
}

// initializeApp loads configuration and sets up application components:
// logging, the database connection, migrations, stores, services and the
// HTTP router.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("Database migrations applied")

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db, appLogger)
	userStore := postgres.NewPostgresUserStore(db, appLogger, cfg.Auth.BcryptCost)

	router := api.NewRouter(api.RouterDeps{
		TaskStore:        taskStore,
		UserStore:        userStore,
		JWTService:       jwtService,
		PasswordVerifier: auth.NewBcryptVerifier(),
		AuthConfig:       &cfg.Auth,
		Logger:           appLogger,
	})

	return &application{
		cfg:    cfg,
		db:     db,
		logger: appLogger,
		router: router,
	}, nil
}

// Run serves HTTP until shutdown.
func (a *application) Run() error {
	return serveHTTP(a.cfg.Server, a.router, a.logger)
}

// Close releases the application's resources.
func (a *application) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}
