package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-student-records/internal/auth"
	"go-student-records/internal/config"
	"go-student-records/internal/database"
	"go-student-records/internal/handler"
	"go-student-records/internal/middleware"
	"go-student-records/internal/repository"
	"go-student-records/internal/repository/memory"
	"go-student-records/internal/router"
	"go-student-records/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

// stores groups the persistence backends selected by STORE_DRIVER.
type stores struct {
	accounts service.AccountStore
	users    service.UserStore
	courses  service.CourseStore
	audit    service.AuditStore
	health   router.HealthFunc
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	st, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	auditService := service.NewAuditService(st.audit)
	accountService := service.NewAccountService(st.accounts, tokens, auditService, cfg.BcryptCost)
	userService := service.NewUserService(st.users)
	courseService := service.NewCourseService(st.courses, auditService)

	if err := accountService.EnsureAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to seed admin account: %w", err)
	}

	appRouter := router.New(cfg,
		middleware.NewAuthenticator(tokens, st.accounts),
		middleware.NewAuthorizer(auth.NewEvaluator(st.courses)),
		router.Handlers{
			Auth:    handler.NewAuthHandler(accountService),
			Account: handler.NewAccountHandler(accountService),
			User:    handler.NewUserHandler(userService, courseService),
			Course:  handler.NewCourseHandler(courseService),
			Audit:   handler.NewAuditHandler(auditService),
		},
		st.health,
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, cleanupFuncs: []func(){cleanup}}, nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		mem := memory.New()
		return stores{
			accounts: mem.Accounts(),
			users:    mem.Users(),
			courses:  mem.Courses(),
			audit:    mem.Audit(),
		}, func() {}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return stores{}, nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	slog.Info("database ready")
	return stores{
		accounts: repository.NewAccountRepository(pool),
		users:    repository.NewUserRepository(pool),
		courses:  repository.NewCourseRepository(pool),
		audit:    repository.NewAuditRepository(pool),
		health:   db.Health,
	}, db.Close, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
