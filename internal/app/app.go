package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"domore/internal/auth"
	"domore/internal/config"
	"domore/internal/handlers"
	"domore/internal/logger"
	"domore/internal/middleware"
	"domore/internal/repository"
	"domore/internal/rowstore"
	"domore/internal/rowstore/memory"
	"domore/internal/rowstore/postgres"
	"domore/internal/rowstore/sqlite"
	"domore/internal/service"
	"domore/internal/snapshot"
	"domore/internal/worker"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is what the app needs from a row store backend.
type Store interface {
	rowstore.Store
	HealthCheck(ctx context.Context) error
	Close()
}

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	store     Store
	provider  *auth.JWTProvider
	service   *service.TaskService
	worker    *worker.SessionWorker
	shutdowns []func(ctx context.Context) error // run in reverse order
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(ctx context.Context) error, 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.onShutdown(func(context.Context) error {
		logger.Info("Shutting down logging...")
		logger.Sync()
		return nil
	})

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = store
	a.onShutdown(func(context.Context) error {
		store.Close()
		return nil
	})

	a.provider = auth.NewJWTProvider(auth.Config{
		Secret:   a.config.Auth.Secret,
		Issuer:   a.config.Auth.Issuer,
		Audience: a.config.Auth.Audience,
		Leeway:   a.config.Auth.Leeway,
	})
	if err := a.provider.Init(); err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	a.onShutdown(func(context.Context) error {
		a.provider.Teardown()
		return nil
	})

	profiles := repository.NewProfileRepository(store)
	a.provider.OnAuthStateChange(profiles.SignInListener(a.provider.Forget))
	repo := repository.NewTaskRepository(store, a.provider)

	cal, err := a.config.Calendar.Calendar()
	if err != nil {
		return err
	}
	tag, err := a.config.Calendar.Tag()
	if err != nil {
		return err
	}

	var cache snapshot.Cache = snapshot.Direct{}
	if a.config.Cache.Enabled {
		cache = snapshot.NewLRU(a.config.Cache.Size, a.config.Cache.TTL)
	}

	a.service = service.NewTaskService(repo, a.provider, cal,
		service.WithCache(cache),
		service.WithHealthCheck(store),
		service.WithLanguage(tag),
	)

	interval := a.config.Worker.SweepInterval
	a.worker = worker.NewSessionWorker(a.provider, &interval)

	a.router = a.routes(handlers.NewTaskHandler(a.service))
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, "domore"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("App: initialized",
		zap.String("repository", a.config.Repository.Type),
		zap.Bool("cache", a.config.Cache.Enabled),
		zap.String("timezone", cal.Location.String()))
	return nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		db := a.config.Database
		if db.Migrate {
			if err := postgres.Migrate(db.URL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		store, err := postgres.New(ctx, db.URL, postgres.Options{
			MaxConns:    int32(db.MaxConnections),
			MinConns:    int32(db.MinConnections),
			IdleTimeout: db.IdleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil
	case config.RepositorySQLite:
		store, err := sqlite.Open(ctx, a.config.Repository.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	case config.RepositoryMemory:
		logger.Warn("App: using in-memory repository, data will not survive a restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown repository type %q", a.config.Repository.Type)
}

func (a *App) routes(h *handlers.TaskHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if a.config.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(a.config.Server.RequestTimeout))
	}
	if a.config.RateLimit.RequestsPerMinute > 0 {
		r.Use(middleware.RateLimit(a.config.RateLimit.RequestsPerMinute))
	}

	h.Register(r, middleware.Authenticate(a.provider))
	return r
}

// Handler exposes the router, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) onShutdown(fn func(ctx context.Context) error) {
	a.shutdowns = append(a.shutdowns, fn)
}

// Run serves until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("HTTP: shutting down server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	return multierr.Append(err, a.Shutdown(shutdownCtx))
}

// Shutdown releases resources in reverse order of acquisition.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.shutdowns[i](ctx))
	}
	a.shutdowns = nil
	return err
}
