package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/htverse/apiserver/config"
	"github.com/htverse/apiserver/internal/db"
	"github.com/htverse/apiserver/internal/handlers"
	"github.com/htverse/apiserver/internal/logger"
	"github.com/htverse/apiserver/internal/mq"
	"github.com/htverse/apiserver/internal/services"
	"github.com/htverse/apiserver/internal/storage"
	"github.com/htverse/apiserver/internal/store/memstore"
	"github.com/htverse/apiserver/internal/store/mongostore"
	"github.com/htverse/apiserver/internal/store/pgstore"
)

const shutdownTimeout = 10 * time.Second

// Repositories bundles the record store implementations for one driver.
type Repositories struct {
	Users      services.UserRepository
	Hackathons services.HackathonRepository

	close func(context.Context) error
}

// Close releases the underlying database connection.
func (r *Repositories) Close(ctx context.Context) error {
	if r.close == nil {
		return nil
	}
	return r.close(ctx)
}

// OpenRepositories connects the record store selected by cfg.DBDriver.
func OpenRepositories(ctx context.Context, cfg config.Config) (*Repositories, error) {
	switch cfg.DBDriver {
	case config.DriverMongo, "":
		client, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		database := client.Database(cfg.Mongo.Database)
		if err := db.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return mongoRepositories(client, database), nil
	case config.DriverPostgres:
		conn, err := db.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgresRepositories(conn), nil
	case config.DriverMemory:
		mem := memstore.New()
		return &Repositories{Users: mem.Users(), Hackathons: mem.Hackathons()}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func mongoRepositories(client *mongo.Client, database *mongo.Database) *Repositories {
	return &Repositories{
		Users:      mongostore.NewUserRepository(database),
		Hackathons: mongostore.NewHackathonRepository(database),
		close:      client.Disconnect,
	}
}

func postgresRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		Users:      pgstore.NewUserRepository(conn),
		Hackathons: pgstore.NewHackathonRepository(conn),
		close:      func(context.Context) error { return conn.Close() },
	}
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	repos      *Repositories
	events     mq.Backend
	hackathons *services.HackathonService
}

// New connects every configured backend and constructs a Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	repos, err := OpenRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eventBackend, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, fmt.Errorf("connect message queue: %w", err)
	}

	banners, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = repos.Close(ctx)
		if eventBackend != nil {
			_ = eventBackend.Close()
		}
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	userService := services.NewUserService(repos.Users, slog.Default())
	opts := []services.HackathonOption{
		services.WithUsers(userService),
		services.WithLogger(slog.Default()),
	}
	if eventBackend != nil {
		opts = append(opts, services.WithEvents(mq.NewPublisher(eventBackend, cfg.MQ.Channel)))
	}
	if banners != nil {
		opts = append(opts, services.WithBanners(banners))
	}
	hackathonService := services.NewHackathonService(repos.Hackathons, opts...)
	adminService := services.NewAdminService(repos.Users, repos.Hackathons)

	if cfg.SeedDemoAccounts {
		if err := userService.SeedDemoAccounts(ctx); err != nil {
			slog.Warn("seed demo accounts", "error", err)
		}
	}

	router := NewRouter(cfg, userService, hackathonService, adminService)

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server configured",
		"port", port,
		"db_driver", cfg.DBDriver,
		"mq_backend", cfg.MQ.Backend,
		"storage_backend", cfg.Storage.Backend,
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		repos:      repos,
		events:     eventBackend,
		hackathons: hackathonService,
	}, nil
}

// NewRouter builds the HTTP routes on top of the given services.
func NewRouter(
	cfg config.Config,
	userService *services.UserService,
	hackathonService *services.HackathonService,
	adminService *services.AdminService,
) *chi.Mux {
	authHandler := handlers.NewAuthHandler(userService, cfg.JWTSecret, cfg.JWTTTL)
	limiter := handlers.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
	started := time.Now()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.RequestLogger,
		middleware.Recoverer,
		handlers.CORS(cfg.CORSOrigins),
		handlers.ErrorDetail(cfg.IsDev()),
		middleware.Timeout(60*time.Second),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.NotFound)

	router.Get("/", handlers.Root)
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health(started))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, limiter.Middleware)
		})
		r.Route("/hackathons", func(r chi.Router) {
			handlers.HackathonRouter(r, hackathonService, authHandler.RequireAuth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, adminService, authHandler.RequireAuth)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		_ = s.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, waits for in-flight work and closes
// every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hackathons.Wait()
	if s.events != nil {
		if cerr := s.events.Close(); cerr != nil {
			slog.Warn("close message queue", "error", cerr)
		}
	}
	if cerr := s.repos.Close(ctx); cerr != nil {
		slog.Warn("close database", "error", cerr)
	}
	slog.Info("server stopped")
	return err
}
