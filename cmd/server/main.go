package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notesync/internal/config"
	"notesync/internal/database"
	"notesync/internal/handler"
	"notesync/internal/logging"
	"notesync/internal/middleware"
	"notesync/internal/repository"
	"notesync/internal/service"
	"notesync/internal/websocket"

	"github.com/gorilla/mux"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notesync-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewServerLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noteRepo, userRepo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	sessionRepo := repository.NewRedisSessionRepository(redisClient)

	wsManager := websocket.NewManager(websocket.Options{
		MaxConnPerUser: cfg.WebSocket.MaxConnPerUser,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger)
	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager))
	go wsManager.Run(ctx)

	authService := service.NewAuthService(userRepo, sessionRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.SessionCacheTTL)
	syncService := service.NewSyncService(noteRepo, wsManager, logger)
	deviceService := service.NewDeviceService(sessionRepo)
	userService := service.NewUserService(userRepo)

	r := newRouter(cfg, logger, authService, routeHandlers{
		auth:    handler.NewAuthHandler(authService),
		sync:    handler.NewSyncHandler(syncService),
		devices: handler.NewDeviceHandler(deviceService),
		users:   handler.NewUserHandler(userService),
		ws:      handler.NewWebSocketHandler(wsManager, authService, logger),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting notesync server",
			"addr", srv.Addr, "env", cfg.Server.Env, "db_driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info(context.Background(), "server stopped gracefully")
	return nil
}

type routeHandlers struct {
	auth    *handler.AuthHandler
	sync    *handler.SyncHandler
	devices *handler.DeviceHandler
	users   *handler.UserHandler
	ws      *handler.WebSocketHandler
}

// newRouter wires the public routes. Routes that change server state use Fresh
// session checks.
func newRouter(cfg *config.Config, logger logging.Logger, auth middleware.Authenticator, h routeHandlers) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	}

	api.HandleFunc("/auth/register", h.auth.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", h.auth.Login).Methods("POST", "OPTIONS")

	session := api.PathPrefix("").Subrouter()
	session.Use(middleware.AuthMiddleware(auth, middleware.Cached))
	session.HandleFunc("/auth/logout", h.auth.Logout).Methods("POST", "OPTIONS")
	session.HandleFunc("/users/me", h.users.GetMe).Methods("GET", "OPTIONS")
	session.HandleFunc("/devices", h.devices.List).Methods("GET", "OPTIONS")

	// Mutating routes re-read the session store on every request.
	fresh := api.PathPrefix("").Subrouter()
	fresh.Use(middleware.AuthMiddleware(auth, middleware.Fresh))
	fresh.HandleFunc("/sync", h.sync.Sync).Methods("POST", "OPTIONS")
	fresh.HandleFunc("/devices/{id}", h.devices.Revoke).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", h.ws.HandleConnection)
	r.HandleFunc("/health", handler.Health).Methods("GET")
	return r
}

// openStore connects the configured note and user backend.
func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (repository.NoteRepository, repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info(ctx, "connected to postgres")
		return repository.NewPostgresNoteRepository(pool), repository.NewPostgresUserRepository(pool), pool.Close, nil

	default:
		couchURL := database.CouchURL(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password)
		client, err := database.NewCouchClient(ctx, couchURL, cfg.Database.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info(ctx, "connected to couchdb", "host", cfg.Database.Host, "db", cfg.Database.Name)
		closeFn := func() { _ = client.Close() }
		return repository.NewNoteRepository(client, cfg.Database.Name), repository.NewUserRepository(client, cfg.Database.Name), closeFn, nil
	}
}
