package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aimaster/apiserver/config"
	"github.com/aimaster/apiserver/internal/cache"
	"github.com/aimaster/apiserver/internal/catalog"
	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/internal/handlers"
	"github.com/aimaster/apiserver/internal/metrics"
	"github.com/aimaster/apiserver/internal/mq"
	"github.com/aimaster/apiserver/internal/services"
	"github.com/aimaster/apiserver/internal/session"
	"github.com/aimaster/apiserver/internal/storage"
	"github.com/aimaster/apiserver/internal/store"
)

// Server wraps the HTTP server, its router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	redis      *redis.Client
	log        zerolog.Logger
}

// New connects every backing service named by cfg and builds the router.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn, log: log}

	deps, err := s.wire(ctx, cfg)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	s.router = NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) wire(ctx context.Context, cfg config.Config) (RouterDeps, error) {
	repos := store.NewPostgresManager()

	registry := session.NewRegistry()
	metrics.RegisterLiveSessions(registry.Len)

	seeds, err := services.InitialRoutines()
	if err != nil {
		return RouterDeps{}, err
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return RouterDeps{}, err
	}

	actuarDeps := services.ActuarDeps{
		Conn:    s.db,
		Repos:   repos,
		Permits: session.NewPermitStore(),
		Logger:  s.log,
	}

	artifacts, err := storage.Open(ctx, cfg)
	if err != nil {
		return RouterDeps{}, fmt.Errorf("open artifact storage: %w", err)
	}
	actuarDeps.Artifacts = artifacts
	s.log.Info().
		Str("backend", cfg.Artifacts.Backend).
		Str("bucket", artifacts.Backend().Bucket()).
		Msg("artifact storage ready")

	broker, err := mq.Open(ctx, cfg)
	if err != nil {
		return RouterDeps{}, fmt.Errorf("open event broker: %w", err)
	}
	if broker != nil {
		s.mq = broker
		actuarDeps.Events = mq.NewEventPublisher(broker, cfg.Events.Channel)
	}

	var lookupCache services.LookupCache
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		client, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			s.log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("lookup cache disabled")
		} else {
			s.redis = client
			lookupCache = cache.NewLookupCache(client, cfg.Redis.CacheTTL)
		}
	}

	deps := RouterDeps{
		Logger: s.log,
		Users: services.NewUserService(s.db, repos, services.UserOptions{
			SeedCredits:     cfg.Auth.SeedCredits,
			InitialRoutines: seeds,
		}),
		Resources:   services.NewResourceService(s.db, repos, cfg.Resources.StrictNodes),
		Actuar:      services.NewActuarService(actuarDeps),
		Lookup:      services.NewLookupService(s.db, repos, lookupCache, s.log),
		Sessions:    registry,
		Cookies:     handlers.NewSessionCookies(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, cfg.Auth.SecureCookie),
		Catalog:     cat,
		CORSOrigins: cfg.CORSOrigins,
	}
	if _, ok := artifacts.Backend().(*storage.LocalStorage); ok && strings.HasPrefix(cfg.Artifacts.PublicBaseURL, "/") {
		deps.StaticDir = cfg.Artifacts.LocalDir
		deps.StaticPrefix = cfg.Artifacts.PublicBaseURL
	}
	return deps, nil
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx ends,
// then closes the connections the server owns.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.mq != nil {
		errs = append(errs, s.mq.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
