package server

import (
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/aimaster/apiserver/internal/catalog"
	"github.com/aimaster/apiserver/internal/handlers"
)

const requestTimeout = 60 * time.Second

// RouterDeps carries everything the HTTP surface is built from.
type RouterDeps struct {
	Logger    zerolog.Logger
	Users     handlers.UserService
	Resources handlers.ResourceService
	Actuar    handlers.ActuarService
	Lookup    handlers.LookupService
	Sessions  interface {
		handlers.SessionStore
		handlers.TokenResolver
	}
	Cookies *handlers.SessionCookies
	Catalog catalog.Catalog

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// StaticDir, when set, is served under StaticPrefix.
	StaticDir    string
	StaticPrefix string
}

// NewRouter builds the chi router with middleware and every route.
func NewRouter(deps RouterDeps) *chi.Mux {
	guard := handlers.NewGuard(deps.Sessions, deps.Cookies)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(deps.Logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())

	if deps.StaticDir != "" {
		prefix := "/" + strings.Trim(deps.StaticPrefix, "/")
		files := http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(deps.StaticDir)}))
		router.Handle(prefix+"/*", files)
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(corsHandler(deps.CORSOrigins).Handler)
		r.NotFound(handlers.NotFound)
		r.MethodNotAllowed(handlers.MethodNotAllowed)

		r.Get("/config", handlers.NewConfigHandler(deps.Catalog).Get)
		handlers.AuthRouter(r, handlers.NewAuthHandler(deps.Users, deps.Sessions, deps.Cookies), guard.RequireUser)
		handlers.ActuarRouter(r, handlers.NewActuarHandler(deps.Actuar, deps.Lookup), guard.RequireUser)

		resources := handlers.NewResourceHandler(deps.Resources)
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireUser)
			r.Route("/user", func(r chi.Router) {
				handlers.UserRouter(r, handlers.NewUserHandler(deps.Users))
			})
			r.Route("/decks", func(r chi.Router) {
				handlers.DeckRouter(r, resources)
			})
			r.Route("/routines", func(r chi.Router) {
				handlers.RoutineRouter(r, resources)
			})
		})
	})

	return router
}

// filesOnly hides directories so artifact names cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           600,
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
