// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamgate/streamgate/internal/api/handlers"
	"github.com/streamgate/streamgate/internal/config"
	"github.com/streamgate/streamgate/internal/debrid"
	"github.com/streamgate/streamgate/internal/ranking"
	"github.com/streamgate/streamgate/internal/search"
)

type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.AppConfig
	version string

	searchService *search.Service
	rankingEngine *ranking.Engine
	resolver      *debrid.Resolver
	lifecycle     *debrid.Lifecycle
}

type Dependencies struct {
	Config        *config.AppConfig
	Version       string
	SearchService *search.Service
	RankingEngine *ranking.Engine
	Resolver      *debrid.Resolver
	Lifecycle     *debrid.Lifecycle
}

func NewServer(deps *Dependencies) *Server {
	return &Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		logger:        log.Logger.With().Str("module", "api").Logger(),
		config:        deps.Config,
		version:       deps.Version,
		searchService: deps.SearchService,
		rankingEngine: deps.RankingEngine,
		resolver:      deps.Resolver,
		lifecycle:     deps.Lifecycle,
	}
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := fmt.Sprintf("%s:%d", s.config.Config.Host, s.config.Config.Port)

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msgf("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}
	clickableURL := fmt.Sprintf("http://%s%s", host, s.config.Config.BaseURL)

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Str("base_url", s.config.Config.BaseURL).
		Msgf("Starting API server - Open: %s", clickableURL)

	s.server.Handler = s.Handler()

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)

	// HTTP compression - handles gzip, brotli, zstd, deflate automatically
	compressor, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(1024),
		httpcompression.GzipCompressionLevel(2),
		httpcompression.Prefer(httpcompression.PreferServer),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	corsMiddleware := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedMethods:   []string{"HEAD", "OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowOriginFunc:  func(origin string) bool { return true },
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler()
	searchHandler := handlers.NewSearchHandler(s.searchService, s.rankingEngine, s.resolver)
	streamsHandler := handlers.NewStreamsHandler(s.rankingEngine)
	cacheHandler := handlers.NewCacheHandler(s.resolver)
	resumeHandler := handlers.NewResumeHandler(s.lifecycle)
	versionHandler := handlers.NewVersionHandler(s.version)

	apiRouter := chi.NewRouter()
	apiRouter.Group(func(r chi.Router) {
		r.Use(requestLogger(s.logger))

		r.Post("/search", searchHandler.Search)
		r.Get("/sources", searchHandler.ListSources)

		r.Route("/streams", func(r chi.Router) {
			r.Post("/bucket", streamsHandler.Bucket)
			r.Post("/season-packs", streamsHandler.SeasonPacks)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/", cacheHandler.List)
			r.Post("/", cacheHandler.Add)
			r.Post("/check", cacheHandler.Check)

			r.Route("/{hash}", func(r chi.Router) {
				r.Get("/", cacheHandler.Get)
				r.Delete("/", cacheHandler.Remove)
				r.Get("/files", cacheHandler.Files)
				r.Post("/resolve", cacheHandler.Resolve)
			})
		})

		r.Post("/resume/revalidate", resumeHandler.Revalidate)

		r.Get("/version", versionHandler.Get)
	})

	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/healthz/readiness", healthHandler.HandleReady)
	r.Get("/healthz/liveness", healthHandler.HandleLiveness)

	baseURL := s.config.Config.BaseURL
	if baseURL == "" {
		baseURL = "/"
	}
	r.Mount(baseURL+"api", apiRouter)

	if baseURL != "/" {
		r.Get("/", func(w http.ResponseWriter, request *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Must use baseUrl: " + s.config.Config.BaseURL + " instead of /"))
		})
	}

	return r
}

// requestLogger emits one structured line per API request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("API request")
		})
	}
}
