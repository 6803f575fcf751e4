package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"example.com/chirp/internal/auth"
	appkafka "example.com/chirp/internal/broker"
	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/middleware"
	"example.com/chirp/internal/response"
	"example.com/chirp/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	store  store.StoreInterface
	events appkafka.Publisher
	tokens *auth.TokenManager
	cfg    *config.Config
	now    func() time.Time
}

var logg = logger.New()

// New wires a Server. A nil publisher drops events.
func New(st store.StoreInterface, events appkafka.Publisher, tokens *auth.TokenManager, cfg *config.Config) *Server {
	if events == nil {
		events = appkafka.NopPublisher{}
	}
	return &Server{
		store:  st,
		events: events,
		tokens: tokens,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Routes builds the HTTP handler. API routes live under cfg.APIPrefix;
// /metrics and /healthz are always at the root.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	if s.cfg.MaxBodyBytes > 0 {
		r.Use(chimiddleware.RequestSize(s.cfg.MaxBodyBytes))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.TokenHeader},
		ExposedHeaders: []string{middleware.TokenHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	api := func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, http.StatusOK, "Welcome To Twitter API")
		})

		r.Group(func(r chi.Router) {
			if s.cfg.RateLimitAuth > 0 {
				r.Use(httprate.LimitByIP(s.cfg.RateLimitAuth, time.Minute))
			}
			r.Post("/register", s.registerHandler)
			r.Post("/login", s.loginHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthToken(s.tokens))

			r.Get("/user", s.getUserHandler)
			r.Patch("/user", s.updateUserHandler)
			r.Patch("/user/{email}", s.followHandler)
			r.Delete("/user", s.deleteUserHandler)

			r.Post("/user/tweet", s.createTweetHandler)
			r.Get("/user/tweets", s.userTweetsHandler)
			r.Patch("/user/tweet/{createdAt}", s.updateTweetHandler)
			r.Delete("/user/tweet/{createdAt}", s.deleteTweetHandler)

			r.Get("/tweets", s.feedHandler)
			r.Get("/tweets/{createdAt}/{byUser}", s.toggleLikeHandler)
		})
	}
	if s.cfg.APIPrefix == "" {
		r.Group(api)
	} else {
		r.Route(s.cfg.APIPrefix, api)
	}

	notFound := func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.MsgNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
// TLS is used when both certificate paths are configured.
func Run(ctx context.Context, st store.StoreInterface, events appkafka.Publisher, cfg *config.Config) error {
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	s := New(st, events, tokens, cfg)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second, // prevent slowloris attacks
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+cfg.ServerAddr)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+cfg.ServerAddr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logg.Info("server", "Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
		return err
	}
	logg.Info("server", "Server stopped gracefully")
	return nil
}
