package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Reservations ReservationService
	Sweeper      SweepRunner
	// Cache is optional; availability is read straight from the service without it.
	Cache   AvailabilityCache
	Tokens  TokenParser
	Log     *slog.Logger
	Timeout time.Duration
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(cfg.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &ReservationHandler{
		Service: cfg.Reservations,
		Sweeper: cfg.Sweeper,
		Cache:   cfg.Cache,
		Log:     cfg.Log,
	}
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens))
		h.Register(r)
	})
	return r
}
