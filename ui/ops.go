package ui

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// OpsServer is the internal operations endpoint: liveness plus pprof.
// It runs on its own port, never exposed alongside the public API.
type OpsServer struct {
	router *chi.Mux
	logger *slog.Logger
}

// NewOpsServer creates the ops endpoint router.
func NewOpsServer(logger *slog.Logger) *OpsServer {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &OpsServer{router: r, logger: logger}
}

// Start serves the ops endpoint; it blocks.
func (o *OpsServer) Start(addr string) error {
	o.logger.Info("starting ops endpoint", "addr", addr)
	return http.ListenAndServe(addr, o.router)
}

// Handler exposes the router for tests.
func (o *OpsServer) Handler() http.Handler {
	return o.router
}
