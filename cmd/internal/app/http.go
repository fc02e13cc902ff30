package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authapi "authority/cmd/internal/auth/api"
	"authority/cmd/internal/realtime"
)

const indexBody = "HELLO FROM AUTH!"

type routes struct {
	log      *slog.Logger
	cfg      Config
	db       Pinger
	registry *prometheus.Registry
	auth     *authapi.Handler
	events   *realtime.Gateway
}

func (rt routes) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(indexBody))
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", rt.readyz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{Registry: rt.registry}))

	rt.auth.Register(mux)
	mux.Handle("GET /user/session/events", rt.events)
}

func (rt routes) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.db == nil {
		if rt.cfg.ReadinessRequireDB {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready\n"))
		return
	}
	if err := PingDB(r.Context(), rt.db, 2*time.Second); err != nil {
		rt.log.Info("readyz.db.not_ready", "err", err)
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready\n"))
}
