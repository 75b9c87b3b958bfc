package httpapi

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/ws"
)

// Tournament is what the HTTP layer needs from the running tournament.
type Tournament interface {
	ws.Poster
	RingLister
}

type Deps struct {
	Tournament Tournament
	Sessions   *scs.SessionManager
	Log        *zap.Logger
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	WS       ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "http"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/rings", Rings(d.Tournament, log))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	// The upgrade reads the session cookie itself; LoadAndSave would buffer
	// the response the websocket needs to hijack.
	r.Get("/ws", ws.Handler(d.Tournament, d.Sessions, log, d.WS))
	r.With(d.Sessions.LoadAndSave).Get("/session", Session(d.Sessions))
	return r
}
