package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/ws"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

// RingLister reads the public ring list from the tournament.
type RingLister interface {
	RingStates(ctx context.Context) ([]wire.RingState, error)
}

// Session issues the durable per-browser id. Calling it again keeps the id
// already stored in the session.
func Session(sm *scs.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm.GetString(r.Context(), ws.SessionKey) == "" {
			sm.Put(r.Context(), ws.SessionKey, uuid.NewString())
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Rings(t RingLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		states, err := t.RingStates(ctx)
		if err != nil {
			log.Warn("ring states", zap.Error(err))
			http.Error(w, "tournament unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(states)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
