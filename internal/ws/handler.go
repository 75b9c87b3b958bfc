package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/tournament"
	"github.com/hansimuller/taekwon/internal/types"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

// SessionKey is the session value holding the browser's durable id.
const SessionKey = "sid"

// Poster is the part of the tournament the handler talks to.
type Poster interface {
	Post(ctx context.Context, m tournament.Msg) error
}

type Options struct {
	OutboxSize   int
	WriteTimeout time.Duration
	// PingInterval is how often the peer is pinged; a peer that does not
	// answer within the same interval is dropped.
	PingInterval   time.Duration
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// SessionID resolves the session id from the request's session cookie
// without issuing a new session.
func SessionID(r *http.Request, sm *scs.SessionManager) (string, error) {
	cookie, err := r.Cookie(sm.Cookie.Name)
	if err != nil {
		return "", nil
	}
	ctx, err := sm.Load(r.Context(), cookie.Value)
	if err != nil {
		return "", err
	}
	return sm.GetString(ctx, SessionKey), nil
}

func Handler(t Poster, sm *scs.SessionManager, log *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	log = log.With(zap.String("component", "ws"))

	return func(w http.ResponseWriter, r *http.Request) {
		sid, err := SessionID(r, sm)
		if err != nil {
			log.Error("load session", zap.Error(err))
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		if sid == "" {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			log.Debug("accept", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		connID := uuid.NewString()
		clog := log.With(zap.String("conn", connID), zap.String("session", sid))
		out := make(chan types.ServerMessage, opts.OutboxSize)

		if err := t.Post(r.Context(), tournament.Connect{ConnID: connID, SessionID: sid, Outbox: out}); err != nil {
			clog.Warn("tournament unavailable", zap.Error(err))
			conn.Close(websocket.StatusTryAgainLater, "tournament unavailable")
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), opts.WriteTimeout)
			defer cancel()
			if err := t.Post(ctx, tournament.Disconnect{ConnID: connID}); err != nil && !errors.Is(err, tournament.ErrStopped) {
				clog.Warn("post disconnect", zap.Error(err))
			}
		}()
		clog.Debug("channel open")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go write(ctx, conn, out, opts.WriteTimeout, clog)
		go ping(ctx, conn, opts.PingInterval, clog)

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("channel closed by peer")
				default:
					clog.Debug("read", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil || cm.Type == "" {
				writeJSON(ctx, conn, opts.WriteTimeout, types.ServerMessage{
					Type: wire.EvtProtocolError,
					Data: wire.Message{Message: "malformed frame"},
				})
				continue
			}

			if err := t.Post(ctx, tournament.FromClient{ConnID: connID, Message: cm}); err != nil {
				clog.Debug("post message", zap.Error(err))
				return
			}
		}
	}
}

// write drains the outbox onto the socket. The tournament closes the outbox
// to hang up; the channel is then closed once everything queued is written.
func write(ctx context.Context, conn *websocket.Conn, out <-chan types.ServerMessage, timeout time.Duration, log *zap.Logger) {
	for msg := range out {
		if err := writeJSON(ctx, conn, timeout, msg); err != nil {
			log.Debug("write", zap.String("type", msg.Type), zap.Error(err))
			conn.CloseNow()
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func writeJSON(ctx context.Context, conn *websocket.Conn, timeout time.Duration, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func ping(ctx context.Context, conn *websocket.Conn, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, interval)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					log.Debug("ping", zap.Error(err))
				}
				conn.CloseNow()
				return
			}
		}
	}
}
