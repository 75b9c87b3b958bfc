package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hansimuller/taekwon/internal/auth"
	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/metrics"
	"github.com/hansimuller/taekwon/internal/store"
	"github.com/hansimuller/taekwon/internal/tournament"
	"github.com/hansimuller/taekwon/internal/ws"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	secret, err := auth.NewMasterSecret("letmein", bcrypt.MinCost)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	tour, err := tournament.New(ctx, tournament.Options{
		Rings:        3,
		SlotsPerRing: 2,
		Match:        engine.DefaultConfig(),
		StoreTimeout: time.Second,
	}, store.NewMemory(), secret, zap.NewNop(), metrics.New(reg))
	require.NoError(t, err)
	go tour.Run(ctx)

	sm := scs.New()
	sm.Store = memstore.New()

	srv := httptest.NewServer(SetupRoutes(Deps{
		Tournament: tour,
		Sessions:   sm,
		Gatherer:   reg,
		WS:         ws.Options{WriteTimeout: time.Second, PingInterval: time.Minute},
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-tour.Done()
	})
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func startSession(t *testing.T, c *http.Client, srv *httptest.Server) {
	t.Helper()
	resp, err := c.Get(srv.URL + "/session")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func dial(t *testing.T, c *http.Client, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{HTTPClient: c})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"type": event, "data": data})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketRequiresSession(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionIsStable(t *testing.T) {
	srv := newServer(t)
	c := newClient(t)

	startSession(t, c, srv)
	cookies := c.Jar.Cookies(mustURL(t, srv.URL))
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)

	startSession(t, c, srv)
	again := c.Jar.Cookies(mustURL(t, srv.URL))
	require.Len(t, again, 1)
	assert.Equal(t, cookies[0].Value, again[0].Value)
}

func TestRingsEndpoint(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/rings")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var states []wire.RingState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&states))
	assert.Equal(t, []wire.RingState{
		{Index: 0, Number: 1},
		{Index: 1, Number: 2},
		{Index: 2, Number: 3},
	}, states)
}

func TestWebsocketIdentification(t *testing.T) {
	srv := newServer(t)
	c := newClient(t)
	startSession(t, c, srv)

	conn := dial(t, c, srv)
	assert.Equal(t, wire.EvtWaitingForID, read(t, conn).Type)

	send(t, conn, wire.EvtCornerJudge, wire.CornerJudgeID{Name: "Alice"})
	assert.Equal(t, wire.EvtIDSuccess, read(t, conn).Type)
	states := read(t, conn)
	require.Equal(t, wire.EvtRingStates, states.Type)
	var rs []wire.RingState
	require.NoError(t, json.Unmarshal(states.Data, &rs))
	assert.Len(t, rs, 3)

	// malformed frames are answered, not fatal
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, wire.EvtProtocolError, read(t, conn).Type)

	// a second channel for the same browser session is refused and closed
	second := dial(t, c, srv)
	f := read(t, second)
	require.Equal(t, wire.EvtWSError, f.Type)
	var reason wire.Reason
	require.NoError(t, json.Unmarshal(f.Data, &reason))
	assert.Equal(t, "Session already open", reason.Reason)

	rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
	defer rcancel()
	_, _, err := second.Read(rctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t)
	c := newClient(t)
	startSession(t, c, srv)
	conn := dial(t, c, srv)
	read(t, conn)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "taekwon_connections 1")
}
