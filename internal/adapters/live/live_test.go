package live

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/WaterRocket/internal/app"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type outbound struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, limit int) (*httptest.Server, *core.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := core.NewHub(limit, nil)
	relay := app.NewChatRelay(hub, app.NewRateLimiter(3, time.Minute), 0, nil)
	ctl := NewController(hub, relay, Options{
		ReadLimit:  512,
		PingPeriod: 30 * time.Second,
		PongWait:   40 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleWS(ctx, c) })
	r.GET("/events", func(c *gin.Context) { ctl.HandleSSE(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func waitViewers(t *testing.T, hub *core.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func readOutbound(t *testing.T, ws *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var out outbound
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestWS_ChatDefaultsReachEveryViewer(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)

	// Given two connected viewers
	a := dial(t, srv)
	b := dial(t, srv)
	waitViewers(t, hub, 2)

	// When one sends a chat frame without user and text
	req.NoError(a.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))

	// Then both, the sender included, get the defaulted chat message
	for _, ws := range []*websocket.Conn{a, b} {
		got := readOutbound(t, ws)
		req.Equal("chat", got.Channel)
		req.JSONEq(`{"user":"anon","text":""}`, string(got.Data))
	}
}

func TestWS_MalformedFramesAreIgnored(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)
	ws := dial(t, srv)
	waitViewers(t, hub, 1)

	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","user":42}`)))
	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","user":"bob","text":"still here"}`)))

	got := readOutbound(t, ws)
	req.Equal("chat", got.Channel)
	req.JSONEq(`{"user":"bob","text":"still here"}`, string(got.Data))
	req.Equal(1, hub.Count())
}

func TestWS_RateLimitedFramesAreDropped(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)
	ws := dial(t, srv)
	waitViewers(t, hub, 1)

	for i := 0; i < 5; i++ {
		req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","text":"spam"}`)))
	}
	for i := 0; i < 3; i++ {
		req.Equal("chat", readOutbound(t, ws).Channel)
	}

	// Nothing beyond the limit arrives, but a broadcast from elsewhere still does.
	hub.Broadcast(domain.NewLaunchLogMessage(domain.LaunchLog{Player: "p"}))
	req.Equal("launch_log", readOutbound(t, ws).Channel)
}

func TestWS_DisconnectUnregisters(t *testing.T) {
	srv, hub := newTestServer(t, 0)
	ws := dial(t, srv)
	waitViewers(t, hub, 1)

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = ws.Close()

	waitViewers(t, hub, 0)
}

func TestWS_OversizedFrameDisconnects(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)
	ws := dial(t, srv)
	waitViewers(t, hub, 1)

	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","text":"`+strings.Repeat("x", 1024)+`"}`)))

	waitViewers(t, hub, 0)
}

func TestWS_RejectsWhenFull(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 1)
	dial(t, srv)
	waitViewers(t, hub, 1)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	req.Equal(1, hub.Count())
}

func TestWS_HubCloseDisconnectsViewers(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)
	ws := dial(t, srv)
	waitViewers(t, hub, 1)

	hub.Close()

	req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := ws.ReadMessage()
	req.Error(err)
}

func TestSSE_ReceivesBroadcasts(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	next := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return strings.TrimPrefix(lines.Text(), prefix)
			}
		}
		t.Fatalf("stream ended before %q", prefix)
		return ""
	}

	req.Equal("hello", next("event:"))
	waitViewers(t, hub, 1)
	req.Equal(domain.ViewerSSE, hub.Snapshot()[0].Kind)

	hub.Broadcast(domain.NewChatMessage("SYSTEM", "ada: 🔥 Turbo Boost: extra thrust!"))

	req.Equal("message", next("event:"))
	var got outbound
	req.NoError(json.Unmarshal([]byte(next("data:")), &got))
	req.Equal("chat", got.Channel)
	req.JSONEq(`{"user":"SYSTEM","text":"ada: 🔥 Turbo Boost: extra thrust!"}`, string(got.Data))

	cancel()
	waitViewers(t, hub, 0)
}

func TestConn_BackpressureAndClose(t *testing.T) {
	req := require.New(t)
	c := newSSEConn(1)

	req.NoError(c.TrySend(core.Frame("a")))
	req.ErrorIs(c.TrySend(core.Frame("b")), ErrBackpressure)

	c.Close()
	c.Close()
	req.ErrorIs(c.TrySend(core.Frame("c")), ErrConnClosed)
}

func TestWS_ExplicitNullFieldsAreDefaulted(t *testing.T) {
	req := require.New(t)
	srv, hub := newTestServer(t, 0)
	ws := dial(t, srv)
	waitViewers(t, hub, 1)

	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","user":null,"text":null}`)))

	got := readOutbound(t, ws)
	req.Equal("chat", got.Channel)
	req.JSONEq(`{"user":"anon","text":""}`, string(got.Data))
}
