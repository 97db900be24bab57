package realtimesvc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/user"
	"github.com/fitprize/fitprize/testutil"
)

const goodToken = "good-token"

func testAuth(_ context.Context, token string) (user.Caller, error) {
	if token != goodToken {
		return user.Caller{}, errors.New("invalid token")
	}
	return user.Caller{ID: "t1", Role: user.RoleTeacher, SchoolID: "s1"}, nil
}

func testRooms(_ context.Context, caller user.Caller) ([]string, error) {
	return []string{realtime.ClassRoom("c1"), realtime.SchoolRoom(caller.SchoolID)}, nil
}

type hubFixture struct {
	hub     *Hub
	metrics *Metrics
	server  *httptest.Server
	wsURL   string
	cancel  context.CancelFunc
}

func newHubFixture(t *testing.T) hubFixture {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics(prometheus.NewRegistry())
	hub := NewHub(metrics, testutil.NopLogger{})
	go hub.Run(ctx)

	server := httptest.NewServer(NewHandler(hub, testAuth, testRooms, testutil.NewConfig(), testutil.NopLogger{}))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hubFixture{
		hub:     hub,
		metrics: metrics,
		server:  server,
		wsURL:   "ws" + strings.TrimPrefix(server.URL, "http"),
		cancel:  cancel,
	}
}

func (f hubFixture) dial(t *testing.T) *websocket.Conn {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+goodToken)
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, header)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	assert.Eventually(t, func() bool { return f.hub.ClientCount() > 0 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) realtime.Envelope {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() failed: %v", err)
	}
	var env realtime.Envelope
	if err = json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	return env
}

func TestHub_delivery(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	f.hub.Emit(realtime.ClassRoom("other"), realtime.Event{Name: realtime.EventClassMinutesUpdated, Payload: realtime.ClassMinutesUpdated{ClassID: "other"}})
	f.hub.Emit(realtime.ClassRoom("c1"), realtime.Event{Name: realtime.EventClassMinutesUpdated, Payload: realtime.ClassMinutesUpdated{ClassID: "c1", FitnessMinutes: 120}})
	f.hub.Emit(realtime.SchoolRoom("s1"), realtime.Event{Name: realtime.EventSchoolPrizeDelivered, Payload: realtime.SchoolPrizeDelivered{SchoolID: "s1", Delivered: true}})

	env := readEnvelope(t, conn)
	assert.Equal(t, realtime.ClassRoom("c1"), env.Room)
	assert.Equal(t, realtime.EventClassMinutesUpdated, env.Name)
	var minutes realtime.ClassMinutesUpdated
	assert.NoError(t, json.Unmarshal(env.Payload, &minutes))
	assert.Equal(t, 120, minutes.FitnessMinutes)

	env = readEnvelope(t, conn)
	assert.Equal(t, realtime.SchoolRoom("s1"), env.Room)
	assert.Equal(t, realtime.EventSchoolPrizeDelivered, env.Name)

	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.Events.WithLabelValues(realtime.EventClassMinutesUpdated)))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.Clients))
}

func TestHub_disconnect(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)
	assert.Equal(t, 1, f.hub.ClientCount())

	assert.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// stopping the hub closes the remaining connections
	other := f.dial(t)
	f.cancel()
	_ = other.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, f.hub.ClientCount())
}

func TestHandler_unauthorized(t *testing.T) {
	f := newHubFixture(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token"},
		{name: "invalid token", token: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.token != "" {
				header.Set("Authorization", "Bearer "+tt.token)
			}
			_, resp, err := websocket.DefaultDialer.Dial(f.wsURL, header)
			assert.Equal(t, websocket.ErrBadHandshake, err)
			if assert.NotNil(t, resp) {
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			}
		})
	}
	assert.Equal(t, 0, f.hub.ClientCount())
}

func TestHandler_subprotocolToken(t *testing.T) {
	f := newHubFixture(t)
	dialer := websocket.Dialer{Subprotocols: []string{bearerProtocol, goodToken}}
	conn, resp, err := dialer.Dial(f.wsURL, nil)
	if !assert.NoError(t, err) {
		return
	}
	defer conn.Close()
	assert.Equal(t, bearerProtocol, resp.Header.Get("Sec-WebSocket-Protocol"))
	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header map[string]string
		want   string
	}{
		{name: "authorization header", target: "/ws", header: map[string]string{"Authorization": "Bearer abc"}, want: "abc"},
		{name: "case insensitive scheme", target: "/ws", header: map[string]string{"Authorization": "bearer  abc "}, want: "abc"},
		{name: "query param", target: "/ws?token=xyz", want: "xyz"},
		{name: "header wins over query", target: "/ws?token=xyz", header: map[string]string{"Authorization": "Bearer abc"}, want: "abc"},
		{name: "other scheme falls back to query", target: "/ws?token=xyz", header: map[string]string{"Authorization": "Basic Zm9v"}, want: "xyz"},
		{name: "subprotocol", target: "/ws", header: map[string]string{"Sec-WebSocket-Protocol": "bearer, tok"}, want: "tok"},
		{name: "bearer subprotocol without token", target: "/ws", header: map[string]string{"Sec-WebSocket-Protocol": "bearer"}},
		{name: "nothing", target: "/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, bearerToken(req))
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no restriction", origin: "http://evil.com", want: true},
		{name: "no origin", allowed: []string{"app.test"}, want: true},
		{name: "full origin", allowed: []string{"https://app.test"}, origin: "https://app.test", want: true},
		{name: "host only", allowed: []string{"app.test"}, origin: "https://app.test", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://other.test", want: true},
		{name: "not allowed", allowed: []string{"app.test"}, origin: "https://other.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkOrigin(tt.allowed)(req))
		})
	}
}

func TestMetrics_MinutesAdded(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.MinutesAdded("s1", 30, 0)
	m.MinutesAdded("s1", 70, 2)
	assert.Equal(t, float64(100), promtestutil.ToFloat64(m.Minutes))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.PrizesEarned))
}
