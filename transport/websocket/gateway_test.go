package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/wsgateway/gateway/dispatch"
	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/handler"
	"github.com/wricardo/wsgateway/gateway/registry"
	"github.com/wricardo/wsgateway/gateway/router"
)

type testEnv struct {
	server      *httptest.Server
	gateway     *Gateway
	connections *registry.ConnectionRegistry
	groups      *registry.GroupRegistry
	cancel      context.CancelFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRoutes(t)
}

// newTestEnvWithRoutes serves the controller's operations plus extra.
func newTestEnvWithRoutes(t *testing.T, extra ...router.Route) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	connections := registry.NewConnectionRegistry()
	groups := registry.NewGroupRegistry()
	dispatcher := dispatch.NewDispatcher(connections, groups, logger)
	ctrl := handler.NewController(connections, groups, dispatcher, nil, logger)

	r, err := router.NewRouter(append(ctrl.Routes(), extra...), handler.Operations...)
	if err != nil {
		t.Fatalf("Failed to build router: %v", err)
	}

	gw := NewGateway(r, router.DefaultAdvisor(logger), connections, groups, logger, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	go gw.Run(ctx)

	server := httptest.NewServer(gw)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return &testEnv{
		server:      server,
		gateway:     gw,
		connections: connections,
		groups:      groups,
		cancel:      cancel,
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Frame is not JSON: %s", data)
	}
	return string(data), frame
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestNewGateway(t *testing.T) {
	gw := NewGateway(nil, nil, registry.NewConnectionRegistry(), registry.NewGroupRegistry(), nil, DefaultOptions())

	if gw == nil {
		t.Fatal("NewGateway() returned nil")
	}
	if gw.clients == nil {
		t.Error("Gateway clients map is nil")
	}
	if gw.register == nil || gw.unregister == nil {
		t.Error("Gateway channels are nil")
	}
	if gw.Live() != 0 {
		t.Errorf("Expected 0 live connections, got %d", gw.Live())
	}
}

func TestOptionsPingPeriod(t *testing.T) {
	opts := DefaultOptions()
	if opts.pingPeriod() >= opts.PongWait {
		t.Errorf("Ping period %v must be less than pong wait %v", opts.pingPeriod(), opts.PongWait)
	}
	if opts.MaxContentLength != 65536 {
		t.Errorf("Expected max content length 65536, got %d", opts.MaxContentLength)
	}
}

func TestClientSend(t *testing.T) {
	opts := DefaultOptions()
	opts.SendBuffer = 1
	gw := NewGateway(nil, nil, registry.NewConnectionRegistry(), registry.NewGroupRegistry(), nil, opts)
	client := newClient(gw, nil, "c1")

	if client.State() != StateAnonymous {
		t.Errorf("Expected new client to be %s, got %s", StateAnonymous, client.State())
	}

	if err := client.Send([]byte("one")); err != nil {
		t.Fatalf("First send failed: %v", err)
	}
	if err := client.Send([]byte("two")); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("Expected ErrSendBufferFull, got %v", err)
	}

	client.close()
	client.close()

	if err := client.Send([]byte("three")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("Expected %s after close, got %s", StateClosed, client.State())
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateAnonymous:  "CONNECTED_ANONYMOUS",
		StateIdentified: "CONNECTED_IDENTIFIED",
		StateClosed:     "CLOSED",
		State(42):       "UNKNOWN",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", state, state.String(), want)
		}
	}
}

func TestRegisterJoinDispatch(t *testing.T) {
	env := newTestEnv(t)
	alice := env.dial(t)
	bob := env.dial(t)

	send(t, alice, `{"mapper":"register","body":{"username":"alice","agent":"test"}}`)
	raw, _ := readFrame(t, alice)
	want := `{"status":"OK","identifier":"alice","message":"agent: test","body":{"message":"register","online":["alice"]}}`
	if raw != want {
		t.Errorf("Register response\n got: %s\nwant: %s", raw, want)
	}

	send(t, bob, `{"mapper":"join","body":{"groupName":"room1"}}`)
	_, frame := readFrame(t, bob)
	if frame["status"] != "OK" || frame["identifier"] != "room1" || frame["message"] != "Done" {
		t.Errorf("Unexpected join response: %v", frame)
	}

	send(t, alice, `{"mapper":"join","body":{"groupName":"room1"}}`)
	readFrame(t, alice)

	send(t, alice, `{"mapper":"dispatch","body":{"channelType":"GROUP","to":"room1","content":"hi"}}`)

	raw, frame = readFrame(t, bob)
	if !strings.Contains(raw, "hi") {
		t.Errorf("Expected bob to receive the group message, got %s", raw)
	}
	body, _ := frame["body"].(map[string]any)
	if body["from"] != "alice" {
		t.Errorf("Expected from=alice, got %v", body["from"])
	}

	// alice is a member of room1 so she gets the delivery, but no direct
	// reply to the dispatch call: the next frame after it is the group copy,
	// and the one after that answers the following request.
	send(t, alice, `{"mapper":"leave","body":{"groupName":"room1"}}`)
	_, frame = readFrame(t, alice)
	if frame["identifier"] != "room1" || frame["message"] != "hi" {
		t.Errorf("Expected alice's copy of the group message, got %v", frame)
	}
	_, frame = readFrame(t, alice)
	leaveBody, _ := frame["body"].(map[string]any)
	if leaveBody["message"] != "leave" {
		t.Errorf("Expected leave response, got %v", frame)
	}
}

func TestDispatchSingle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.dial(t)
	bob := env.dial(t)

	send(t, alice, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, alice)
	send(t, bob, `{"mapper":"register","body":{"username":"bob"}}`)
	_, frame := readFrame(t, bob)
	online, _ := frame["body"].(map[string]any)["online"].([]any)
	if len(online) != 2 {
		t.Errorf("Expected 2 identities online, got %v", online)
	}

	send(t, alice, `{"mapper":"dispatch","body":{"to":"bob","content":"direct"}}`)
	_, frame = readFrame(t, bob)
	if frame["message"] != "direct" || frame["identifier"] != "bob" {
		t.Errorf("Unexpected delivery: %v", frame)
	}

	send(t, alice, `{"mapper":"dispatch","body":{"to":"ghost","content":"x"}}`)
	_, frame = readFrame(t, alice)
	if frame["status"] != "ERROR" || frame["message"] != "to user not found." {
		t.Errorf("Expected to-user error, got %v", frame)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	tests := []struct {
		name    string
		frame   string
		status  string
		message string
	}{
		{"unknown operation", `{"mapper":"fly","body":{}}`, "BAD_REQUEST", "invalid request mapper name."},
		{"empty mapper", `{"body":{}}`, "BAD_REQUEST", "invalid request mapper name."},
		{"not json", `not json`, "ERROR", "server error."},
		{"bad payload", `{"mapper":"join","body":{"groupName":5}}`, "BAD_REQUEST", ""},
		{"unregistered sender", `{"mapper":"dispatch","body":{"to":"x"}}`, "ERROR", "from user not found."},
		{"unregister anonymous", `{"mapper":"unregister","body":{}}`, "ERROR", "user unregister failure."},
		{"screenshot disabled", `{"mapper":"screenshot","body":{"url":"https://example.com"}}`, "ERROR", "screenshot is not enabled."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.frame)
			_, frame := readFrame(t, conn)
			if frame["status"] != tt.status {
				t.Errorf("status = %v, want %s", frame["status"], tt.status)
			}
			if tt.message != "" && frame["message"] != tt.message {
				t.Errorf("message = %v, want %s", frame["message"], tt.message)
			}
		})
	}

	// The connection survives every error above
	send(t, conn, `{"mapper":"register","body":{"username":"survivor"}}`)
	_, frame := readFrame(t, conn)
	if frame["status"] != "OK" {
		t.Errorf("Expected register to succeed after errors, got %v", frame)
	}
}

func TestBinaryFrame(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Failed to write binary frame: %v", err)
	}
	_, frame := readFrame(t, conn)
	if frame["status"] != "ERROR" || frame["message"] != "server error." {
		t.Errorf("Expected generic error, got %v", frame)
	}
}

func TestCloseCleansUpAnonymousConnection(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, `{"mapper":"join","body":{"groupName":"room1"}}`)
	readFrame(t, conn)

	group, ok := env.groups.Get("room1")
	if !ok || group.Len() != 1 {
		t.Fatalf("Expected room1 with one member")
	}
	waitFor(t, "one live connection", func() bool { return env.gateway.Live() == 1 })

	conn.Close()

	waitFor(t, "group cleanup", func() bool { return group.Len() == 0 })
	waitFor(t, "live count to drop", func() bool { return env.gateway.Live() == 0 })

	if _, ok := env.groups.Get("room1"); !ok {
		t.Error("Empty groups are kept")
	}
}

func TestCloseRemovesIdentity(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, conn)
	if _, ok := env.connections.Get("alice"); !ok {
		t.Fatal("alice should be registered")
	}

	conn.Close()

	waitFor(t, "identity removal", func() bool {
		_, ok := env.connections.Get("alice")
		return !ok
	})
}

func TestRebindKeepsNewOwner(t *testing.T) {
	env := newTestEnv(t)
	first := env.dial(t)
	second := env.dial(t)

	send(t, first, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, first)
	send(t, second, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, second)

	first.Close()
	waitFor(t, "first connection to close", func() bool { return env.gateway.Live() == 1 })

	conn, ok := env.connections.Get("alice")
	if !ok {
		t.Fatal("alice should still be bound to the second connection")
	}
	if conn.(*Client).State() != StateIdentified {
		t.Errorf("Expected second connection to be identified, got %s", conn.(*Client).State())
	}
}

func TestUnregisterReturnsToAnonymous(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, conn)

	bound, _ := env.connections.Get("alice")
	client := bound.(*Client)
	if client.State() != StateIdentified {
		t.Errorf("Expected %s, got %s", StateIdentified, client.State())
	}

	send(t, conn, `{"mapper":"unregister","body":{}}`)
	raw, _ := readFrame(t, conn)
	if raw != `{"status":"OK","body":{}}` {
		t.Errorf("Unexpected unregister response: %s", raw)
	}
	if client.State() != StateAnonymous {
		t.Errorf("Expected %s after unregister, got %s", StateAnonymous, client.State())
	}
}

func TestRunStopClosesClients(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	waitFor(t, "registration", func() bool { return env.gateway.Live() == 1 })
	env.cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to be closed after the gateway stops")
	}
}

func TestCheckOrigin(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowedOrigins = []string{"example.com"}
	gw := NewGateway(nil, nil, registry.NewConnectionRegistry(), registry.NewGroupRegistry(), nil, opts)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://example.com", true},
		{"https://evil.test", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := gw.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestEncodeMatchesWire(t *testing.T) {
	data, err := envelope.Encode(envelope.ServerError())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"status":"ERROR","message":"server error."}` {
		t.Errorf("Unexpected generic envelope: %s", data)
	}
}

// deferredRoutes returns a "slow" route that completes once release is
// closed and a "fast" route that completes inline.
func deferredRoutes(release <-chan struct{}) []router.Route {
	slow := router.Handle("slow", func(cc *router.ConnContext, _ struct{}, res *router.Result) {
		go func() {
			<-release
			res.Complete(envelope.OK("", "slow", nil))
		}()
	})
	fast := router.Handle("fast", func(cc *router.ConnContext, _ struct{}, res *router.Result) {
		res.Complete(envelope.OK("", "fast", nil))
	})
	return []router.Route{slow, fast}
}

func TestDeferredResultDoesNotBlockLaterFrames(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnvWithRoutes(t, deferredRoutes(release)...)
	conn := env.dial(t)

	send(t, conn, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, conn)

	send(t, conn, `{"mapper":"slow"}`)
	send(t, conn, `{"mapper":"fast"}`)

	_, frame := readFrame(t, conn)
	if frame["message"] != "fast" {
		t.Fatalf("Expected the fast reply while slow is pending, got %v", frame)
	}

	close(release)
	_, frame = readFrame(t, conn)
	if frame["message"] != "slow" {
		t.Errorf("Expected the slow reply after release, got %v", frame)
	}
}

func TestCloseWithPendingResultCleansUp(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	env := newTestEnvWithRoutes(t, deferredRoutes(release)...)
	conn := env.dial(t)

	send(t, conn, `{"mapper":"register","body":{"username":"alice"}}`)
	readFrame(t, conn)
	send(t, conn, `{"mapper":"join","body":{"groupName":"room1"}}`)
	readFrame(t, conn)

	send(t, conn, `{"mapper":"slow"}`)
	conn.Close()

	waitFor(t, "cleanup with a pending result", func() bool {
		_, registered := env.connections.Get("alice")
		group, _ := env.groups.Get("room1")
		return !registered && group.Len() == 0 && env.gateway.Live() == 0
	})
}
