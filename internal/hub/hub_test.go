package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/forumboard/server/internal/bus"
	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startTestHub runs a hub over the in-process bus and serves websocket
// upgrades that bind the username from the query string.
func startTestHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	h := New(bus.New(bus.NewMemoryBackend()))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(h, conn, r.URL.Query().Get("user")).Start()
	}))

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return h, server, cancel
}

func dial(t *testing.T, server *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", user, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads frames until one matches the predicate or the deadline
// passes.
func readEvent(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if match(event) {
			return event
		}
	}
	t.Fatalf("expected event not received")
	return nil
}

func isUserList(event map[string]any) bool {
	_, ok := event["list"]
	return ok
}

func isChat(event map[string]any) bool {
	_, ok := event["text"]
	return ok
}

func TestUserListOnConnect(t *testing.T) {
	_, server, _ := startTestHub(t)

	alice := dial(t, server, "alice")
	readEvent(t, alice, isUserList)

	bob := dial(t, server, "bob")
	readEvent(t, bob, isUserList)

	// Alice sees the updated list once bob joins.
	event := readEvent(t, alice, func(e map[string]any) bool {
		if !isUserList(e) {
			return false
		}
		return len(e["list"].([]any)) == 2
	})

	raw := event["list"].([]any)
	users := make([]string, 0, len(raw))
	for _, u := range raw {
		users = append(users, u.(string))
	}
	sort.Strings(users)
	if users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("unexpected user list: %v", users)
	}
}

func TestChatFanOut(t *testing.T) {
	_, server, _ := startTestHub(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	readEvent(t, alice, isUserList)
	readEvent(t, bob, isUserList)

	if err := alice.WriteJSON(map[string]string{"text": "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		event := readEvent(t, conn, isChat)
		if event["user"] != "alice" || event["text"] != "hi" {
			t.Fatalf("%s received unexpected chat event: %v", name, event)
		}
	}
}

func TestRenameClaimRejected(t *testing.T) {
	_, server, _ := startTestHub(t)

	alice := dial(t, server, "alice")
	readEvent(t, alice, isUserList)

	// Claiming a different name than the authenticated user is refused.
	if err := alice.WriteJSON(map[string]string{"name": "mallory"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	event := readEvent(t, alice, func(e map[string]any) bool {
		_, ok := e["error"]
		return ok
	})
	if event["error"] == "" {
		t.Fatalf("expected an error payload, got %v", event)
	}
}

func TestDisconnectAfterHubStops(t *testing.T) {
	h := New(bus.New(bus.NewMemoryBackend()))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatalf("hub did not stop")
	}

	// A client hanging up after shutdown must not block on the registry.
	client := NewClient(h, nil, "alice")
	released := make(chan struct{})
	go func() {
		client.detach()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("detach blocked after the hub stopped")
	}
}

func TestConnectAfterHubStops(t *testing.T) {
	h, server, cancel := startTestHub(t)

	cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatalf("hub did not stop")
	}

	// The upgrade still succeeds, but the connection is refused and
	// closed instead of being parked on the registry.
	conn := dial(t, server, "alice")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
}

func TestPublishChatReachesClients(t *testing.T) {
	h, server, _ := startTestHub(t)

	alice := dial(t, server, "alice")
	readEvent(t, alice, isUserList)

	// HTTP post path: the handler publishes on behalf of the session user.
	if err := h.PublishChat(context.Background(), "alice", "from http"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	event := readEvent(t, alice, isChat)
	if event["user"] != "alice" || event["text"] != "from http" {
		t.Fatalf("unexpected chat event: %v", event)
	}
}
