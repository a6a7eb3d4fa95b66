package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scigraph/engine/internal/eventbus"
)

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, b *Bridge, runID string) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatal(err)
		}
		b.Register(runID, ws)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	// Give the server goroutine a moment to register the connection.
	time.Sleep(20 * time.Millisecond)
	return srv, client
}

func TestHandleEventBroadcastsToRegisteredConnection(t *testing.T) {
	b := New(nil)
	_, client := newTestServer(t, b, "run1")

	err := b.HandleEvent(context.Background(), eventbus.Event{
		Kind: eventbus.KindStepStarted, RunID: "run1", Node: "ranking",
		Data: map[string]interface{}{"ok": true},
	})
	if err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != FrameStepUpdate || frame.RunID != "run1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestHandleEventTranslatesCheckpointAndFailure(t *testing.T) {
	checkpoint := translate(eventbus.Event{Kind: eventbus.KindCheckpointReached, RunID: "r", Node: "select_problem"})
	if checkpoint.Type != FrameCheckpoint {
		t.Fatalf("expected checkpoint frame, got %+v", checkpoint)
	}

	failed := translate(eventbus.Event{Kind: eventbus.KindWorkflowFailed, RunID: "r", Error: "boom"})
	if failed.Type != FrameError || failed.Error != "boom" {
		t.Fatalf("expected error frame carrying the message, got %+v", failed)
	}
}

func TestBroadcastDropsDeadConnectionWithoutPanicking(t *testing.T) {
	b := New(nil)
	_, client := newTestServer(t, b, "run1")
	client.Close()

	// The closed client's write will fail; broadcast must reap it silently
	// rather than panicking or blocking.
	for i := 0; i < 3; i++ {
		b.broadcast("run1", Frame{Type: FrameStepUpdate, RunID: "run1"})
	}

	b.mu.RLock()
	remaining := len(b.byRun["run1"])
	b.mu.RUnlock()
	if remaining != 0 {
		t.Fatalf("expected the dead connection to be reaped, got %d remaining", remaining)
	}
}

func TestUnregisterRemovesConnection(t *testing.T) {
	b := New(nil)
	_, client := newTestServer(t, b, "run1")
	_ = client

	b.mu.RLock()
	ws := b.byRun["run1"][0].ws
	b.mu.RUnlock()

	b.Unregister("run1", ws)

	b.mu.RLock()
	_, exists := b.byRun["run1"]
	b.mu.RUnlock()
	if exists {
		t.Fatal("expected run1's connection list to be removed once empty")
	}
}
