// Package wsbridge forwards every eventbus.Event onto the WebSocket
// connections subscribed to its run_id, so a browser client watching a
// workflow run sees step_update/checkpoint/complete/error frames as they
// happen without polling the HTTP surface.
package wsbridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/scigraph/engine/internal/eventbus"
	"github.com/scigraph/engine/internal/logging"
)

// FrameType is the closed set of message types a client receives.
type FrameType string

const (
	FrameStepUpdate FrameType = "step_update"
	FrameCheckpoint FrameType = "checkpoint"
	FrameError      FrameType = "error"
	FrameComplete   FrameType = "complete"
	FramePong       FrameType = "pong"
)

// Frame is the wire shape sent to a subscribed client.
type Frame struct {
	Type  FrameType              `json:"type"`
	RunID string                 `json:"run_id,omitempty"`
	Node  string                 `json:"node,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// conn pairs a websocket connection with a write mutex: gorilla/websocket
// forbids concurrent writers on the same connection.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Bridge fans eventbus events out to the WebSocket connections registered
// for each run_id. Dead connections are not actively reaped by a
// background loop; a write failure on one marks it dead and it is dropped
// from the run's connection list on the next broadcast.
type Bridge struct {
	mu    sync.RWMutex
	byRun map[string][]*conn
	log   *logging.Logger
}

// New builds an empty Bridge.
func New(log *logging.Logger) *Bridge {
	if log == nil {
		log = logging.NewDefault("wsbridge")
	}
	return &Bridge{byRun: make(map[string][]*conn), log: log}
}

// Register attaches ws to runID's fan-out list. The caller owns the
// connection's lifecycle (read pump, close on disconnect).
func (b *Bridge) Register(runID string, ws *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byRun[runID] = append(b.byRun[runID], &conn{ws: ws})
}

// Unregister removes ws from runID's fan-out list, e.g. on a clean client
// disconnect observed by the connection's read pump.
func (b *Bridge) Unregister(runID string, ws *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conns := b.byRun[runID]
	for i, c := range conns {
		if c.ws == ws {
			b.byRun[runID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(b.byRun[runID]) == 0 {
		delete(b.byRun, runID)
	}
}

// HandleEvent implements eventbus.Handler, translating a workflow event
// into a Frame and broadcasting it to every connection subscribed to the
// event's run_id.
func (b *Bridge) HandleEvent(ctx context.Context, event eventbus.Event) error {
	frame := translate(event)
	b.broadcast(event.RunID, frame)
	return nil
}

func translate(event eventbus.Event) Frame {
	switch event.Kind {
	case eventbus.KindCheckpointReached, eventbus.KindCheckpointResolved:
		return Frame{Type: FrameCheckpoint, RunID: event.RunID, Node: event.Node, Data: event.Data}
	case eventbus.KindWorkflowFailed:
		return Frame{Type: FrameError, RunID: event.RunID, Node: event.Node, Error: event.Error}
	case eventbus.KindWorkflowCompleted, eventbus.KindWorkflowCancelled:
		return Frame{Type: FrameComplete, RunID: event.RunID, Node: event.Node, Data: event.Data}
	default:
		return Frame{Type: FrameStepUpdate, RunID: event.RunID, Node: event.Node, Data: event.Data}
	}
}

// broadcast writes frame to every live connection for runID, dropping any
// connection whose write fails (the reaping point described in the
// package doc).
func (b *Bridge) broadcast(runID string, frame Frame) {
	b.mu.RLock()
	conns := append([]*conn(nil), b.byRun[runID]...)
	b.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	var dead []*conn
	for _, c := range conns {
		if err := c.writeJSON(frame); err != nil {
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.byRun[runID][:0]
	for _, c := range b.byRun[runID] {
		if !containsConn(dead, c) {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(b.byRun, runID)
	} else {
		b.byRun[runID] = remaining
	}
}

func containsConn(haystack []*conn, needle *conn) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}

// Pong marshals a bare pong frame for a client's "ping" message.
func Pong() ([]byte, error) {
	return json.Marshal(Frame{Type: FramePong})
}
