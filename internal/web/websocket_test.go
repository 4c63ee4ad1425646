package web

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/swarmlab/hivehub/internal/config"
	"github.com/swarmlab/hivehub/internal/room"
	"github.com/swarmlab/hivehub/internal/store"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *room.Manager) {
	t.Helper()
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rooms := room.NewManager(db, nil)
	srv := NewServer(rooms, config.WebConfig{}, "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, rooms
}

func dialWS(t *testing.T, ts *httptest.Server, agent string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?agent=" + agent
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) room.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f room.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return f
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	data, _ := json.Marshal(frame)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestWebSocketHelloAndPing(t *testing.T) {
	ts, _ := newWSTestServer(t)
	conn := dialWS(t, ts, "alice")

	hello := readFrame(t, conn)
	if hello["kind"] != "hello" {
		t.Fatalf("expected hello frame first, got %v", hello["kind"])
	}
	if _, ok := hello["authorizedMcps"]; !ok {
		t.Error("expected authorizedMcps in hello frame")
	}

	sendFrame(t, conn, map[string]any{"kind": "ping"})
	pong := readFrame(t, conn)
	if pong["kind"] != "pong" {
		t.Errorf("expected pong, got %v", pong["kind"])
	}
}

func TestWebSocketClaimTask(t *testing.T) {
	ts, _ := newWSTestServer(t)
	conn := dialWS(t, ts, "alice")
	readFrame(t, conn) // hello

	sendFrame(t, conn, map[string]any{"kind": "claim_task", "taskId": "T-1"})

	// The commit broadcast lands before the direct result
	broadcast := readFrame(t, conn)
	if broadcast["kind"] != "task_claimed" {
		t.Errorf("expected task_claimed broadcast, got %v", broadcast["kind"])
	}
	if broadcast["agent"] != "alice" {
		t.Errorf("expected session agent alice, got %v", broadcast["agent"])
	}

	result := readFrame(t, conn)
	if result["kind"] != "claim_result" || result["ok"] != true {
		t.Errorf("unexpected claim result: %v", result)
	}
}

func TestWebSocketConflictReportsOwner(t *testing.T) {
	ts, _ := newWSTestServer(t)
	alice := dialWS(t, ts, "alice")
	readFrame(t, alice) // hello
	bob := dialWS(t, ts, "bob")
	readFrame(t, bob) // hello

	sendFrame(t, alice, map[string]any{"kind": "claim_task", "taskId": "T-1"})
	readFrame(t, alice) // task_claimed broadcast
	readFrame(t, alice) // claim_result
	readFrame(t, bob)   // task_claimed broadcast

	sendFrame(t, bob, map[string]any{"kind": "claim_task", "taskId": "T-1"})
	result := readFrame(t, bob)
	if result["kind"] != "claim_result" || result["ok"] != false {
		t.Fatalf("expected rejected claim_result, got %v", result)
	}
	if result["claimedBy"] != "alice" {
		t.Errorf("expected claimedBy alice, got %v", result["claimedBy"])
	}
}

func TestWebSocketBroadcastFanout(t *testing.T) {
	ts, _ := newWSTestServer(t)
	alice := dialWS(t, ts, "alice")
	readFrame(t, alice) // hello
	bob := dialWS(t, ts, "bob")
	readFrame(t, bob) // hello

	sendFrame(t, alice, map[string]any{"kind": "broadcast", "message": "standup in 5"})

	chat := readFrame(t, bob)
	if chat["kind"] != "chat" {
		t.Fatalf("expected chat frame, got %v", chat["kind"])
	}
	if chat["from"] != "alice" || chat["message"] != "standup in 5" {
		t.Errorf("unexpected chat frame: %v", chat)
	}
	if chat["channel"] != "general" {
		t.Errorf("expected default channel general, got %v", chat["channel"])
	}
}

func TestWebSocketFrozenAgentRejected(t *testing.T) {
	ts, rooms := newWSTestServer(t)

	if err := rooms.Get("").FreezeAgent("mallory", "manual"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	conn := dialWS(t, ts, "mallory")
	readFrame(t, conn) // hello

	// Ping still works while frozen
	sendFrame(t, conn, map[string]any{"kind": "ping"})
	pong := readFrame(t, conn)
	if pong["kind"] != "pong" {
		t.Fatalf("expected pong for frozen agent, got %v", pong["kind"])
	}

	// Everything else is rejected
	sendFrame(t, conn, map[string]any{"kind": "claim_task", "taskId": "T-1"})
	errFrame := readFrame(t, conn)
	if errFrame["kind"] != "error" || errFrame["error"] != "agent_frozen" {
		t.Errorf("expected agent_frozen error, got %v", errFrame)
	}
}

func TestWebSocketUnknownKind(t *testing.T) {
	ts, _ := newWSTestServer(t)
	conn := dialWS(t, ts, "alice")
	readFrame(t, conn) // hello

	sendFrame(t, conn, map[string]any{"kind": "teleport"})
	errFrame := readFrame(t, conn)
	if errFrame["kind"] != "error" || errFrame["error"] != "unknown_kind" {
		t.Errorf("expected unknown_kind error, got %v", errFrame)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	ts, rooms := newWSTestServer(t)
	conn := dialWS(t, ts, "alice")
	readFrame(t, conn) // hello

	// Well past the burst budget, sent back-to-back
	const frames = 50
	for i := 0; i < frames; i++ {
		sendFrame(t, conn, map[string]any{"kind": "claim_task", "taskId": fmt.Sprintf("T-%d", i)})
	}

	limited := false
	for i := 0; i < 2*frames && !limited; i++ {
		f := readFrame(t, conn)
		if f["kind"] == "error" && f["error"] == "rate_limited" {
			limited = true
		}
	}
	if !limited {
		t.Fatal("expected a rate_limited error frame")
	}

	// Over-limit frames were dropped before dispatch, so not every claim
	// committed; the burst itself was admitted.
	tasks, err := rooms.Get("").TaskList()
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if len(tasks) >= frames {
		t.Errorf("expected over-limit claims not to commit, got %d", len(tasks))
	}
	if len(tasks) < sessionRateBurst {
		t.Errorf("expected the burst to be admitted, got %d claims", len(tasks))
	}
}

func TestWebSocketFreezeCheckFailsClosed(t *testing.T) {
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	rooms := room.NewManager(db, nil)
	srv := NewServer(rooms, config.WebConfig{}, "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn := dialWS(t, ts, "alice")
	readFrame(t, conn) // hello

	// With the store gone the frozen marker is unreadable; commands must be
	// rejected rather than waved through.
	db.Close()

	sendFrame(t, conn, map[string]any{"kind": "claim_task", "taskId": "T-1"})
	errFrame := readFrame(t, conn)
	if errFrame["kind"] != "error" || errFrame["error"] != "internal_error" {
		t.Errorf("expected internal_error when the freeze check fails, got %v", errFrame)
	}

	// Ping skips the gate and still answers
	sendFrame(t, conn, map[string]any{"kind": "ping"})
	pong := readFrame(t, conn)
	if pong["kind"] != "pong" {
		t.Errorf("expected pong, got %v", pong["kind"])
	}
}

func TestWebSocketRawEvent(t *testing.T) {
	ts, _ := newWSTestServer(t)
	alice := dialWS(t, ts, "alice")
	readFrame(t, alice) // hello
	bob := dialWS(t, ts, "bob")
	readFrame(t, bob) // hello

	sendFrame(t, alice, map[string]any{"kind": "event", "type": "deploy_started", "env": "staging"})

	got := readFrame(t, bob)
	if got["kind"] != "event" || got["type"] != "deploy_started" {
		t.Fatalf("expected verbatim event frame, got %v", got)
	}
	if got["env"] != "staging" {
		t.Errorf("expected custom field to survive, got %v", got)
	}
	if _, ok := got["ts"]; !ok {
		t.Error("expected commit ts stamped into the frame")
	}
}
