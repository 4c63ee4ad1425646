package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/swarmlab/hivehub/internal/room"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inbound frame budget per session. Generous for real agents; protects the
// room's serialized dispatcher from a chattering client.
const (
	sessionRateLimit = 20
	sessionRateBurst = 40
)

// wsClient is one live socket attached to a room. Frames are written under
// writeMu because gorilla permits a single concurrent writer.
type wsClient struct {
	conn    *websocket.Conn
	agent   string
	writeMu sync.Mutex
}

func (c *wsClient) Agent() string {
	return c.agent
}

func (c *wsClient) Send(frame room.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// wsRequest is the typed inbound frame grammar. One struct covers every kind;
// the dispatch switch treats absent fields as empty.
type wsRequest struct {
	Kind                 string   `json:"kind"`
	Agent                string   `json:"agent"`
	TaskID               string   `json:"taskId"`
	Title                string   `json:"title"`
	RequiredCapabilities []string `json:"requiredCapabilities"`
	Capabilities         []string `json:"capabilities"`
	Path                 string   `json:"path"`
	Exclusive            bool     `json:"exclusive"`
	TtlMs                int64    `json:"ttlMs"`
	Message              string   `json:"message"`
	Channel              string   `json:"channel"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rm := s.room(r)
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		agent = "anonymous"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, agent: agent}
	hello := rm.Attach(client)
	defer func() {
		rm.Detach(client)
		conn.Close()
	}()

	if err := client.Send(hello); err != nil {
		return
	}

	limiter := rate.NewLimiter(sessionRateLimit, sessionRateBurst)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			// Non-JSON frames are silently dropped
			continue
		}

		if !limiter.Allow() {
			_ = client.Send(room.Frame{"kind": "error", "error": "rate_limited"})
			continue
		}

		s.dispatchFrame(rm, client, req, data)
	}
}

func (s *Server) dispatchFrame(rm *room.Room, client *wsClient, req wsRequest, raw []byte) {
	// The session's asserted agent is the default actor; a frame may speak
	// for an explicit agent field instead.
	agent := req.Agent
	if agent == "" {
		agent = client.agent
	}

	if req.Kind != "ping" {
		frozen, err := rm.IsFrozen(client.agent)
		if err != nil {
			// Fail closed: an unreadable marker must not bypass the gate
			_ = client.Send(room.Frame{"kind": "error", "error": "internal_error"})
			return
		}
		if frozen {
			_ = client.Send(room.Frame{"kind": "error", "error": "agent_frozen"})
			return
		}
	}

	switch req.Kind {
	case "ping":
		_ = client.Send(room.Frame{"kind": "pong", "ts": nowMs()})

	case "try_leader":
		res, err := rm.TryBecomeLeader(agent)
		if err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
			return
		}
		_ = client.Send(room.Frame{"kind": "leader_result", "ok": res.OK, "ts": nowMs()})

	case "claim_task":
		res, err := rm.ClaimTask(req.TaskID, agent)
		if err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
			return
		}
		f := room.Frame{"kind": "claim_result", "ok": res.OK, "taskId": req.TaskID, "ts": nowMs()}
		if res.ClaimedBy != "" {
			f["claimedBy"] = res.ClaimedBy
		}
		_ = client.Send(f)

	case "release_task":
		if err := rm.ReleaseTask(req.TaskID, agent); err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
			return
		}
		_ = client.Send(room.Frame{"kind": "release_result", "ok": true, "taskId": req.TaskID, "ts": nowMs()})

	case "lock_file":
		res, err := rm.LockFile(req.Path, agent, req.Exclusive, req.TtlMs)
		if err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
			return
		}
		f := room.Frame{"kind": "lock_result", "ok": res.OK, "path": req.Path, "ts": nowMs()}
		if res.LockedBy != "" {
			f["lockedBy"] = res.LockedBy
		}
		_ = client.Send(f)

	case "unlock_file":
		if err := rm.UnlockFile(req.Path, agent); err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
			return
		}
		_ = client.Send(room.Frame{"kind": "unlock_result", "ok": true, "path": req.Path, "ts": nowMs()})

	case "announce_task":
		if err := rm.AnnounceTask(req.TaskID, req.Title, req.RequiredCapabilities); err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
		}

	case "bid_task":
		if err := rm.BidTask(req.TaskID, agent, req.Capabilities); err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
		}

	case "broadcast":
		if err := rm.BroadcastChat(agent, req.Message, req.Channel); err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
		}

	case "event":
		// Re-broadcast the original frame verbatim after appending it
		var frame room.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return
		}
		if err := rm.RawEvent(frame); err != nil {
			_ = client.Send(room.Frame{"kind": "error", "error": err.Error()})
		}

	default:
		_ = client.Send(room.Frame{"kind": "error", "error": "unknown_kind"})
	}
}
