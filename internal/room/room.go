package room

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/swarmlab/hivehub/internal/natsbus"
	"github.com/swarmlab/hivehub/internal/store"
)

// Subscriber is one live push channel attached to a room, tagged with the
// agent name asserted at connect time.
type Subscriber interface {
	Agent() string
	Send(frame Frame) error
}

// Mirror republishes committed frames on a message bus for out-of-process
// consumers. A nil mirror disables republishing.
type Mirror interface {
	Publish(topic string, data []byte) error
}

// Room is the single-writer coordination core for one project. Every command
// runs under mu, so storage reads and writes of two commands never interleave
// and broadcast order matches commit order.
type Room struct {
	project string
	kv      *store.Namespace
	mirror  Mirror
	now     func() time.Time

	mu       sync.Mutex
	subs     map[Subscriber]struct{}
	activity map[string]*activityRecord
	lastTs   int64
}

type activityRecord struct {
	lastPing        int64
	actionsLast5Min int
}

func newRoom(project string, kv *store.Namespace, mirror Mirror) *Room {
	return &Room{
		project:  project,
		kv:       kv,
		mirror:   mirror,
		now:      time.Now,
		subs:     make(map[Subscriber]struct{}),
		activity: make(map[string]*activityRecord),
	}
}

func (r *Room) Project() string {
	return r.project
}

// Attach adds a subscriber to the room and returns the hello frame the
// session must deliver first.
func (r *Room) Attach(sub Subscriber) Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub] = struct{}{}

	mcps, _ := r.authorizedMcps()
	return Frame{
		"kind":           "hello",
		"ts":             r.now().UnixMilli(),
		"authorizedMcps": mcps,
	}
}

func (r *Room) Detach(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, sub)
}

// commitTs assigns the command's commit timestamp. Clamped so the sequence is
// strictly monotonic even if the platform clock steps backward.
func (r *Room) commitTs() int64 {
	ts := r.now().UnixMilli()
	if ts <= r.lastTs {
		ts = r.lastTs + 1
	}
	r.lastTs = ts
	return ts
}

// appendEvent writes one entry to the event log. Callers hold mu.
func (r *Room) appendEvent(ts int64, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("event payload marshal failed", "project", r.project, "type", eventType, "error", err)
		data = nil
	}
	ev := Event{
		ID:      uuid.New().String(),
		Ts:      ts,
		Type:    eventType,
		Payload: data,
	}
	value, _ := json.Marshal(ev)
	if err := r.kv.Put(eventKey(ts, ev.ID), value); err != nil {
		slog.Error("event append failed", "project", r.project, "type", eventType, "error", err)
	}
}

// broadcast pushes a frame to every subscriber. A failing peer is evicted and
// never blocks the others; errors do not propagate to the command. Callers
// hold mu.
func (r *Room) broadcast(f Frame) {
	for sub := range r.subs {
		if err := sub.Send(f); err != nil {
			delete(r.subs, sub)
		}
	}
	r.republish(natsbus.TopicRoomEvents(r.project), f)
}

// sendToAgent pushes a frame only to the sockets tagged with agent. Callers
// hold mu.
func (r *Room) sendToAgent(agent string, f Frame) {
	for sub := range r.subs {
		if sub.Agent() != agent {
			continue
		}
		if err := sub.Send(f); err != nil {
			delete(r.subs, sub)
		}
	}
	r.republish(natsbus.TopicRoomAgent(r.project, agent), f)
}

func (r *Room) republish(topic string, f Frame) {
	if r.mirror == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := r.mirror.Publish(topic, data); err != nil {
		slog.Warn("event mirror publish failed", "project", r.project, "topic", topic, "error", err)
	}
}

// commit is the tail of every state-mutating command: one event log entry and
// one broadcast frame sharing the commit ts. Extra fields land in both the
// frame and the event payload.
func (r *Room) commit(ts int64, kind string, fields map[string]any) {
	r.appendEvent(ts, kind, fields)
	f := Frame{"kind": kind, "ts": ts}
	for k, v := range fields {
		f[k] = v
	}
	r.broadcast(f)
}

func decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (r *Room) getJSON(key string, v any) (bool, error) {
	data, err := r.kv.Get(key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Room) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.kv.Put(key, data)
}

// Manager owns the live rooms, keyed by project identifier. Rooms are created
// lazily and share nothing but the underlying store and mirror client.
type Manager struct {
	store  *store.Store
	mirror Mirror

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(s *store.Store, mirror Mirror) *Manager {
	return &Manager{
		store:  s,
		mirror: mirror,
		rooms:  make(map[string]*Room),
	}
}

// Get returns the room for a project, creating it on first use.
func (m *Manager) Get(project string) *Room {
	if project == "" {
		project = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[project]
	if !ok {
		r = newRoom(project, m.store.Namespace(project), m.mirror)
		m.rooms[project] = r
		slog.Info("room created", "project", project)
	}
	return r
}

// Rooms returns the currently live rooms.
func (m *Manager) Rooms() []*Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}
