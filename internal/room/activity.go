package room

import "log/slog"

const (
	// activityWindowMs is the sliding window the anomaly detector counts in.
	activityWindowMs = 5 * 60 * 1000
	// activityThreshold is the action count above which an agent is frozen.
	activityThreshold = 200
)

// ReportActivity adds to the agent's in-memory action counter. The counter
// resets when the previous ping is older than the window. Crossing the
// threshold freezes the agent and reports an anomaly. Counters do not survive
// a restart; they are rate state, not coordination state.
func (r *Room) ReportActivity(agent string, actions int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	rec, ok := r.activity[agent]
	if !ok {
		rec = &activityRecord{}
		r.activity[agent] = rec
	}
	if now-rec.lastPing > activityWindowMs {
		rec.actionsLast5Min = 0
	}
	rec.actionsLast5Min += actions
	rec.lastPing = now

	if rec.actionsLast5Min > activityThreshold {
		if err := r.freezeAgentLocked(agent, "anomaly_detected: too many actions"); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// FreezeAgent marks an agent frozen. A frozen agent's WebSocket messages
// other than ping are rejected until unfrozen.
func (r *Room) FreezeAgent(agent, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freezeAgentLocked(agent, reason)
}

func (r *Room) freezeAgentLocked(agent, reason string) error {
	ts := r.commitTs()
	if err := r.putJSON(prefixFrozen+agent, FrozenMarker{Reason: reason, Ts: ts}); err != nil {
		return err
	}

	r.commit(ts, "agent_frozen", map[string]any{"agent": agent, "reason": reason})
	r.sendToAgent(agent, Frame{"kind": "you_are_frozen", "ts": ts, "reason": reason})
	slog.Warn("agent frozen", "project", r.project, "agent", agent, "reason", reason)
	return nil
}

// UnfreezeAgent clears the frozen marker. Unfreezing a non-frozen agent is a
// no-op.
func (r *Room) UnfreezeAgent(agent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var marker FrozenMarker
	found, err := r.getJSON(prefixFrozen+agent, &marker)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := r.kv.Delete(prefixFrozen + agent); err != nil {
		return err
	}

	ts := r.commitTs()
	r.commit(ts, "agent_unfrozen", map[string]any{"agent": agent})
	return nil
}

// IsFrozen reports whether the agent carries a frozen marker.
func (r *Room) IsFrozen(agent string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isFrozenLocked(agent)
}

func (r *Room) isFrozenLocked(agent string) (bool, error) {
	data, err := r.kv.Get(prefixFrozen + agent)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}
