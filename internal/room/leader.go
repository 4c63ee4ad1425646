package room

import "log/slog"

// leaseDurationMs is the leader lease length. A stuck orchestrator is
// displaced after one keep-alive period without explicit resignation.
const leaseDurationMs = 30_000

// TryBecomeLeader grants a fresh 30-second lease when no lease exists, the
// stored lease has expired, or the caller already holds it (renewal is
// idempotent).
func (r *Room) TryBecomeLeader(agent string) (LeaderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.commitTs()

	var lease LeaderLease
	found, err := r.getJSON(keyLeaderLease, &lease)
	if err != nil {
		return LeaderResult{}, err
	}
	if found && lease.Exp > ts && lease.Agent != agent {
		return LeaderResult{OK: false}, nil
	}

	lease = LeaderLease{Agent: agent, Exp: ts + leaseDurationMs}
	if err := r.putJSON(keyLeaderLease, lease); err != nil {
		return LeaderResult{}, err
	}
	if err := r.kv.Put(keyLeader, []byte(agent)); err != nil {
		return LeaderResult{}, err
	}

	r.commit(ts, "leader_changed", map[string]any{"agent": agent})
	slog.Info("leader lease granted", "project", r.project, "agent", agent)
	return LeaderResult{OK: true}, nil
}

// Leader returns the last granted leader name, empty when none.
func (r *Room) Leader() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := r.kv.Get(keyLeader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
