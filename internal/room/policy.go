package room

import "encoding/json"

// AuthorizeMcps replaces the authorized MCP server list (last write wins) and
// announces the change.
func (r *Room) AuthorizeMcps(mcps []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mcps == nil {
		mcps = []string{}
	}
	data, _ := json.Marshal(mcps)
	if err := r.kv.Put(keyAuthorizedMcps, data); err != nil {
		return err
	}

	ts := r.commitTs()
	r.commit(ts, "policy_update", map[string]any{"mcps": mcps})
	return nil
}

// AuthorizedMcps returns the current policy list, empty when never set.
func (r *Room) AuthorizedMcps() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authorizedMcps()
}

func (r *Room) authorizedMcps() ([]string, error) {
	data, err := r.kv.Get(keyAuthorizedMcps)
	if err != nil {
		return nil, err
	}
	mcps := []string{}
	if data != nil {
		_ = json.Unmarshal(data, &mcps)
	}
	return mcps, nil
}

// SetSwarmStopped flips the pause/resume marker and announces it.
func (r *Room) SetSwarmStopped(stopped bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, _ := json.Marshal(stopped)
	if err := r.kv.Put(keySwarmStopped, data); err != nil {
		return err
	}

	kind := "swarm_resumed"
	if stopped {
		kind = "swarm_stopped"
	}
	ts := r.commitTs()
	r.commit(ts, kind, map[string]any{"stopped": stopped})
	return nil
}

// SwarmStopped reports the pause marker; clients consult it before picking up
// new work.
func (r *Room) SwarmStopped() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.kv.Get(keySwarmStopped)
	if err != nil {
		return false, err
	}
	var stopped bool
	if data != nil {
		_ = json.Unmarshal(data, &stopped)
	}
	return stopped, nil
}

// Stats returns the dashboard counters snapshot.
func (r *Room) Stats() (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	st := Stats{Project: r.project, Ts: now}

	pulses, err := r.livePulsesLocked()
	if err != nil {
		return Stats{}, err
	}
	st.Agents = len(pulses)

	claims, err := r.kv.ListPrefix(prefixTaskClaim)
	if err != nil {
		return Stats{}, err
	}
	st.Tasks = len(claims)

	locks, err := r.kv.ListPrefix(prefixFileLock)
	if err != nil {
		return Stats{}, err
	}
	for _, e := range locks {
		var l FileLock
		if err := decode(e.Value, &l); err != nil {
			continue
		}
		if l.Exp > now {
			st.Locks++
		}
	}

	frozen, err := r.kv.ListPrefix(prefixFrozen)
	if err != nil {
		return Stats{}, err
	}
	st.Frozen = len(frozen)

	if data, err := r.kv.Get(keySwarmStopped); err == nil && data != nil {
		_ = json.Unmarshal(data, &st.Stopped)
	}
	if data, err := r.kv.Get(keyLeader); err == nil {
		st.Leader = string(data)
	}
	return st, nil
}
