package room

// pulseStaleMs is the age past which a pulse stops counting as live.
const pulseStaleMs = 10 * 60 * 1000

// UpdatePulse upserts an agent's presence record and fans it out.
func (r *Room) UpdatePulse(p Pulse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.commitTs()
	p.LastUpdate = ts
	if err := r.putJSON(prefixPulse+p.Agent, p); err != nil {
		return err
	}

	r.commit(ts, "pulse_update", map[string]any{
		"agent":       p.Agent,
		"platform":    p.Platform,
		"branch":      p.Branch,
		"currentFile": p.CurrentFile,
		"currentTask": p.CurrentTask,
		"status":      p.Status,
	})
	return nil
}

// SwarmPulse returns the live presence snapshot: pulses updated within the
// staleness window, plus the newest update time among them.
func (r *Room) SwarmPulse() (SwarmPulse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pulses, err := r.livePulsesLocked()
	if err != nil {
		return SwarmPulse{}, err
	}

	out := SwarmPulse{Agents: pulses}
	for _, p := range pulses {
		if p.LastUpdate > out.LastUpdate {
			out.LastUpdate = p.LastUpdate
		}
	}
	return out, nil
}

func (r *Room) livePulsesLocked() ([]Pulse, error) {
	entries, err := r.kv.ListPrefix(prefixPulse)
	if err != nil {
		return nil, err
	}

	now := r.now().UnixMilli()
	pulses := make([]Pulse, 0, len(entries))
	for _, e := range entries {
		var p Pulse
		if err := decode(e.Value, &p); err != nil {
			continue
		}
		if now-p.LastUpdate >= pulseStaleMs {
			continue
		}
		pulses = append(pulses, p)
	}
	return pulses, nil
}
