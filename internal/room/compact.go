package room

import "log/slog"

// purgeAgeMs is how long dead pulses and resolved urgents linger before the
// janitor drops them.
const purgeAgeMs = 24 * 60 * 60 * 1000

// Compact is the janitor's storage-side GC pass: it drops expired file locks,
// pulses not refreshed within purgeAgeMs, resolved urgent markers past the
// same age, and trims the stored event log to the newest keepEvents. The
// read-side contracts (newest-500 tail, 10-minute pulse liveness) are
// unaffected; this only bounds storage growth. No frames are emitted.
func (r *Room) Compact(keepEvents int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	removed := 0

	locks, err := r.kv.ListPrefix(prefixFileLock)
	if err != nil {
		return removed, err
	}
	for _, e := range locks {
		var l FileLock
		if err := decode(e.Value, &l); err != nil || now >= l.Exp {
			if err := r.kv.Delete(e.Key); err == nil {
				removed++
			}
		}
	}

	pulses, err := r.kv.ListPrefix(prefixPulse)
	if err != nil {
		return removed, err
	}
	for _, e := range pulses {
		var p Pulse
		if err := decode(e.Value, &p); err != nil || now-p.LastUpdate > purgeAgeMs {
			if err := r.kv.Delete(e.Key); err == nil {
				removed++
			}
		}
	}

	var urgent Urgent
	if found, err := r.getJSON(keyUrgentActive, &urgent); err == nil && found {
		if urgent.Status == "resolved" && now-urgent.ResolvedAt > purgeAgeMs {
			if err := r.kv.Delete(keyUrgentActive); err == nil {
				removed++
			}
		}
	}

	if keepEvents > 0 {
		events, err := r.kv.ListPrefix(prefixEvent)
		if err != nil {
			return removed, err
		}
		if excess := len(events) - keepEvents; excess > 0 {
			// Scan order is chronological, so the head is the oldest.
			for _, e := range events[:excess] {
				if err := r.kv.Delete(e.Key); err == nil {
					removed++
				}
			}
		}
	}

	if removed > 0 {
		slog.Debug("room compacted", "project", r.project, "removed", removed)
	}
	return removed, nil
}
