package room

import "encoding/json"

const (
	// eventTailLimit bounds the read side of the event log.
	eventTailLimit = 500
	// timelineLimit bounds the merged events+presence view.
	timelineLimit = 200
)

// EventsSince returns events with ts strictly after since, ascending, capped
// to the newest eventTailLimit. This is the redelivery path for reconnecting
// clients.
func (r *Room) EventsSince(since int64) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eventsSinceLocked(since)
}

func (r *Room) eventsSinceLocked(since int64) ([]Event, error) {
	entries, err := r.kv.ListPrefix(prefixEvent)
	if err != nil {
		return nil, err
	}

	// Keys are zero-padded by ts, so the scan is already ascending.
	events := make([]Event, 0, len(entries))
	for _, e := range entries {
		var ev Event
		if err := decode(e.Value, &ev); err != nil {
			continue
		}
		if ev.Ts > since {
			events = append(events, ev)
		}
	}
	if len(events) > eventTailLimit {
		events = events[len(events)-eventTailLimit:]
	}
	return events, nil
}

// Timeline merges the event tail with live pulses into one ascending list,
// capped to the newest timelineLimit entries.
func (r *Room) Timeline(since int64) ([]TimelineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.eventsSinceLocked(since)
	if err != nil {
		return nil, err
	}
	pulses, err := r.livePulsesLocked()
	if err != nil {
		return nil, err
	}

	items := make([]TimelineItem, 0, len(events)+len(pulses))
	for _, ev := range events {
		items = append(items, TimelineItem{Ts: ev.Ts, Type: ev.Type, Payload: ev.Payload})
	}
	for _, p := range pulses {
		if p.LastUpdate <= since {
			continue
		}
		payload, _ := json.Marshal(p)
		items = append(items, TimelineItem{Ts: p.LastUpdate, Type: "pulse", Agent: p.Agent, Payload: payload})
	}

	sortTimeline(items)
	if len(items) > timelineLimit {
		items = items[len(items)-timelineLimit:]
	}
	return items, nil
}

func sortTimeline(items []TimelineItem) {
	// Insertion sort: both inputs are near-sorted and small.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Ts < items[j-1].Ts; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// BroadcastChat logs and fans out a chat message.
func (r *Room) BroadcastChat(from, message, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if channel == "" {
		channel = "general"
	}

	ts := r.commitTs()
	r.commit(ts, "chat", map[string]any{
		"from":    from,
		"message": message,
		"channel": channel,
	})
	return nil
}

// RawEvent appends a client-supplied event frame and re-broadcasts it
// verbatim (with the commit ts stamped in).
func (r *Room) RawEvent(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventType, _ := frame["type"].(string)
	if eventType == "" {
		eventType = "event"
	}

	ts := r.commitTs()
	frame["ts"] = ts
	r.appendEvent(ts, eventType, frame)
	r.broadcast(frame)
	return nil
}

// IngestWebhook appends one github.<eventType> event with the raw delivery
// body and notifies subscribers.
func (r *Room) IngestWebhook(eventType, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if eventType == "" {
		eventType = "unknown"
	}

	ts := r.commitTs()
	r.appendEvent(ts, "github."+eventType, map[string]any{"raw": body})
	r.broadcast(Frame{"kind": "event", "type": "github." + eventType, "ts": ts})
	return nil
}
