package room

import (
	"fmt"
	"strings"
)

// UrgentInput is the caller-supplied part of an urgent trigger.
type UrgentInput struct {
	TaskID        string   `json:"taskId,omitempty"`
	Title         string   `json:"title"`
	Reason        string   `json:"reason"`
	Initiator     string   `json:"initiator"`
	AffectedFiles []string `json:"affectedFiles"`
}

// TriggerUrgent activates a preemption: agents whose live pulse is active and
// whose current file overlaps any affected file are preempted and notified on
// their own sockets. Writing the singleton record replaces any previous
// active urgent, keeping at most one active at a time.
func (r *Room) TriggerUrgent(in UrgentInput) (*Urgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pulses, err := r.livePulsesLocked()
	if err != nil {
		return nil, err
	}

	ts := r.commitTs()
	var preempted []string
	for _, p := range pulses {
		if p.Status != "active" || p.CurrentFile == "" {
			continue
		}
		for _, f := range in.AffectedFiles {
			if f != "" && strings.Contains(p.CurrentFile, f) {
				preempted = append(preempted, p.Agent)
				break
			}
		}
	}

	urgent := Urgent{
		ID:              fmt.Sprintf("urgent-%d", ts),
		TaskID:          in.TaskID,
		Title:           in.Title,
		Reason:          in.Reason,
		Initiator:       in.Initiator,
		AffectedFiles:   in.AffectedFiles,
		PreemptedAgents: preempted,
		Status:          "active",
		CreatedAt:       ts,
	}
	if err := r.putJSON(keyUrgentActive, urgent); err != nil {
		return nil, err
	}

	r.commit(ts, "urgent_preemption", map[string]any{
		"urgentId":        urgent.ID,
		"title":           urgent.Title,
		"reason":          urgent.Reason,
		"initiator":       urgent.Initiator,
		"affectedFiles":   urgent.AffectedFiles,
		"preemptedAgents": preempted,
	})
	for _, agent := range preempted {
		r.sendToAgent(agent, Frame{
			"kind":     "you_are_preempted",
			"ts":       ts,
			"urgentId": urgent.ID,
			"reason":   urgent.Reason,
		})
	}
	return &urgent, nil
}

// ActiveUrgent returns the active urgent record, nil when none.
func (r *Room) ActiveUrgent() (*Urgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var urgent Urgent
	found, err := r.getJSON(keyUrgentActive, &urgent)
	if err != nil {
		return nil, err
	}
	if !found || urgent.Status != "active" {
		return nil, nil
	}
	return &urgent, nil
}

// ResolveUrgent flips the active urgent to resolved iff the id matches.
func (r *Room) ResolveUrgent(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var urgent Urgent
	found, err := r.getJSON(keyUrgentActive, &urgent)
	if err != nil {
		return false, err
	}
	if !found || urgent.Status != "active" || urgent.ID != id {
		return false, nil
	}

	ts := r.commitTs()
	urgent.Status = "resolved"
	urgent.ResolvedAt = ts
	if err := r.putJSON(keyUrgentActive, urgent); err != nil {
		return false, err
	}

	r.commit(ts, "urgent_resolved", map[string]any{"urgentId": id})
	return true, nil
}
