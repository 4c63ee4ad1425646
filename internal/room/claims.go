package room

// ClaimTask takes single ownership of a task. A claim held by another agent
// is rejected with its owner's name; re-claiming your own task succeeds and
// refreshes the timestamp.
func (r *Room) ClaimTask(taskID, agent string) (ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimTaskLocked(taskID, agent)
}

func (r *Room) claimTaskLocked(taskID, agent string) (ClaimResult, error) {
	var existing TaskClaim
	found, err := r.getJSON(prefixTaskClaim+taskID, &existing)
	if err != nil {
		return ClaimResult{}, err
	}
	if found && existing.Agent != agent {
		return ClaimResult{OK: false, ClaimedBy: existing.Agent}, nil
	}

	ts := r.commitTs()
	claim := TaskClaim{TaskID: taskID, Agent: agent, Ts: ts}
	if err := r.putJSON(prefixTaskClaim+taskID, claim); err != nil {
		return ClaimResult{}, err
	}

	r.commit(ts, "task_claimed", map[string]any{"taskId": taskID, "agent": agent})
	return ClaimResult{OK: true}, nil
}

// ReleaseTask deletes the claim iff the caller owns it. A non-owner release
// is a successful no-op so client retries stay safe.
func (r *Room) ReleaseTask(taskID, agent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing TaskClaim
	found, err := r.getJSON(prefixTaskClaim+taskID, &existing)
	if err != nil {
		return err
	}
	if !found || existing.Agent != agent {
		return nil
	}

	if err := r.kv.Delete(prefixTaskClaim + taskID); err != nil {
		return err
	}

	ts := r.commitTs()
	r.commit(ts, "task_released", map[string]any{"taskId": taskID, "agent": agent})
	return nil
}
