package room

// defaultLockTTLMs applies when the caller does not choose a TTL.
const defaultLockTTLMs = 60_000

// LockFile takes a TTL-bounded lock on a path. An existing lock counts only
// while unexpired. A live lock blocks the request when it is exclusive and
// held by someone else, or when the requester wants exclusivity. An accepted
// shared lock overwrites whatever shared record was there: the store keeps a
// single lock record per path, so concurrent shared holders are not
// represented on the wire.
func (r *Room) LockFile(path, agent string, exclusive bool, ttlMs int64) (LockResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ttlMs <= 0 {
		ttlMs = defaultLockTTLMs
	}

	ts := r.commitTs()

	var existing FileLock
	found, err := r.getJSON(prefixFileLock+path, &existing)
	if err != nil {
		return LockResult{}, err
	}
	if found && existing.Exp > ts {
		if (existing.Exclusive && existing.Agent != agent) || exclusive {
			return LockResult{OK: false, LockedBy: existing.Agent}, nil
		}
	}

	lock := FileLock{Path: path, Agent: agent, Exclusive: exclusive, Exp: ts + ttlMs}
	if err := r.putJSON(prefixFileLock+path, lock); err != nil {
		return LockResult{}, err
	}

	r.commit(ts, "file_locked", map[string]any{
		"path":      path,
		"agent":     agent,
		"exclusive": exclusive,
	})
	return LockResult{OK: true}, nil
}

// UnlockFile deletes the lock iff the stored owner is the caller; otherwise a
// successful no-op.
func (r *Room) UnlockFile(path, agent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing FileLock
	found, err := r.getJSON(prefixFileLock+path, &existing)
	if err != nil {
		return err
	}
	if !found || existing.Agent != agent {
		return nil
	}

	if err := r.kv.Delete(prefixFileLock + path); err != nil {
		return err
	}

	ts := r.commitTs()
	r.commit(ts, "file_unlocked", map[string]any{"path": path, "agent": agent})
	return nil
}
