package store

import (
	"database/sql"
	"fmt"
)

// Entry is one key/value pair returned by a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// Get returns the value for key in the project namespace, or nil when absent.
func (s *Store) Get(project, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE project = ? AND k = ?`, project, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Put upserts a value. Each call is atomic on its own; cross-key ordering is
// the caller's responsibility.
func (s *Store) Put(project, key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (project, k, v, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project, k) DO UPDATE SET
			v = excluded.v,
			updated_at = CURRENT_TIMESTAMP`,
		project, key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(project, key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE project = ? AND k = ?`, project, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ListPrefix returns all entries whose key starts with prefix, ordered by key
// ascending. Zero-padded timestamps in keys make this chronological for the
// event log.
func (s *Store) ListPrefix(project, prefix string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT k, v FROM kv
		WHERE project = ? AND k >= ? AND k < ?
		ORDER BY k`, project, prefix, prefix+"\xff")
	if err != nil {
		return nil, fmt.Errorf("list prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Projects returns the distinct namespaces present in the store.
func (s *Store) Projects() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT project FROM kv ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Namespace is a view of the store scoped to one project. Rooms hold a
// Namespace so they cannot reach into another room's keys.
type Namespace struct {
	s       *Store
	project string
}

func (s *Store) Namespace(project string) *Namespace {
	return &Namespace{s: s, project: project}
}

func (n *Namespace) Get(key string) ([]byte, error) {
	return n.s.Get(n.project, key)
}

func (n *Namespace) Put(key string, value []byte) error {
	return n.s.Put(n.project, key, value)
}

func (n *Namespace) Delete(key string) error {
	return n.s.Delete(n.project, key)
}

func (n *Namespace) ListPrefix(prefix string) ([]Entry, error) {
	return n.s.ListPrefix(n.project, prefix)
}
