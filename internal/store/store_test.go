package store

import (
	"path/filepath"
	"testing"

	"github.com/swarmlab/hivehub/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVCRUD(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("p1", "leader", []byte(`"alice"`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get("p1", "leader")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `"alice"` {
		t.Errorf("expected \"alice\", got %s", got)
	}

	// Upsert
	if err := s.Put("p1", "leader", []byte(`"bob"`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = s.Get("p1", "leader")
	if string(got) != `"bob"` {
		t.Errorf("expected \"bob\" after upsert, got %s", got)
	}

	// Missing key
	got, err = s.Get("p1", "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing key")
	}

	// Delete
	if err := s.Delete("p1", "leader"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.Get("p1", "leader")
	if got != nil {
		t.Error("expected nil after delete")
	}

	// Deleting an absent key is not an error
	if err := s.Delete("p1", "leader"); err != nil {
		t.Errorf("delete absent key: %v", err)
	}
}

func TestListPrefixOrdering(t *testing.T) {
	s := newTestStore(t)

	// Insert out of order; the scan must come back key-ascending
	_ = s.Put("p1", "event:0000000000300:c", []byte(`3`))
	_ = s.Put("p1", "event:0000000000100:a", []byte(`1`))
	_ = s.Put("p1", "event:0000000000200:b", []byte(`2`))
	_ = s.Put("p1", "pulse:alice", []byte(`{}`))

	entries, err := s.ListPrefix("p1", "event:")
	if err != nil {
		t.Fatalf("list prefix: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"1", "2", "3"} {
		if string(entries[i].Value) != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].Value)
		}
	}

	entries, _ = s.ListPrefix("p1", "pulse:")
	if len(entries) != 1 {
		t.Errorf("expected 1 pulse entry, got %d", len(entries))
	}

	entries, _ = s.ListPrefix("p1", "frozen:")
	if len(entries) != 0 {
		t.Errorf("expected no frozen entries, got %d", len(entries))
	}
}

func TestNamespaceIsolation(t *testing.T) {
	s := newTestStore(t)

	n1 := s.Namespace("alpha")
	n2 := s.Namespace("beta")

	_ = n1.Put("task_claim:T1", []byte(`{"agent":"alice"}`))

	got, _ := n2.Get("task_claim:T1")
	if got != nil {
		t.Error("expected beta namespace to be empty")
	}

	entries, _ := n2.ListPrefix("task_claim:")
	if len(entries) != 0 {
		t.Errorf("expected no entries in beta, got %d", len(entries))
	}

	projects, err := s.Projects()
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if len(projects) != 1 || projects[0] != "alpha" {
		t.Errorf("expected [alpha], got %v", projects)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := New(config.StoreConfig{Path: path})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	_ = s.Put("p1", "leader_lease", []byte(`{"agent":"alice","exp":123}`))
	s.Close()

	s2, err := New(config.StoreConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get("p1", "leader_lease")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != `{"agent":"alice","exp":123}` {
		t.Errorf("expected persisted lease, got %s", got)
	}
}
