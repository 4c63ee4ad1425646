package room

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// knowledgeSearchLimit bounds search results.
const knowledgeSearchLimit = 50

// AddKnowledge appends one knowledge base entry and returns its generated id.
func (r *Room) AddKnowledge(entry Knowledge) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.commitTs()
	entry.ID = fmt.Sprintf("kb-%d-%s", ts, uuid.New().String()[:8])
	entry.CreatedAt = ts
	if err := r.putJSON(prefixKnowledge+entry.ID, entry); err != nil {
		return "", err
	}

	r.commit(ts, "knowledge_added", map[string]any{
		"id":    entry.ID,
		"title": entry.Title,
		"agent": entry.Agent,
	})
	return entry.ID, nil
}

// SearchKnowledge returns entries whose title or description contains q
// (case-insensitive), newest first, capped to knowledgeSearchLimit. An empty
// query matches everything.
func (r *Room) SearchKnowledge(q string) ([]Knowledge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.kv.ListPrefix(prefixKnowledge)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(q)
	matches := make([]Knowledge, 0, len(entries))
	for _, e := range entries {
		var k Knowledge
		if err := decode(e.Value, &k); err != nil {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(k.Title), needle) ||
			strings.Contains(strings.ToLower(k.Description), needle) {
			matches = append(matches, k)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt > matches[j].CreatedAt
	})
	if len(matches) > knowledgeSearchLimit {
		matches = matches[:knowledgeSearchLimit]
	}
	return matches, nil
}
