package room

import (
	"encoding/json"
	"fmt"
)

// Key schema inside one room namespace. Events carry a zero-padded millisecond
// timestamp so a lexicographic prefix scan is chronological.
const (
	keyLeaderLease    = "leader_lease"
	keyLeader         = "leader"
	keyUrgentActive   = "urgent_active"
	keyAuthorizedMcps = "authorized_mcps"
	keySwarmStopped   = "swarm_stopped"

	prefixEvent     = "event:"
	prefixTaskClaim = "task_claim:"
	prefixFileLock  = "file_lock:"
	prefixAuction   = "auction:"
	prefixFrozen    = "frozen:"
	prefixPulse     = "pulse:"
	prefixKnowledge = "knowledge:"
)

func eventKey(ts int64, id string) string {
	return fmt.Sprintf("%s%013d:%s", prefixEvent, ts, id)
}

// Event is one entry in the room's append-only log.
type Event struct {
	ID      string          `json:"id"`
	Ts      int64           `json:"ts"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LeaderLease is the soft-leadership record. Another agent may take over only
// once the wall clock passes Exp.
type LeaderLease struct {
	Agent string `json:"agent"`
	Exp   int64  `json:"exp"`
}

// TaskClaim marks single ownership of a task until explicitly released.
type TaskClaim struct {
	TaskID string `json:"taskId"`
	Agent  string `json:"agent"`
	Ts     int64  `json:"ts"`
}

// FileLock is a TTL-bounded marker on a file path. Readers treat the record as
// absent once the clock reaches Exp.
type FileLock struct {
	Path      string `json:"path"`
	Agent     string `json:"agent"`
	Exclusive bool   `json:"exclusive"`
	Exp       int64  `json:"exp"`
}

// Bid is one entry in an auction's append-only bid list.
type Bid struct {
	Agent        string   `json:"agent"`
	Capabilities []string `json:"capabilities"`
	Ts           int64    `json:"ts"`
}

// Auction is an announced task plus its ordered bid list.
type Auction struct {
	TaskID               string   `json:"taskId"`
	Title                string   `json:"title"`
	RequiredCapabilities []string `json:"requiredCapabilities"`
	Bids                 []Bid    `json:"bids"`
}

// FrozenMarker records why an agent was frozen.
type FrozenMarker struct {
	Reason string `json:"reason"`
	Ts     int64  `json:"ts"`
}

// Pulse is an agent's latest self-reported presence.
type Pulse struct {
	Agent       string `json:"agent"`
	Platform    string `json:"platform,omitempty"`
	Branch      string `json:"branch,omitempty"`
	CurrentFile string `json:"currentFile,omitempty"`
	CurrentTask string `json:"currentTask,omitempty"`
	Status      string `json:"status,omitempty"`
	LastUpdate  int64  `json:"lastUpdate"`
}

// Urgent is the at-most-one active preemption record.
type Urgent struct {
	ID              string   `json:"id"`
	TaskID          string   `json:"taskId,omitempty"`
	Title           string   `json:"title"`
	Reason          string   `json:"reason"`
	Initiator       string   `json:"initiator"`
	AffectedFiles   []string `json:"affectedFiles"`
	PreemptedAgents []string `json:"preemptedAgents"`
	Status          string   `json:"status"` // "active" or "resolved"
	CreatedAt       int64    `json:"createdAt"`
	ResolvedAt      int64    `json:"resolvedAt,omitempty"`
}

// Knowledge is one append-only knowledge base entry.
type Knowledge struct {
	ID          string `json:"id"`
	Agent       string `json:"agent"`
	Category    string `json:"category,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Solution    string `json:"solution,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// Frame is one JSON message pushed to subscribers. Every frame carries a
// "kind" and a numeric "ts".
type Frame map[string]any

// LeaderResult reports a leadership attempt.
type LeaderResult struct {
	OK bool `json:"ok"`
}

// ClaimResult reports a task claim attempt. ClaimedBy names the current owner
// when the claim was rejected.
type ClaimResult struct {
	OK        bool   `json:"ok"`
	ClaimedBy string `json:"claimedBy,omitempty"`
}

// LockResult reports a file lock attempt. LockedBy names the current holder
// when the lock was rejected.
type LockResult struct {
	OK       bool   `json:"ok"`
	LockedBy string `json:"lockedBy,omitempty"`
}

// AuctionResult reports a resolved auction. A nil result means no bids.
type AuctionResult struct {
	TaskID string `json:"taskId"`
	Winner string `json:"winner"`
}

// TaskInfo is one row of the dashboard task list, derived from auctions and
// claims.
type TaskInfo struct {
	TaskID               string   `json:"taskId"`
	Title                string   `json:"title,omitempty"`
	RequiredCapabilities []string `json:"requiredCapabilities,omitempty"`
	BidCount             int      `json:"bidCount"`
	Assignee             string   `json:"assignee,omitempty"`
	Status               string   `json:"status"` // "open" or "in_progress"
}

// SwarmPulse is the live presence snapshot: pulses updated within the last
// ten minutes.
type SwarmPulse struct {
	Agents     []Pulse `json:"agents"`
	LastUpdate int64   `json:"lastUpdate"`
}

// TimelineItem is one row of the merged events+presence timeline.
type TimelineItem struct {
	Ts      int64           `json:"ts"`
	Type    string          `json:"type"`
	Agent   string          `json:"agent,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Stats is the dashboard counters snapshot.
type Stats struct {
	Project string `json:"project"`
	Agents  int    `json:"agents"`
	Tasks   int    `json:"tasks"`
	Locks   int    `json:"locks"`
	Frozen  int    `json:"frozen"`
	Stopped bool   `json:"stopped"`
	Leader  string `json:"leader,omitempty"`
	Ts      int64  `json:"ts"`
}
