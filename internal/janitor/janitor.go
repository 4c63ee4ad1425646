package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/swarmlab/hivehub/internal/config"
	"github.com/swarmlab/hivehub/internal/room"
)

// Janitor runs the storage-side compaction policy: rooms grow their event
// logs and accumulate expired locks and dead pulses; the janitor trims them
// on a cron schedule. Read-side contracts are unaffected.
type Janitor struct {
	rooms      *room.Manager
	schedule   string
	keepEvents int
}

func New(rooms *room.Manager, cfg config.JanitorConfig) *Janitor {
	schedule := cfg.Schedule
	if schedule == "" || !gronx.New().IsValid(schedule) {
		if schedule != "" {
			slog.Warn("invalid janitor schedule, using default", "schedule", schedule)
		}
		schedule = "*/5 * * * *"
	}

	keep := cfg.KeepEvents
	if keep <= 0 {
		keep = 5000
	}

	return &Janitor{
		rooms:      rooms,
		schedule:   schedule,
		keepEvents: keep,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	slog.Info("janitor started", "schedule", j.schedule, "keep_events", j.keepEvents)

	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopped")
			return
		case <-ticker.C:
			due, err := gronx.New().IsDue(j.schedule, time.Now())
			if err != nil || !due {
				continue
			}
			j.Sweep()
		}
	}
}

// Sweep compacts every live room once.
func (j *Janitor) Sweep() {
	for _, rm := range j.rooms.Rooms() {
		removed, err := rm.Compact(j.keepEvents)
		if err != nil {
			slog.Error("room compaction failed", "project", rm.Project(), "error", err)
			continue
		}
		if removed > 0 {
			slog.Info("room compacted", "project", rm.Project(), "removed", removed)
		}
	}
}
