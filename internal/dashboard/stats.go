package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// StatsState is a snapshot of the stats panel.
type StatsState struct {
	Stats       *ocrapi.Stats `json:"stats,omitempty"`
	Loading     bool          `json:"loading"`
	Error       *Notice       `json:"error,omitempty"`
	RefreshedAt *time.Time    `json:"refreshed_at,omitempty"`
}

// StatsController fetches and holds the aggregate counters.
type StatsController struct {
	fetcher *snapshotFetcher[*ocrapi.Stats]
}

func NewStatsController(api API, logger *slog.Logger) *StatsController {
	return &StatsController{
		fetcher: newSnapshotFetcher("stats", MsgStatsFailed, logger, api.GetStats),
	}
}

// Refresh re-fetches the counters. On failure the previous values are kept.
func (c *StatsController) Refresh(ctx context.Context) {
	c.fetcher.refresh(ctx)
}

func (c *StatsController) State() StatsState {
	snap := c.fetcher.snapshot()
	s := StatsState{
		Loading: snap.loading,
		Error:   snap.err,
	}
	if snap.loaded && snap.value != nil {
		stats := *snap.value
		s.Stats = &stats
		t := snap.refreshedAt
		s.RefreshedAt = &t
	}
	return s
}
