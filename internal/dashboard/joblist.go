package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// JobListState is a snapshot of the jobs table.
type JobListState struct {
	Jobs        []ocrapi.Job     `json:"jobs"`
	Status      ocrapi.JobStatus `json:"status,omitempty"`
	Loaded      bool             `json:"loaded"`
	Loading     bool             `json:"loading"`
	Error       *Notice          `json:"error,omitempty"`
	RefreshedAt *time.Time       `json:"refreshed_at,omitempty"`
}

// JobListController fetches and holds the current set of jobs.
type JobListController struct {
	fetcher *snapshotFetcher[[]ocrapi.Job]

	mu     sync.Mutex
	filter ocrapi.ListFilter
}

// NewJobListController creates a job list controller. filter is passed on
// every fetch until SetStatus changes its status.
func NewJobListController(api API, filter ocrapi.ListFilter, logger *slog.Logger) *JobListController {
	c := &JobListController{filter: filter}
	fetch := func(ctx context.Context) ([]ocrapi.Job, error) {
		return api.ListJobs(ctx, c.Filter())
	}
	c.fetcher = newSnapshotFetcher("jobs", MsgJobsFailed, logger, fetch)
	return c
}

// SetStatus narrows later fetches to one status. The empty status lists
// every job. The current rows stay until the next Refresh.
func (c *JobListController) SetStatus(status ocrapi.JobStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Status = status
}

// Filter returns the filter the next fetch uses.
func (c *JobListController) Filter() ocrapi.ListFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Refresh re-fetches the job list. On failure the previous list is kept.
func (c *JobListController) Refresh(ctx context.Context) {
	c.fetcher.refresh(ctx)
}

// State returns a snapshot of the jobs table.
func (c *JobListController) State() JobListState {
	snap := c.fetcher.snapshot()
	jobs := make([]ocrapi.Job, len(snap.value))
	copy(jobs, snap.value)

	s := JobListState{
		Jobs:    jobs,
		Status:  c.Filter().Status,
		Loaded:  snap.loaded,
		Loading: snap.loading,
		Error:   snap.err,
	}
	if snap.loaded {
		t := snap.refreshedAt
		s.RefreshedAt = &t
	}
	return s
}

// Find returns the job with id from the current snapshot.
func (c *JobListController) Find(id string) (ocrapi.Job, bool) {
	snap := c.fetcher.snapshot()
	for _, j := range snap.value {
		if j.ID == id {
			return j, true
		}
	}
	return ocrapi.Job{}, false
}
