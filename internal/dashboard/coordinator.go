package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackzampolin/mediview/internal/document"
	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// Tab is one of the three mutually exclusive dashboard views.
type Tab string

const (
	TabUpload Tab = "upload"
	TabJobs   Tab = "jobs"
	TabStats  Tab = "stats"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabUpload, TabJobs, TabStats}

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tabs {
		if t == known {
			return t, nil
		}
	}
	return "", &ocrapi.ValidationError{Field: "tab", Message: fmt.Sprintf("unknown tab %q", s)}
}

// Effect is a side effect of a tab transition.
type Effect string

const (
	EffectRefreshJobs  Effect = "refresh_jobs"
	EffectRefreshStats Effect = "refresh_stats"
)

type transition struct {
	from, to Tab
}

// transitions lists every {from, to} pair. Entering jobs or stats refreshes
// that panel; entering upload or staying put does nothing.
var transitions = map[transition][]Effect{
	{TabUpload, TabUpload}: nil,
	{TabUpload, TabJobs}:   {EffectRefreshJobs},
	{TabUpload, TabStats}:  {EffectRefreshStats},
	{TabJobs, TabUpload}:   nil,
	{TabJobs, TabJobs}:     nil,
	{TabJobs, TabStats}:    {EffectRefreshStats},
	{TabStats, TabUpload}:  nil,
	{TabStats, TabJobs}:    {EffectRefreshJobs},
	{TabStats, TabStats}:   nil,
}

// EffectsFor returns the effects of moving from one tab to another.
func EffectsFor(from, to Tab) []Effect {
	return transitions[transition{from, to}]
}

// ViewState is everything the renderer needs, captured at one instant.
type ViewState struct {
	ActiveTab         Tab          `json:"active_tab"`
	CredentialPresent bool         `json:"credential_present"`
	Upload            UploadState  `json:"upload"`
	Jobs              JobListState `json:"jobs"`
	Stats             StatsState   `json:"stats"`
	Detail            DetailState  `json:"detail"`
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	API API

	// Language preselected in the upload panel.
	Language ocrapi.Language

	// MaxUploadSize in bytes. Zero uses document.DefaultMaxSize.
	MaxUploadSize int64

	// JobsLimit caps the job listing. Zero uses the service default.
	JobsLimit int

	Logger *slog.Logger
}

// Coordinator owns the active tab and the four controllers. All UI
// transitions go through its methods.
type Coordinator struct {
	api    API
	logger *slog.Logger

	upload *UploadController
	jobs   *JobListController
	stats  *StatsController
	detail *DetailController

	mu  sync.Mutex
	tab Tab
}

// NewCoordinator creates a coordinator starting on the upload tab.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = document.DefaultMaxSize
	}
	logger := cfg.Logger.With("component", "dashboard")

	return &Coordinator{
		api:    cfg.API,
		logger: logger,
		upload: NewUploadController(cfg.API, cfg.Language, cfg.MaxUploadSize, logger),
		jobs:   NewJobListController(cfg.API, ocrapi.ListFilter{Limit: cfg.JobsLimit}, logger),
		stats:  NewStatsController(cfg.API, logger),
		detail: NewDetailController(cfg.API, logger),
		tab:    TabUpload,
	}
}

// ActiveTab returns the selected tab.
func (c *Coordinator) ActiveTab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// SelectTab activates tab and runs the transition's effects before
// returning. The detail overlay is left as is.
func (c *Coordinator) SelectTab(ctx context.Context, tab Tab) {
	c.mu.Lock()
	from := c.tab
	c.tab = tab
	c.mu.Unlock()

	effects := EffectsFor(from, tab)
	c.logger.Debug("tab selected", "from", from, "to", tab, "effects", effects)
	for _, e := range effects {
		c.apply(ctx, e)
	}
}

func (c *Coordinator) apply(ctx context.Context, e Effect) {
	switch e {
	case EffectRefreshJobs:
		c.jobs.Refresh(ctx)
	case EffectRefreshStats:
		c.stats.Refresh(ctx)
	}
}

// RefreshJobs re-fetches the job list regardless of the active tab.
func (c *Coordinator) RefreshJobs(ctx context.Context) { c.jobs.Refresh(ctx) }

// FilterJobs narrows the job list to status and re-fetches it. The empty
// status lists every job.
func (c *Coordinator) FilterJobs(ctx context.Context, status ocrapi.JobStatus) {
	c.jobs.SetStatus(status)
	c.jobs.Refresh(ctx)
}

// RefreshStats re-fetches the counters regardless of the active tab.
func (c *Coordinator) RefreshStats(ctx context.Context) { c.stats.Refresh(ctx) }

// OpenJob shows the detail overlay for a job in the current list. Jobs that
// are unknown or not yet terminal are ignored and false is returned.
func (c *Coordinator) OpenJob(ctx context.Context, jobID string) bool {
	job, ok := c.jobs.Find(jobID)
	if !ok {
		c.logger.Debug("ignoring detail request for unknown job", "job_id", jobID)
		return false
	}
	if !job.DetailEligible() {
		c.logger.Debug("ignoring detail request for unfinished job", "job_id", jobID, "status", job.Status)
		return false
	}
	c.detail.Open(ctx, jobID)
	return true
}

// CloseDetail hides the detail overlay. The active tab does not change.
func (c *Coordinator) CloseDetail() { c.detail.Close() }

// SelectFile forwards to the upload controller.
func (c *Coordinator) SelectFile(filename string, data []byte) { c.upload.SelectFile(filename, data) }

// SetLanguage forwards to the upload controller.
func (c *Coordinator) SetLanguage(lang ocrapi.Language) { c.upload.SetLanguage(lang) }

// SubmitUpload forwards to the upload controller.
func (c *Coordinator) SubmitUpload(ctx context.Context) { c.upload.Submit(ctx) }

// SubmitUploadAsync queues the selected file. Once the service accepts it
// the job list is re-fetched so the new job shows up.
func (c *Coordinator) SubmitUploadAsync(ctx context.Context) {
	if c.upload.SubmitAsync(ctx) {
		c.jobs.Refresh(ctx)
	}
}

// State captures the full view state.
func (c *Coordinator) State() ViewState {
	return ViewState{
		ActiveTab:         c.ActiveTab(),
		CredentialPresent: c.api.CredentialPresent(),
		Upload:            c.upload.State(),
		Jobs:              c.jobs.State(),
		Stats:             c.stats.State(),
		Detail:            c.detail.State(),
	}
}
