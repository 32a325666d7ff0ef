package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// DetailPhase is the detail overlay's current state.
type DetailPhase string

const (
	DetailClosed     DetailPhase = "closed"
	DetailLoading    DetailPhase = "loading"
	DetailLoaded     DetailPhase = "loaded"
	DetailInProgress DetailPhase = "in_progress"
	DetailFailed     DetailPhase = "failed"
)

// DetailState is a snapshot of the detail overlay.
type DetailState struct {
	Phase  DetailPhase       `json:"phase"`
	JobID  string            `json:"job_id,omitempty"`
	Result *ocrapi.JobResult `json:"result,omitempty"`
	Error  *Notice           `json:"error,omitempty"`
}

// Open reports whether the overlay is shown.
func (s DetailState) Open() bool { return s.Phase != DetailClosed }

// Loading reports whether a fetch for the selected job is in flight.
func (s DetailState) Loading() bool { return s.Phase == DetailLoading }

// DetailController fetches the full result of one selected job. Every fetch
// carries a generation number; a response whose generation is no longer
// current (another job was opened, or the overlay closed) is discarded.
type DetailController struct {
	api    API
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64
	phase      DetailPhase
	jobID      string
	result     *ocrapi.JobResult
	err        *Notice
}

func NewDetailController(api API, logger *slog.Logger) *DetailController {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailController{api: api, logger: logger, phase: DetailClosed}
}

// Open selects jobID and fetches its result.
func (d *DetailController) Open(ctx context.Context, jobID string) {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	d.jobID = jobID
	d.phase = DetailLoading
	d.result = nil
	d.err = nil
	d.mu.Unlock()

	result, err := d.api.GetResult(ctx, jobID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		d.logger.Debug("discarding stale detail response", "job_id", jobID, "selected", d.jobID)
		return
	}

	switch kind := ocrapi.KindOf(err); kind {
	case ocrapi.KindNone:
		d.result = result
		d.phase = DetailLoaded
	case ocrapi.KindInProgress:
		d.logger.Info("job still processing", "job_id", jobID)
		d.err = noticeFor(err, MsgDetailFailed)
		d.phase = DetailInProgress
	default:
		d.logger.Warn("failed to load job detail", "job_id", jobID, "error", err)
		d.err = noticeFor(err, MsgDetailFailed)
		d.phase = DetailFailed
	}
}

// Close clears the selection and anything loaded for it.
func (d *DetailController) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.jobID = ""
	d.phase = DetailClosed
	d.result = nil
	d.err = nil
}

func (d *DetailController) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DetailState{
		Phase:  d.phase,
		JobID:  d.jobID,
		Result: d.result,
		Error:  d.err,
	}
}
