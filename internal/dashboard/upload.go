package dashboard

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/mediview/internal/document"
	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// UploadPhase is the upload state machine's current state.
type UploadPhase string

const (
	UploadIdle       UploadPhase = "idle"
	UploadValidating UploadPhase = "validating"
	UploadSubmitting UploadPhase = "submitting"
	UploadSucceeded  UploadPhase = "succeeded"
	UploadFailed     UploadPhase = "failed"
)

// UploadState is a snapshot of the upload panel.
type UploadState struct {
	Phase    UploadPhase       `json:"phase"`
	File     *document.Info    `json:"file,omitempty"`
	Language ocrapi.Language   `json:"lang"`
	Result   *ocrapi.JobResult `json:"result,omitempty"`
	Error    *Notice           `json:"error,omitempty"`

	// Accepted is set instead of Result after a queued submission.
	Accepted *ocrapi.JobAccepted `json:"accepted,omitempty"`
}

// Submitting reports whether a submission is in flight.
func (s UploadState) Submitting() bool { return s.Phase == UploadSubmitting }

// UploadController holds the single upload request, either processed
// synchronously or queued.
type UploadController struct {
	api     API
	logger  *slog.Logger
	maxSize int64

	mu       sync.Mutex
	phase    UploadPhase
	filename string
	data     []byte
	info     *document.Info
	lang     ocrapi.Language
	result   *ocrapi.JobResult
	accepted *ocrapi.JobAccepted
	err      *Notice
}

// NewUploadController creates an idle upload controller.
func NewUploadController(api API, lang ocrapi.Language, maxSize int64, logger *slog.Logger) *UploadController {
	if logger == nil {
		logger = slog.Default()
	}
	if lang == "" {
		lang = ocrapi.DefaultLanguage
	}
	return &UploadController{
		api:     api,
		logger:  logger,
		maxSize: maxSize,
		phase:   UploadIdle,
		lang:    lang,
	}
}

// SelectFile stores the candidate file and clears any error. A previous
// result stays visible until a new submission starts.
func (u *UploadController) SelectFile(filename string, data []byte) {
	var info *document.Info
	if filename != "" {
		inspected, err := document.Inspect(filename, data, 0)
		if err != nil {
			inspected = document.Info{Filename: filepath.Base(filename), Size: int64(len(data))}
		}
		info = &inspected
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.filename = filename
	u.data = data
	u.info = info
	u.err = nil
	if u.phase == UploadFailed {
		u.phase = UploadIdle
	}
}

// SetLanguage updates the language used for the next submission.
func (u *UploadController) SetLanguage(lang ocrapi.Language) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lang = lang
}

// Submit validates the selected file, sends it and waits for the OCR
// result. It is a no-op while a submission is already in flight.
func (u *UploadController) Submit(ctx context.Context) {
	u.submit(ctx, false)
}

// SubmitAsync is Submit without waiting for OCR: the service only queues
// the job. It reports whether the job was accepted.
func (u *UploadController) SubmitAsync(ctx context.Context) bool {
	return u.submit(ctx, true)
}

func (u *UploadController) submit(ctx context.Context, async bool) bool {
	u.mu.Lock()
	if u.phase == UploadSubmitting {
		u.mu.Unlock()
		u.logger.Debug("upload already in flight, ignoring submit")
		return false
	}

	u.phase = UploadValidating
	if err := document.Validate(u.filename, u.data, u.maxSize); err != nil {
		u.fail(err)
		u.mu.Unlock()
		return false
	}
	// A valid file starts a new attempt, so the previous outcome goes even
	// when the credential check stops it.
	u.result = nil
	u.accepted = nil
	if !u.api.CredentialPresent() {
		u.fail(&ocrapi.ConfigurationError{Message: ocrapi.MsgMissingCredential, Cause: ocrapi.ErrMissingCredential})
		u.mu.Unlock()
		return false
	}

	u.phase = UploadSubmitting
	u.err = nil
	req := ocrapi.UploadRequest{Filename: u.filename, Data: u.data, Language: u.lang}
	u.mu.Unlock()

	u.logger.Info("submitting upload", "filename", req.Filename, "lang", req.Language, "size", len(req.Data), "async", async)
	var (
		result   *ocrapi.JobResult
		accepted *ocrapi.JobAccepted
		err      error
	)
	if async {
		accepted, err = u.api.SubmitUploadAsync(ctx, req)
	} else {
		result, err = u.api.SubmitUpload(ctx, req)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if err != nil {
		u.logger.Warn("upload failed", "filename", req.Filename, "error", err)
		u.fail(err)
		return false
	}
	if async {
		u.logger.Info("upload queued", "filename", req.Filename, "job_id", accepted.JobID, "status", accepted.Status)
	} else {
		u.logger.Info("upload processed", "filename", req.Filename, "pages", len(result.Pages))
	}
	u.result = result
	u.accepted = accepted
	u.err = nil
	u.phase = UploadSucceeded
	return true
}

// fail records err without touching the held result. Callers hold u.mu.
func (u *UploadController) fail(err error) {
	u.err = noticeFor(err, MsgUploadFailed)
	u.phase = UploadFailed
}

// State returns a snapshot of the upload panel.
func (u *UploadController) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := UploadState{
		Phase:    u.phase,
		Language: u.lang,
		Result:   u.result,
		Accepted: u.accepted,
		Error:    u.err,
	}
	if u.info != nil {
		info := *u.info
		s.File = &info
	}
	return s
}
