package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jackzampolin/mediview/internal/document"
	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// RedactionPlaceholder is shown for a sensitive item the service sent
// without masked text.
const RedactionPlaceholder = "***"

const displayTimeLayout = "2006-01-02 15:04:05"

// DisplayText returns the text to render for item. The raw text of a
// sensitive item is never returned; an empty mask counts as no mask.
func DisplayText(item ocrapi.Item) string {
	if !item.IsSensitive {
		return item.Text
	}
	if item.MaskedText != nil && *item.MaskedText != "" {
		return *item.MaskedText
	}
	return RedactionPlaceholder
}

// ItemView is one rendered text item.
type ItemView struct {
	Text       string      `json:"text"`
	Sensitive  bool        `json:"sensitive"`
	Confidence float64     `json:"confidence"`
	BBox       ocrapi.BBox `json:"bbox"`
}

// ConfidencePercent formats the confidence as the upload panel does.
func (v ItemView) ConfidencePercent() string {
	return fmt.Sprintf("%.1f%%", v.Confidence*100)
}

// ConfidenceShort formats the confidence as the detail overlay does.
func (v ItemView) ConfidenceShort() string {
	return fmt.Sprintf("conf: %.0f%%", v.Confidence*100)
}

// PageView is one rendered page.
type PageView struct {
	Number int        `json:"number"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Items  []ItemView `json:"items"`
}

// ResultView is a JobResult ready for display, pages in page order.
type ResultView struct {
	PageCount int        `json:"page_count"`
	ItemCount int        `json:"item_count"`
	Pages     []PageView `json:"pages"`
}

// NewResultView projects r for display. It returns nil for a nil result.
func NewResultView(r *ocrapi.JobResult) *ResultView {
	if r == nil {
		return nil
	}
	pages := slices.Clone(r.Pages)
	slices.SortStableFunc(pages, func(a, b ocrapi.Page) int {
		return cmp.Compare(a.PageIndex, b.PageIndex)
	})

	v := &ResultView{PageCount: len(pages), Pages: make([]PageView, 0, len(pages))}
	for _, p := range pages {
		pv := PageView{
			Number: p.PageIndex + 1,
			Width:  p.Width,
			Height: p.Height,
			Items:  make([]ItemView, 0, len(p.Items)),
		}
		for _, item := range p.Items {
			pv.Items = append(pv.Items, ItemView{
				Text:       DisplayText(item),
				Sensitive:  item.IsSensitive,
				Confidence: item.Confidence,
				BBox:       item.BBox,
			})
		}
		v.ItemCount += len(pv.Items)
		v.Pages = append(v.Pages, pv)
	}
	return v
}

// JobView is one row of the jobs table.
type JobView struct {
	ID          string           `json:"id"`
	ShortID     string           `json:"short_id"`
	Filename    string           `json:"filename"`
	Language    ocrapi.Language  `json:"lang"`
	Status      ocrapi.JobStatus `json:"status"`
	PageCount   int              `json:"page_count"`
	CreatedAt   string           `json:"created_at"`
	CreatedAgo  string           `json:"created_ago"`
	CompletedAt string           `json:"completed_at"`
	Clickable   bool             `json:"clickable"`
}

// NewJobView projects j for the jobs table. now anchors the relative time.
func NewJobView(j ocrapi.Job, now time.Time) JobView {
	v := JobView{
		ID:        j.ID,
		ShortID:   ShortID(j.ID),
		Filename:  j.Filename,
		Language:  j.Language,
		Status:    j.Status,
		PageCount: j.PageCount,
		Clickable: j.DetailEligible(),
	}
	if !j.CreatedAt.IsZero() {
		v.CreatedAt = j.CreatedAt.Format(displayTimeLayout)
		v.CreatedAgo = humanize.RelTime(j.CreatedAt.Time, now, "ago", "from now")
	}
	if j.CompletedAt != nil && !j.CompletedAt.IsZero() {
		v.CompletedAt = j.CompletedAt.Format(displayTimeLayout)
	}
	return v
}

// Tooltip is the hover text of a job row.
func (v JobView) Tooltip() string {
	if v.Clickable {
		return "클릭하여 상세 정보 조회"
	}
	return "처리 중인 작업입니다"
}

// ShortID abbreviates a job id for the table.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// StatsView is the stats panel ready for display.
type StatsView struct {
	TotalJobs         string `json:"total_jobs"`
	CompletedJobs     string `json:"completed_jobs"`
	FailedJobs        string `json:"failed_jobs"`
	ProcessingJobs    string `json:"processing_jobs"`
	// AvgProcessingTime is empty when the service has no completed jobs.
	AvgProcessingTime string `json:"avg_processing_time,omitempty"`
}

// NewStatsView projects s for display. It returns nil for nil stats.
func NewStatsView(s *ocrapi.Stats) *StatsView {
	if s == nil {
		return nil
	}
	v := &StatsView{
		TotalJobs:      humanize.Comma(int64(s.TotalJobs)),
		CompletedJobs:  humanize.Comma(int64(s.CompletedJobs)),
		FailedJobs:     humanize.Comma(int64(s.FailedJobs)),
		ProcessingJobs: humanize.Comma(int64(s.ProcessingJobs)),
	}
	if s.AvgProcessingTime != nil && *s.AvgProcessingTime > 0 {
		v.AvgProcessingTime = fmt.Sprintf("%.2f초", *s.AvgProcessingTime)
	}
	return v
}

// Screen is a ViewState projected for display. Results carry only display
// text, so a Screen is safe to serialize for any client.
type Screen struct {
	ActiveTab         Tab         `json:"active_tab"`
	CredentialPresent bool        `json:"credential_present"`
	Upload            UploadPanel `json:"upload"`
	Jobs              JobsPanel   `json:"jobs"`
	Stats             StatsPanel  `json:"stats"`
	Detail            DetailPanel `json:"detail"`
}

// UploadPanel is the upload panel ready for display.
type UploadPanel struct {
	Phase    UploadPhase     `json:"phase"`
	File     *document.Info  `json:"file,omitempty"`
	Language ocrapi.Language `json:"lang"`
	Result   *ResultView     `json:"result,omitempty"`
	Error    *Notice         `json:"error,omitempty"`

	Accepted *ocrapi.JobAccepted `json:"accepted,omitempty"`
}

// Submitting reports whether a submission is in flight.
func (p UploadPanel) Submitting() bool { return p.Phase == UploadSubmitting }

// JobsPanel is the jobs table ready for display.
type JobsPanel struct {
	Rows        []JobView        `json:"rows"`
	Status      ocrapi.JobStatus `json:"status,omitempty"`
	Loaded      bool             `json:"loaded"`
	Loading     bool             `json:"loading"`
	Error       *Notice          `json:"error,omitempty"`
	RefreshedAt *time.Time       `json:"refreshed_at,omitempty"`
}

// StatsPanel is the stats panel ready for display.
type StatsPanel struct {
	Counts      *StatsView `json:"counts,omitempty"`
	Loading     bool       `json:"loading"`
	Error       *Notice    `json:"error,omitempty"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// DetailPanel is the detail overlay ready for display.
type DetailPanel struct {
	Phase  DetailPhase `json:"phase"`
	JobID  string      `json:"job_id,omitempty"`
	Result *ResultView `json:"result,omitempty"`
	Error  *Notice     `json:"error,omitempty"`
}

// Open reports whether the overlay is shown.
func (p DetailPanel) Open() bool { return p.Phase != DetailClosed }

// Loading reports whether the overlay waits for its result.
func (p DetailPanel) Loading() bool { return p.Phase == DetailLoading }

// NewScreen projects s for display. now anchors relative times.
func NewScreen(s ViewState, now time.Time) Screen {
	rows := make([]JobView, 0, len(s.Jobs.Jobs))
	for _, j := range s.Jobs.Jobs {
		rows = append(rows, NewJobView(j, now))
	}
	return Screen{
		ActiveTab:         s.ActiveTab,
		CredentialPresent: s.CredentialPresent,
		Upload: UploadPanel{
			Phase:    s.Upload.Phase,
			File:     s.Upload.File,
			Language: s.Upload.Language,
			Result:   NewResultView(s.Upload.Result),
			Error:    s.Upload.Error,
			Accepted: s.Upload.Accepted,
		},
		Jobs: JobsPanel{
			Rows:        rows,
			Status:      s.Jobs.Status,
			Loaded:      s.Jobs.Loaded,
			Loading:     s.Jobs.Loading,
			Error:       s.Jobs.Error,
			RefreshedAt: s.Jobs.RefreshedAt,
		},
		Stats: StatsPanel{
			Counts:      NewStatsView(s.Stats.Stats),
			Loading:     s.Stats.Loading,
			Error:       s.Stats.Error,
			RefreshedAt: s.Stats.RefreshedAt,
		},
		Detail: DetailPanel{
			Phase:  s.Detail.Phase,
			JobID:  s.Detail.JobID,
			Result: NewResultView(s.Detail.Result),
			Error:  s.Detail.Error,
		},
	}
}
