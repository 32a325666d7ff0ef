package ocrapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Language is the OCR language sent with an upload.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageKorean  Language = "ko"
)

// DefaultLanguage matches the service default.
const DefaultLanguage = LanguageEnglish

var supportedLanguages = []language.Tag{language.English, language.Korean}

// ParseLanguage accepts a bare code or any BCP 47 tag whose base language
// is supported ("ko", "ko-KR", "en-US").
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", &ValidationError{Field: "lang", Message: fmt.Sprintf("지원하지 않는 언어입니다: %q", s)}
	}
	base, _ := tag.Base()
	for _, supported := range supportedLanguages {
		sb, _ := supported.Base()
		if sb == base {
			return Language(sb.String()), nil
		}
	}
	return "", &ValidationError{Field: "lang", Message: "지원하지 않는 언어입니다. 'en' 또는 'ko'만 사용 가능합니다"}
}

// JobStatus is the processing state reported by the service.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the job reached a state with a retrievable result.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// JobStatuses lists every status a job listing can be narrowed to.
var JobStatuses = []JobStatus{StatusQueued, StatusProcessing, StatusDone, StatusFailed}

// ParseJobStatus parses a listing filter. The empty string selects every
// status.
func ParseJobStatus(s string) (JobStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, status := range JobStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("지원하지 않는 작업 상태입니다: %q", s)}
}

// Timestamp decodes the service's datetimes, which may omit the zone.
// Zoneless values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Job is the list-view projection of a submitted document.
type Job struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	ContentType  string     `json:"content_type,omitempty"`
	Language     Language   `json:"lang"`
	Status       JobStatus  `json:"status"`
	PageCount    int        `json:"page_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    Timestamp  `json:"created_at"`
	CompletedAt  *Timestamp `json:"completed_at,omitempty"`
}

// DetailEligible reports whether the job's result can be requested.
func (j Job) DetailEligible() bool {
	return j.Status.Terminal()
}

// BBox is an item's bounding box in page pixels.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Item is one extracted text region.
type Item struct {
	Text        string  `json:"text"`
	BBox        BBox    `json:"bbox"`
	Confidence  float64 `json:"confidence"`
	IsSensitive bool    `json:"is_sensitive"`
	MaskedText  *string `json:"masked_text,omitempty"`
}

// Page holds the items extracted from one page.
type Page struct {
	PageIndex int    `json:"page_index"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Items     []Item `json:"items"`
}

// JobResult is the full OCR output of one job.
type JobResult struct {
	Pages []Page `json:"pages"`
}

// Stats are the service-wide counters.
type Stats struct {
	TotalJobs         int      `json:"total_jobs"`
	CompletedJobs     int      `json:"completed_jobs"`
	FailedJobs        int      `json:"failed_jobs"`
	ProcessingJobs    int      `json:"processing_jobs"`
	AvgProcessingTime *float64 `json:"avg_processing_time,omitempty"`
}

// UploadRequest is a document submitted for processing.
type UploadRequest struct {
	Filename string
	Data     []byte
	Language Language
}

// JobAccepted is returned by an asynchronous upload.
type JobAccepted struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// ListFilter narrows a job listing. Zero values use the service defaults.
type ListFilter struct {
	Limit  int
	Status JobStatus
}

// VersionInfo is returned by GET /version.
type VersionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
