// Package dashboard is the view model behind the OCR dashboard.
//
// Each controller owns its state behind its own mutex and converts every
// failure of its calls into local state. The Coordinator ties them together
// and is the only thing the renderer reads from, via ViewState.
package dashboard

import (
	"context"

	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// API is the part of the OCR client the controllers use.
type API interface {
	CredentialPresent() bool
	SubmitUpload(ctx context.Context, up ocrapi.UploadRequest) (*ocrapi.JobResult, error)
	SubmitUploadAsync(ctx context.Context, up ocrapi.UploadRequest) (*ocrapi.JobAccepted, error)
	ListJobs(ctx context.Context, filter ocrapi.ListFilter) ([]ocrapi.Job, error)
	GetStats(ctx context.Context) (*ocrapi.Stats, error)
	GetResult(ctx context.Context, jobID string) (*ocrapi.JobResult, error)
}

var _ API = (*ocrapi.Client)(nil)

// Fallback messages used when the server gives no detail.
const (
	MsgUploadFailed = "오류가 발생했습니다"
	MsgDetailFailed = "결과를 불러오는 데 실패했습니다."
	MsgJobsFailed   = "작업 목록 로드 실패"
	MsgStatsFailed  = "통계 로드 실패"
)

// Notice is an error or informational message scoped to one panel.
type Notice struct {
	Kind    ocrapi.Kind `json:"kind"`
	Message string      `json:"message"`
}

func noticeFor(err error, fallback string) *Notice {
	if err == nil {
		return nil
	}
	return &Notice{Kind: ocrapi.KindOf(err), Message: ocrapi.UserMessage(err, fallback)}
}

// Informational reports whether the notice describes an expected state
// rather than a failure.
func (n *Notice) Informational() bool {
	return n != nil && n.Kind == ocrapi.KindInProgress
}
