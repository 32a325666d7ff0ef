// Package document performs client-side checks on files before upload.
package document

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// DefaultMaxSize matches the service's upload limit.
const DefaultMaxSize int64 = 10 << 20

// AllowedExtensions are the file types the service accepts.
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg"}

// MsgUnsupportedType is shown for files with a disallowed extension.
const MsgUnsupportedType = "지원하지 않는 파일 형식입니다. PDF, PNG, JPEG만 업로드 가능합니다"

// Info describes a file that passed validation.
type Info struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	// PageCount is zero when unknown (images, or PDFs pdfcpu could not read).
	PageCount int `json:"page_count,omitempty"`
}

// HumanSize formats Size for display.
func (i Info) HumanSize() string {
	return humanize.Bytes(uint64(i.Size))
}

// Validate checks the extension and size of a file. maxSize <= 0 disables
// the size check.
func Validate(filename string, data []byte, maxSize int64) error {
	if filename == "" || data == nil {
		return &ocrapi.ValidationError{Field: "file", Message: ocrapi.MsgNoFile}
	}
	if !allowedExtension(filename) {
		return &ocrapi.ValidationError{Field: "file", Message: MsgUnsupportedType}
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return &ocrapi.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("파일 크기는 %s 이하여야 합니다", humanize.Bytes(uint64(maxSize))),
		}
	}
	return nil
}

// Inspect validates a file and gathers display metadata. A PDF whose page
// count cannot be read is still valid; the service is the authority.
func Inspect(filename string, data []byte, maxSize int64) (Info, error) {
	if err := Validate(filename, data, maxSize); err != nil {
		return Info{}, err
	}

	info := Info{
		Filename:    filepath.Base(filename),
		Size:        int64(len(data)),
		ContentType: http.DetectContentType(data),
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		if n, err := PDFPageCount(data); err == nil {
			info.PageCount = n
		}
	}
	return info, nil
}

// PDFPageCount returns the number of pages in a PDF.
func PDFPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF page count: %w", err)
	}
	return n, nil
}

func allowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
