package api

import (
	"bytes"
	"strings"
	"testing"
)

type outputFixture struct {
	JobID   string `json:"job_id"`
	Pages   int    `json:"page_count"`
	Skipped string `json:"skipped,omitempty"`
}

func TestOutputTo(t *testing.T) {
	data := outputFixture{JobID: "0b7e7d8c", Pages: 2}

	tests := []struct {
		format OutputFormat
		want   []string
	}{
		{OutputFormatJSON, []string{`"job_id": "0b7e7d8c"`, `"page_count": 2`}},
		{OutputFormatYAML, []string{"job_id: 0b7e7d8c", "page_count: 2"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := OutputTo(&buf, tt.format, data); err != nil {
				t.Fatalf("OutputTo() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output = %q, want it to contain %q", buf.String(), want)
				}
			}
			if strings.Contains(buf.String(), "skipped") {
				t.Errorf("output = %q, omitempty field present", buf.String())
			}
		})
	}

	if err := OutputTo(&bytes.Buffer{}, "xml", data); err == nil {
		t.Error("OutputTo(xml) error = nil, want error")
	}
}

func TestSetOutputFormat(t *testing.T) {
	t.Cleanup(func() { globalOutputFormat = OutputFormatYAML })

	if err := SetOutputFormat("json"); err != nil {
		t.Fatalf("SetOutputFormat(json) error = %v", err)
	}
	if got := GetOutputFormat(); got != OutputFormatJSON {
		t.Errorf("GetOutputFormat() = %q, want json", got)
	}
	if err := SetOutputFormat("table"); err == nil {
		t.Error("SetOutputFormat(table) error = nil, want error")
	}
	if got := GetOutputFormat(); got != OutputFormatJSON {
		t.Errorf("GetOutputFormat() = %q after bad format, want json", got)
	}
}
