package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"strings"
	"testing"

	"github.com/jackzampolin/mediview/internal/config"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/ocrapi"
	"github.com/jackzampolin/mediview/internal/server/endpoints"
	"github.com/jackzampolin/mediview/internal/testutil"
)

const (
	doneJobID       = "0b7e7d8c-1f3a-4a55-9c1e-2d8f3b6a9e01"
	processingJobID = "9f4a1b3e-2c5d-4e6f-8a7b-1c2d3e4f5a03"
)

const twoPageResult = `{"pages":[
  {"page_index":1,"width":1240,"height":1754,"items":[
    {"text":"소견","bbox":{"x":10,"y":40,"w":80,"h":20},"confidence":0.87,"is_sensitive":false}
  ]},
  {"page_index":0,"width":1240,"height":1754,"items":[
    {"text":"진단서","bbox":{"x":10,"y":10,"w":80,"h":20},"confidence":0.98,"is_sensitive":false},
    {"text":"홍길동","bbox":{"x":100,"y":10,"w":60,"h":20},"confidence":0.91,"is_sensitive":true,"masked_text":"홍**"}
  ]}
]}`

const jobList = `[
  {"id":"` + doneJobID + `","filename":"a.pdf","lang":"ko","status":"done","page_count":2,
   "created_at":"2026-10-01T09:00:00","completed_at":"2026-10-01T09:00:12"},
  {"id":"` + processingJobID + `","filename":"c.pdf","lang":"en","status":"processing","page_count":0,
   "created_at":"2026-10-01T09:05:00"}
]`

// newTestServer builds a ready server against svc and serves its handler
// with httptest. A nil client uses the configured credential.
func newTestServer(t *testing.T, svc *testutil.OCRService, client *ocrapi.Client) *Server {
	t.Helper()

	cfg := testutil.NewServerConfig(t, svc)
	mgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("config.NewManager() error = %v", err)
	}

	srv, err := New(Config{
		ConfigManager: mgr,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		OCRClient:     client,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func serve(t *testing.T, srv *Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func multipartBody(t *testing.T, filename string, data []byte, lang string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		fw.Write(data)
	}
	if lang != "" {
		mw.WriteField("lang", lang)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := testutil.HTTPClient().Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := testutil.HTTPClient().Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestNew_RequiresConfigManager(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}

func TestServer_RequireInit(t *testing.T) {
	svc := testutil.NewOCRService(t)
	srv := newTestServer(t, svc, nil)
	url := serve(t, srv)

	status, body := getBody(t, url+"/api/state")
	if status != http.StatusServiceUnavailable {
		t.Errorf("GET /api/state status = %d, want %d", status, http.StatusServiceUnavailable)
	}
	if !strings.Contains(body, "server not fully initialized") {
		t.Errorf("body = %q, want init error", body)
	}

	if status, _ := getBody(t, url+"/health"); status != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", status, http.StatusOK)
	}

	st, err := testutil.GetStatus(url)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Initialized {
		t.Error("status.Initialized = true before startup finished")
	}

	srv.markReady()
	if status, _ := getBody(t, url+"/api/state"); status != http.StatusOK {
		t.Errorf("GET /api/state after init status = %d, want %d", status, http.StatusOK)
	}
}

func TestServer_UploadRendersResult(t *testing.T) {
	svc := testutil.NewOCRService(t)
	svc.Set(func(s *testutil.OCRService) { s.UploadResult = twoPageResult })
	srv := newTestServer(t, svc, nil)
	srv.markReady()
	url := serve(t, srv)

	body, contentType := multipartBody(t, "scan.png", []byte("\x89PNG\r\n\x1a\n"), "ko")
	resp, err := testutil.HTTPClient().Post(url+"/ui/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /ui/upload failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("POST /ui/upload status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}

	uploads := svc.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploads))
	}
	if uploads[0].Lang != "ko" || uploads[0].Filename != "scan.png" {
		t.Errorf("upload = %+v, want scan.png in ko", uploads[0])
	}

	status, page := getBody(t, url+"/")
	if status != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", status, http.StatusOK)
	}
	for _, want := range []string{endpoints.PageTitle, "페이지 수: 2", "페이지 1", "페이지 2", "홍**", "item sensitive"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "홍길동") {
		t.Error("page shows the raw text of a sensitive item")
	}
	if strings.Index(page, "진단서") > strings.Index(page, "소견") {
		t.Error("pages not rendered in page order")
	}

	t.Run("state json is masked", func(t *testing.T) {
		status, state := getBody(t, url+"/api/state")
		if status != http.StatusOK {
			t.Fatalf("GET /api/state status = %d", status)
		}
		if strings.Contains(state, "홍길동") {
			t.Error("state shows the raw text of a sensitive item")
		}
	})
}

func TestServer_TabTransitions(t *testing.T) {
	svc := testutil.NewOCRService(t)
	svc.Set(func(s *testutil.OCRService) { s.Jobs = jobList })
	srv := newTestServer(t, svc, nil)
	srv.markReady()
	url := serve(t, srv)

	body, contentType := multipartBody(t, "scan.png", []byte("\x89PNG\r\n\x1a\n"), "")
	resp, err := http.Post(url+"/api/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /api/upload failed: %v", err)
	}
	panel := decode[dashboard.UploadPanel](t, resp)
	if panel.Phase != dashboard.UploadSucceeded {
		t.Fatalf("upload phase = %q, want %q", panel.Phase, dashboard.UploadSucceeded)
	}

	screen := decode[dashboard.Screen](t, postJSON(t, url+"/api/tab", endpoints.SelectTabRequest{Tab: "jobs"}))
	if screen.ActiveTab != dashboard.TabJobs {
		t.Errorf("ActiveTab = %q, want jobs", screen.ActiveTab)
	}
	if n := svc.Calls("GET /jobs"); n != 1 {
		t.Errorf("GET /jobs calls = %d, want 1", n)
	}
	if len(screen.Jobs.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(screen.Jobs.Rows))
	}
	if !screen.Jobs.Rows[0].Clickable || screen.Jobs.Rows[1].Clickable {
		t.Error("only the finished job should be clickable")
	}

	postJSON(t, url+"/api/tab", endpoints.SelectTabRequest{Tab: "upload"}).Body.Close()
	postJSON(t, url+"/api/tab", endpoints.SelectTabRequest{Tab: "stats"}).Body.Close()
	if n := svc.Calls("GET /jobs"); n != 1 {
		t.Errorf("GET /jobs calls = %d, want 1", n)
	}
	if n := svc.Calls("GET /stats"); n != 1 {
		t.Errorf("GET /stats calls = %d, want 1", n)
	}

	t.Run("unknown tab", func(t *testing.T) {
		resp := postJSON(t, url+"/api/tab", endpoints.SelectTabRequest{Tab: "settings"})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestServer_AsyncUpload(t *testing.T) {
	svc := testutil.NewOCRService(t)
	svc.Set(func(s *testutil.OCRService) { s.Jobs = jobList })
	srv := newTestServer(t, svc, nil)
	srv.markReady()
	url := serve(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "scan.png")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	mw.WriteField("async", "true")
	mw.Close()

	resp, err := http.Post(url+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload failed: %v", err)
	}
	panel := decode[dashboard.UploadPanel](t, resp)
	if panel.Phase != dashboard.UploadSucceeded {
		t.Fatalf("upload phase = %q, want %q", panel.Phase, dashboard.UploadSucceeded)
	}
	if panel.Accepted == nil || panel.Accepted.JobID != svc.QueuedJobID {
		t.Fatalf("accepted = %+v, want job %s", panel.Accepted, svc.QueuedJobID)
	}
	if panel.Accepted.Status != ocrapi.StatusQueued {
		t.Errorf("accepted status = %q, want queued", panel.Accepted.Status)
	}
	if panel.Result != nil {
		t.Error("queued upload should carry no result")
	}

	uploads := svc.Uploads()
	if len(uploads) != 1 || !uploads[0].Async {
		t.Fatalf("uploads = %+v, want one async upload", uploads)
	}
	if n := svc.Calls("GET /jobs"); n != 1 {
		t.Errorf("GET /jobs calls = %d, want 1 refresh after queueing", n)
	}

	_, page := getBody(t, url+"/")
	if !strings.Contains(page, svc.QueuedJobID) {
		t.Error("page does not show the queued job id")
	}
}

func TestServer_JobStatusFilter(t *testing.T) {
	svc := testutil.NewOCRService(t)
	svc.Set(func(s *testutil.OCRService) { s.Jobs = jobList })
	srv := newTestServer(t, svc, nil)
	srv.markReady()
	url := serve(t, srv)

	done := "done"
	panel := decode[dashboard.JobsPanel](t, postJSON(t, url+"/api/jobs/refresh", endpoints.RefreshJobsRequest{Status: &done}))
	if panel.Status != ocrapi.StatusDone {
		t.Errorf("panel.Status = %q, want done", panel.Status)
	}

	// Without a status the filter sticks.
	decode[dashboard.JobsPanel](t, postJSON(t, url+"/api/jobs/refresh", nil))

	resp, err := testutil.HTTPClient().PostForm(url+"/ui/jobs/refresh", neturl.Values{"status": {""}})
	if err != nil {
		t.Fatalf("POST /ui/jobs/refresh failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("POST /ui/jobs/refresh status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}

	got := svc.JobFilters()
	want := []string{"done", "done", ""}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("job filters = %q, want %q", got, want)
	}

	t.Run("unknown status", func(t *testing.T) {
		bad := "finished"
		resp := postJSON(t, url+"/api/jobs/refresh", endpoints.RefreshJobsRequest{Status: &bad})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		if n := len(svc.JobFilters()); n != 3 {
			t.Errorf("GET /jobs calls = %d, want 3", n)
		}
	})
}

func TestServer_Detail(t *testing.T) {
	svc := testutil.NewOCRService(t)
	svc.Set(func(s *testutil.OCRService) {
		s.Jobs = jobList
		s.Results[doneJobID] = twoPageResult
	})
	srv := newTestServer(t, svc, nil)
	srv.markReady()
	url := serve(t, srv)

	postJSON(t, url+"/api/tab", endpoints.SelectTabRequest{Tab: "jobs"}).Body.Close()

	t.Run("processing job is rejected without a fetch", func(t *testing.T) {
		resp := postJSON(t, url+"/api/detail", endpoints.OpenDetailRequest{JobID: processingJobID})
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
		}
		if n := svc.Calls("GET /result"); n != 0 {
			t.Errorf("GET /result calls = %d, want 0", n)
		}
	})

	t.Run("finished job renders in the overlay", func(t *testing.T) {
		panel := decode[dashboard.DetailPanel](t, postJSON(t, url+"/api/detail", endpoints.OpenDetailRequest{JobID: doneJobID}))
		if panel.Phase != dashboard.DetailLoaded {
			t.Fatalf("phase = %q, want %q", panel.Phase, dashboard.DetailLoaded)
		}

		_, page := getBody(t, url+"/")
		for _, want := range []string{"작업 상세 정보", doneJobID, "Page 1", "conf: 98%", "홍**"} {
			if !strings.Contains(page, want) {
				t.Errorf("page missing %q", want)
			}
		}
		if strings.Contains(page, "홍길동") {
			t.Error("overlay shows the raw text of a sensitive item")
		}
	})

	t.Run("still processing is informational", func(t *testing.T) {
		svc.Set(func(s *testutil.OCRService) { s.Pending[doneJobID] = true })
		panel := decode[dashboard.DetailPanel](t, postJSON(t, url+"/api/detail", endpoints.OpenDetailRequest{JobID: doneJobID}))
		if panel.Phase != dashboard.DetailInProgress {
			t.Errorf("phase = %q, want %q", panel.Phase, dashboard.DetailInProgress)
		}
		if panel.Error == nil || panel.Error.Message != ocrapi.MsgInProgress {
			t.Errorf("error = %+v, want %q", panel.Error, ocrapi.MsgInProgress)
		}
	})

	t.Run("close keeps the tab", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, url+"/api/detail", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE /api/detail failed: %v", err)
		}
		panel := decode[dashboard.DetailPanel](t, resp)
		if panel.Open() {
			t.Error("overlay still open after close")
		}
		status, state := getBody(t, url+"/api/state")
		if status != http.StatusOK || !strings.Contains(state, `"active_tab":"jobs"`) {
			t.Errorf("state after close = %d %s", status, state)
		}
	})
}

func TestServer_UploadWithoutPrerequisites(t *testing.T) {
	svc := testutil.NewOCRService(t)

	t.Run("no credential", func(t *testing.T) {
		client := ocrapi.NewClient(ocrapi.Config{BaseURL: svc.BaseURL()})
		srv := newTestServer(t, svc, client)
		srv.markReady()
		url := serve(t, srv)

		body, contentType := multipartBody(t, "scan.png", []byte("\x89PNG\r\n\x1a\n"), "ko")
		resp, err := http.Post(url+"/api/upload", contentType, body)
		if err != nil {
			t.Fatalf("POST /api/upload failed: %v", err)
		}
		panel := decode[dashboard.UploadPanel](t, resp)
		if panel.Error == nil || panel.Error.Message != ocrapi.MsgMissingCredential {
			t.Errorf("error = %+v, want missing credential", panel.Error)
		}

		_, page := getBody(t, url+"/")
		if !strings.Contains(page, ocrapi.MsgMissingCredential) {
			t.Error("page missing the credential banner")
		}
		if n := svc.TotalCalls(); n != 0 {
			t.Errorf("service calls = %d, want 0", n)
		}
	})

	t.Run("no file", func(t *testing.T) {
		srv := newTestServer(t, svc, nil)
		srv.markReady()
		url := serve(t, srv)

		body, contentType := multipartBody(t, "", nil, "en")
		resp, err := http.Post(url+"/api/upload", contentType, body)
		if err != nil {
			t.Fatalf("POST /api/upload failed: %v", err)
		}
		panel := decode[dashboard.UploadPanel](t, resp)
		if panel.Error == nil || panel.Error.Message != ocrapi.MsgNoFile {
			t.Errorf("error = %+v, want %q", panel.Error, ocrapi.MsgNoFile)
		}
		if n := svc.TotalCalls(); n != 0 {
			t.Errorf("service calls = %d, want 0", n)
		}
	})

	t.Run("unsupported language", func(t *testing.T) {
		srv := newTestServer(t, svc, nil)
		srv.markReady()
		url := serve(t, srv)

		body, contentType := multipartBody(t, "scan.png", []byte("\x89PNG\r\n\x1a\n"), "fr")
		resp, err := http.Post(url+"/api/upload", contentType, body)
		if err != nil {
			t.Fatalf("POST /api/upload failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestServer_ServiceErrorsStayInPanel(t *testing.T) {
	svc := testutil.NewOCRService(t)
	client := ocrapi.NewClient(ocrapi.Config{
		BaseURL:    svc.BaseURL(),
		Credential: ocrapi.NewCredential("wrong-key"),
	})
	srv := newTestServer(t, svc, client)
	srv.markReady()
	url := serve(t, srv)

	resp, err := http.Post(url+"/api/jobs/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/jobs/refresh failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	panel := decode[dashboard.JobsPanel](t, resp)
	if panel.Error == nil || panel.Error.Message != "Invalid API key" {
		t.Errorf("error = %+v, want the service detail", panel.Error)
	}
}

func TestServer_Static(t *testing.T) {
	svc := testutil.NewOCRService(t)
	url := serve(t, newTestServer(t, svc, nil))

	resp, err := http.Get(url + "/static/style.css")
	if err != nil {
		t.Fatalf("GET /static/style.css failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q, want text/css", ct)
	}
}
