package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// TestAPIKey is the credential the fake OCR service accepts.
const TestAPIKey = "test-api-key"

// OCRService is an in-process stand-in for the external OCR service. Handlers
// return canned bodies that tests can replace; every request is counted.
type OCRService struct {
	*httptest.Server

	mu         sync.Mutex
	calls      map[string]int
	uploads    []Upload
	jobFilters []string

	// Jobs, Stats and Results are returned verbatim as JSON.
	Jobs    string
	Stats   string
	Results map[string]string
	// Pending job ids answer /result/{id} with 202.
	Pending map[string]bool
	// UploadResult is returned from POST /get.
	UploadResult string
	// QueuedJobID is returned from POST /get with async_mode.
	QueuedJobID string
	// Healthy controls GET /healthz.
	Healthy bool
}

// Upload records one POST /get.
type Upload struct {
	Filename string
	Lang     string
	Size     int
	Async    bool
}

// NewOCRService starts a fake OCR service and closes it when the test ends.
// Its API base URL is BaseURL().
func NewOCRService(t *testing.T) *OCRService {
	t.Helper()

	s := &OCRService{
		calls:        make(map[string]int),
		Jobs:         "[]",
		Stats:        `{"total_jobs":0,"completed_jobs":0,"failed_jobs":0,"processing_jobs":0}`,
		Results:      make(map[string]string),
		Pending:      make(map[string]bool),
		UploadResult: `{"pages":[]}`,
		QueuedJobID:  "7d9c2b1a-3e4f-4a5b-8c6d-0e1f2a3b4c5d",
		Healthy:      true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/healthz", s.healthz)
	mux.HandleFunc("GET /api/v1/version", s.version)
	mux.HandleFunc("POST /api/v1/get", s.authed(s.upload))
	mux.HandleFunc("GET /api/v1/jobs", s.authed(s.jobs))
	mux.HandleFunc("GET /api/v1/stats", s.authed(s.stats))
	mux.HandleFunc("GET /api/v1/result/{id}", s.authed(s.result))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the service's /api/v1 base.
func (s *OCRService) BaseURL() string {
	return s.URL + "/api/v1"
}

// Calls returns how many requests hit the route, e.g. "GET /jobs".
func (s *OCRService) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of authenticated data requests.
func (s *OCRService) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for route, c := range s.calls {
		if route != "GET /healthz" && route != "GET /version" {
			n += c
		}
	}
	return n
}

// Uploads returns the recorded uploads.
func (s *OCRService) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// JobFilters returns the status query of every GET /jobs, in order. An
// unfiltered listing records "".
func (s *OCRService) JobFilters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.jobFilters...)
}

// Set changes canned state under the service lock.
func (s *OCRService) Set(fn func(s *OCRService)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *OCRService) count(r *http.Request) {
	route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/v1")
	if strings.HasPrefix(route, "GET /result/") {
		route = "GET /result"
	}
	s.mu.Lock()
	s.calls[route]++
	s.mu.Unlock()
}

func (s *OCRService) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(r)
		if r.Header.Get("Authorization") != TestAPIKey {
			writeRaw(w, http.StatusUnauthorized, `{"detail":"Invalid API key"}`)
			return
		}
		next(w, r)
	}
}

func (s *OCRService) healthz(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	s.mu.Lock()
	healthy := s.Healthy
	s.mu.Unlock()
	if !healthy {
		writeRaw(w, http.StatusServiceUnavailable, `{"status":"unavailable"}`)
		return
	}
	writeRaw(w, http.StatusOK, `{"status":"ok"}`)
}

func (s *OCRService) version(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	writeRaw(w, http.StatusOK, `{"name":"Medical OCR Service","version":"1.0.0"}`)
}

func (s *OCRService) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeRaw(w, http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","file"],"msg":"field required"}]}`)
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	async := r.FormValue("async_mode") == "true"

	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{Filename: header.Filename, Lang: r.FormValue("lang"), Size: len(data), Async: async})
	body := s.UploadResult
	if async {
		body = `{"job_id":"` + s.QueuedJobID + `","status":"queued"}`
	}
	s.mu.Unlock()

	writeRaw(w, http.StatusOK, body)
}

func (s *OCRService) jobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.jobFilters = append(s.jobFilters, r.URL.Query().Get("status"))
	body := s.Jobs
	s.mu.Unlock()
	writeRaw(w, http.StatusOK, body)
}

func (s *OCRService) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body := s.Stats
	s.mu.Unlock()
	writeRaw(w, http.StatusOK, body)
}

func (s *OCRService) result(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	pending := s.Pending[id]
	body, ok := s.Results[id]
	s.mu.Unlock()

	switch {
	case pending:
		writeRaw(w, http.StatusAccepted, `{"message":"Job is still processing"}`)
	case !ok:
		writeRaw(w, http.StatusNotFound, `{"detail":"Job not found"}`)
	default:
		writeRaw(w, http.StatusOK, body)
	}
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
