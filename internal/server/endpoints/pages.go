package endpoints

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/document"
	"github.com/jackzampolin/mediview/internal/ocrapi"
	"github.com/jackzampolin/mediview/internal/svcctx"
	"github.com/jackzampolin/mediview/web"
)

// PageTitle is the dashboard's heading.
const PageTitle = "의료 문서 OCR 시스템"

var tabLabels = map[dashboard.Tab]string{
	dashboard.TabUpload: "업로드",
	dashboard.TabJobs:   "작업 목록",
	dashboard.TabStats:  "통계",
}

var languageOptions = []struct {
	value ocrapi.Language
	label string
}{
	{ocrapi.LanguageEnglish, "영어 (English)"},
	{ocrapi.LanguageKorean, "한국어 (Korean)"},
}

var statusOptions = []struct {
	value ocrapi.JobStatus
	label string
}{
	{"", "전체"},
	{ocrapi.StatusQueued, "대기"},
	{ocrapi.StatusProcessing, "처리 중"},
	{ocrapi.StatusDone, "완료"},
	{ocrapi.StatusFailed, "실패"},
}

var dashboardTemplate = sync.OnceValues(func() (*template.Template, error) {
	templates, err := web.TemplatesFS()
	if err != nil {
		return nil, err
	}
	return template.ParseFS(templates, "dashboard.html")
})

type tabLink struct {
	Tab    dashboard.Tab
	Label  string
	Active bool
}

type languageOption struct {
	Value    ocrapi.Language
	Label    string
	Selected bool
}

type statusOption struct {
	Value    ocrapi.JobStatus
	Label    string
	Selected bool
}

type pageData struct {
	dashboard.Screen
	Title             string
	Tabs              []tabLink
	CredentialMessage string
	Languages         []languageOption
	Statuses          []statusOption
	Accept            string
}

func newPageData(s dashboard.Screen) pageData {
	d := pageData{
		Screen:            s,
		Title:             PageTitle,
		CredentialMessage: ocrapi.MsgMissingCredential,
		Accept:            strings.Join(document.AllowedExtensions, ","),
	}
	for _, t := range dashboard.Tabs {
		d.Tabs = append(d.Tabs, tabLink{Tab: t, Label: tabLabels[t], Active: t == s.ActiveTab})
	}
	for _, o := range languageOptions {
		d.Languages = append(d.Languages, languageOption{
			Value:    o.value,
			Label:    o.label,
			Selected: o.value == s.Upload.Language,
		})
	}
	for _, o := range statusOptions {
		d.Statuses = append(d.Statuses, statusOption{
			Value:    o.value,
			Label:    o.label,
			Selected: o.value == s.Jobs.Status,
		})
	}
	return d
}

// DashboardPageEndpoint handles GET / and renders the dashboard.
type DashboardPageEndpoint struct{}

var _ api.Endpoint = (*DashboardPageEndpoint)(nil)

func (e *DashboardPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{$}", e.handler
}

func (e *DashboardPageEndpoint) RequiresInit() bool { return true }

func (e *DashboardPageEndpoint) Command(_ func() string) *cobra.Command {
	return nil // the page is for browsers; "state" covers the CLI
}

func (e *DashboardPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}

	tmpl, err := dashboardTemplate()
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("failed to load dashboard template", "error", err)
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	data := newPageData(dashboard.NewScreen(c.State(), time.Now()))
	if err := tmpl.Execute(&buf, data); err != nil {
		svcctx.LoggerFrom(r.Context()).Error("failed to render dashboard", "error", err)
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// UIActionEndpoint performs one form-posted transition and redirects the
// browser back to the dashboard page.
type UIActionEndpoint struct {
	Path   string
	Action func(w http.ResponseWriter, r *http.Request, c *dashboard.Coordinator) error
}

var _ api.Endpoint = (*UIActionEndpoint)(nil)

func (e *UIActionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", e.Path, e.handler
}

func (e *UIActionEndpoint) RequiresInit() bool { return true }

func (e *UIActionEndpoint) Command(_ func() string) *cobra.Command {
	return nil // the JSON endpoints carry the CLI
}

func (e *UIActionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	if err := e.Action(w, r, c); err != nil {
		http.Error(w, err.Error(), uploadErrorStatus(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UIActions returns the form endpoints behind the dashboard page's buttons.
func UIActions(maxUpload int64) []api.Endpoint {
	return []api.Endpoint{
		&UIActionEndpoint{Path: "/ui/tab", Action: selectTabAction},
		&UIActionEndpoint{Path: "/ui/upload", Action: uploadAction(maxUpload)},
		&UIActionEndpoint{Path: "/ui/jobs/refresh", Action: refreshJobsAction},
		&UIActionEndpoint{Path: "/ui/stats/refresh", Action: func(_ http.ResponseWriter, r *http.Request, c *dashboard.Coordinator) error {
			c.RefreshStats(transitionContext(r))
			return nil
		}},
		&UIActionEndpoint{Path: "/ui/detail/open", Action: func(_ http.ResponseWriter, r *http.Request, c *dashboard.Coordinator) error {
			// Rows that are not clickable render no form, so a miss is a stale page.
			c.OpenJob(transitionContext(r), r.FormValue("job_id"))
			return nil
		}},
		&UIActionEndpoint{Path: "/ui/detail/close", Action: func(_ http.ResponseWriter, _ *http.Request, c *dashboard.Coordinator) error {
			c.CloseDetail()
			return nil
		}},
	}
}

func selectTabAction(_ http.ResponseWriter, r *http.Request, c *dashboard.Coordinator) error {
	tab, err := dashboard.ParseTab(r.FormValue("tab"))
	if err != nil {
		return err
	}
	c.SelectTab(transitionContext(r), tab)
	return nil
}

// refreshJobsAction reloads the job list. A posted status field switches
// the filter first.
func refreshJobsAction(_ http.ResponseWriter, r *http.Request, c *dashboard.Coordinator) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	if !r.PostForm.Has("status") {
		c.RefreshJobs(transitionContext(r))
		return nil
	}
	status, err := ocrapi.ParseJobStatus(r.PostForm.Get("status"))
	if err != nil {
		return err
	}
	c.FilterJobs(transitionContext(r), status)
	return nil
}

func uploadAction(maxUpload int64) func(http.ResponseWriter, *http.Request, *dashboard.Coordinator) error {
	return func(w http.ResponseWriter, r *http.Request, c *dashboard.Coordinator) error {
		up, err := readUpload(w, r, maxUpload)
		if err != nil {
			return err
		}
		// The select only offers supported languages.
		if lang, err := ocrapi.ParseLanguage(up.lang); err == nil {
			c.SetLanguage(lang)
		}
		c.SelectFile(up.filename, up.data)
		if up.async {
			c.SubmitUploadAsync(transitionContext(r))
		} else {
			c.SubmitUpload(transitionContext(r))
		}
		return nil
	}
}
