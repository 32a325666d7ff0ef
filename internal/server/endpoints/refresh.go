package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// RefreshJobsRequest is the optional body of a job list refresh. A nil
// Status keeps the current filter; an empty one lists every job.
type RefreshJobsRequest struct {
	Status *string `json:"status,omitempty"`
}

// RefreshJobsEndpoint handles POST /api/jobs/refresh.
type RefreshJobsEndpoint struct{}

var _ api.Endpoint = (*RefreshJobsEndpoint)(nil)

func (e *RefreshJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/refresh", e.handler
}

func (e *RefreshJobsEndpoint) RequiresInit() bool { return true }

// handler reloads the job list, first switching the status filter when the
// body names one. A failed reload keeps the previous rows and reports the
// failure in the panel, so only a malformed request gets a 4xx.
func (e *RefreshJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req RefreshJobsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var status ocrapi.JobStatus
	if req.Status != nil {
		var err error
		if status, err = ocrapi.ParseJobStatus(*req.Status); err != nil {
			writeError(w, http.StatusBadRequest, ocrapi.UserMessage(err, err.Error()))
			return
		}
	}

	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	if req.Status != nil {
		c.FilterJobs(transitionContext(r), status)
	} else {
		c.RefreshJobs(transitionContext(r))
	}
	writeJSON(w, http.StatusOK, screen(c).Jobs)
}

func (e *RefreshJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	names := make([]string, 0, len(ocrapi.JobStatuses))
	for _, s := range ocrapi.JobStatuses {
		names = append(names, string(s))
	}

	var status string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Refresh and print the job list",
		Long: `Refresh and print the job list.

--status narrows this and later refreshes to one status; --status "" lists
every job again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if cmd.Flags().Changed("status") {
				body = RefreshJobsRequest{Status: &status}
			}

			client := api.NewClient(getServerURL())
			var resp dashboard.JobsPanel
			if err := client.Post(cmd.Context(), "/api/jobs/refresh", body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", fmt.Sprintf("only list jobs in this status (%s)", strings.Join(names, ", ")))
	return cmd
}

// RefreshStatsEndpoint handles POST /api/stats/refresh.
type RefreshStatsEndpoint struct{}

var _ api.Endpoint = (*RefreshStatsEndpoint)(nil)

func (e *RefreshStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/stats/refresh", e.handler
}

func (e *RefreshStatsEndpoint) RequiresInit() bool { return true }

func (e *RefreshStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	c.RefreshStats(transitionContext(r))
	writeJSON(w, http.StatusOK, screen(c).Stats)
}

func (e *RefreshStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Refresh and print service statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp dashboard.StatsPanel
			if err := client.Post(cmd.Context(), "/api/stats/refresh", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
