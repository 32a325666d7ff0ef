package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/dashboard"
)

// OpenDetailRequest is the request body for opening a job's result.
type OpenDetailRequest struct {
	JobID string `json:"job_id"`
}

// OpenDetailEndpoint handles POST /api/detail.
type OpenDetailEndpoint struct{}

var _ api.Endpoint = (*OpenDetailEndpoint)(nil)

func (e *OpenDetailEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/detail", e.handler
}

func (e *OpenDetailEndpoint) RequiresInit() bool { return true }

// handler opens the detail overlay for a listed job in a terminal state.
// Jobs that are not listed or still running answer 409 without a fetch.
func (e *OpenDetailEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req OpenDetailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	if !c.OpenJob(transitionContext(r), req.JobID) {
		writeError(w, http.StatusConflict, "job is not in the list or is still processing")
		return
	}
	writeJSON(w, http.StatusOK, screen(c).Detail)
}

func (e *OpenDetailEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "open <job-id>",
		Short: "Open a finished job's result",
		Long: `Open the detail overlay for a job and print its result.

The job must be in the dashboard's current job list (run "jobs" first)
and must be done or failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp dashboard.DetailPanel
			if err := client.Post(cmd.Context(), "/api/detail", OpenDetailRequest{JobID: args[0]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CloseDetailEndpoint handles DELETE /api/detail.
type CloseDetailEndpoint struct{}

var _ api.Endpoint = (*CloseDetailEndpoint)(nil)

func (e *CloseDetailEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/detail", e.handler
}

func (e *CloseDetailEndpoint) RequiresInit() bool { return true }

func (e *CloseDetailEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	c.CloseDetail()
	writeJSON(w, http.StatusOK, screen(c).Detail)
}

func (e *CloseDetailEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the detail overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp dashboard.DetailPanel
			if err := client.Delete(cmd.Context(), "/api/detail", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
