package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/svcctx"
)

// StateEndpoint handles GET /api/state.
type StateEndpoint struct{}

var _ api.Endpoint = (*StateEndpoint)(nil)

func (e *StateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/state", e.handler
}

func (e *StateEndpoint) RequiresInit() bool { return true }

// handler returns the current dashboard.Screen. Sensitive items carry
// only their display text.
func (e *StateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, screen(c))
}

func (e *StateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the dashboard's current view state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp dashboard.Screen
			if err := client.Get(cmd.Context(), "/api/state", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// coordinatorFrom returns the request's coordinator or writes a 503.
func coordinatorFrom(w http.ResponseWriter, r *http.Request) *dashboard.Coordinator {
	c := svcctx.CoordinatorFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "dashboard not initialized")
	}
	return c
}

// transitionContext detaches a transition from the request so a client
// that disconnects mid-fetch does not turn the fetch into a failure state.
func transitionContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func screen(c *dashboard.Coordinator) dashboard.Screen {
	return dashboard.NewScreen(c.State(), time.Now())
}
