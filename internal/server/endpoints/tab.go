package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/dashboard"
	"github.com/jackzampolin/mediview/internal/ocrapi"
)

// SelectTabRequest is the request body for switching tabs.
type SelectTabRequest struct {
	Tab string `json:"tab"`
}

// SelectTabEndpoint handles POST /api/tab.
type SelectTabEndpoint struct{}

var _ api.Endpoint = (*SelectTabEndpoint)(nil)

func (e *SelectTabEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tab", e.handler
}

func (e *SelectTabEndpoint) RequiresInit() bool { return true }

// handler switches tabs and runs the transition's refreshes before
// answering with the new screen.
func (e *SelectTabEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SelectTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tab, err := dashboard.ParseTab(req.Tab)
	if err != nil {
		writeError(w, http.StatusBadRequest, ocrapi.UserMessage(err, err.Error()))
		return
	}

	c := coordinatorFrom(w, r)
	if c == nil {
		return
	}
	c.SelectTab(transitionContext(r), tab)
	writeJSON(w, http.StatusOK, screen(c))
}

func (e *SelectTabEndpoint) Command(getServerURL func() string) *cobra.Command {
	names := make([]string, 0, len(dashboard.Tabs))
	for _, t := range dashboard.Tabs {
		names = append(names, string(t))
	}
	return &cobra.Command{
		Use:       fmt.Sprintf("tab <%s>", strings.Join(names, "|")),
		Short:     "Switch the active tab",
		Long:      "Switch the active tab. Selecting jobs or stats refreshes that panel.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp dashboard.Screen
			if err := client.Post(cmd.Context(), "/api/tab", SelectTabRequest{Tab: args[0]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
