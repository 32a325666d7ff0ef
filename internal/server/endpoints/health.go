package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/api"
	"github.com/jackzampolin/mediview/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check dashboard health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct {
	// Initialized reports whether the server finished startup.
	Initialized func() bool
}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Service: "ok"}

	if e.Initialized != nil && !e.Initialized() {
		resp.Status = "degraded"
		resp.Service = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	client := svcctx.OCRClientFrom(r.Context())
	if client == nil {
		resp.Status = "degraded"
		resp.Service = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if err := client.Health(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Service = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check readiness (includes the OCR service)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			if resp.Service != "" {
				fmt.Printf("Service: %s\n", resp.Service)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server      string        `json:"server"`
	Initialized bool          `json:"initialized"`
	Credential  string        `json:"credential"`
	Service     ServiceStatus `json:"service"`
	Home        string        `json:"home,omitempty"`
	ConfigFile  string        `json:"config_file,omitempty"`
}

// ServiceStatus describes the external OCR service.
type ServiceStatus struct {
	URL     string `json:"url"`
	Health  string `json:"health"`
	Version string `json:"version,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// Initialized is set by the server since it's not in Services
	Initialized func() bool
}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Server:     "running",
		Credential: "missing",
	}
	if e.Initialized != nil {
		resp.Initialized = e.Initialized()
	}
	if h := svcctx.HomeFrom(r.Context()); h != nil {
		resp.Home = h.Path()
	}
	if cm := svcctx.ConfigFrom(r.Context()); cm != nil {
		resp.ConfigFile = cm.ConfigFileUsed()
	}

	client := svcctx.OCRClientFrom(r.Context())
	if client == nil {
		resp.Service.Health = "not_initialized"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if client.CredentialPresent() {
		resp.Credential = "present"
	}
	resp.Service.URL = client.BaseURL()
	if err := client.Health(r.Context()); err != nil {
		resp.Service.Health = "unhealthy"
	} else {
		resp.Service.Health = "healthy"
		if v, err := client.Version(r.Context()); err == nil {
			resp.Service.Version = v.Version
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed dashboard status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server:      %s\n", resp.Server)
			fmt.Printf("Initialized: %t\n", resp.Initialized)
			fmt.Printf("Credential:  %s\n", resp.Credential)
			if resp.ConfigFile != "" {
				fmt.Printf("Config:      %s\n", resp.ConfigFile)
			}
			fmt.Printf("Service:\n")
			fmt.Printf("  URL:     %s\n", resp.Service.URL)
			fmt.Printf("  Health:  %s\n", resp.Service.Health)
			if resp.Service.Version != "" {
				fmt.Printf("  Version: %s\n", resp.Service.Version)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
