package endpoints

import (
	"github.com/jackzampolin/mediview/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// Initialized reports whether server startup finished.
	Initialized func() bool
	// MaxUploadBytes bounds uploaded documents.
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	eps := []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{Initialized: cfg.Initialized},
		&StatusEndpoint{Initialized: cfg.Initialized},

		// View state transitions
		&StateEndpoint{},
		&SelectTabEndpoint{},
		&RefreshJobsEndpoint{},
		&RefreshStatsEndpoint{},
		&OpenDetailEndpoint{},
		&CloseDetailEndpoint{},
		&UploadEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},

		// Browser UI
		&DashboardPageEndpoint{},
	}
	eps = append(eps, UIActions(cfg.MaxUploadBytes)...)

	// Static files
	return append(eps, &StaticEndpoint{})
}
