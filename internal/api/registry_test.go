package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
)

type fakeEndpoint struct {
	method, path string
	init         bool
	command      string
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (e *fakeEndpoint) RequiresInit() bool { return e.init }

func (e *fakeEndpoint) Command(getServerURL func() string) *cobra.Command {
	if e.command == "" {
		return nil
	}
	return &cobra.Command{Use: e.command}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeEndpoint{method: "GET", path: "/health", command: "health"})
	r.Register(&fakeEndpoint{method: "GET", path: "/api/state", init: true, command: "state"})
	r.Register(&fakeEndpoint{method: "GET", path: "/static/{path...}"})

	t.Run("routes", func(t *testing.T) {
		mux := http.NewServeMux()
		r.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})

		tests := []struct {
			path string
			want int
		}{
			{"/health", http.StatusNoContent},
			{"/api/state", http.StatusServiceUnavailable},
			{"/static/style.css", http.StatusNoContent},
		}
		for _, tt := range tests {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		}
	})

	t.Run("commands skip endpoints without one", func(t *testing.T) {
		cmd := r.BuildCommands(func() string { return "http://localhost:3000" })
		if got := len(cmd.Commands()); got != 2 {
			t.Errorf("subcommands = %d, want 2", got)
		}
	})

	if got := len(r.Endpoints()); got != 3 {
		t.Errorf("Endpoints() = %d, want 3", got)
	}
}
