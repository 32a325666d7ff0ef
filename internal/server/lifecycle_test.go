package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jackzampolin/mediview/internal/config"
	"github.com/jackzampolin/mediview/internal/home"
	"github.com/jackzampolin/mediview/internal/server/endpoints"
	"github.com/jackzampolin/mediview/internal/testutil"
)

func startServer(t *testing.T, svc *testutil.OCRService) (testutil.ServerConfig, *Server, *testutil.StartServer) {
	t.Helper()

	cfg := testutil.NewServerConfig(t, svc)
	mgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("config.NewManager() error = %v", err)
	}

	h, err := home.New(cfg.HomePath)
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		ConfigManager: mgr,
		Home:          h,
		Logger:        cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	starter := &testutil.StartServer{Cancel: cancel, Done: done}
	return cfg, srv, starter
}

func TestServer_FullLifecycle(t *testing.T) {
	svc := testutil.NewOCRService(t)
	cfg, srv, starter := startServer(t, svc)

	if err := testutil.WaitForServer(cfg.URL(), 30*time.Second); err != nil {
		starter.Stop()
		t.Fatalf("server did not start: %v", err)
	}

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := http.Get(cfg.URL() + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := http.Get(cfg.URL() + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Service != "ok" {
			t.Errorf("health.Service = %q, want %q", health.Service, "ok")
		}
	})

	t.Run("status_endpoint", func(t *testing.T) {
		status, err := testutil.GetStatus(cfg.URL())
		if err != nil {
			t.Fatalf("status check failed: %v", err)
		}
		if status.Server != "running" {
			t.Errorf("status.Server = %q, want %q", status.Server, "running")
		}
		if status.Credential != "present" {
			t.Errorf("status.Credential = %q, want %q", status.Credential, "present")
		}
		if status.Service.Health != "healthy" {
			t.Errorf("status.Service.Health = %q, want %q", status.Service.Health, "healthy")
		}
		if status.Service.Version != "1.0.0" {
			t.Errorf("status.Service.Version = %q, want %q", status.Service.Version, "1.0.0")
		}
		if status.Service.URL != svc.BaseURL() {
			t.Errorf("status.Service.URL = %q, want %q", status.Service.URL, svc.BaseURL())
		}
		if status.Home != cfg.HomePath {
			t.Errorf("status.Home = %q, want %q", status.Home, cfg.HomePath)
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
		if !srv.IsInitialized() {
			t.Error("IsInitialized() = false, want true")
		}
	})

	starter.Cancel()
	if err := testutil.WaitForShutdown(starter.Done, 30*time.Second); err != nil {
		t.Fatalf("server did not shut down: %v", err)
	}

	t.Run("not_running_after_shutdown", func(t *testing.T) {
		if srv.IsRunning() {
			t.Error("IsRunning() = true after shutdown, want false")
		}
	})
}

func TestServer_ServiceDownStillInitializes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping readiness wait in short mode")
	}

	svc := testutil.NewOCRService(t)
	svc.Set(func(s *testutil.OCRService) { s.Healthy = false })
	cfg, _, starter := startServer(t, svc)
	t.Cleanup(starter.Stop)

	if err := testutil.WaitForServer(cfg.URL(), 30*time.Second); err != nil {
		t.Fatalf("server did not initialize: %v", err)
	}
	if n := svc.Calls("GET /healthz"); n < 2 {
		t.Errorf("health checks = %d, want the readiness wait to retry", n)
	}

	resp, err := http.Get(cfg.URL() + "/ready")
	if err != nil {
		t.Fatalf("ready check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	status, err := testutil.GetStatus(cfg.URL())
	if err != nil {
		t.Fatalf("status check failed: %v", err)
	}
	if status.Service.Health != "unhealthy" {
		t.Errorf("status.Service.Health = %q, want %q", status.Service.Health, "unhealthy")
	}
}

func TestServer_DoubleStart(t *testing.T) {
	svc := testutil.NewOCRService(t)
	cfg, srv, starter := startServer(t, svc)
	t.Cleanup(starter.Stop)

	if err := testutil.WaitForServer(cfg.URL(), 30*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil, want error")
	}
}

func TestServer_ContextCancellation(t *testing.T) {
	svc := testutil.NewOCRService(t)
	cfg, _, starter := startServer(t, svc)

	if err := testutil.WaitForServer(cfg.URL(), 30*time.Second); err != nil {
		starter.Stop()
		t.Fatalf("server did not start: %v", err)
	}

	starter.Cancel()
	if err := testutil.WaitForShutdown(starter.Done, 30*time.Second); err != nil {
		t.Fatalf("server did not respond to context cancellation: %v", err)
	}

	if _, err := http.Get(cfg.URL() + "/health"); err == nil {
		t.Error("server still answering after shutdown")
	}
}
