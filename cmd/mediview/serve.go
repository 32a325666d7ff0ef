package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/mediview/internal/config"
	"github.com/jackzampolin/mediview/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard",
	Long: `Start the mediview dashboard HTTP server.

The dashboard starts serving immediately. When service.wait_ready is set
it waits up to that long for the OCR service's health check before the
view endpoints accept requests. A missing API key is shown as a banner;
the dashboard keeps running.

The server provides:
  - /        - The dashboard page
  - /api/... - The JSON API used by "mediview api"
  - /health  - Basic server health check
  - /ready   - Readiness check (includes the OCR service)
  - /status  - Credential and service status

Examples:
  mediview serve                    # Start on the configured port (default 3000)
  mediview serve --port 3001        # Start on custom port
  mediview serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		// Set up logger; the level follows config reloads
		level := new(slog.LevelVar)
		if l, err := cfg.Log.SlogLevel(); err == nil {
			level.Set(l)
		}
		logger := newLogger(os.Stdout, cfg.Log.Format, level)
		slog.SetDefault(logger)

		mgr.OnChange(func(c *config.Config) {
			l, err := c.Log.SlogLevel()
			if err != nil || l == level.Level() {
				return
			}
			level.Set(l)
			logger.Info("log level changed", "level", l)
		})
		if mgr.WatchConfig() {
			logger.Info("watching config for changes", "file", mgr.ConfigFileUsed())
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: mgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: dashboard.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: dashboard.port)")

	rootCmd.AddCommand(serveCmd)
}
