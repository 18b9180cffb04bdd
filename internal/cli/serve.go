package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scriptdeck/scriptdeck/internal/config"
	"github.com/scriptdeck/scriptdeck/internal/history"
	"github.com/scriptdeck/scriptdeck/internal/launch"
	"github.com/scriptdeck/scriptdeck/internal/logging"
	"github.com/scriptdeck/scriptdeck/internal/mux"
	"github.com/scriptdeck/scriptdeck/internal/server"
	"go.uber.org/zap"
)

var serveFlags struct {
	host       string
	port       int
	debug      bool
	dataDir    string
	configFile string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the scriptdeck HTTP server.

The server exposes script parsing, command composition, launch,
configuration, presets, history, and a filesystem browser as a JSON
API. If the requested port is taken, the next free one is used.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "host to bind to")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "port to bind to")
	serveCmd.Flags().BoolVar(&serveFlags.debug, "debug", false, "enable debug mode")
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", "", "data directory")
	serveCmd.Flags().StringVar(&serveFlags.configFile, "config", "scriptdeck.toml", "server config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer(serveFlags.configFile)
	if err != nil {
		return err
	}
	if serveFlags.host != "" {
		cfg.Host = serveFlags.host
	}
	if serveFlags.port != 0 {
		cfg.Port = serveFlags.port
	}
	if serveFlags.debug {
		cfg.Debug = true
	}
	if serveFlags.dataDir != "" {
		cfg.DataDir = serveFlags.dataDir
	}

	logger := logging.New(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	store, err := config.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening data directory: %w", err)
	}

	hist, err := history.Open(filepath.Join(store.HistoryDir(), "history.db"))
	if err != nil {
		// History is a collaborator, not the core: run without it.
		logger.Warn("history store unavailable", zap.Error(err))
		hist = nil
	} else {
		defer func() { _ = hist.Close() }()
	}

	launcher := launch.New(mux.NewByobu(), store.ScratchDir(), logger)
	return server.New(cfg, store, hist, launcher, logger).Run()
}
