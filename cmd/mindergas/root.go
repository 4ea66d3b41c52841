package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/database"
	"github.com/jgoulah/mindergas/internal/logging"
	"github.com/jgoulah/mindergas/internal/metrics"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/pkg/models"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile string
	dbPath  string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "mindergas",
	Short: "Bridge MinderGas gas usage statistics into Home Assistant",
	Long: `mindergas fetches yearly gas usage, forecast and degree-day statistics from the
MinderGas API and exposes them to Home Assistant over MQTT discovery. It can also
submit the daily meter reading taken from a Home Assistant sensor.

Installations are stored in a local SQLite database; run 'mindergas setup' to add one
and 'mindergas run' to start the bridge.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./mindergas.db)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database, preferring --db over the config file
func openDB(cfg *config.Config) (*database.DB, error) {
	path := dbPath
	if path == "" {
		path = cfg.GetDatabasePath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newLogger builds the process logger from config and --debug
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Log, debug, os.Stderr)
}

// newAPIClient creates a MinderGas client for apiKey. collector may be nil.
func newAPIClient(cfg *config.Config, apiKey string, collector *metrics.Collector) *mindergas.Client {
	opts := []mindergas.Option{
		mindergas.WithBaseURL(cfg.GetAPIBaseURL()),
		mindergas.WithTimeout(cfg.GetAPITimeout()),
		mindergas.WithUserAgent(mindergas.DefaultUserAgent + "/" + version),
	}
	if collector != nil {
		opts = append(opts, mindergas.WithObserver(collector.ObserveAPIRequest))
	}
	return mindergas.NewClient(apiKey, opts...)
}

// findInstallation resolves a full installation ID or a unique prefix of one
func findInstallation(db *database.DB, ref string) (*models.Installation, error) {
	if id, err := uuid.Parse(ref); err == nil {
		inst, err := db.GetInstallation(id)
		if err != nil {
			return nil, fmt.Errorf("installation %s: %w", ref, err)
		}
		return inst, nil
	}

	all, err := db.ListInstallations()
	if err != nil {
		return nil, fmt.Errorf("listing installations: %w", err)
	}

	var matches []models.Installation
	for _, inst := range all {
		if strings.HasPrefix(inst.ID.String(), strings.ToLower(ref)) {
			matches = append(matches, inst)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("installation %s: %w", ref, database.ErrNotFound)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("installation prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}
