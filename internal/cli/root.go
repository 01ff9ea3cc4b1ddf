// Package cli implements the marker-engine CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/config"
	"github.com/leandeep/marker-engine/internal/engine"
	"github.com/leandeep/marker-engine/internal/marker"
	"github.com/leandeep/marker-engine/internal/match"
	"github.com/leandeep/marker-engine/internal/store"
	"github.com/leandeep/marker-engine/internal/textproc"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "marker-engine",
	Short: "Four-tier marker classification engine",
	Long: "Classifies text against a four-tier marker hierarchy (ATO, SEM, CLU, MEMA).\n" +
		"Markers live in SQLite or definition files; sessions track activations and\n" +
		"emotion drift incrementally.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(getConfigPath())
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zc.Encoding = "console"
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MARKER_ENGINE_DB or ~/.marker-engine/markers.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.marker-engine/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".marker-engine", "config.yaml")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if cfg != nil && cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".marker-engine", "markers.db")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

// loadDefinitions reads definitions from a file or directory when
// defsPath is set, from the store otherwise.
func loadDefinitions(cmd *cobra.Command, defsPath string) ([]marker.Definition, error) {
	if defsPath != "" {
		return catalog.LoadPath(defsPath)
	}

	s, err := openStore()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	defs, err := s.LoadDefinitions(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no markers in %s (run 'marker-engine import' first)", getDBPath())
	}
	return defs, nil
}

func engineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Matcher = match.Options{
		BaseConfidence: cfg.Matcher.BaseConfidence,
		Parallelism:    cfg.Matcher.Parallelism,
	}
	opts.Emotion = cfg.Emotion
	opts.Segment = textproc.Options{
		TargetSize: cfg.Segment.TargetSize,
		MaxSize:    cfg.Segment.MaxSize,
	}
	opts.QueueSize = cfg.Engine.QueueSize
	opts.SubscriberBuffer = cfg.Engine.SubscriberBuffer
	opts.Logger = logger
	return opts
}

// newEngine validates the definitions into a catalog and builds an
// engine over it.
func newEngine(defs []marker.Definition) (*engine.Engine, *catalog.Holder, error) {
	cat, err := catalog.Load(defs)
	if err != nil {
		return nil, nil, err
	}
	holder := catalog.NewHolder(cat)
	return engine.New(holder, engineOptions()), holder, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
