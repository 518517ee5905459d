package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/config"
	"canvasfetch/pkg/ledger"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/metadata"
	"canvasfetch/pkg/storage"
	"canvasfetch/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd fetches an image when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "canvasfetch",
	Short: "Fetch a painting you have not seen before from public museum collections",
	Long: `canvasfetch picks one painting matching a search topic from the open APIs of
the Met, the Art Institute of Chicago, the Cleveland Museum of Art, Harvard
Art Museums and the Rijksmuseum, saves it locally and remembers it so it is
never offered again.

When every museum fails, a previously saved image is shown instead, cycling
through the local collection oldest first.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuiet(true)
		}
	},
	RunE: runFetch,
}

// Execute runs the root command. Every returned error exits with status 1;
// commands only return errors for configuration problems and total failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			ui.PrintError("Configuration error", cfgErr.Err)
		} else {
			ui.PrintError("Error", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only the result path and errors")

	addFetchFlags(rootCmd)

	rootCmd.SetVersionTemplate(`canvasfetch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// configError marks failures to load or validate configuration
type configError struct {
	Err error
}

func (e *configError) Error() string { return "configuration: " + e.Err.Error() }
func (e *configError) Unwrap() error { return e.Err }

// loadConfig loads configuration and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case quiet:
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, &configError{Err: err}
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, &configError{Err: err}
	}
	return cfg, nil
}

// workspace is the local state every command works against
type workspace struct {
	cfg     *config.Config
	log     logger.Logger
	store   *storage.Manager
	ledger  *ledger.Ledger
	catalog *metadata.Catalog
}

func openWorkspace(flags map[string]interface{}) (*workspace, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	store, err := storage.NewManager(cfg.Storage.ImageDir)
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(cfg.Storage.LedgerPath, log)
	if err != nil {
		return nil, err
	}

	ws := &workspace{cfg: cfg, log: log, store: store, ledger: l}

	// the catalog is descriptive only; a broken one must not stop a run
	catalog, err := metadata.Open(cfg.CatalogPath())
	if err != nil {
		log.WithError(err).Warn("Ignoring unreadable catalog")
	} else {
		ws.catalog = catalog
	}
	return ws, nil
}
