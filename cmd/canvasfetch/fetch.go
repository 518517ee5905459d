package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/acquire"
	"canvasfetch/pkg/auth"
	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/metadata"
	"canvasfetch/pkg/museum"
	"canvasfetch/pkg/offline"
	"canvasfetch/pkg/orientation"
	"canvasfetch/pkg/ui"
)

var (
	// Fetch flags, shared by the root command
	wantWide   bool
	wantTall   bool
	sourceName string
	topic      string
	imageDir   string
	maxAttempt int
	noOffline  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one unseen painting (default command)",
	Long: `Search the enabled museum collections in random order and save the first
painting that has not been offered before and matches the requested shape.

Every evaluated painting is recorded in the ledger, accepted or not, so the
same item is never downloaded twice. If no museum produces an image, a
previously saved one is returned instead.`,
	Example: `  # Any shape, any museum
  canvasfetch

  # A landscape-format image from the Met only
  canvasfetch fetch --wide --source met

  # Portrait format, print only the path
  canvasfetch fetch --tall -q`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addFetchFlags(fetchCmd)
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&wantWide, "wide", false, "only accept images at least as wide as they are tall")
	cmd.Flags().BoolVar(&wantTall, "tall", false, "only accept images taller than they are wide")
	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "restrict the search to one museum (met, aic, cma, harvard, rijks)")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "search topic (default from config: landscape)")
	cmd.Flags().StringVarP(&imageDir, "image-dir", "o", "", "directory for saved images")
	cmd.Flags().IntVar(&maxAttempt, "max-attempts", 0, "images to download and classify per museum before giving up")
	cmd.Flags().BoolVar(&noOffline, "no-offline", false, "fail instead of falling back to a saved image")
}

// requestedOrientation combines the shape flags with the configured default
func requestedOrientation(wide, tall bool, fallback string) (orientation.Orientation, error) {
	switch {
	case wide && tall:
		return orientation.Any, errors.New("--wide and --tall are mutually exclusive")
	case wide:
		return orientation.Wide, nil
	case tall:
		return orientation.Tall, nil
	default:
		return orientation.Parse(fallback)
	}
}

func fetchFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if topic != "" {
		flags["topic"] = topic
	}
	if imageDir != "" {
		flags["image-dir"] = imageDir
	}
	if maxAttempt > 0 {
		flags["max-attempts"] = maxAttempt
	}
	if noOffline {
		flags["offline-fallback"] = false
	}
	return flags
}

func runFetch(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(fetchFlags())
	if err != nil {
		return err
	}
	cfg := ws.cfg

	want, err := requestedOrientation(wantWide, wantTall, cfg.Acquisition.DefaultOrientation)
	if err != nil {
		return err
	}

	build := museum.BuildOptions{
		Counter: &httpclient.Counter{},
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:  ws.log,
	}
	if keys, err := auth.NewManager(); err != nil {
		ws.log.WithError(err).Warn("Stored API keys unavailable")
	} else {
		build.Keys = keys.Lookup
	}

	registry, err := museum.NewRegistryFromConfig(cfg, build)
	if err != nil {
		return &configError{Err: err}
	}

	opts := acquire.Options{
		Registry: registry,
		Ledger:   ws.ledger,
		Store:    ws.store,
		Counter:  build.Counter,
		Topic:    cfg.Museums.Topic,
		Budget:   cfg.Acquisition.MaxAttempts,
		MaxPages: cfg.Acquisition.MaxPages,
		Rand:     build.Rand,
		Logger:   ws.log,
	}
	if ws.catalog != nil {
		opts.Catalog = ws.catalog
	}
	if cfg.Acquisition.OfflineFallback {
		opts.Offline = offline.New(ws.store, cfg.RecencyPath(), ws.log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := acquire.NewEngine(opts).Acquire(ctx, acquire.Request{
		Orientation: want,
		Source:      sourceName,
	})
	if err != nil {
		return err
	}

	switch {
	case result.Offline:
		ui.PrintWarning("No museum produced an image; showing a saved one")
	case result.Existed:
		ui.PrintSuccess("Reusing file already on disk")
	default:
		ui.PrintSuccess("Saved new painting")
	}
	printResult(result, ws.catalog)
	return nil
}

func printResult(result *acquire.Result, catalog *metadata.Catalog) {
	title := result.Title
	if title == "" && catalog != nil {
		if item, ok := catalog.Get(filepath.Base(result.Path)); ok {
			title = item.Title
		}
	}

	if title != "" {
		ui.PrintInfo("Title", title)
	}
	ui.PrintInfo("Source", fmt.Sprintf("%s #%s", result.Source, result.ID))
	ui.PrintInfo("Size", fmt.Sprintf("%dx%d (%s)", result.Width, result.Height, metadata.AspectRatio(result.Width, result.Height)))
	if !result.Offline || result.Requests > 0 {
		ui.PrintInfo("API calls", fmt.Sprintf("%d", result.Requests))
	}
	ui.PrintResult(result.Path)
}
