package main

import (
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/acquire"
	"canvasfetch/pkg/offline"
	"canvasfetch/pkg/ui"
)

var offlineCmd = &cobra.Command{
	Use:   "offline",
	Short: "Show a previously saved image without contacting any museum",
	Long: `Pick the saved image shown least recently (never-shown images first) that
matches the requested shape, and mark it as shown now. With --random any
matching image is picked instead.`,
	Args: cobra.NoArgs,
	RunE: runOffline,
}

var pickRandom bool

func init() {
	rootCmd.AddCommand(offlineCmd)
	offlineCmd.Flags().BoolVarP(&pickRandom, "random", "r", false, "pick a random matching image")
	offlineCmd.Flags().BoolVar(&wantWide, "wide", false, "only images at least as wide as they are tall")
	offlineCmd.Flags().BoolVar(&wantTall, "tall", false, "only images taller than they are wide")
	offlineCmd.Flags().StringVarP(&imageDir, "image-dir", "o", "", "directory of saved images")
}

func runOffline(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if imageDir != "" {
		flags["image-dir"] = imageDir
	}
	ws, err := openWorkspace(flags)
	if err != nil {
		return err
	}

	want, err := requestedOrientation(wantWide, wantTall, ws.cfg.Acquisition.DefaultOrientation)
	if err != nil {
		return err
	}

	cycler := offline.New(ws.store, ws.cfg.RecencyPath(), ws.log)
	var sel *offline.Selection
	if pickRandom {
		sel, err = cycler.Random(want, rand.New(rand.NewSource(time.Now().UnixNano())))
	} else {
		sel, err = cycler.Select(want)
	}
	if err != nil {
		return err
	}

	if pickRandom {
		ui.PrintSuccess("Selected a random saved image")
	} else if sel.LastShown.IsZero() {
		ui.PrintSuccess("Selected a saved image never shown before")
	} else {
		ui.PrintSuccess("Selected the saved image last shown " + sel.LastShown.Local().Format("2006-01-02 15:04"))
	}
	printResult(&acquire.Result{
		Path:    sel.Path,
		Source:  sel.Source,
		ID:      sel.ID,
		Width:   sel.Width,
		Height:  sel.Height,
		Offline: true,
		Existed: true,
	}, ws.catalog)
	return nil
}
