package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/ui"
)

var forceReset bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every painting evaluated so far",
	Long: `Clear the ledger so previously seen paintings become eligible again.
Saved images are kept; run 'canvasfetch rebuild' afterwards to mark them as
accepted again.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-add saved images to the ledger",
	Long: `Scan the image directory and record every saved image as accepted.
Use this after losing or resetting the ledger. Rejections cannot be
recovered, since nothing on disk remembers them.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger counts per museum",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(statusCmd)

	resetCmd.Flags().BoolVarP(&forceReset, "yes", "y", false, "do not ask for confirmation")
}

func runReset(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(nil)
	if err != nil {
		return err
	}

	stats := ws.ledger.Stats()
	if !forceReset {
		fmt.Printf("Forget %d accepted and %d rejected paintings? (y/N): ", stats.Accepted, stats.Rejected)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := ws.ledger.Reset(); err != nil {
		return err
	}
	ui.PrintSuccess("Ledger cleared: " + ws.ledger.Path())
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(nil)
	if err != nil {
		return err
	}

	images, err := ws.store.List()
	if err != nil {
		return err
	}
	changed, err := ws.ledger.Reconcile(images)
	if err != nil {
		return err
	}

	if ws.catalog != nil {
		pruned, err := ws.catalog.Prune(ws.store.Dir())
		if err != nil {
			ws.log.WithError(err).Warn("Failed to prune catalog")
		} else if pruned > 0 {
			ui.PrintInfo("Catalog entries removed", fmt.Sprintf("%d", pruned))
		}
	}

	ui.PrintInfo("Images found", fmt.Sprintf("%d", len(images)))
	ui.PrintSuccess(fmt.Sprintf("Ledger entries added or promoted: %d", changed))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(nil)
	if err != nil {
		return err
	}

	stats := ws.ledger.Stats()
	ui.PrintInfo("Ledger", ws.ledger.Path())
	if !stats.UpdatedAt.IsZero() {
		ui.PrintInfo("Updated", stats.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}

	sources := make([]string, 0, len(stats.Sources))
	for name := range stats.Sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	fmt.Println()
	fmt.Printf("  %-10s %9s %9s\n", "SOURCE", "ACCEPTED", "REJECTED")
	for _, name := range sources {
		s := stats.Sources[name]
		fmt.Printf("  %-10s %9d %9d\n", name, s.Accepted, s.Rejected)
	}
	fmt.Printf("  %-10s %9d %9d\n", "total", stats.Accepted, stats.Rejected)
	fmt.Println()

	images, err := ws.store.List()
	if err != nil {
		return err
	}
	ui.PrintInfo("Saved images", fmt.Sprintf("%d in %s", len(images), ws.store.Dir()))
	if len(images) != stats.Accepted {
		ui.PrintWarning("Saved images and accepted entries differ; 'canvasfetch rebuild' reconciles them")
	}
	return nil
}
