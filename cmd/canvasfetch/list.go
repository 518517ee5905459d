package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/metadata"
	"canvasfetch/pkg/models"
	"canvasfetch/pkg/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved images",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <number|filename>",
	Short: "Delete a saved image",
	Long: `Delete a saved image and its catalog entry. The image is named by its
number in "list", its filename, or its filename without the extension.
The painting stays in the ledger, so it will not be downloaded again.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(nil)
	if err != nil {
		return err
	}

	images, err := ws.store.List()
	if err != nil {
		return err
	}
	if len(images) == 0 {
		ui.PrintWarning("No saved images in " + ws.store.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tSOURCE\tID\tSIZE\tRATIO\tBYTES\tSAVED\tTITLE")
	for i, img := range images {
		var item models.CatalogItem
		if ws.catalog != nil {
			item, _ = ws.catalog.Get(img.Name)
		}

		size, ratio := "-", "-"
		if item.Width > 0 && item.Height > 0 {
			size = fmt.Sprintf("%dx%d", item.Width, item.Height)
			ratio = metadata.AspectRatio(item.Width, item.Height)
		}
		saved := img.ModTime
		if !item.SavedAt.IsZero() {
			saved = item.SavedAt
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			i+1, img.Name, img.Source, img.ID, size, ratio, img.Size,
			saved.Local().Format("2006-01-02 15:04"), item.Title)
	}
	return w.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(nil)
	if err != nil {
		return err
	}

	img, err := ws.store.Find(args[0])
	if err != nil {
		return err
	}
	name := img.Name
	if err := ws.store.Delete(name); err != nil {
		return err
	}
	if ws.catalog != nil {
		if err := ws.catalog.Remove(name); err != nil {
			ws.log.WithError(err).Warn("Failed to update catalog")
		}
	}
	ui.PrintSuccess("Deleted " + name)
	return nil
}
