package cmd

import (
	"fmt"

	"trebleshot/internal/diskspace"
	"trebleshot/internal/store"
	"trebleshot/internal/thumbnail"
	"trebleshot/internal/tree"
	"trebleshot/internal/ui"

	"github.com/spf13/cobra"
)

type BrowseFlags struct {
	Path         string
	Device       string
	Filters      []string
	Group        bool
	Order        string
	NoThumbnails bool
}

var browseFlags BrowseFlags

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse <transfer-id>",
	Short: "Show the items of a transfer as a directory tree",
	Long: `Show one virtual directory of a recorded transfer. The first row sums up
the whole transfer, followed by the folders below --path and the items directly
in it. Transfers with incoming items also show the destination storage.

Use --device to see the transfer from the side of a single member.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := store.ParseOrder(browseFlags.Order)
		if err != nil {
			return err
		}

		ctx, cancel := createContext()
		defer cancel()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(s)

		loader := tree.NewLoader(s, diskspace.NewLocalProvider(cfg.Storage.DownloadDir), thumbnail.NewFileResolver(), logger)

		view := tree.View{Path: browseFlags.Path}
		if browseFlags.Device != "" {
			if view.Recipient, err = loader.ResolveRecipient(ctx, args[0], browseFlags.Device); err != nil {
				return err
			}
		}

		res, err := loader.Load(ctx, args[0], view, tree.LoadOptions{
			Order:          order,
			LoadThumbnails: cfg.Display.LoadThumbnails && !browseFlags.NoThumbnails,
		})
		if err != nil {
			return err
		}

		nodes := res.Nodes
		if len(browseFlags.Filters) > 0 {
			nodes = tree.Filter(nodes, browseFlags.Filters)
		}
		if len(nodes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No items match")
			return nil
		}
		return ui.RenderTree(cmd.OutOrStdout(), nodes, ui.RenderOptions{
			Formatter: tree.Formatter{PercentDecimals: cfg.Display.PercentDecimals},
			Grouped:   browseFlags.Group,
		})
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().StringVarP(&browseFlags.Path, "path", "p", "", "Virtual directory to show (default is the root)")
	browseCmd.Flags().StringVar(&browseFlags.Device, "device", "", "Only show what this member device sends or receives")
	browseCmd.Flags().StringSliceVarP(&browseFlags.Filters, "filter", "f", nil, "Only show rows containing one of the keywords")
	browseCmd.Flags().BoolVarP(&browseFlags.Group, "group", "g", false, "Group rows into sections")
	browseCmd.Flags().StringVar(&browseFlags.Order, "order", "asc", "Sort items by last change: asc or desc")
	browseCmd.Flags().BoolVar(&browseFlags.NoThumbnails, "no-thumbnails", false, "Skip thumbnail lookup")
}
