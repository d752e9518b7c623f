package cmd

import (
	"fmt"

	"trebleshot/internal/diskspace"
	"trebleshot/internal/tree"
	"trebleshot/internal/ui"

	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded transfers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext()
		defer cancel()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(s)

		transfers, err := s.ListTransfers(ctx)
		if err != nil {
			return err
		}
		if len(transfers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No transfers yet")
			return nil
		}

		loader := tree.NewLoader(s, diskspace.NewLocalProvider(cfg.Storage.DownloadDir), nil, logger)
		entries := make([]ui.HistoryEntry, 0, len(transfers))
		for _, t := range transfers {
			res, err := loader.Load(ctx, t.ID, tree.View{}, tree.LoadOptions{})
			if err != nil {
				logger.Warn().Err(err).Str("transfer", t.ID).Msg("skipping transfer")
				continue
			}
			entries = append(entries, ui.HistoryEntry{ID: t.ID, Created: t.Created, Status: res.Status})
		}
		return ui.RenderHistory(cmd.OutOrStdout(), entries, tree.Formatter{PercentDecimals: cfg.Display.PercentDecimals})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
