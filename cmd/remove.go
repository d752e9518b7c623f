package cmd

import (
	"errors"
	"fmt"

	"trebleshot/internal/store"

	"github.com/spf13/cobra"
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove <transfer-id>",
	Short: "Delete a transfer record with its items and members",
	Long: `Delete a recorded transfer. Files already received stay on disk; only the
record of the transfer is removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext()
		defer cancel()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(s)

		if err := s.RemoveTransfer(ctx, args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no transfer with id %s", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed transfer %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
