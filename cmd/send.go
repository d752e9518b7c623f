package cmd

import (
	"fmt"
	"os"

	"trebleshot/internal/app"
	"trebleshot/internal/ui"

	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <path>...",
	Short: "Send files and folders to a peer (creates offer)",
	Long: `Send files and folders to a peer via WebRTC. This will:

1. Index the paths into a transfer and record it
2. Publish an offer and print the session code
3. Wait for the receiver to join with the code
4. Send every item once connected

Folders are sent with their layout; hidden entries inside them are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext()
		defer cancel()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(s)

		peerService, signalingService, err := createServices(ctx)
		if err != nil {
			return err
		}

		sender := app.NewSenderApp(cfg, s, peerService, signalingService, cmd.OutOrStdout(), logger)
		transfer, err := sender.Run(ctx, app.SenderOptions{
			Paths:    args,
			Progress: ui.NewProgress(cfg.Display.ProgressStyle, "Sending", os.Stdout),
		})
		if transfer.ID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Transfer: %s\n", transfer.ID)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
