package cmd

import (
	"fmt"
	"os"

	"trebleshot/internal/app"
	"trebleshot/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ReceiveFlags struct {
	DstPath string
	Code    string
}

var receiveFlags ReceiveFlags

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive files from a peer (responds to offer)",
	Long: `Receive files from a peer via WebRTC. This will:

1. Ask for the session code printed by the sender
2. Answer the sender's offer
3. Check the destination has room for the transfer
4. Save every item below the destination directory

Without --dst items are saved to the configured download directory.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		receiveFlags.DstPath = viper.GetString("receive.dst")
		return validateReceiveFlags(&receiveFlags)
	},
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

		receiver := app.NewReceiverApp(cfg, s, peerService, signalingService, logger)
		return receiver.Run(ctx, app.ReceiverOptions{
			DestDir:  receiveFlags.DstPath,
			Code:     receiveFlags.Code,
			Prompter: ui.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
			Progress: ui.NewProgress(cfg.Display.ProgressStyle, "Receiving", os.Stdout),
		})
	},
}

// validateReceiveFlags rejects a destination that exists but is not a directory
func validateReceiveFlags(flags *ReceiveFlags) error {
	if flags.DstPath == "" {
		return nil
	}
	info, err := os.Stat(flags.DstPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot access destination '%s': %w", flags.DstPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination '%s' is not a directory", flags.DstPath)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&receiveFlags.DstPath, "dst", "d", "", "Directory to save received items (default is the configured download directory)")
	receiveCmd.Flags().StringVarP(&receiveFlags.Code, "code", "c", "", "Session code from the sender; asked for when omitted")

	viper.BindPFlag("receive.dst", receiveCmd.Flags().Lookup("dst"))
}
