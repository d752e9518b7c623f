package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trebleshot/internal/config"
	"trebleshot/internal/logging"
	"trebleshot/internal/signalling"
	"trebleshot/internal/store"
	"trebleshot/internal/transport"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     *config.Config
	cfgFile string
	verbose bool
	logger  *logging.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trebleshot",
	Short: "TrebleShot - peer-to-peer file sharing",
	Long: `TrebleShot sends files and folders directly between two devices over
WebRTC data channels. A short session code exchanged through Firebase pairs
the devices; every transfer is recorded so it can be browsed later.

Usage:
  Send files:        trebleshot send photo.jpg music/
  Receive files:     trebleshot receive --dst ~/Downloads
  Browse a transfer: trebleshot browse <transfer-id> --path music`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetVerbose(verbose)
		logger = logging.NewDefaultLogger()

		if err := initConfig(); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trebleshot.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("TREBLESHOT")
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Warn().Err(err).Msg("could not find home directory")
			return nil
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".trebleshot")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	logger.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens the transfer record store of the configuration
func openStore() (*store.JSONStore, error) {
	s, err := store.Open(cfg.StorePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer store: %w", err)
	}
	return s, nil
}

// createServices wires the peer and signalling services of a transfer
func createServices(ctx context.Context) (*transport.PeerService, *signalling.SignalingService, error) {
	signalingService, err := signalling.NewDefaultSignalingService(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return transport.NewPeerService(cfg, logger), signalingService, nil
}

// closeStore flushes the store, logging failures
func closeStore(s store.Store) {
	if err := s.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close transfer store")
	}
}
