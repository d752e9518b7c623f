package app

import (
	"context"
	"fmt"
	"os"

	"trebleshot/internal/config"
	"trebleshot/internal/diskspace"
	"trebleshot/internal/logging"
	"trebleshot/internal/reporter"
	"trebleshot/internal/signalling"
	"trebleshot/internal/store"
	"trebleshot/internal/transport"
	"trebleshot/internal/ui"
	"trebleshot/pkg/types"
	"trebleshot/pkg/utils"
)

// ReceiverOptions configures one receive
type ReceiverOptions struct {
	DestDir  string      // Destination directory; the configured download directory when empty
	Code     string      // Session code; asked for with Prompter when empty
	Prompter *ui.Prompter
	Progress ui.Progress // Optional progress display
}

// ReceiverApp implements receiver application logic
type ReceiverApp struct {
	config           *config.Config
	store            store.Store
	peerService      *transport.PeerService
	signalingService *signalling.SignalingService
	logger           *logging.Logger
}

// NewReceiverApp creates a new receiver application
func NewReceiverApp(cfg *config.Config, s store.Store, peerService *transport.PeerService,
	signalingService *signalling.SignalingService, logger *logging.Logger) *ReceiverApp {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ReceiverApp{
		config:           cfg,
		store:            s,
		peerService:      peerService,
		signalingService: signalingService,
		logger:           logger.Component("receiver"),
	}
}

// Run joins the session of the code and stores the received items
func (r *ReceiverApp) Run(ctx context.Context, opts ReceiverOptions) error {
	dest, err := r.destination(opts.DestDir)
	if err != nil {
		return err
	}
	r.logger.Info().Str("destination", dest).Msg("preparing to receive")

	peerConn, err := r.peerService.CreatePeerConnection("receiver")
	if err != nil {
		return err
	}
	defer func() {
		if err := r.peerService.Close(peerConn); err != nil {
			r.logger.Warn().Err(err).Msg("error closing peer connection")
		}
	}()

	exitCh := make(chan error, 1)
	channel := transport.CreateReceiverChannel(ctx, r.config, peerConn, transport.ReceiverOptions{
		SaveDir:  dest,
		Device:   r.config.DeviceInfo(),
		Recorder: r.store,
		Disk:     diskspace.NewLocalProvider(r.config.Storage.DownloadDir),
		Logger:   r.logger,
		OnManifest: func(m types.Manifest) {
			if opts.Progress != nil {
				opts.Progress.Start(len(m.Items), m.TotalSize())
			}
		},
	}, completion(exitCh))

	var observer reporter.Observer
	if opts.Progress != nil {
		observer = opts.Progress
	}
	summary := runReporter(ctx, reporter.NewFlagReporter(r.store, observer, r.logger), channel.Handler().Progress())

	code := opts.Code
	if code == "" {
		if opts.Prompter == nil {
			channel.Close()
			<-summary
			return fmt.Errorf("a session code is required")
		}
		if code, err = opts.Prompter.InputCode(ctx); err != nil {
			channel.Close()
			<-summary
			return fmt.Errorf("failed to get code from user: %w", err)
		}
	}

	senderName, err := r.signalingService.Answer(ctx, peerConn, code)
	if err != nil {
		channel.Close()
		<-summary
		return fmt.Errorf("failed during signalling process: %w", err)
	}
	r.logger.Info().Str("sender", senderName).Msg("connecting to sender")
	channel.Start()

	err = waitForExit(ctx, channel, exitCh, r.peerService.Failures())
	finishProgress(opts.Progress, summary)
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	return nil
}

// destination resolves where items are written, creating the default download directory
func (r *ReceiverApp) destination(dir string) (string, error) {
	if dir == "" {
		dir = r.config.Storage.DownloadDir
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create download directory: %w", err)
		}
	}
	return utils.ResolveDestinationDir(dir)
}
