package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trebleshot/internal/config"
	"trebleshot/internal/indexer"
	"trebleshot/internal/logging"
	"trebleshot/internal/reporter"
	"trebleshot/internal/signalling"
	"trebleshot/internal/store"
	"trebleshot/internal/transport"
	"trebleshot/internal/ui"
	"trebleshot/pkg/types"
	"trebleshot/pkg/utils"
)

// SenderOptions configures one send
type SenderOptions struct {
	Paths    []string    // Files and folders to send
	Progress ui.Progress // Optional progress display
}

// SenderApp implements sender application logic
type SenderApp struct {
	config           *config.Config
	store            store.Store
	peerService      *transport.PeerService
	signalingService *signalling.SignalingService
	out              io.Writer
	logger           *logging.Logger
}

// NewSenderApp creates a new sender application. The session code is printed to out.
func NewSenderApp(cfg *config.Config, s store.Store, peerService *transport.PeerService,
	signalingService *signalling.SignalingService, out io.Writer, logger *logging.Logger) *SenderApp {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SenderApp{
		config:           cfg,
		store:            s,
		peerService:      peerService,
		signalingService: signalingService,
		out:              out,
		logger:           logger.Component("sender"),
	}
}

// Run indexes opts.Paths, records the transfer and sends it to the device
// that joins with the printed code
func (s *SenderApp) Run(ctx context.Context, opts SenderOptions) (types.Transfer, error) {
	if len(opts.Paths) == 0 {
		return types.Transfer{}, errors.New("at least one path is required")
	}

	transfer, items, err := indexer.Index(ctx, opts.Paths)
	if err != nil {
		return types.Transfer{}, err
	}
	var totalSize int64
	for _, item := range items {
		totalSize += item.Size
	}

	if err := s.store.PutTransfer(ctx, transfer); err != nil {
		return transfer, fmt.Errorf("failed to record transfer: %w", err)
	}
	if err := s.store.PutItems(ctx, items); err != nil {
		return transfer, fmt.Errorf("failed to record items: %w", err)
	}
	s.logger.Info().
		Str("transfer", transfer.ID).
		Int("items", len(items)).
		Str("size", utils.FormatFileSize(totalSize)).
		Msg("transfer prepared")

	peerConn, err := s.peerService.CreatePeerConnection("sender")
	if err != nil {
		return transfer, err
	}
	defer func() {
		if err := s.peerService.Close(peerConn); err != nil {
			s.logger.Warn().Err(err).Msg("error closing peer connection")
		}
	}()

	exitCh := make(chan error, 1)
	channel, err := transport.CreateSenderChannel(ctx, s.config, peerConn, transport.SenderOptions{
		Transfer: transfer,
		Items:    items,
		Device:   s.config.DeviceInfo(),
		Recorder: s.store,
		Logger:   s.logger,
	}, completion(exitCh))
	if err != nil {
		return transfer, err
	}

	var observer reporter.Observer
	if opts.Progress != nil {
		observer = opts.Progress
	}
	summary := runReporter(ctx, reporter.NewFlagReporter(s.store, observer, s.logger), channel.Handler().Progress())

	// The data channel has to exist before the offer is created
	code, err := s.signalingService.PublishOffer(ctx, peerConn, s.config.Device.Name)
	if err != nil {
		channel.Close()
		<-summary
		return transfer, fmt.Errorf("failed during signalling process: %w", err)
	}
	fmt.Fprintf(s.out, "Send this code to the receiver: %s\n", code)

	if err := s.signalingService.AwaitAnswer(ctx, peerConn, code); err != nil {
		channel.Close()
		<-summary
		return transfer, fmt.Errorf("failed during signalling process: %w", err)
	}

	if opts.Progress != nil {
		opts.Progress.Start(len(items), totalSize)
	}
	channel.Start()

	err = waitForExit(ctx, channel, exitCh, s.peerService.Failures())
	finishProgress(opts.Progress, summary)
	if err != nil {
		return transfer, fmt.Errorf("transfer failed: %w", err)
	}
	return transfer, nil
}
