package transport

import (
	"context"
	"fmt"

	"trebleshot/internal/config"
	"trebleshot/internal/diskspace"
	"trebleshot/internal/logging"
	"trebleshot/pkg/types"

	"github.com/pion/webrtc/v4"
)

// DataChannelLabel names the data channel the sender opens
const DataChannelLabel = "trebleshot"

// SenderOptions describes an outgoing transfer
type SenderOptions struct {
	Transfer types.Transfer
	Items    []types.TransferItem
	Device   types.DeviceInfo
	Recorder TransferRecorder
	Logger   *logging.Logger
}

// ReceiverOptions describes where and how incoming items are stored
type ReceiverOptions struct {
	SaveDir  string
	Device   types.DeviceInfo
	Recorder TransferRecorder
	Disk     diskspace.Provider
	Logger   *logging.Logger

	// OnManifest is called once the transfer was accepted
	OnManifest func(types.Manifest)
}

// CreateSenderChannel creates a channel configured for sending items and opens its data channel
func CreateSenderChannel(ctx context.Context, cfg *config.Config, peerConn *webrtc.PeerConnection,
	opts SenderOptions, onCompleted func(error)) (*Channel, error) {
	handler, err := NewSenderHandler(ctx, cfg, opts.Transfer, opts.Items, opts.Device, opts.Recorder, opts.Logger, onCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender handler: %w", err)
	}

	channel := NewChannel(ctx, cfg, handler, opts.Logger)
	handler.SetSender(channel)

	if err := channel.CreateDataChannel(peerConn, DataChannelLabel); err != nil {
		return nil, fmt.Errorf("failed to create WebRTC data channel: %w", err)
	}
	return channel, nil
}

// CreateReceiverChannel creates a channel configured for receiving items from the remote data channel
func CreateReceiverChannel(ctx context.Context, cfg *config.Config, peerConn *webrtc.PeerConnection,
	opts ReceiverOptions, onCompleted func(error)) *Channel {
	handler := NewReceiverHandler(ctx, cfg, opts.SaveDir, opts.Device, opts.Recorder, opts.Disk, opts.Logger, onCompleted)
	handler.onManifest = opts.OnManifest

	channel := NewChannel(ctx, cfg, handler, opts.Logger)
	handler.SetSender(channel)
	channel.SetupReceiverDataChannel(peerConn)
	return channel
}
