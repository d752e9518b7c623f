package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trebleshot/internal/config"
	"trebleshot/internal/logging"
	"trebleshot/internal/processor"
	"trebleshot/pkg/types"
	"trebleshot/pkg/utils"
)

// itemAck is the receiver's verdict on one item
type itemAck struct {
	itemID int64
	err    string
}

// SenderHandler implements MessageHandler for sending the items of one transfer
type SenderHandler struct {
	*BaseHandler

	// Configuration and dependencies
	config        *config.Config
	dataProcessor *processor.DataProcessor
	recorder      TransferRecorder
	logger        *logging.Logger

	// Transfer
	transfer types.Transfer
	items    []types.TransferItem
	device   types.DeviceInfo
	peer     types.DeviceInfo

	transferState SenderState
	stateMutex    sync.RWMutex

	// Acknowledgement handling
	ackTimeouts map[MessageType]time.Duration
	ackReceived chan itemAck

	closeDelay time.Duration
}

// NewSenderHandler creates a new sender handler for the outgoing items of transfer
func NewSenderHandler(ctx context.Context, cfg *config.Config, transfer types.Transfer, items []types.TransferItem,
	device types.DeviceInfo, recorder TransferRecorder, logger *logging.Logger, onCompleted func(error)) (*SenderHandler, error) {
	if len(items) == 0 {
		return nil, errors.New("transfer has no items to send")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	handler := &SenderHandler{
		BaseHandler:   NewBaseHandler(ctx, onCompleted),
		config:        cfg,
		dataProcessor: processor.NewDataProcessor(logger),
		recorder:      recorder,
		logger:        logger.Component("sender"),
		transfer:      transfer,
		items:         items,
		device:        device,
		transferState: SenderInitializing,
		ackTimeouts: map[MessageType]time.Duration{
			MSG_MANIFEST_ACK:      30 * time.Second,
			MSG_ITEM_ACK:          60 * time.Second,
			MSG_TRANSFER_COMPLETE: 60 * time.Second,
		},
		ackReceived: make(chan itemAck, 1),
		closeDelay:  100 * time.Millisecond,
	}

	return handler, nil
}

// Peer returns the receiving device once it announced itself
func (s *SenderHandler) Peer() types.DeviceInfo {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.peer
}

// HandleMessage processes incoming messages
func (s *SenderHandler) HandleMessage(msg Message) error {
	s.logger.Debug().Str("type", string(msg.Type)).Msg("sender received message")

	switch msg.Type {
	case MSG_READY:
		return s.handleReadyMessage(msg)
	case MSG_MANIFEST_ACK:
		return s.handleManifestAck(msg)
	case MSG_ITEM_ACK:
		return s.handleItemAck(msg)
	case MSG_TRANSFER_COMPLETE:
		return s.handleTransferComplete(msg)
	case MSG_ERROR:
		return s.handleErrorMessage(msg)
	default:
		s.logger.Warn().Str("type", string(msg.Type)).Msg("sender received unexpected message type")
		return nil
	}
}

// OnChannelReady is called when the data channel is ready
func (s *SenderHandler) OnChannelReady() error {
	// The receiver speaks first
	s.stateMutex.Lock()
	if s.transferState == SenderInitializing {
		s.transferState = SenderWaitingForReady
	}
	s.stateMutex.Unlock()
	return nil
}

// OnChannelClosed handles channel close events
func (s *SenderHandler) OnChannelClosed() {
	var err error
	if s.getState() != SenderCompleted {
		s.setState(SenderError)
		err = fmt.Errorf("channel closed before the transfer completed")
	}
	s.cleanup()
	s.finish(err)
}

// OnChannelError handles channel error events
func (s *SenderHandler) OnChannelError(err error) {
	s.logger.Error().Err(err).Msg("sender channel error")
	if s.getState() != SenderCompleted {
		s.setState(SenderError)
	}
	s.cleanup()
	s.finish(err)
}

// handleReadyMessage records the receiver as a member and sends the manifest
func (s *SenderHandler) handleReadyMessage(msg Message) error {
	// READY may overtake OnChannelReady when the receiver's side opens first
	if state := s.getState(); state != SenderWaitingForReady && state != SenderInitializing {
		return fmt.Errorf("received READY message in invalid state: %s", state)
	}

	peer, err := utils.DecodeJSON[types.DeviceInfo](msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode receiver identity: %w", err)
	}
	if peer.ID == "" {
		return errors.New("receiver did not send a device id")
	}

	s.stateMutex.Lock()
	s.peer = peer
	s.stateMutex.Unlock()

	s.logger.Info().Str("device", peer.Name).Msg("receiver ready")
	if s.recorder != nil {
		member := types.Recipient{
			TransferID: s.transfer.ID,
			DeviceID:   peer.ID,
			DeviceName: peer.Name,
			Type:       types.Outgoing,
		}
		if err := s.recorder.PutMember(s.Context(), member); err != nil {
			return fmt.Errorf("failed to record receiver: %w", err)
		}
	}

	s.setState(SenderSendingManifest)
	return s.sendManifest()
}

// sendManifest sends the item list to the receiver
func (s *SenderHandler) sendManifest() error {
	manifest := types.Manifest{
		TransferID: s.transfer.ID,
		Sender:     s.device,
		Items:      make([]types.ItemMetadata, 0, len(s.items)),
	}
	for _, item := range s.items {
		manifest.Items = append(manifest.Items, item.Metadata())
	}

	payload, err := utils.EncodeJSON(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	s.setState(SenderWaitingForManifestAck)
	if err := s.sender.SendMessage(MSG_MANIFEST, payload); err != nil {
		return fmt.Errorf("failed to send manifest: %w", err)
	}
	go s.watchState(SenderWaitingForManifestAck, MSG_MANIFEST_ACK)
	return nil
}

// handleManifestAck starts the item transfer
func (s *SenderHandler) handleManifestAck(msg Message) error {
	if s.getState() != SenderWaitingForManifestAck {
		return fmt.Errorf("received MANIFEST_ACK in invalid state: %s", s.getState())
	}
	if msg.Error != "" {
		s.setState(SenderError)
		return fmt.Errorf("receiver rejected manifest: %s", msg.Error)
	}

	s.setState(SenderTransferringData)
	go s.transferLoop()
	return nil
}

// handleItemAck hands the receiver's verdict to the transfer loop
func (s *SenderHandler) handleItemAck(msg Message) error {
	ref, err := utils.DecodeJSON[ItemRef](msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode item ack: %w", err)
	}

	select {
	case s.ackReceived <- itemAck{itemID: ref.ItemID, err: msg.Error}:
		return nil
	case <-s.Context().Done():
		return s.Context().Err()
	}
}

// handleTransferComplete processes TRANSFER_COMPLETE message
func (s *SenderHandler) handleTransferComplete(msg Message) error {
	if s.getState() != SenderWaitingForCompletion {
		return fmt.Errorf("received TRANSFER_COMPLETE in invalid state: %s", s.getState())
	}
	if msg.Error != "" {
		s.setState(SenderError)
		return fmt.Errorf("receiver reported transfer error: %s", msg.Error)
	}

	s.logger.Info().Str("transfer", s.transfer.ID).Msg("transfer completed")
	s.setState(SenderCompleted)

	go func() {
		// Let any final messages drain before closing
		time.Sleep(s.closeDelay)
		s.sender.Close()
	}()
	return nil
}

// handleErrorMessage processes ERROR messages
func (s *SenderHandler) handleErrorMessage(msg Message) error {
	s.setState(SenderError)
	return fmt.Errorf("receiver error: %s", msg.Error)
}

// transferLoop sends every item in turn and waits for its acknowledgement
func (s *SenderHandler) transferLoop() {
	defer s.dataProcessor.Close()
	key := s.Peer().ID

	for _, item := range s.items {
		if s.IsCancelled() {
			return
		}
		if err := s.sendItem(item, key); err != nil {
			s.logger.Error().Err(err).Int64("item", item.ID).Msg("item transfer failed")
			if s.IsCancelled() {
				return
			}
		}
	}

	s.setState(SenderWaitingForCompletion)
	if err := s.sender.SendMessage(MSG_EOF, nil); err != nil {
		s.logger.Error().Err(err).Msg("failed to send EOF")
		s.setState(SenderError)
		return
	}

	go s.watchState(SenderWaitingForCompletion, MSG_TRANSFER_COMPLETE)
}

// watchState closes the channel when the sender is still in state once the
// acknowledgement timeout for ack passed
func (s *SenderHandler) watchState(state SenderState, ack MessageType) {
	select {
	case <-time.After(s.ackTimeouts[ack]):
		if s.getState() == state {
			s.logger.Warn().Str("ack", string(ack)).Msg("timeout waiting for acknowledgement")
			s.setState(SenderError)
			s.sender.Close()
		}
	case <-s.Context().Done():
	}
}

// sendItem streams one item. Failures that only affect this item mark it
// Interrupted and let the transfer go on.
func (s *SenderHandler) sendItem(item types.TransferItem, key string) error {
	meta := item.Metadata()
	s.emit(types.ProgressUpdate{TransferID: s.transfer.ID, ItemID: item.ID, Key: key, Flag: types.FlagInProgress(0), Item: &meta})

	interrupted := func(err error) error {
		s.emit(types.ProgressUpdate{TransferID: s.transfer.ID, ItemID: item.ID, Key: key, Flag: types.FlagInterrupted})
		return err
	}

	// The item is skipped without telling the receiver, which marks it
	// Interrupted when the transfer ends.
	if _, err := s.dataProcessor.PrepareFileForSending(item.File); err != nil {
		return interrupted(fmt.Errorf("failed to prepare %s: %w", item.Name, err))
	}

	ref, err := utils.EncodeJSON(ItemRef{ItemID: item.ID})
	if err != nil {
		s.dataProcessor.Close()
		return interrupted(err)
	}
	if err := s.sender.SendMessage(MSG_ITEM_START, ref); err != nil {
		s.dataProcessor.Close()
		return interrupted(fmt.Errorf("failed to send item start: %w", err))
	}

	ctx, cancel := context.WithCancel(s.Context())
	defer cancel()

	var readErr error
	dataCh, errCh, err := s.dataProcessor.StartReadingFile(ctx, s.config.WebRTC.PacketSize)
	if err != nil {
		readErr = err
	} else {
		var sent int64
		for chunk := range dataCh {
			if chunk.EOF {
				break
			}
			if err := s.sender.SendMessage(MSG_FILE_DATA, chunk.Data); err != nil {
				return interrupted(fmt.Errorf("failed to send data chunk: %w", err))
			}
			sent += int64(len(chunk.Data))
			s.emit(types.ProgressUpdate{
				TransferID: s.transfer.ID,
				ItemID:     item.ID,
				Key:        key,
				Flag:       types.FlagInProgress(sent),
				NewBytes:   uint64(len(chunk.Data)),
			})
		}
		readErr = <-errCh
	}

	end := Message{Type: MSG_ITEM_END, Payload: ref}
	if readErr != nil {
		end.Error = fmt.Sprintf("file reading error: %v", readErr)
	}
	if err := s.sender.Send(end); err != nil {
		return interrupted(fmt.Errorf("failed to send item end: %w", err))
	}

	select {
	case ack := <-s.ackReceived:
		if ack.itemID != item.ID {
			return interrupted(fmt.Errorf("acknowledgement for item %d while sending %d", ack.itemID, item.ID))
		}
		if readErr != nil {
			return interrupted(readErr)
		}
		if ack.err != "" {
			return interrupted(fmt.Errorf("receiver rejected %s: %s", item.Name, ack.err))
		}
	case <-time.After(s.ackTimeouts[MSG_ITEM_ACK]):
		return interrupted(fmt.Errorf("timeout waiting for acknowledgement of %s", item.Name))
	case <-s.Context().Done():
		return interrupted(s.Context().Err())
	}

	s.emit(types.ProgressUpdate{TransferID: s.transfer.ID, ItemID: item.ID, Key: key, Flag: types.FlagDone})
	return nil
}

// getState returns the current transfer state (thread-safe)
func (s *SenderHandler) getState() SenderState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.transferState
}

// setState updates the transfer state (thread-safe)
func (s *SenderHandler) setState(state SenderState) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if s.transferState != state {
		s.logger.Debug().Stringer("from", s.transferState).Stringer("to", state).Msg("sender state")
		s.transferState = state
	}
}

// cleanup stops the transfer loop, which releases the open file on its way out
func (s *SenderHandler) cleanup() {
	s.Cancel()
}
