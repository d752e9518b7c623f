package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trebleshot/internal/config"
	"trebleshot/internal/diskspace"
	"trebleshot/internal/logging"
	"trebleshot/internal/processor"
	"trebleshot/pkg/types"
	"trebleshot/pkg/utils"
)

// spaceMargin is the headroom required on top of the manifest's total size
const spaceMargin = 1.05

// ReceiverHandler implements MessageHandler for receiving the items of a transfer
type ReceiverHandler struct {
	*BaseHandler

	// Configuration and dependencies
	config        *config.Config
	saveDir       string
	device        types.DeviceInfo
	recorder      TransferRecorder
	disk          diskspace.Provider
	logger        *logging.Logger
	onManifest    func(types.Manifest)
	fileMu        sync.Mutex
	dataProcessor *processor.DataProcessor

	// Transfer
	manifest *types.Manifest
	items    map[int64]*types.TransferItem
	finished map[int64]bool

	// Current item
	current       *types.TransferItem
	bytesReceived uint64
	skipReason    string

	transferState ReceiverState
	failure       error
	stateMutex    sync.RWMutex

	closeDelay time.Duration
}

// NewReceiverHandler creates a new receiver handler storing items below saveDir.
// disk may be nil, which skips the free space check.
func NewReceiverHandler(ctx context.Context, cfg *config.Config, saveDir string, device types.DeviceInfo,
	recorder TransferRecorder, disk diskspace.Provider, logger *logging.Logger, onCompleted func(error)) *ReceiverHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ReceiverHandler{
		BaseHandler:   NewBaseHandler(ctx, onCompleted),
		config:        cfg,
		saveDir:       saveDir,
		device:        device,
		recorder:      recorder,
		disk:          disk,
		logger:        logger.Component("receiver"),
		dataProcessor: processor.NewDataProcessor(logger),
		items:         make(map[int64]*types.TransferItem),
		finished:      make(map[int64]bool),
		transferState: ReceiverInitializing,
		closeDelay:    200 * time.Millisecond,
	}
}

// Manifest returns the received manifest, nil until it arrived
func (r *ReceiverHandler) Manifest() *types.Manifest {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	return r.manifest
}

// HandleMessage processes incoming messages
func (r *ReceiverHandler) HandleMessage(msg Message) error {
	switch msg.Type {
	case MSG_MANIFEST:
		return r.handleManifest(msg)
	case MSG_ITEM_START:
		return r.handleItemStart(msg)
	case MSG_FILE_DATA:
		return r.handleFileData(msg)
	case MSG_ITEM_END:
		return r.handleItemEnd(msg)
	case MSG_EOF:
		return r.handleEOF()
	case MSG_ERROR:
		r.setState(ReceiverError)
		return fmt.Errorf("sender error: %s", msg.Error)
	default:
		r.logger.Warn().Str("type", string(msg.Type)).Msg("receiver received unexpected message type")
		return nil
	}
}

// OnChannelReady announces this device to the sender
func (r *ReceiverHandler) OnChannelReady() error {
	payload, err := utils.EncodeJSON(r.device)
	if err != nil {
		return fmt.Errorf("failed to encode device identity: %w", err)
	}

	r.setState(ReceiverReady)
	if err := r.sender.SendMessage(MSG_READY, payload); err != nil {
		return fmt.Errorf("failed to send READY message: %w", err)
	}
	return nil
}

// OnChannelClosed handles channel close events
func (r *ReceiverHandler) OnChannelClosed() {
	var err error
	if r.getState() != ReceiverCompleted {
		r.setState(ReceiverError)
		err = r.failureOr(errors.New("channel closed before the transfer completed"))
	}
	r.cleanup()
	r.finish(err)
}

// OnChannelError handles channel error events
func (r *ReceiverHandler) OnChannelError(err error) {
	r.logger.Error().Err(err).Msg("receiver channel error")
	if r.getState() != ReceiverCompleted {
		r.setState(ReceiverError)
	}
	r.cleanup()
	r.finish(err)
}

// handleManifest records the transfer and accepts it when the items fit on disk
func (r *ReceiverHandler) handleManifest(msg Message) error {
	if r.getState() != ReceiverReady {
		return fmt.Errorf("received MANIFEST in invalid state: %s", r.getState())
	}

	manifest, err := utils.DecodeJSON[types.Manifest](msg.Payload)
	if err != nil {
		return r.reject(fmt.Errorf("failed to decode manifest: %w", err))
	}
	if manifest.TransferID == "" {
		return r.reject(errors.New("manifest has no transfer id"))
	}

	now := time.Now()
	items := make([]types.TransferItem, 0, len(manifest.Items))
	for _, meta := range manifest.Items {
		item := types.TransferItem{
			ID:         meta.ID,
			TransferID: manifest.TransferID,
			Name:       meta.Name,
			MimeType:   meta.MimeType,
			Directory:  types.CleanDirectory(meta.Directory),
			Size:       meta.Size,
			Type:       types.Incoming,
			LastChange: now,
			Flags:      types.NewFlagSet(nil),
		}
		items = append(items, item)
	}

	r.stateMutex.Lock()
	r.manifest = &manifest
	for i := range items {
		r.items[items[i].ID] = &items[i]
	}
	r.stateMutex.Unlock()

	r.logger.Info().
		Str("transfer", manifest.TransferID).
		Str("from", manifest.Sender.Name).
		Int("items", len(items)).
		Str("size", utils.FormatFileSize(manifest.TotalSize())).
		Msg("manifest received")

	if err := r.record(manifest, items); err != nil {
		return r.reject(err)
	}

	if r.disk != nil {
		if err := diskspace.CheckAvailableSpace(r.disk, r.saveDir, manifest.TotalSize(), spaceMargin); err != nil {
			for _, item := range items {
				r.emit(types.ProgressUpdate{TransferID: manifest.TransferID, ItemID: item.ID, Key: types.IncomingKey, Flag: types.FlagInterrupted})
			}
			return r.reject(err)
		}
	}

	if r.onManifest != nil {
		r.onManifest(manifest)
	}

	r.setState(ReceiverWaitingForItem)
	if err := r.sender.SendMessage(MSG_MANIFEST_ACK, nil); err != nil {
		return fmt.Errorf("failed to send MANIFEST_ACK: %w", err)
	}
	return nil
}

// record persists the transfer, its items and the sending device
func (r *ReceiverHandler) record(manifest types.Manifest, items []types.TransferItem) error {
	if r.recorder == nil {
		return nil
	}
	ctx := r.Context()

	transfer := types.Transfer{ID: manifest.TransferID, Created: time.Now(), SavePath: r.saveDir}
	if err := r.recorder.PutTransfer(ctx, transfer); err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	if err := r.recorder.PutItems(ctx, items); err != nil {
		return fmt.Errorf("failed to record items: %w", err)
	}
	member := types.Recipient{
		TransferID: manifest.TransferID,
		DeviceID:   manifest.Sender.ID,
		DeviceName: manifest.Sender.Name,
		Type:       types.Incoming,
	}
	if err := r.recorder.PutMember(ctx, member); err != nil {
		return fmt.Errorf("failed to record sender: %w", err)
	}
	return nil
}

// reject tells the sender the transfer cannot go on and fails the handler
func (r *ReceiverHandler) reject(err error) error {
	r.setState(ReceiverError)
	r.stateMutex.Lock()
	r.failure = err
	r.stateMutex.Unlock()
	if sendErr := r.sender.SendControl(MSG_ERROR, err.Error()); sendErr != nil {
		r.logger.Warn().Err(sendErr).Msg("failed to send error message")
	}
	return err
}

// handleItemStart opens the destination file of the announced item
func (r *ReceiverHandler) handleItemStart(msg Message) error {
	if r.getState() != ReceiverWaitingForItem {
		return fmt.Errorf("received ITEM_START in invalid state: %s", r.getState())
	}

	ref, err := utils.DecodeJSON[ItemRef](msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode item start: %w", err)
	}

	r.stateMutex.RLock()
	item, ok := r.items[ref.ItemID]
	r.stateMutex.RUnlock()
	if !ok {
		r.skip(nil, fmt.Sprintf("unknown item %d", ref.ItemID))
		return nil
	}

	r.fileMu.Lock()
	storedName, err := r.dataProcessor.PrepareFileForReceiving(r.saveDir, item.Metadata())
	r.fileMu.Unlock()
	if err != nil {
		r.logger.Error().Err(err).Str("item", item.Name).Msg("failed to prepare destination")
		r.skip(item, err.Error())
		return nil
	}

	item.File = storedName
	if r.recorder != nil {
		if err := r.recorder.PutItems(r.Context(), []types.TransferItem{*item}); err != nil {
			r.logger.Warn().Err(err).Str("item", item.Name).Msg("failed to record stored name")
		}
	}

	r.current = item
	r.bytesReceived = 0
	r.setState(ReceiverReceivingData)

	meta := item.Metadata()
	r.emit(types.ProgressUpdate{TransferID: item.TransferID, ItemID: item.ID, Key: types.IncomingKey, Flag: types.FlagInProgress(0), Item: &meta})
	return nil
}

// skip ignores the data of the current item until its ITEM_END
func (r *ReceiverHandler) skip(item *types.TransferItem, reason string) {
	r.current = item
	r.skipReason = reason
	r.setState(ReceiverSkippingItem)
}

// handleFileData appends a chunk to the current item
func (r *ReceiverHandler) handleFileData(msg Message) error {
	switch r.getState() {
	case ReceiverSkippingItem:
		return nil
	case ReceiverReceivingData:
	default:
		return fmt.Errorf("received FILE_DATA in invalid state: %s", r.getState())
	}

	item := r.current
	r.fileMu.Lock()
	total, err := r.dataProcessor.WriteData(msg.Payload)
	if err != nil {
		r.dataProcessor.CleanupPartialFile()
	}
	r.fileMu.Unlock()
	if err != nil {
		r.logger.Error().Err(err).Str("item", item.Name).Msg("failed to write data")
		r.skip(item, err.Error())
		return nil
	}

	r.bytesReceived = total
	r.emit(types.ProgressUpdate{
		TransferID: item.TransferID,
		ItemID:     item.ID,
		Key:        types.IncomingKey,
		Flag:       types.FlagInProgress(int64(total)),
		NewBytes:   uint64(len(msg.Payload)),
	})
	return nil
}

// handleItemEnd finalises the current item and acknowledges it
func (r *ReceiverHandler) handleItemEnd(msg Message) error {
	state := r.getState()
	if state != ReceiverReceivingData && state != ReceiverSkippingItem {
		return fmt.Errorf("received ITEM_END in invalid state: %s", state)
	}

	item := r.current
	ackErr := r.skipReason
	if state == ReceiverReceivingData {
		ackErr = r.finishItem(item, msg.Error)
	}

	if item != nil {
		flag := types.FlagDone
		if ackErr != "" {
			flag = types.FlagInterrupted
			r.logger.Warn().Str("item", item.Name).Str("reason", ackErr).Msg("item interrupted")
		}
		r.stateMutex.Lock()
		r.finished[item.ID] = true
		r.stateMutex.Unlock()
		r.emit(types.ProgressUpdate{TransferID: item.TransferID, ItemID: item.ID, Key: types.IncomingKey, Flag: flag})
	}

	r.current = nil
	r.skipReason = ""
	r.bytesReceived = 0
	r.setState(ReceiverWaitingForItem)

	ack := Message{Type: MSG_ITEM_ACK, Payload: msg.Payload, Error: ackErr}
	if err := r.sender.Send(ack); err != nil {
		return fmt.Errorf("failed to send ITEM_ACK: %w", err)
	}
	return nil
}

// finishItem closes the current file and returns why it is unusable, if it is
func (r *ReceiverHandler) finishItem(item *types.TransferItem, senderErr string) string {
	r.fileMu.Lock()
	defer r.fileMu.Unlock()

	if senderErr != "" {
		r.dataProcessor.CleanupPartialFile()
		return senderErr
	}
	if r.bytesReceived != uint64(item.Size) {
		r.dataProcessor.CleanupPartialFile()
		return fmt.Sprintf("size mismatch: expected %d bytes, received %d", item.Size, r.bytesReceived)
	}
	if _, err := r.dataProcessor.FinishReceiving(); err != nil {
		return err.Error()
	}
	return ""
}

// handleEOF interrupts the items that never arrived and confirms the transfer
func (r *ReceiverHandler) handleEOF() error {
	if r.getState() != ReceiverWaitingForItem {
		return fmt.Errorf("received EOF in invalid state: %s", r.getState())
	}

	r.stateMutex.RLock()
	var missing []*types.TransferItem
	for id, item := range r.items {
		if !r.finished[id] {
			missing = append(missing, item)
		}
	}
	r.stateMutex.RUnlock()

	for _, item := range missing {
		r.emit(types.ProgressUpdate{TransferID: item.TransferID, ItemID: item.ID, Key: types.IncomingKey, Flag: types.FlagInterrupted})
	}

	r.logger.Info().Int("missing", len(missing)).Msg("transfer finished")
	r.setState(ReceiverCompleted)
	if err := r.sender.SendMessage(MSG_TRANSFER_COMPLETE, nil); err != nil {
		return fmt.Errorf("failed to send TRANSFER_COMPLETE: %w", err)
	}

	go func() {
		// Give the confirmation time to reach the sender
		time.Sleep(r.closeDelay)
		r.sender.Close()
	}()
	return nil
}

// failureOr returns the reason the transfer was rejected, or fallback
func (r *ReceiverHandler) failureOr(fallback error) error {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	if r.failure != nil {
		return r.failure
	}
	return fallback
}

// getState returns the current transfer state (thread-safe)
func (r *ReceiverHandler) getState() ReceiverState {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	return r.transferState
}

// setState updates the transfer state (thread-safe)
func (r *ReceiverHandler) setState(state ReceiverState) {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()

	if r.transferState != state {
		r.logger.Debug().Stringer("from", r.transferState).Stringer("to", state).Msg("receiver state")
		r.transferState = state
	}
}

// cleanup removes a partially received file
func (r *ReceiverHandler) cleanup() {
	r.Cancel()

	r.fileMu.Lock()
	defer r.fileMu.Unlock()
	if err := r.dataProcessor.CleanupPartialFile(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to remove partial file")
	}
}
