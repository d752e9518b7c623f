package transport

import (
	"context"
	"sync"

	"trebleshot/pkg/types"
)

// MessageHandler defines the interface for handling messages and channel lifecycle events
// This allows for role-specific logic (sender/receiver) while using a generic channel
type MessageHandler interface {
	// Message processing
	HandleMessage(msg Message) error

	// Lifecycle events
	OnChannelReady() error
	OnChannelClosed()
	OnChannelError(err error)

	// Progress of every item flag change, closed when the handler is done
	Progress() <-chan types.ProgressUpdate
}

// MessageSender is the outgoing side of a data channel
type MessageSender interface {
	Send(msg Message) error
	SendMessage(msgType MessageType, payload []byte) error
	SendControl(msgType MessageType, errMsg string) error
	Close() error
}

// TransferRecorder persists what a handler learns about a transfer
type TransferRecorder interface {
	PutTransfer(ctx context.Context, transfer types.Transfer) error
	PutItems(ctx context.Context, items []types.TransferItem) error
	PutMember(ctx context.Context, member types.Recipient) error
}

// SenderState represents the current state of the sender in the transfer protocol
type SenderState int

const (
	SenderInitializing SenderState = iota
	SenderWaitingForReady
	SenderSendingManifest
	SenderWaitingForManifestAck
	SenderTransferringData
	SenderWaitingForCompletion
	SenderCompleted
	SenderError
)

// String returns the string representation of SenderState
func (s SenderState) String() string {
	switch s {
	case SenderInitializing:
		return "Initializing"
	case SenderWaitingForReady:
		return "WaitingForReady"
	case SenderSendingManifest:
		return "SendingManifest"
	case SenderWaitingForManifestAck:
		return "WaitingForManifestAck"
	case SenderTransferringData:
		return "TransferringData"
	case SenderWaitingForCompletion:
		return "WaitingForCompletion"
	case SenderCompleted:
		return "Completed"
	case SenderError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ReceiverState represents the current state of the receiver in the transfer protocol
type ReceiverState int

const (
	ReceiverInitializing ReceiverState = iota
	ReceiverReady
	ReceiverWaitingForItem
	ReceiverReceivingData
	ReceiverSkippingItem
	ReceiverCompleted
	ReceiverError
)

// String returns the string representation of ReceiverState
func (r ReceiverState) String() string {
	switch r {
	case ReceiverInitializing:
		return "Initializing"
	case ReceiverReady:
		return "Ready"
	case ReceiverWaitingForItem:
		return "WaitingForItem"
	case ReceiverReceivingData:
		return "ReceivingData"
	case ReceiverSkippingItem:
		return "SkippingItem"
	case ReceiverCompleted:
		return "Completed"
	case ReceiverError:
		return "Error"
	default:
		return "Unknown"
	}
}

const progressBuffer = 64

// BaseHandler provides common functionality for handlers: a cancellable
// context, the outgoing channel and the progress stream.
type BaseHandler struct {
	ctx    context.Context
	cancel context.CancelFunc
	sender MessageSender

	progressCh     chan types.ProgressUpdate
	progressMu     sync.Mutex
	progressClosed bool

	completeOnce sync.Once
	onCompleted  func(error)
}

// NewBaseHandler creates a new base handler with context
func NewBaseHandler(ctx context.Context, onCompleted func(error)) *BaseHandler {
	ctx, cancel := context.WithCancel(ctx)
	return &BaseHandler{
		ctx:         ctx,
		cancel:      cancel,
		progressCh:  make(chan types.ProgressUpdate, progressBuffer),
		onCompleted: onCompleted,
	}
}

// SetSender sets the channel messages are written to
func (h *BaseHandler) SetSender(sender MessageSender) {
	h.sender = sender
}

// Context returns the handler's context
func (h *BaseHandler) Context() context.Context {
	return h.ctx
}

// Cancel cancels the handler's context
func (h *BaseHandler) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// IsCancelled checks if the handler's context has been cancelled
func (h *BaseHandler) IsCancelled() bool {
	select {
	case <-h.ctx.Done():
		return true
	default:
		return false
	}
}

// Progress returns the stream of flag changes
func (h *BaseHandler) Progress() <-chan types.ProgressUpdate {
	return h.progressCh
}

// emit publishes a progress update. It blocks while the consumer is behind so
// terminal flags are never dropped, and gives up once the handler is cancelled.
func (h *BaseHandler) emit(update types.ProgressUpdate) {
	h.progressMu.Lock()
	defer h.progressMu.Unlock()
	if h.progressClosed {
		return
	}
	select {
	case h.progressCh <- update:
	case <-h.ctx.Done():
	}
}

// finish cancels the handler, closes the progress stream and reports the
// outcome exactly once.
func (h *BaseHandler) finish(err error) {
	h.completeOnce.Do(func() {
		h.Cancel()

		h.progressMu.Lock()
		h.progressClosed = true
		close(h.progressCh)
		h.progressMu.Unlock()

		if h.onCompleted != nil {
			h.onCompleted(err)
		}
	})
}
