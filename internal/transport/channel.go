package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trebleshot/internal/config"
	"trebleshot/internal/logging"

	"github.com/pion/webrtc/v4"
)

var ErrChannelClosed = errors.New("channel is closed")

// Channel is a bidirectional WebRTC data channel. Protocol behaviour lives in
// its MessageHandler; the channel only moves serialized messages with flow control.
type Channel struct {
	ctx         context.Context
	cancel      context.CancelFunc
	config      *config.Config
	logger      *logging.Logger
	dataChannel *webrtc.DataChannel
	handler     MessageHandler

	// Channel management
	readyCh         chan struct{}
	readyOnce       sync.Once
	bufferControlCh chan struct{}

	// Message routing
	incomingMsgCh chan webrtc.DataChannelMessage
	outgoingMsgCh chan []byte

	// State management
	isClosed   bool
	closeMutex sync.RWMutex

	// Graceful shutdown
	shutdownOnce sync.Once
}

// NewChannel creates a new channel driving handler
func NewChannel(ctx context.Context, cfg *config.Config, handler MessageHandler, logger *logging.Logger) *Channel {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Channel{
		ctx:             ctx,
		cancel:          cancel,
		config:          cfg,
		logger:          logger.Component("channel"),
		handler:         handler,
		readyCh:         make(chan struct{}),
		bufferControlCh: make(chan struct{}, 1),
		incomingMsgCh:   make(chan webrtc.DataChannelMessage, 100),
		outgoingMsgCh:   make(chan []byte),
	}
}

// CreateDataChannel creates and configures an ordered WebRTC data channel
func (c *Channel) CreateDataChannel(peerConn *webrtc.PeerConnection, label string) error {
	ordered := true
	options := &webrtc.DataChannelInit{
		Ordered: &ordered,
	}

	dataChannel, err := peerConn.CreateDataChannel(label, options)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}

	c.dataChannel = dataChannel
	c.setupDataChannelHandlers()
	return nil
}

// SetupReceiverDataChannel configures the channel to adopt the remote peer's data channel
func (c *Channel) SetupReceiverDataChannel(peerConn *webrtc.PeerConnection) {
	peerConn.OnDataChannel(func(dataChannel *webrtc.DataChannel) {
		c.logger.Debug().Str("label", dataChannel.Label()).Msg("received data channel")
		c.dataChannel = dataChannel
		c.setupDataChannelHandlers()
	})
}

// setupDataChannelHandlers configures WebRTC data channel event handlers
func (c *Channel) setupDataChannelHandlers() {
	c.dataChannel.OnOpen(func() {
		c.logger.Debug().Str("label", c.dataChannel.Label()).Msg("data channel opened")
		c.markReady()
	})

	c.dataChannel.OnClose(func() {
		c.logger.Debug().Msg("data channel closed")
		c.handleClose()
	})

	c.dataChannel.OnError(func(err error) {
		c.handleError(err)
	})

	c.dataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case c.incomingMsgCh <- msg:
		case <-c.ctx.Done():
		}
	})

	// Set up flow control
	c.dataChannel.SetBufferedAmountLowThreshold(c.config.WebRTC.BufferedAmountLowThreshold)
	c.dataChannel.OnBufferedAmountLow(func() {
		select {
		case c.bufferControlCh <- struct{}{}:
		default:
		}
	})
}

// Start runs the message loops once the data channel opens and notifies the handler
func (c *Channel) Start() {
	go func() {
		defer c.shutdown()

		if err := c.waitForReady(); err != nil {
			c.logger.Error().Err(err).Msg("data channel never became ready")
			c.handleError(err)
			return
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.processIncomingMessages()
		}()
		go func() {
			defer wg.Done()
			c.processOutgoingMessages()
		}()

		if err := c.handler.OnChannelReady(); err != nil {
			c.handleError(err)
		}

		wg.Wait()
	}()
}

// Handler returns the protocol handler of the channel
func (c *Channel) Handler() MessageHandler {
	return c.handler
}

// Send queues a message for sending
func (c *Channel) Send(msg Message) error {
	if c.IsClosed() {
		return ErrChannelClosed
	}

	data, err := SerializeMessage(msg)
	if err != nil {
		return err
	}

	select {
	case c.outgoingMsgCh <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("channel context cancelled: %w", c.ctx.Err())
	}
}

// SendMessage queues a message carrying payload
func (c *Channel) SendMessage(msgType MessageType, payload []byte) error {
	return c.Send(Message{Type: msgType, Payload: payload})
}

// SendControl queues a message carrying only an error text
func (c *Channel) SendControl(msgType MessageType, errMsg string) error {
	return c.Send(CreateControlMessage(msgType, errMsg))
}

// processIncomingMessages hands incoming messages to the handler one at a time
func (c *Channel) processIncomingMessages() {
	for {
		select {
		case raw := <-c.incomingMsgCh:
			msg, err := DeserializeMessage(raw.Data)
			if err == nil {
				err = c.handler.HandleMessage(msg)
			}
			if err != nil {
				c.handleError(err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// processOutgoingMessages handles outgoing message queue
func (c *Channel) processOutgoingMessages() {
	for {
		select {
		case data := <-c.outgoingMsgCh:
			if err := c.sendRawData(data); err != nil {
				c.handleError(err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// sendRawData sends raw data through the WebRTC data channel with flow control
func (c *Channel) sendRawData(data []byte) error {
	if err := c.handleFlowControl(); err != nil {
		return err
	}

	if err := c.dataChannel.Send(data); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}
	return nil
}

// handleFlowControl waits for the WebRTC send buffer to drain below the low threshold
func (c *Channel) handleFlowControl() error {
	if c.dataChannel.BufferedAmount() > c.config.WebRTC.MaxBufferedAmount {
		select {
		case <-c.bufferControlCh:
			return nil
		case <-c.ctx.Done():
			return fmt.Errorf("channel cancelled during flow control")
		case <-time.After(30 * time.Second):
			return fmt.Errorf("flow control timeout - WebRTC channel may be dead")
		}
	}
	return nil
}

// waitForReady waits for the data channel to be ready
func (c *Channel) waitForReady() error {
	select {
	case <-c.readyCh:
		if c.IsClosed() {
			return ErrChannelClosed
		}
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("cancelled while waiting for channel ready: %w", c.ctx.Err())
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timeout waiting for channel ready")
	}
}

// markReady marks the channel as ready and notifies waiters
func (c *Channel) markReady() {
	c.readyOnce.Do(func() { close(c.readyCh) })
}

// markClosed flips the closed flag and reports whether this call did it
func (c *Channel) markClosed() bool {
	c.closeMutex.Lock()
	defer c.closeMutex.Unlock()
	if c.isClosed {
		return false
	}
	c.isClosed = true
	return true
}

// handleClose handles channel close events
func (c *Channel) handleClose() {
	if !c.markClosed() {
		return
	}
	c.handler.OnChannelClosed()
	c.shutdown()
}

// handleError handles channel error events
func (c *Channel) handleError(err error) {
	if !c.markClosed() {
		return
	}
	c.logger.Error().Err(err).Msg("data channel error")
	c.handler.OnChannelError(err)
	c.shutdown()
}

// IsClosed returns whether the channel is closed
func (c *Channel) IsClosed() bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return c.isClosed
}

// Close gracefully closes the data channel. The handler sees it as a regular close.
func (c *Channel) Close() error {
	if c.dataChannel != nil && c.dataChannel.ReadyState() == webrtc.DataChannelStateOpen {
		if err := c.dataChannel.GracefulClose(); err != nil {
			c.logger.Warn().Err(err).Msg("error during graceful close")
		}
	}
	c.handleClose()
	return nil
}

// shutdown stops the message loops. The handler always learns about the close.
func (c *Channel) shutdown() {
	c.shutdownOnce.Do(func() {
		if c.markClosed() {
			c.handler.OnChannelClosed()
		}

		c.cancel()
		c.markReady()
	})
}
