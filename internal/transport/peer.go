package transport

import (
	"fmt"

	"trebleshot/internal/config"
	"trebleshot/internal/logging"

	"github.com/pion/webrtc/v4"
)

// ConnectionFailureError reports that the peer connection failed or closed
type ConnectionFailureError struct {
	State webrtc.PeerConnectionState
	Role  string
}

func (e *ConnectionFailureError) Error() string {
	return fmt.Sprintf("peer connection %s (%s)", e.State.String(), e.Role)
}

// PeerService manages WebRTC peer connection lifecycle
type PeerService struct {
	config      *config.Config
	logger      *logging.Logger
	failureChan chan *ConnectionFailureError
}

// NewPeerService creates a new peer service with the given configuration
func NewPeerService(cfg *config.Config, logger *logging.Logger) *PeerService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PeerService{
		config:      cfg,
		logger:      logger.Component("peer"),
		failureChan: make(chan *ConnectionFailureError, 1),
	}
}

// CreatePeerConnection creates a peer connection using the configured ICE servers
func (p *PeerService) CreatePeerConnection(role string) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: p.config.WebRTC.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.handleConnectionStateChange(state, role)
	})
	return pc, nil
}

// Failures returns a channel that receives connection failures
func (p *PeerService) Failures() <-chan *ConnectionFailureError {
	return p.failureChan
}

// Close closes the peer connection
func (p *PeerService) Close(peerConn *webrtc.PeerConnection) error {
	if peerConn == nil {
		return nil
	}
	return peerConn.Close()
}

func (p *PeerService) handleConnectionStateChange(state webrtc.PeerConnectionState, role string) {
	p.logger.Debug().Str("state", state.String()).Str("role", role).Msg("peer connection state changed")

	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		select {
		case p.failureChan <- &ConnectionFailureError{State: state, Role: role}:
		default:
		}
	}
}
