// Package signalling exchanges the WebRTC offer and answer of a transfer
// through a session identified by a short code.
package signalling

import (
	"context"
	"errors"
	"fmt"

	"trebleshot/internal/config"
	"trebleshot/internal/logging"
	"trebleshot/pkg/utils"

	"github.com/pion/webrtc/v4"
)

var ErrInvalidCode = fmt.Errorf("session code must be %d letters or digits", utils.SessionCodeLength)

// SignalingServer stores sessions
type SignalingServer interface {
	CreateSession(ctx context.Context, offer, senderName string) (code string, err error)
	GetSession(ctx context.Context, code string) (Session, error)
	UpdateAnswer(ctx context.Context, code, answer string) error
	WaitForAnswer(ctx context.Context, code string) (answer string, err error)
	DeleteSession(ctx context.Context, code string) error
}

// SDPHandler performs the local half of an offer/answer exchange
type SDPHandler interface {
	CreateOffer(peerConn *webrtc.PeerConnection) error
	CreateAnswer(peerConn *webrtc.PeerConnection) error
	WaitForICEGathering(ctx context.Context, peerConn *webrtc.PeerConnection) (*webrtc.SessionDescription, error)
}

// SignalingService runs the sender and receiver sides of the exchange
type SignalingService struct {
	server SignalingServer
	sdp    SDPHandler
	logger *logging.Logger
}

// NewSignalingService creates a signalling service
func NewSignalingService(server SignalingServer, sdp SDPHandler, logger *logging.Logger) *SignalingService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SignalingService{server: server, sdp: sdp, logger: logger.Component("signalling")}
}

// NewDefaultSignalingService uses the Firebase session store of cfg
func NewDefaultSignalingService(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*SignalingService, error) {
	if err := cfg.ValidateSignalling(); err != nil {
		return nil, err
	}
	server, err := NewFirebaseClient(ctx, &cfg.Firebase, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase client: %w", err)
	}
	return NewSignalingService(server, PionSDP{}, logger), nil
}

// PublishOffer creates the local offer and stores it in a new session. The
// returned code is what the receiver types in.
func (s *SignalingService) PublishOffer(ctx context.Context, peerConn *webrtc.PeerConnection, senderName string) (string, error) {
	if err := s.sdp.CreateOffer(peerConn); err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	offer, err := s.sdp.WaitForICEGathering(ctx, peerConn)
	if err != nil {
		return "", fmt.Errorf("failed to wait for ICE gathering: %w", err)
	}

	encoded, err := utils.Encode(*offer)
	if err != nil {
		return "", fmt.Errorf("failed to encode offer SDP: %w", err)
	}

	code, err := s.server.CreateSession(ctx, encoded, senderName)
	if err != nil {
		return "", fmt.Errorf("failed to create session with offer: %w", err)
	}
	return code, nil
}

// AwaitAnswer waits for the receiver's answer and applies it. The session is
// removed whatever the outcome.
func (s *SignalingService) AwaitAnswer(ctx context.Context, peerConn *webrtc.PeerConnection, code string) error {
	defer s.clear(code)

	answer, err := s.server.WaitForAnswer(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to wait for answer: %w", err)
	}

	answerSD, err := utils.Decode[webrtc.SessionDescription](answer)
	if err != nil {
		return fmt.Errorf("failed to decode answer SDP: %w", err)
	}
	if err := peerConn.SetRemoteDescription(answerSD); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// Answer joins the session under code: it applies the stored offer and
// publishes the local answer. It returns the sender's display name.
func (s *SignalingService) Answer(ctx context.Context, peerConn *webrtc.PeerConnection, code string) (string, error) {
	if !utils.IsValidCode(code) {
		return "", ErrInvalidCode
	}

	session, err := s.server.GetSession(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to get offer from session: %w", err)
	}
	if session.Offer == "" {
		return "", fmt.Errorf("session %s has no offer", code)
	}

	offerSD, err := utils.Decode[webrtc.SessionDescription](session.Offer)
	if err != nil {
		return "", fmt.Errorf("failed to decode offer SDP: %w", err)
	}
	if err := peerConn.SetRemoteDescription(offerSD); err != nil {
		return "", fmt.Errorf("failed to set remote description: %w", err)
	}

	if err := s.sdp.CreateAnswer(peerConn); err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	answer, err := s.sdp.WaitForICEGathering(ctx, peerConn)
	if err != nil {
		return "", fmt.Errorf("failed to wait for ICE gathering: %w", err)
	}

	encoded, err := utils.Encode(*answer)
	if err != nil {
		return "", fmt.Errorf("failed to encode answer SDP: %w", err)
	}
	if err := s.server.UpdateAnswer(ctx, code, encoded); err != nil {
		return "", fmt.Errorf("failed to upload answer: %w", err)
	}
	return session.SenderName, nil
}

// clear deletes a session, logging failures
func (s *SignalingService) clear(code string) {
	// The caller's context may already be cancelled
	if err := s.server.DeleteSession(context.Background(), code); err != nil && !errors.Is(err, ErrSessionNotFound) {
		s.logger.Warn().Err(err).Str("session", code).Msg("failed to delete session")
	}
}

// PionSDP implements SDPHandler with pion
type PionSDP struct{}

// CreateOffer creates an offer and sets it as the local description
func (PionSDP) CreateOffer(peerConn *webrtc.PeerConnection) error {
	offer, err := peerConn.CreateOffer(nil)
	if err != nil {
		return err
	}
	return peerConn.SetLocalDescription(offer)
}

// CreateAnswer creates an answer and sets it as the local description
func (PionSDP) CreateAnswer(peerConn *webrtc.PeerConnection) error {
	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		return err
	}
	return peerConn.SetLocalDescription(answer)
}

// WaitForICEGathering waits until every candidate is in the local description
func (PionSDP) WaitForICEGathering(ctx context.Context, peerConn *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	select {
	case <-webrtc.GatheringCompletePromise(peerConn):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	desc := peerConn.LocalDescription()
	if desc == nil {
		return nil, errors.New("local description is nil after ICE gathering")
	}
	return desc, nil
}
