package signalling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trebleshot/internal/config"
	"trebleshot/internal/logging"
	"trebleshot/pkg/utils"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAnswerTimeout   = errors.New("timeout waiting for answer")
)

// Session is the document stored under sessions/<code>. Only vanilla ICE is
// supported: offer and answer carry every candidate.
type Session struct {
	ID         string `json:"sessionId"`
	Offer      string `json:"offer"`
	Answer     string `json:"answer"`
	SenderName string `json:"senderName,omitempty"`
	Created    int64  `json:"created"`
}

// FirebaseClient implements SignalingServer on a Firebase Realtime Database
type FirebaseClient struct {
	ref    *db.Ref
	logger *logging.Logger

	pollDelay    time.Duration
	pollInterval time.Duration
	pollAttempts int
}

// NewFirebaseClient connects to the database configured in cfg
func NewFirebaseClient(ctx context.Context, cfg *config.FirebaseConfig, logger *logging.Logger) (*FirebaseClient, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	opt := option.WithCredentialsFile(cfg.CredentialsPath)

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseClient{
		ref:          client.NewRef("sessions"),
		logger:       logger.Component("signalling"),
		pollDelay:    2 * time.Second,
		pollInterval: 5 * time.Second,
		pollAttempts: 24,
	}, nil
}

// CreateSession stores offer under a fresh code and returns the code
func (f *FirebaseClient) CreateSession(ctx context.Context, offer, senderName string) (string, error) {
	// The code is displayed to the user and is also the session id
	code, err := utils.GenerateCode(utils.SessionCodeLength)
	if err != nil {
		return "", fmt.Errorf("error generating session code: %w", err)
	}

	session := Session{
		ID:         code,
		Offer:      offer,
		SenderName: senderName,
		Created:    time.Now().Unix(),
	}
	if err := f.ref.Child(code).Set(ctx, session); err != nil {
		return "", fmt.Errorf("error creating session: %w", err)
	}

	f.logger.Debug().Str("session", code).Msg("session created")
	return code, nil
}

// GetSession returns the session stored under code
func (f *FirebaseClient) GetSession(ctx context.Context, code string) (Session, error) {
	var session Session
	if err := f.ref.Child(code).Get(ctx, &session); err != nil {
		return Session{}, fmt.Errorf("error fetching session %s: %w", code, err)
	}
	if session.ID == "" {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	return session, nil
}

// UpdateAnswer stores the receiver's answer in an existing session
func (f *FirebaseClient) UpdateAnswer(ctx context.Context, code, answer string) error {
	if _, err := f.GetSession(ctx, code); err != nil {
		return err
	}
	if err := f.ref.Child(code).Update(ctx, map[string]any{"answer": answer}); err != nil {
		return fmt.Errorf("error updating answer for session %s: %w", code, err)
	}
	return nil
}

// WaitForAnswer polls the session until the receiver answered
func (f *FirebaseClient) WaitForAnswer(ctx context.Context, code string) (string, error) {
	select {
	case <-time.After(f.pollDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	f.logger.Info().Msg("waiting for receiver to answer")
	return pollAnswer(ctx, func(ctx context.Context) (string, error) {
		session, err := f.GetSession(ctx, code)
		if err != nil {
			return "", err
		}
		return session.Answer, nil
	}, f.pollInterval, f.pollAttempts, f.logger)
}

// DeleteSession removes a session; a missing session is not an error
func (f *FirebaseClient) DeleteSession(ctx context.Context, code string) error {
	if err := f.ref.Child(code).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting session %s: %w", code, err)
	}
	return nil
}

// pollAnswer calls get until it returns a non-empty answer or attempts run out.
// Lookup errors are logged and retried.
func pollAnswer(ctx context.Context, get func(context.Context) (string, error), interval time.Duration, attempts int, logger *logging.Logger) (string, error) {
	for i := 0; i < attempts; i++ {
		answer, err := get(ctx)
		switch {
		case err != nil:
			logger.Warn().Err(err).Int("attempt", i+1).Msg("failed to check for answer")
		case answer != "":
			return answer, nil
		}

		if i < attempts-1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", ErrAnswerTimeout
}
