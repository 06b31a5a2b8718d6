// Package avatar is the client for the platform's avatar generation
// service. A session is one websocket connection over which the user
// iterates on generated candidate images; results arrive as events.
package avatar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/allthriveai/allthriveai-sub012/internal/model"
	"github.com/allthriveai/allthriveai-sub012/pkg/logger"
	"go.uber.org/zap"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var ErrSessionClosed = errors.New("avatar session closed")

type Mode string

const (
	// ModeTemplate seeds generation from a curated template.
	ModeTemplate Mode = "template"
	// ModeReference seeds generation from a user-supplied image.
	ModeReference Mode = "reference"
)

type Config struct {
	// URL is the websocket endpoint of the generation service.
	URL string `yaml:"url"`
}

type SessionOptions struct {
	Mode              Mode
	TemplateID        string
	ReferenceImageURL string
}

// Callbacks receive session events. They are invoked from the read
// loop goroutine; handlers must not block.
type Callbacks struct {
	OnGenerated func(model.AvatarIteration)
	OnSaved     func()
	OnError     func(error)
}

type message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client dials generation sessions.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Session is one live connection to the generation service.
type Session struct {
	conn *websocket.Conn
	cb   Callbacks

	out  chan message
	done chan struct{}

	closeOnce sync.Once

	mu            sync.Mutex
	pendingAccept chan error
}

// StartSession opens a connection and announces the session parameters.
// The returned session is live until Disconnect or a read error.
func (c *Client) StartSession(ctx context.Context, userID string, opts SessionOptions, cb Callbacks) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial avatar service: %w", err)
	}

	s := &Session{
		conn: conn,
		cb:   cb,
		out:  make(chan message, 8),
		done: make(chan struct{}),
	}

	go s.readLoop()
	go s.writeLoop()

	s.send(message{
		Type: "session_start",
		Payload: map[string]any{
			"user_id":             userID,
			"mode":                string(opts.Mode),
			"template_id":         opts.TemplateID,
			"reference_image_url": opts.ReferenceImageURL,
		},
	})

	return s, nil
}

// Generate requests one candidate image. The result arrives through
// OnGenerated, or OnError.
func (s *Session) Generate(prompt, referenceImageURL string) error {
	return s.send(message{
		Type: "generate",
		Payload: map[string]any{
			"prompt":              prompt,
			"reference_image_url": referenceImageURL,
		},
	})
}

// Accept asks the service to persist the iteration as the user's
// avatar and waits for the saved acknowledgement.
func (s *Session) Accept(ctx context.Context, iterationID uuid.UUID) error {
	ack := make(chan error, 1)

	s.mu.Lock()
	s.pendingAccept = ack
	s.mu.Unlock()

	if err := s.send(message{
		Type: "accept",
		Payload: map[string]any{
			"iteration_id": iterationID.String(),
		},
	}); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// Abandon tells the service to drop the session's working state.
// Best effort: a failed send is ignored.
func (s *Session) Abandon() {
	_ = s.send(message{Type: "abandon"})
}

func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) send(m message) error {
	select {
	case s.out <- m:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case m := <-s.out:
			data, err := json.Marshal(m)
			if err != nil {
				logger.Logger().Error("failed to marshal avatar message", zap.Error(err))
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Logger().Error("failed to write avatar message", zap.Error(err))
				s.Disconnect()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) readLoop() {
	defer s.Disconnect()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Logger().Warn("avatar session closed unexpectedly", zap.Error(err))
			}
			return
		}

		var in inboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			logger.Logger().Error("failed to unmarshal avatar message", zap.Error(err))
			continue
		}

		s.dispatch(in)
	}
}

func (s *Session) dispatch(in inboundMessage) {
	switch in.Type {
	case "avatar_generated":
		var payload struct {
			IterationID string    `json:"iteration_id"`
			ImageURL    string    `json:"image_url"`
			Prompt      string    `json:"prompt"`
			CreatedAt   time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			logger.Logger().Error("failed to unmarshal generated payload", zap.Error(err))
			return
		}

		id, err := uuid.Parse(payload.IterationID)
		if err != nil {
			logger.Logger().Error("invalid iteration id", zap.String("iteration_id", payload.IterationID))
			return
		}

		if s.cb.OnGenerated != nil {
			s.cb.OnGenerated(model.AvatarIteration{
				ID:        id,
				ImageURL:  payload.ImageURL,
				Prompt:    payload.Prompt,
				CreatedAt: payload.CreatedAt,
			})
		}

	case "avatar_saved":
		s.resolveAccept(nil)
		if s.cb.OnSaved != nil {
			s.cb.OnSaved()
		}

	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			payload.Message = "avatar service error"
		}

		err := errors.New(payload.Message)
		s.resolveAccept(err)
		if s.cb.OnError != nil {
			s.cb.OnError(err)
		}
	}
}

func (s *Session) resolveAccept(err error) {
	s.mu.Lock()
	ack := s.pendingAccept
	s.pendingAccept = nil
	s.mu.Unlock()

	if ack != nil {
		ack <- err
	}
}
