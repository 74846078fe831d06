package chatlog

import (
	"context"
	"errors"
	"time"
)

// Message is one logged chat turn.
type Message struct {
	Role        string
	Text        string
	GoalContext string
	CreatedAt   time.Time
}

// Store persists the chat transcript.
type Store interface {
	Append(ctx context.Context, msg Message) error
	// Recent returns up to limit messages in chronological order, oldest
	// first, starting from the oldest stored message.
	Recent(ctx context.Context, limit int) ([]Message, error)
}

var ErrInvalidMessage = errors.New("chatlog: role must be user or model and text is required")

func validate(m Message) error {
	if (m.Role != "user" && m.Role != "model") || m.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}
