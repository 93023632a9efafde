// Package transport defines the boundary to the message delivery
// collaborator. The core never knows whether messages arrive by
// polling, streaming or a local generator; it only consumes the
// Messages channel and drives the control verbs.
package transport

import (
	"context"

	"github.com/logdyhq/logdy-ui/internal/model"
)

// Counters describe the backend's delivery progress.
type Counters struct {
	MessageCount     int64 `json:"MessageCount"`
	MessagesToTail   int64 `json:"MessagesToTail"`
	LastDeliveredIdx int64 `json:"LastDeliveredIdx"`
}

// Client is the transport collaborator: a source of raw messages with
// pause/resume control.
type Client interface {
	// Resume switches the backend to real-time following.
	Resume(ctx context.Context) error
	// ResumeFromCursor resumes delivery from the last delivered entry.
	ResumeFromCursor(ctx context.Context) error
	// Pause stops delivery; the backend keeps counting messages.
	Pause(ctx context.Context) error
	// Status returns the current delivery counters.
	Status(ctx context.Context) (Counters, error)
	// Messages is the feed of raw incoming messages.
	Messages() <-chan model.Message
}
