package audit

import (
	"context"
	"errors"
)

// ErrInboxFull is returned when the buffered inbox cannot take another
// event without blocking the request path.
var ErrInboxFull = errors.New("audit inbox full")

// Inbox is a Store that hands events to a background worker over a buffered
// channel. Appends never block; a full inbox drops the event with an error
// the caller can log.
type Inbox struct {
	events chan Event
}

func NewInbox(size int) *Inbox {
	return &Inbox{events: make(chan Event, size)}
}

func (i *Inbox) Append(ctx context.Context, event Event) error {
	select {
	case i.events <- event:
		return nil
	default:
		return ErrInboxFull
	}
}

// Events is the worker-facing side of the inbox.
func (i *Inbox) Events() <-chan Event {
	return i.events
}
