// Package events fans provisioning events out to Kafka, the ops chat
// channel and the local journal.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	RoomInitialized = "room_initialized"
	InitFailed      = "init_failed"
	TokenUpdated    = "token_updated"
	RoomReinit      = "room_reinit"
	UserAdded       = "user_added"
	UserRemoved     = "user_removed"
	CodeIssued      = "code_issued"
	CodeFailed      = "code_failed"
	RoomReleased    = "room_released"
)

// Event is one provisioning-relevant state change. Tokens and activation
// codes are never carried.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	TraceID string    `json:"trace_id,omitempty"`
	OrgID   string    `json:"org_id,omitempty"`
	RoomID  string    `json:"room_id,omitempty"`
	ActorID string    `json:"actor_id,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// New returns an event of typ with a fresh id and the current time.
func New(typ string) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC()}
}

// Summary is a one-line human rendering for chat notices.
func (e Event) Summary() string {
	s := fmt.Sprintf("[%s] org=%s room=%s", e.Type, e.OrgID, e.RoomID)
	if e.Subject != "" {
		s += " subject=" + e.Subject
	}
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi publishes to every sink. Failures are logged and joined; one
// failing sink never stops the others.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			slog.Warn("Event sink failed", "type", e.Type, "event_id", e.ID, "sink", fmt.Sprintf("%T", s), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
