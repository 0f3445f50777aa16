// Package bus carries inbound webhook events to the router and outbound
// messages from the bot to channels.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KafClaw/boardbot/internal/webex"
)

// Inbound event kinds, one per webhook endpoint.
const (
	KindMention = "mention"
	KindCard    = "card"
	KindAdded   = "added"
	KindRemoved = "removed"
)

// InboundEvent is a decoded webhook notification.
type InboundEvent struct {
	Kind       string    `json:"kind"`
	TraceID    string    `json:"trace_id"`
	RoomID     string    `json:"room_id"`
	PersonID   string    `json:"person_id,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewInboundEvent stamps a trace id and time on an event.
func NewInboundEvent(kind, roomID, personID, resourceID string) *InboundEvent {
	return &InboundEvent{
		Kind:       kind,
		TraceID:    uuid.NewString(),
		RoomID:     roomID,
		PersonID:   personID,
		ResourceID: resourceID,
		Timestamp:  time.Now(),
	}
}

// OutboundMessage is a message for one chat on one channel.
type OutboundMessage struct {
	Channel string      `json:"channel"`
	ChatID  string      `json:"chat_id"`
	TraceID string      `json:"trace_id,omitempty"`
	Content string      `json:"content"`
	Card    *webex.Card `json:"card,omitempty"`
}

// MessageBus fans outbound messages out to channel subscribers.
type MessageBus struct {
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a bus with a buffered outbound queue.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishOutbound queues msg. It drops the message and returns false when
// the queue is full.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) bool {
	select {
	case b.outbound <- msg:
		return true
	default:
		return false
	}
}

// Subscribe registers a callback for outbound messages to a specific channel.
func (b *MessageBus) Subscribe(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound delivers queued messages until ctx is done.
// This should be run as a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
