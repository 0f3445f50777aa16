package events

import (
	"context"
	"errors"

	"github.com/KafClaw/boardbot/internal/bus"
	"github.com/KafClaw/boardbot/internal/timeline"
)

// ChannelSink posts event summaries to a chat channel through the bus.
type ChannelSink struct {
	Bus     *bus.MessageBus
	Channel string
	ChatID  string
}

func (c ChannelSink) Publish(_ context.Context, e Event) error {
	ok := c.Bus.PublishOutbound(&bus.OutboundMessage{
		Channel: c.Channel,
		ChatID:  c.ChatID,
		TraceID: e.TraceID,
		Content: e.Summary(),
	})
	if !ok {
		return errors.New("channel sink: outbound queue full")
	}
	return nil
}

func (ChannelSink) Close() error { return nil }

// JournalSink records events in the timeline.
type JournalSink struct {
	Timeline *timeline.TimelineService
}

func (j JournalSink) Publish(_ context.Context, e Event) error {
	return j.Timeline.AddEvent(&timeline.TimelineEvent{
		EventID:   e.ID,
		TraceID:   e.TraceID,
		Timestamp: e.Time,
		Kind:      e.Type,
		RoomID:    e.RoomID,
		PersonID:  e.ActorID,
		OrgID:     e.OrgID,
		Outcome:   "event",
		Detail:    e.Subject,
	})
}

// Close leaves the timeline open; its owner closes it.
func (JournalSink) Close() error { return nil }
