package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/KafClaw/boardbot/internal/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events as JSON keyed by organization id.
type KafkaSink struct {
	w     messageWriter
	topic string
}

// NewKafkaSink builds a synchronous writer for cfg.Topic.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	var brokers []string
	for _, b := range cfg.Brokers {
		for _, part := range strings.Split(b, ",") {
			if p := strings.TrimSpace(part); p != "" {
				brokers = append(brokers, p)
			}
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka sink: no topic")
	}
	transport := &kafka.Transport{ClientID: cfg.ClientID}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              transport,
	}
	return &KafkaSink{w: w, topic: cfg.Topic}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.OrgID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "trace_id", Value: []byte(e.TraceID)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s to %s: %w", e.Type, k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error { return k.w.Close() }
