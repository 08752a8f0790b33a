package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/retry"
	"github.com/segmentio/kafka-go"
)

const writerTimeout = time.Minute

var writerRetry = retry.Fixed{Interval: time.Second}

// Publisher writes node events to a topic in the format Consumer reads
type Publisher struct {
	w writer
}

// NewPublisher creates a publisher writing to a topic
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

// Publish writes events in order. Events of one node share a message key.
func (p *Publisher) Publish(ctx context.Context, events ...node.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		ws, key := ev.Workspace, ev.Key
		if ev.Node != nil {
			ws, key = ev.Node.Workspace, ev.Node.Key
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ws + "/" + key),
			Value: Encode(ev),
			Time:  ev.Time,
		})
	}
	return retry.Do(ctx, writerRetry, func() error {
		ctx, cancel := context.WithTimeout(ctx, writerTimeout)
		defer cancel()
		return transient(p.w.WriteMessages(ctx, msgs...), fmt.Sprintf("publishing %d events", len(events)))
	})
}

// Close flushes pending writes and releases the connection
func (p *Publisher) Close() error {
	return p.w.Close()
}
