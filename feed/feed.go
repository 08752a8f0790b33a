// Package feed applies node events read from a Kafka topic.
//
// Every message carries one JSON-encoded node event. Events are applied in
// batches: a batch ends at the hot end of the topic, or once it is full and
// the next message has a later time. The time of the last message of a batch
// becomes the update checkpoint. After a restart, reading resumes at the
// checkpoint and messages not later than it are skipped.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/repoindex/indexerr"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/retry"
	"github.com/ridge/repoindex/tlog"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 1000
	readerMaxBytes   = 1e7
	readerMaxWait    = time.Second
)

var readerRetry = retry.Fixed{Interval: time.Second}

// ErrContinuityBroken is returned when the topic lost messages past the
// checkpoint
var ErrContinuityBroken = errors.New("feed continuity broken")

// Target receives the event batches
type Target interface {
	Apply(events []node.Event, ts time.Time) error
	LastSuccessfulUpdate() time.Time
}

// Config is the configuration of a Consumer
type Config struct {
	Brokers []string
	Topic   string

	// BatchSize is the number of events after which a batch is applied
	// without waiting for the hot end. Defaults to 1000.
	BatchSize int
}

// Consumer reads a topic and applies its events to a target
type Consumer struct {
	config Config
	api    readerAPI
	target Target
}

// New creates a consumer
func New(config Config, target Target) *Consumer {
	return newConsumer(config, target, kafkaGo{})
}

func newConsumer(config Config, target Target, api readerAPI) *Consumer {
	if len(config.Brokers) == 0 {
		panic("need at least one Kafka broker")
	}
	if config.Topic == "" {
		panic("need a Kafka topic")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	return &Consumer{config: config, api: api, target: target}
}

// Run reads and applies events until the context is closed or applying a
// batch fails
func (c *Consumer) Run(ctx context.Context) error {
	ctx = tlog.With(ctx, zap.String("topic", c.config.Topic))
	checkpoint := c.target.LastSuccessfulUpdate()
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		ch := make(chan *kafka.Message)
		spawn("read", parallel.Fail, func(ctx context.Context) error {
			return c.read(ctx, checkpoint, ch)
		})
		spawn("apply", parallel.Fail, func(ctx context.Context) error {
			return c.apply(ctx, checkpoint, ch)
		})
		return nil
	})
}

// read sends the messages of the topic to dest, and nil every time the hot
// end is reached
func (c *Consumer) read(ctx context.Context, checkpoint time.Time, dest chan<- *kafka.Message) error {
	logger := tlog.Get(ctx)
	kr := c.api.NewReader(kafka.ReaderConfig{
		Brokers:  c.config.Brokers,
		Topic:    c.config.Topic,
		MinBytes: 1,
		MaxBytes: readerMaxBytes,
		MaxWait:  readerMaxWait,
	})
	defer must.Do(kr.Close)

	if checkpoint.IsZero() {
		logger.Info("Reading events from the beginning")
		must.OK(kr.SetOffset(kafka.FirstOffset)) // kafka-go only fails for consumer groups
	} else {
		logger.Info("Replaying events from the checkpoint", zap.Time("checkpoint", checkpoint))
		err := retry.Do(ctx, readerRetry, func() error {
			return transient(kr.SetOffsetAt(ctx, checkpoint), "seeking to the checkpoint")
		})
		if err != nil {
			return err
		}
	}

	needLag := true
	for {
		msg, more, err := fetch(ctx, needLag, kr)
		if err != nil {
			return err
		}
		needLag = false
		if msg != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- msg:
			}
		}
		if !more {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dest <- nil:
			}
		}
	}
}

func transient(err error, doing string) error {
	if err != nil && shouldRetry(err) {
		return retry.Transient(fmt.Errorf("%s: %w", doing, err))
	}
	return err
}

// fetch reads one message, or returns nil at the hot end when asked to check
// the lag first
func fetch(ctx context.Context, needLag bool, kr reader) (msg *kafka.Message, more bool, err error) {
	err = retry.Do(ctx, readerRetry, func() error {
		if needLag {
			lag, err := kr.ReadLag(ctx)
			if err != nil {
				return transient(err, "reading topic lag")
			}
			switch {
			case lag < 0:
				return ErrContinuityBroken
			case lag == 0:
				return nil
			}
		}

		m, err := kr.FetchMessage(ctx)
		if err != nil {
			needLag = true
			return transient(err, "reading from topic")
		}
		msg = &m
		more = kr.Lag() > 0
		return nil
	})
	return msg, more, err
}

func (c *Consumer) apply(ctx context.Context, checkpoint time.Time, src <-chan *kafka.Message) error {
	logger := tlog.Get(ctx)

	var batch []node.Event
	var last time.Time
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.target.Apply(batch, last); err != nil {
			return fmt.Errorf("applying %d events up to %s: %w", len(batch), last, err)
		}
		logger.Debug("Applied events", zap.Int("events", len(batch)), zap.Time("checkpoint", last))
		batches.Inc()
		batch = nil
		return nil
	}

	for {
		var msg *kafka.Message
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-src:
		}

		if msg == nil {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if !msg.Time.After(checkpoint) {
			messages.WithLabelValues("replayed").Inc()
			continue
		}
		ev, err := Decode(msg.Value)
		if err != nil {
			messages.WithLabelValues("invalid").Inc()
			logger.Error("Skipping invalid event", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if ev.Time.IsZero() {
			ev.Time = msg.Time
		}
		if len(batch) >= c.config.BatchSize && !msg.Time.Equal(last) {
			if err := flush(); err != nil {
				return err
			}
		}
		messages.WithLabelValues("applied").Inc()
		batch = append(batch, ev)
		last = msg.Time
	}
}

// Decode parses a message value. Numbers are kept as json.Number for the
// value factories to convert.
func Decode(data []byte) (node.Event, error) {
	var ev node.Event
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return node.Event{}, fmt.Errorf("%w: decoding event: %v", indexerr.ErrValidation, err)
	}
	switch ev.Kind {
	case node.NodeAdded, node.NodeRemoved:
		if ev.Node == nil {
			return node.Event{}, fmt.Errorf("%w: %s event without a node", indexerr.ErrValidation, ev.Kind)
		}
	case node.PropertiesModified:
		if ev.Workspace == "" || ev.Key == "" {
			return node.Event{}, fmt.Errorf("%w: %s event without a node key", indexerr.ErrValidation, ev.Kind)
		}
	default:
		return node.Event{}, fmt.Errorf("%w: unknown event kind %q", indexerr.ErrValidation, ev.Kind)
	}
	return ev, nil
}

// Encode is the inverse of Decode
func Encode(ev node.Event) []byte {
	return must.OK1(json.Marshal(ev))
}
