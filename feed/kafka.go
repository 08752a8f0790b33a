package feed

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// The subset of kafka-go the feed uses, mockable in tests

type readerAPI interface {
	NewReader(config kafka.ReaderConfig) reader
}

type reader interface {
	Close() error
	SetOffset(offset int64) error
	SetOffsetAt(ctx context.Context, t time.Time) error
	ReadLag(ctx context.Context) (int64, error)
	Lag() int64
	FetchMessage(ctx context.Context) (kafka.Message, error)
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaGo struct{}

func (kafkaGo) NewReader(config kafka.ReaderConfig) reader {
	return kafka.NewReader(config)
}

// shouldRetry tells transient broker failures from permanent ones
func shouldRetry(err error) bool {
	if errors.Is(err, kafka.Unknown) {
		return true
	}
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return true
	}
	return kerr.Temporary() || kerr.Timeout()
}
