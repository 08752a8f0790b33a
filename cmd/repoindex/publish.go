package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ridge/repoindex/feed"
	"github.com/ridge/repoindex/node"
	"github.com/ridge/repoindex/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const maxEventSize = 16 << 20

func publishCommand() command {
	fs := pflag.NewFlagSet("publish", pflag.ContinueOnError)
	brokers := fs.StringSlice("brokers", nil, "Kafka brokers of the node event topic")
	topic := fs.String("topic", "nodes", "Kafka topic of node events")
	return command{
		flags: fs,
		run: func(ctx context.Context, args []string) error {
			if len(*brokers) == 0 {
				return usageError{errors.New("--brokers is required")}
			}
			file := "-"
			switch len(args) {
			case 0:
			case 1:
				file = args[0]
			default:
				return usageError{errors.New("usage: repoindex publish [flags] [FILE]")}
			}
			return publish(ctx, feed.NewPublisher(*brokers, *topic), file)
		},
	}
}

type eventPublisher interface {
	Publish(ctx context.Context, events ...node.Event) error
	Close() error
}

func publish(ctx context.Context, p eventPublisher, file string) (err error) {
	defer func() {
		err = errors.Join(err, p.Close())
	}()

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	events, err := readEvents(r)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if err := p.Publish(ctx, events...); err != nil {
		return err
	}
	tlog.Get(ctx).Info("Events published", zap.Int("events", len(events)), zap.String("file", file))
	return nil
}

// readEvents reads one JSON event per line. Blank lines are skipped.
func readEvents(r io.Reader) ([]node.Event, error) {
	var events []node.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxEventSize)
	for line := 1; sc.Scan(); line++ {
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		ev, err := feed.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
