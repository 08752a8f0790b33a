// Command repoindex maintains the secondary indexes of a content repository.
//
//	repoindex serve [flags]                       apply node events from Kafka and serve the admin interface
//	repoindex dump [flags] WORKSPACE INDEX [FILE] export an index
//	repoindex load [flags] WORKSPACE INDEX [FILE] import an index
//	repoindex publish [flags] [FILE]              write node events, one JSON object per line, to Kafka
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/kv"
	"github.com/ridge/repoindex/kv/memkv"
	"github.com/ridge/repoindex/kv/pebblekv"
	"github.com/ridge/repoindex/run"
	"github.com/ridge/repoindex/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	backendPebble = "pebble"
	backendMemory = "memory"
)

type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func (e usageError) Unwrap() error {
	return e.err
}

func (usageError) ExitCode() int {
	return 2
}

// storeFlags are the flags of every command
type storeFlags struct {
	dataDir     string
	backend     string
	definitions string
	provider    string
}

func addStoreFlags(fs *pflag.FlagSet, f *storeFlags) {
	fs.StringVar(&f.dataDir, "data-dir", "data", "Index database directory")
	fs.StringVar(&f.backend, "backend", backendPebble, "Storage backend (pebble|memory)")
	fs.StringVar(&f.definitions, "definitions", "", "JSON file of index definitions")
	fs.StringVar(&f.provider, "provider", "local", "Provider name; definitions of other providers are ignored")
}

func (f *storeFlags) open(logger *zap.Logger) (*kv.Store, error) {
	switch f.backend {
	case backendPebble:
		engine, err := pebblekv.Open(pebblekv.Options{Dir: f.dataDir, Logger: logger})
		if err != nil {
			return nil, err
		}
		return kv.New(engine), nil
	case backendMemory:
		return kv.New(memkv.New()), nil
	default:
		return nil, usageError{fmt.Errorf("unknown backend %q", f.backend)}
	}
}

func (f *storeFlags) loadDefinitions() ([]indices.Definition, error) {
	if f.definitions == "" {
		return nil, nil
	}
	return indices.Load(f.definitions)
}

type command struct {
	flags *pflag.FlagSet
	run   func(ctx context.Context, args []string) error
	// server commands run until stopped
	server bool
}

func commands(store *storeFlags) map[string]command {
	return map[string]command{
		"serve":   serveCommand(store),
		"dump":    dumpCommand(store),
		"load":    loadCommand(store),
		"publish": publishCommand(),
	}
}

func main() {
	os.Exit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: repoindex serve|dump|load|publish [flags] [args]")
		return 2
	}

	store := &storeFlags{}
	cmd, ok := commands(store)[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", args[0])
		return 2
	}
	addStoreFlags(cmd.flags, store)
	logFlags := run.AddLogFlags(cmd.flags)

	if err := cmd.flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	logConfig, err := logFlags.Config("repoindex")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logger := tlog.New(logConfig)
	defer func() {
		_ = logger.Sync()
	}()

	task := func(ctx context.Context) error {
		return cmd.run(ctx, cmd.flags.Args())
	}
	if cmd.server {
		return run.Server(logger, task)
	}
	return run.Tool(logger, task)
}
