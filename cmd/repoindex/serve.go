package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ridge/parallel"
	"github.com/ridge/repoindex/admin"
	"github.com/ridge/repoindex/feed"
	"github.com/ridge/repoindex/indices"
	"github.com/ridge/repoindex/localindex"
	"github.com/ridge/repoindex/provider"
	"github.com/ridge/repoindex/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func serveCommand(store *storeFlags) command {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	brokers := fs.StringSlice("brokers", nil, "Kafka brokers of the node event topic")
	topic := fs.String("topic", "nodes", "Kafka topic of node events")
	batchSize := fs.Int("batch-size", 1000, "Events applied without waiting for the hot end of the topic")
	listen := fs.String("listen", "localhost:9420", "Admin interface address (tcp:HOST:PORT or unix:PATH); empty disables it")

	return command{
		flags:  fs,
		server: true,
		run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return usageError{errors.New("serve takes no arguments")}
			}
			return serve(ctx, store, feed.Config{Brokers: *brokers, Topic: *topic, BatchSize: *batchSize}, *listen)
		},
	}
}

func registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(localindex.Collectors()...)
	reg.MustRegister(provider.Collectors()...)
	reg.MustRegister(feed.Collectors()...)
	return reg
}

func serve(ctx context.Context, flags *storeFlags, feedConfig feed.Config, listen string) (err error) {
	logger := tlog.Get(ctx)

	p, closeFn, err := openProvider(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()
	for _, m := range p.RequiringReindexing() {
		logger.Warn("Index is empty and has to be reindexed from the content", zap.String("index", m.Name()))
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		if flags.definitions != "" {
			spawn("definitions", parallel.Fail, func(ctx context.Context) error {
				return indices.Watch(ctx, flags.definitions, func(defs []indices.Definition, err error) {
					if err != nil {
						logger.Error("Failed to reload index definitions", zap.Error(err))
						return
					}
					if err := redefine(p, defs); err != nil {
						logger.Error("Failed to apply index definitions", zap.Error(err))
					}
				})
			})
		}
		if len(feedConfig.Brokers) != 0 {
			c := feed.New(feedConfig, p)
			spawn("feed", parallel.Fail, c.Run)
		}
		if listen != "" {
			l, err := admin.Listen(listen)
			if err != nil {
				return err
			}
			s := admin.NewServer(l, admin.Config{Indexes: p, Gatherer: registry()})
			spawn("admin", parallel.Fail, s.Run)
		}
		spawn("wait", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		return nil
	})
}

// redefine makes defs the active definitions, destroying the indexes of
// definitions no longer listed
func redefine(p *provider.Provider, defs []indices.Definition) error {
	listed := map[string]bool{}
	for _, def := range defs {
		listed[def.Name] = true
	}
	for _, def := range p.Definitions() {
		if !listed[def.Name] {
			if err := p.Undefine(def.Name); err != nil {
				return err
			}
		}
	}
	return p.Define(defs...)
}
