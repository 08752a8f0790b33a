package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ridge/repoindex/provider"
	"github.com/ridge/repoindex/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// openProvider opens the store and the provider with the definitions of
// the definitions file. The returned function closes both.
func openProvider(ctx context.Context, flags *storeFlags) (*provider.Provider, func() error, error) {
	logger := tlog.Get(ctx)
	defs, err := flags.loadDefinitions()
	if err != nil {
		return nil, nil, err
	}
	store, err := flags.open(logger)
	if err != nil {
		return nil, nil, err
	}
	p, err := provider.New(provider.Config{Name: flags.provider, Store: store, Logger: logger})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		return errors.Join(p.Close(), store.Close())
	}
	if err := p.Define(defs...); err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	logger.Info("Index store opened", zap.String("backend", flags.backend),
		zap.Int("definitions", len(p.Definitions())), zap.Strings("workspaces", p.Workspaces()),
		zap.Time("lastSuccessfulUpdate", p.LastSuccessfulUpdate()))
	return p, closeFn, nil
}

func indexArgs(name string, args []string) (workspace, index, file string, err error) {
	switch len(args) {
	case 2:
		return args[0], args[1], "-", nil
	case 3:
		return args[0], args[1], args[2], nil
	default:
		return "", "", "", usageError{fmt.Errorf("usage: repoindex %s [flags] WORKSPACE INDEX [FILE]", name)}
	}
}

func dumpCommand(store *storeFlags) command {
	fs := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	return command{
		flags: fs,
		run: func(ctx context.Context, args []string) error {
			workspace, index, file, err := indexArgs("dump", args)
			if err != nil {
				return err
			}
			return dump(ctx, store, workspace, index, file)
		},
	}
}

func dump(ctx context.Context, flags *storeFlags, workspace, index, file string) (err error) {
	p, closeFn, err := openProvider(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()

	m, ok := p.Index(workspace, index)
	if !ok {
		return fmt.Errorf("no index %s in workspace %s", index, workspace)
	}
	var w io.Writer = os.Stdout
	if file != "-" {
		f, err := os.Create(file)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		w = f
	}
	if err := m.Export(w); err != nil {
		return fmt.Errorf("exporting %s: %w", m.Name(), err)
	}
	tlog.Get(ctx).Info("Index exported", zap.String("index", m.Name()), zap.String("file", file))
	return nil
}

func loadCommand(store *storeFlags) command {
	fs := pflag.NewFlagSet("load", pflag.ContinueOnError)
	replace := fs.Bool("replace", false, "Remove the existing entries first")
	return command{
		flags: fs,
		run: func(ctx context.Context, args []string) error {
			workspace, index, file, err := indexArgs("load", args)
			if err != nil {
				return err
			}
			return load(ctx, store, workspace, index, file, *replace)
		},
	}
}

func load(ctx context.Context, flags *storeFlags, workspace, index, file string, replace bool) (err error) {
	p, closeFn, err := openProvider(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()

	if err := p.AddWorkspace(workspace); err != nil {
		return err
	}
	m, ok := p.Index(workspace, index)
	if !ok {
		return fmt.Errorf("no index %s in workspace %s", index, workspace)
	}
	if replace {
		if err := m.RemoveAll(); err != nil {
			return err
		}
	}
	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := m.Import(r); err != nil {
		return fmt.Errorf("importing %s: %w", m.Name(), err)
	}
	tlog.Get(ctx).Info("Index imported", zap.String("index", m.Name()), zap.String("file", file))
	return nil
}
