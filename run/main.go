// Package run runs the top-level task of a program: it builds the logger
// from the command line and cancels the task on termination signals.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridge/parallel"
	"github.com/ridge/repoindex/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// LogFlags holds the logging flags of a command line
type LogFlags struct {
	format  string
	color   string
	verbose bool
}

// AddLogFlags registers --log-format, --log-color and -v on fs
func AddLogFlags(fs *pflag.FlagSet) *LogFlags {
	var f LogFlags
	fs.StringVar(&f.format, "log-format", string(tlog.FormatText), "Log format (json|text)")
	fs.StringVar(&f.color, "log-color", "auto", "Colored logs (yes|no|auto)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose (debug level) messages")
	return &f
}

// Config returns the logger configuration set by the flags
func (f *LogFlags) Config(name string) (tlog.Config, error) {
	config := tlog.Config{Name: name, Format: tlog.Format(f.format), Verbose: f.verbose}
	switch f.color {
	case "", "auto":
		config.Color = tlog.ColorAuto
	default:
		config.Color = tlog.Color(f.color)
	}
	if err := config.Validate(); err != nil {
		return tlog.Config{}, fmt.Errorf("invalid logging flags: %w", err)
	}
	return config, nil
}

var stopSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// untilStopSignal returns nil once one of stopSignals is delivered
func untilStopSignal(ctx context.Context) error {
	delivered := make(chan os.Signal, 1)
	signal.Notify(delivered, stopSignals...)
	defer signal.Stop(delivered)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-delivered:
		tlog.Get(ctx).Info("Stop signal received", zap.String("signal", sig.String()))
		return nil
	}
}

// WithExitCode is implemented by errors that choose the exit code of the
// process. Other errors exit with code 1.
type WithExitCode interface {
	ExitCode() int
}

// Tool runs task until it returns or a termination signal arrives, and
// returns the exit code of the process. The task context carries logger and
// is canceled on SIGINT, SIGTERM and SIGHUP.
func Tool(logger *zap.Logger, task func(ctx context.Context) error) int {
	ctx := tlog.WithLogger(context.Background(), logger)
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("main", parallel.Exit, task)
		spawn("signals", parallel.Exit, untilStopSignal)
		return nil
	})
	if err == nil {
		return 0
	}
	logger.Error("Error", zap.Error(err))
	var wec WithExitCode
	if errors.As(err, &wec) {
		return wec.ExitCode()
	}
	return 1
}

// Server is Tool for long-running tasks: a task ending with the
// cancellation of its context has shut down cleanly.
func Server(logger *zap.Logger, task func(ctx context.Context) error) int {
	return Tool(logger, func(ctx context.Context) error {
		err := task(ctx)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	})
}
