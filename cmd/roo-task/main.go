// Command roo-task starts a task in a running Roo Code host and prints the
// task's final message.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"roo-task/internal/config"
	rlog "roo-task/internal/log"
	"roo-task/internal/protocol"
	"roo-task/internal/session"
	"roo-task/internal/task"
	"roo-task/internal/transport"
)

var errUsage = errors.New("expected exactly one prompt argument")

type flags struct {
	configPath       string
	socket           string
	profile          string
	handshakeTimeout time.Duration
	waitForSocket    time.Duration
	images           []string
	newTab           bool
	output           string
	logLevel         string
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "roo-task [flags] <prompt>",
		Short: "Start a Roo Code task over IPC and print its final message",
		Long: `roo-task connects to the IPC socket of a running Roo Code host, starts a
new task with the given prompt and waits until that task finishes.

Start the host with the socket enabled, for example:

  ROO_CODE_IPC_SOCKET_PATH=/tmp/roo-code.sock code <workspace_path>`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "TOML settings file")
	fl.StringVar(&f.socket, "socket", "", "IPC socket path or ws:// URL (default "+config.DefaultSocketPath+")")
	fl.StringVar(&f.profile, "profile", "", "YAML or JSON task configuration merged over the default profile")
	fl.DurationVar(&f.handshakeTimeout, "handshake-timeout", 0, "how long to wait for the host to acknowledge the connection")
	fl.DurationVar(&f.waitForSocket, "wait-for-socket", 0, "wait up to this long for the socket to appear")
	fl.StringArrayVar(&f.images, "image", nil, "image data URI to attach (repeatable)")
	fl.BoolVar(&f.newTab, "new-tab", false, "open the task in a new editor tab")
	fl.StringVar(&f.output, "output", "", "also write the final message to this file")
	fl.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}

// settings merges the settings file, the environment and the flags.
func settings(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	fl := cmd.Flags()
	if fl.Changed("socket") {
		cfg.SocketPath = f.socket
	}
	if fl.Changed("profile") {
		cfg.ProfilePath = f.profile
	}
	if fl.Changed("handshake-timeout") {
		cfg.HandshakeTimeout = f.handshakeTimeout
	}
	if fl.Changed("wait-for-socket") {
		cfg.WaitForSocket = f.waitForSocket
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, f flags, prompt string, stdout, stderr io.Writer) error {
	cfg, err := settings(cmd, f)
	if err != nil {
		return err
	}
	base := rlog.New(rlog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: stderr})
	logger := rlog.WithComponent(base, "roo-task")

	profile, err := config.Profile(cfg.ProfilePath, os.Getenv)
	if err != nil {
		return err
	}
	command, err := protocol.NewStartTask(protocol.StartTask{
		Configuration: profile,
		Text:          prompt,
		Images:        f.images,
		NewTab:        f.newTab,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.WaitForSocket > 0 && !transport.IsWebSocketPath(cfg.SocketPath) {
		wctx, wcancel := context.WithTimeout(ctx, cfg.WaitForSocket)
		err := transport.WaitForSocket(wctx, cfg.SocketPath)
		wcancel()
		if err != nil {
			return fmt.Errorf("wait for %s: %w", cfg.SocketPath, err)
		}
	}

	sessionLogger := rlog.WithComponent(base, "session")
	client := session.New(cfg.SocketPath, session.Options{
		Dialer: transport.ForPath(cfg.SocketPath, transport.Options{DialTimeout: cfg.DialTimeout}),
		Logger: &sessionLogger,
	})
	defer client.Subscribe(session.Funcs{
		OnIdentified: func(id session.Identity) {
			fmt.Fprintf(stdout, "[CONNECTED] clientId=%s\n\n", id.ClientID)
		},
	})()

	runner := &task.Runner{
		Session: client,
		Display: func(text string) {
			fmt.Fprintf(stdout, "%s\n\n", text)
		},
		Logger:           &logger,
		PollInterval:     cfg.PollInterval,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	var outcome task.Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		var err error
		outcome, err = runner.Run(gctx, command)
		return err
	})
	g.Go(func() error {
		return watchSignals(gctx, cancel, logger)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if outcome.Reason == task.ReasonCancelled {
		logger.Info().Str("taskId", outcome.TaskID).Msg("task left running in the host")
		return nil
	}
	if f.output != "" && outcome.Reason == task.ReasonMessage {
		if err := writeOutput(f.output, outcome.Message); err != nil {
			return err
		}
		logger.Debug().Str("path", f.output).Msg("final message written")
	}
	return nil
}

// watchSignals cancels the run on SIGINT or SIGTERM.
func watchSignals(ctx context.Context, cancel context.CancelFunc, logger zerolog.Logger) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-ctx.Done():
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("cancelling")
		cancel()
	}
	return nil
}
