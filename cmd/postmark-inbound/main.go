// Package main is the entry point for the Postmark inbound processor.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/postmark-inbound/internal/config"
	"github.com/shineum/postmark-inbound/internal/inbound"
	"github.com/shineum/postmark-inbound/internal/processor"
	"github.com/shineum/postmark-inbound/internal/relay/stdout"
	"github.com/shineum/postmark-inbound/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "postmark-inbound",
		Short:         "Process Postmark inbound webhook payloads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "process <payload.json|->",
			Short: "Save attachments and forward the message",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return fmt.Errorf("failed to load configuration: %w", err)
				}
				setupLogger(cfg.Logging.Level, cmd.ErrOrStderr())

				raw, err := readPayload(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				return runProcess(cmd.Context(), cfg, raw)
			},
		},
		&cobra.Command{
			Use:   "inspect <payload.json|->",
			Short: "Print a summary of the payload without saving anything",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := readPayload(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				return inspect(cmd.Context(), cmd.OutOrStdout(), raw)
			},
		},
	)

	return rootCmd
}

func runProcess(ctx context.Context, cfg *config.Config, raw string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var writer storage.Writer
	if cfg.DownloadEnabled() {
		w, err := selectWriter(ctx, cfg)
		if err != nil {
			return err
		}
		writer = w
	} else {
		slog.Info("no download directory configured, attachments will not be saved")
	}

	rel, err := selectRelay(ctx, cfg)
	if err != nil {
		return err
	}
	collector, err := selectCollector(ctx, cfg)
	if err != nil {
		return err
	}

	opts := cfg.DownloadOptions()
	opts.Writer = writer

	p := processor.New(processor.Config{
		Download: opts,
		Relay:    rel,
		Metrics:  collector,
		Logger:   slog.Default(),
	})

	report, err := p.Process(ctx, raw)
	if err != nil {
		return err
	}

	slog.Info("payload processed",
		"message_id", report.MessageID,
		"saved", len(report.Saved),
		"rejected", len(report.Rejected),
		"forwarded", report.Forwarded,
	)
	return nil
}

// inspect prints the message summary and the X-Spam-Status header.
func inspect(ctx context.Context, w io.Writer, raw string) error {
	msg, err := inbound.New(raw)
	if err != nil {
		return err
	}
	snapshot, err := msg.Snapshot()
	if err != nil {
		return err
	}
	if err := stdout.NewWithWriter(w).Forward(ctx, snapshot); err != nil {
		return err
	}
	if status, ok := msg.HeaderValue(inbound.DefaultSpamHeader); ok {
		fmt.Fprintf(w, "%s: %s\n", inbound.DefaultSpamHeader, status)
	}
	return nil
}

// readPayload reads the payload from path, or from stdin when path is "-".
func readPayload(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	return string(data), nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level. Logs go to w so they never mix with printed summaries.
func setupLogger(level string, w io.Writer) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
