package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/postmark-inbound/internal/config"
	"github.com/shineum/postmark-inbound/internal/metrics"
	"github.com/shineum/postmark-inbound/internal/relay"
	"github.com/shineum/postmark-inbound/internal/relay/ses"
	"github.com/shineum/postmark-inbound/internal/relay/stdout"
	"github.com/shineum/postmark-inbound/internal/storage"
)

// selectWriter chooses where saved attachments are written.
func selectWriter(ctx context.Context, cfg *config.Config) (storage.Writer, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		slog.Info("using S3 storage", "bucket", cfg.Storage.S3.Bucket, "region", cfg.Storage.S3.Region)
		w, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, nil
	case config.BackendLocal:
		return storage.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// selectRelay chooses the forwarding backend based on configuration.
// An explicit RELAY_PROVIDER takes precedence; otherwise SES is used when
// configured and processed messages are not forwarded at all.
func selectRelay(ctx context.Context, cfg *config.Config) (relay.Relay, error) {
	switch cfg.Relay.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("SES relay selected but SES_REGION, SES_SENDER and SES_FORWARD_TO are required")
		}
		return newSESRelay(ctx, cfg)

	case "stdout":
		slog.Info("using stdout relay")
		return stdout.New(), nil

	case "":
		if cfg.SESConfigured() {
			slog.Info("using AWS SES relay (auto-detected)")
			return newSESRelay(ctx, cfg)
		}
		slog.Info("no relay configured, messages will not be forwarded")
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown relay provider %q", cfg.Relay.Provider)
	}
}

func newSESRelay(ctx context.Context, cfg *config.Config) (relay.Relay, error) {
	slog.Info("using AWS SES relay",
		"region", cfg.Relay.SES.Region,
		"sender", cfg.Relay.SES.Sender,
		"forward_to", cfg.Relay.SES.ForwardTo,
	)
	r, err := ses.New(ctx, ses.RelayConfig{
		Region:          cfg.Relay.SES.Region,
		AccessKeyID:     cfg.Relay.SES.AccessKeyID,
		SecretAccessKey: cfg.Relay.SES.SecretAccessKey,
		Sender:          cfg.Relay.SES.Sender,
		ForwardTo:       cfg.Relay.SES.ForwardTo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES relay: %w", err)
	}
	return r, nil
}

// selectCollector returns a CloudWatch collector when a namespace is set.
func selectCollector(ctx context.Context, cfg *config.Config) (metrics.Collector, error) {
	if !cfg.CloudWatchEnabled() {
		return metrics.Nop{}, nil
	}
	slog.Info("publishing CloudWatch metrics", "namespace", cfg.Metrics.CloudWatch.Namespace)
	c, err := metrics.NewCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create CloudWatch collector: %w", err)
	}
	return c, nil
}
