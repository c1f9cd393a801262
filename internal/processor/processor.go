// Package processor drives a Postmark inbound payload through attachment
// saving and relay forwarding.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shineum/postmark-inbound/internal/inbound"
	"github.com/shineum/postmark-inbound/internal/metrics"
	"github.com/shineum/postmark-inbound/internal/relay"
	"github.com/shineum/postmark-inbound/internal/storage"
)

// Config wires the processor's collaborators. Zero values disable saving
// (empty Download.Directory), forwarding (nil Relay) and metrics (nil Metrics).
type Config struct {
	Download inbound.DownloadOptions
	Relay    relay.Relay
	Metrics  metrics.Collector
	Logger   *slog.Logger
}

// Processor handles one payload per Process call. It holds no per-payload
// state and is safe for concurrent use when its collaborators are.
type Processor struct {
	download inbound.DownloadOptions
	relay    relay.Relay
	metrics  metrics.Collector
	logger   *slog.Logger
}

// Report summarises what Process did with a payload.
type Report struct {
	MessageID string
	// Saved holds the written paths in attachment order.
	Saved []string
	// Rejected holds display names of attachments skipped by validation.
	Rejected  []string
	Forwarded bool
}

// New creates a Processor from cfg.
func New(cfg Config) *Processor {
	p := &Processor{
		download: cfg.Download,
		relay:    cfg.Relay,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Process parses raw, saves attachments when a download directory is set and
// forwards the message snapshot when a relay is set. Size and content-type
// rejections are logged and skipped; every other error aborts processing.
func (p *Processor) Process(ctx context.Context, raw string) (*Report, error) {
	report, err := p.process(ctx, raw)
	if err != nil {
		p.metrics.ProcessError()
		return report, err
	}
	return report, nil
}

func (p *Processor) process(ctx context.Context, raw string) (*Report, error) {
	msg, err := inbound.New(raw)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	if id, err := msg.MessageID(); err == nil {
		report.MessageID = id
	}
	logger := p.logger.With("message_id", report.MessageID)

	if p.download.Directory != "" {
		if err := p.saveAttachments(ctx, logger, msg, report); err != nil {
			return report, err
		}
	}

	if p.relay == nil {
		return report, nil
	}

	snapshot, err := msg.Snapshot()
	if err != nil {
		return report, fmt.Errorf("failed to build message snapshot: %w", err)
	}
	if err := p.relay.Forward(ctx, snapshot); err != nil {
		return report, fmt.Errorf("relay %s: %w", p.relay.Name(), err)
	}
	report.Forwarded = true
	logger.Info("message forwarded", "relay", p.relay.Name())
	return report, nil
}

// countingWriter records the path and size of the last successful write.
type countingWriter struct {
	storage.Writer
	path string
	size int64
}

func (w *countingWriter) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := w.Writer.WriteFile(ctx, path, data); err != nil {
		return err
	}
	w.path = path
	w.size = int64(len(data))
	return nil
}

func (p *Processor) saveAttachments(ctx context.Context, logger *slog.Logger, msg *inbound.Message, report *Report) error {
	base := p.download.Writer
	if base == nil {
		base = storage.NewLocal()
	}

	for i, a := range msg.Attachments().All() {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := &countingWriter{Writer: base}
		opts := p.download
		opts.Writer = w

		err := a.Download(ctx, opts)

		var sizeErr *inbound.SizeLimitExceededError
		var typeErr *inbound.ContentTypeRejectedError
		switch {
		case errors.As(err, &sizeErr):
			logger.Warn("attachment exceeds size limit",
				"index", i,
				"attachment", sizeErr.Name,
				"content_length", sizeErr.ContentLength,
				"max", sizeErr.Max,
			)
			report.Rejected = append(report.Rejected, sizeErr.Name)
			p.metrics.AttachmentRejected()
			continue
		case errors.As(err, &typeErr):
			logger.Warn("attachment content type not allowed",
				"index", i,
				"attachment", typeErr.Name,
				"content_type", typeErr.ContentType,
			)
			report.Rejected = append(report.Rejected, typeErr.Name)
			p.metrics.AttachmentRejected()
			continue
		case err != nil:
			return fmt.Errorf("attachment %d: %w", i, err)
		}

		report.Saved = append(report.Saved, w.path)
		p.metrics.AttachmentSaved(w.size)
		logger.Info("attachment saved", "index", i, "path", w.path, "bytes", w.size)
	}
	return nil
}
