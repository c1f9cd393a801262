// Package ses implements a Relay that forwards inbound messages via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/postmark-inbound/internal/email"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// RelayConfig holds the configuration for creating a Relay.
type RelayConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
	ForwardTo       []string
}

// Relay forwards inbound messages as raw MIME through the AWS SES v2 API.
// The forwarded message is sent from the configured sender with Reply-To
// set to the original sender.
type Relay struct {
	sender     string
	forwardTo  []string
	client     SendEmailAPI
	retryDelay time.Duration
	now        func() time.Time
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new Relay with the given configuration.
func New(ctx context.Context, cfg RelayConfig) (*Relay, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, cfg.ForwardTo, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Relay with a custom client, used for testing.
func NewWithClient(sender string, forwardTo []string, client SendEmailAPI) *Relay {
	return &Relay{
		sender:     sender,
		forwardTo:  forwardTo,
		client:     client,
		retryDelay: baseRetryDelay,
		now:        time.Now,
	}
}

// Forward sends msg to the configured forwarding addresses.
func (r *Relay) Forward(ctx context.Context, msg *email.Email) error {
	if len(r.forwardTo) == 0 {
		return fmt.Errorf("no forwarding recipients configured")
	}

	raw, err := r.buildRawMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to build raw message: %w", err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(r.sender),
		Destination: &types.Destination{
			ToAddresses: r.forwardTo,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: raw,
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			if err := sleepWithContext(ctx, r.backoffDelay(attempt)); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		_, err := r.client.SendEmail(ctx, input)
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn("SES API error",
			"attempt", attempt,
			"error", err,
		)
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the relay name.
func (r *Relay) Name() string {
	return "ses"
}

// buildRawMessage renders msg as a multipart MIME message addressed to the
// forwarding recipients. Bodies go into an inline alternative part, every
// attachment into its own base64 part.
func (r *Relay) buildRawMessage(msg *email.Email) ([]byte, error) {
	var h mail.Header
	h.SetDate(r.now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: r.sender}})

	to := make([]*mail.Address, 0, len(r.forwardTo))
	for _, addr := range r.forwardTo {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)

	if msg.FromAddress != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: msg.FromAddress}})
	}
	if msg.MessageID != "" {
		h.Set("X-Inbound-Message-Id", msg.MessageID)
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	if msg.TextBody != "" || msg.HtmlBody != "" {
		iw, err := mw.CreateInline()
		if err != nil {
			return nil, fmt.Errorf("failed to create body part: %w", err)
		}
		if msg.TextBody != "" {
			if err := writeInline(iw, "text/plain", msg.TextBody); err != nil {
				return nil, err
			}
		}
		if msg.HtmlBody != "" {
			if err := writeInline(iw, "text/html", msg.HtmlBody); err != nil {
				return nil, err
			}
		}
		if err := iw.Close(); err != nil {
			return nil, fmt.Errorf("failed to close body part: %w", err)
		}
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		mediaType, params := attachmentType(att.ContentType)
		ah.SetContentType(mediaType, params)
		ah.SetFilename(att.Filename)
		if att.ContentID != "" {
			ah.Set("Content-Id", "<"+att.ContentID+">")
		}

		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := w.Write(att.Content); err != nil {
			return nil, fmt.Errorf("failed to write attachment %q: %w", att.Filename, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close attachment %q: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(iw *mail.InlineWriter, mediaType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(mediaType, map[string]string{"charset": "utf-8"})

	w, err := iw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", mediaType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", mediaType, err)
	}
	return w.Close()
}

// attachmentType splits a payload content type into media type and
// parameters, falling back to application/octet-stream.
func attachmentType(contentType string) (string, map[string]string) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return "application/octet-stream", nil
	}
	return mediaType, params
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func (r *Relay) backoffDelay(attempt int) time.Duration {
	delay := r.retryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
