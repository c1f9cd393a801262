package ses

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/postmark-inbound/internal/email"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func newTestRelay(client SendEmailAPI) *Relay {
	r := NewWithClient("relay@example.com", []string{"ops@example.com", "archive@example.com"}, client)
	r.retryDelay = time.Millisecond
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func sampleEmail() *email.Email {
	return &email.Email{
		From:        `"Jane" <jane@example.com>`,
		FromAddress: "jane@example.com",
		To:          []string{"inbound@example.com"},
		Subject:     "Quarterly numbers",
		MessageID:   "73e6d360-66eb-11e1-8e72-a8904824019b",
		TextBody:    "See attached.",
		HtmlBody:    "<p>See attached.</p>",
		Attachments: []email.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", ContentID: "ii_report", Content: []byte("%PDF-1.4 fake")},
			{Filename: "notes.txt", ContentType: "text/plain; charset=utf-8", Content: []byte("hello")},
		},
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := newTestRelay(&mockSESClient{}).Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestForward_RawMessage(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	r := newTestRelay(mock)

	if err := r.Forward(context.Background(), sampleEmail()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount != 1 {
		t.Fatalf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if got := *input.FromEmailAddress; got != "relay@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "relay@example.com")
	}
	if got := input.Destination.ToAddresses; len(got) != 2 || got[0] != "ops@example.com" {
		t.Errorf("ToAddresses: got %v", got)
	}
	if input.Content.Raw == nil {
		t.Fatal("expected raw content")
	}

	mr, err := mail.CreateReader(bytes.NewReader(input.Content.Raw.Data))
	if err != nil {
		t.Fatalf("failed to parse raw message: %v", err)
	}

	if subject, _ := mr.Header.Subject(); subject != "Quarterly numbers" {
		t.Errorf("Subject: got %q, want %q", subject, "Quarterly numbers")
	}
	replyTo, err := mr.Header.AddressList("Reply-To")
	if err != nil || len(replyTo) != 1 || replyTo[0].Address != "jane@example.com" {
		t.Errorf("Reply-To: got %v (%v), want jane@example.com", replyTo, err)
	}
	if got := mr.Header.Get("X-Inbound-Message-Id"); got != "73e6d360-66eb-11e1-8e72-a8904824019b" {
		t.Errorf("X-Inbound-Message-Id: got %q", got)
	}
	if id, err := mr.Header.MessageID(); err != nil || id == "" {
		t.Errorf("Message-Id: got %q (%v), want generated id", id, err)
	}

	bodies := map[string]string{}
	attachments := map[string]string{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read part: %v", err)
		}
		content, err := io.ReadAll(p.Body)
		if err != nil {
			t.Fatalf("failed to read part body: %v", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			bodies[ct] = string(content)
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			attachments[name] = string(content)
			if name == "report.pdf" && h.Get("Content-Id") != "<ii_report>" {
				t.Errorf("report.pdf Content-Id: got %q", h.Get("Content-Id"))
			}
		}
	}

	if bodies["text/plain"] != "See attached." {
		t.Errorf("text body: got %q", bodies["text/plain"])
	}
	if bodies["text/html"] != "<p>See attached.</p>" {
		t.Errorf("html body: got %q", bodies["text/html"])
	}
	if attachments["report.pdf"] != "%PDF-1.4 fake" {
		t.Errorf("report.pdf: got %q", attachments["report.pdf"])
	}
	if attachments["notes.txt"] != "hello" {
		t.Errorf("notes.txt: got %q", attachments["notes.txt"])
	}
}

func TestForward_NoRecipients(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	r := NewWithClient("relay@example.com", nil, mock)

	if err := r.Forward(context.Background(), sampleEmail()); err == nil {
		t.Fatal("expected error without forwarding recipients")
	}
	if mock.callCount != 0 {
		t.Errorf("call count: got %d, want 0", mock.callCount)
	}
}

func TestForward_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("throttled")
			}
			return &sesv2.SendEmailOutput{}, nil
		},
	}

	if err := newTestRelay(mock).Forward(context.Background(), sampleEmail()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.callCount != 3 {
		t.Errorf("call count: got %d, want 3", mock.callCount)
	}
}

func TestForward_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("service unavailable")
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, apiErr
		},
	}

	err := newTestRelay(mock).Forward(context.Background(), sampleEmail())
	if !errors.Is(err, apiErr) {
		t.Fatalf("got %v, want wrapped API error", err)
	}
	if mock.callCount != maxRetries+1 {
		t.Errorf("call count: got %d, want %d", mock.callCount, maxRetries+1)
	}
}

func TestForward_ContextCancelledDuringRetry(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			cancel()
			return nil, errors.New("throttled")
		},
	}

	r := newTestRelay(mock)
	r.retryDelay = time.Hour

	err := r.Forward(ctx, sampleEmail())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestAttachmentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantType string
		wantCS   string
	}{
		{"application/pdf", "application/pdf", ""},
		{"text/plain; charset=ISO-8859-1", "text/plain", "ISO-8859-1"},
		{"", "application/octet-stream", ""},
		{"not a type;;", "application/octet-stream", ""},
	}
	for _, tt := range tests {
		mediaType, params := attachmentType(tt.in)
		if mediaType != tt.wantType {
			t.Errorf("attachmentType(%q): got %q, want %q", tt.in, mediaType, tt.wantType)
		}
		if params["charset"] != tt.wantCS {
			t.Errorf("attachmentType(%q) charset: got %q, want %q", tt.in, params["charset"], tt.wantCS)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	r := NewWithClient("s", []string{"t"}, &mockSESClient{})
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := r.backoffDelay(attempt); got != want {
			t.Errorf("backoffDelay(%d): got %v, want %v", attempt, got, want)
		}
	}
}
