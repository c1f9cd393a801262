package inbound

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/shineum/postmark-inbound/internal/email"
)

// Snapshot flattens the message into an email.Email for relays. Missing
// scalar fields become empty strings; attachment content is decoded, and a
// malformed attachment fails the whole snapshot.
func (m *Message) Snapshot() (*email.Email, error) {
	out := &email.Email{
		ReplyTo:     m.optional("ReplyTo"),
		Subject:     m.optional("Subject"),
		Date:        m.optional("Date"),
		MessageID:   m.optional("MessageID"),
		MailboxHash: m.optional("MailboxHash"),
		Tag:         m.optional("Tag"),
		TextBody:    m.optional("TextBody"),
		HtmlBody:    m.optional("HtmlBody"),
	}

	if addr, err := m.FromEmail(); err == nil {
		name, _ := m.FromName()
		out.FromAddress = addr
		out.From = formatAddress(name, addr)
	}

	for _, field := range []struct {
		name string
		dst  *[]string
	}{
		{"ToFull", &out.To},
		{"CcFull", &out.Cc},
	} {
		list, err := m.recipients(field.name)
		if err != nil {
			continue
		}
		for _, r := range list {
			*field.dst = append(*field.dst, formatAddress(r.Name, r.Email))
		}
	}

	bcc, _ := m.Bcc()
	out.Bcc = splitAddressList(bcc)

	headers, _ := m.doc.Root().Field("Headers")
	for _, h := range headers.Items() {
		name, _ := h.Field("Name")
		value, _ := h.Field("Value")
		if name.Text() == "" {
			continue
		}
		out.Headers = append(out.Headers, email.Header{Name: name.Text(), Value: value.Text()})
	}

	for i, att := range m.Attachments().All() {
		data, err := att.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to decode attachment %d: %w", i, err)
		}
		name, _ := att.Name()
		contentType, _ := att.ContentType()
		contentID, _ := att.ContentID()
		out.Attachments = append(out.Attachments, email.Attachment{
			Filename:    name,
			ContentType: contentType,
			ContentID:   contentID,
			Content:     data,
		})
	}

	return out, nil
}

func (m *Message) optional(name string) string {
	s, _ := m.stringField(name)
	return s
}

// formatAddress renders an RFC 5322 address, quoting the name when needed.
func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}

// splitAddressList splits the comma-separated list returned by Bcc.
func splitAddressList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
