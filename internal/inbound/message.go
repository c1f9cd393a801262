// Package inbound exposes the fields of an inbound email webhook payload and
// saves its base64-encoded attachments.
//
// A Message owns its parsed document for its whole lifetime and never
// mutates it, so accessors may be called from several goroutines. The
// cursor of an AttachmentCollection is the only mutable state and is not
// safe for concurrent use.
package inbound

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shineum/postmark-inbound/internal/document"
)

// Default header names used by DateHeader and SpamStatus.
const (
	DefaultHeaderName = "Date"
	DefaultSpamHeader = "X-Spam-Status"
)

// Message is one parsed inbound webhook payload.
type Message struct {
	raw string
	doc *document.Document
}

// Recipient is a normalized entry of ToFull or CcFull. An empty Name means
// the sender supplied no display name.
type Recipient struct {
	Name        string
	Email       string
	MailboxHash string
}

// HasName reports whether the recipient carries a display name.
func (r Recipient) HasName() bool {
	return r.Name != ""
}

// New parses raw webhook JSON into a Message.
func New(raw string) (*Message, error) {
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inbound payload: %w", err)
	}
	return &Message{raw: raw, doc: doc}, nil
}

// RawJSON returns the text the message was parsed from.
func (m *Message) RawJSON() string {
	return m.raw
}

func (m *Message) Subject() (string, error)           { return m.stringField("Subject") }
func (m *Message) Date() (string, error)              { return m.stringField("Date") }
func (m *Message) Tag() (string, error)               { return m.stringField("Tag") }
func (m *Message) MessageID() (string, error)         { return m.stringField("MessageID") }
func (m *Message) MailboxHash() (string, error)       { return m.stringField("MailboxHash") }
func (m *Message) TextBody() (string, error)          { return m.stringField("TextBody") }
func (m *Message) HtmlBody() (string, error)          { return m.stringField("HtmlBody") }
func (m *Message) ReplyTo() (string, error)           { return m.stringField("ReplyTo") }
func (m *Message) OriginalRecipient() (string, error) { return m.stringField("OriginalRecipient") }
func (m *Message) StrippedTextReply() (string, error) { return m.stringField("StrippedTextReply") }

// Bcc returns the blind-copy recipients as a comma-separated list. A string
// field is returned as-is; a list field joins each entry's Email, or the
// entry itself when it is a bare string.
func (m *Message) Bcc() (string, error) {
	n, ok := m.doc.Root().Field("Bcc")
	if !ok {
		return "", &MissingFieldError{Field: "Bcc"}
	}

	switch n.Kind() {
	case document.String:
		s, _ := n.AsString()
		return s, nil
	case document.Array:
		emails := make([]string, 0, n.Len())
		for i, item := range n.Items() {
			if s, ok := item.AsString(); ok {
				emails = append(emails, s)
				continue
			}
			email, err := stringField(item, "Email", fmt.Sprintf("Bcc[%d].Email", i))
			if err != nil {
				return "", err
			}
			emails = append(emails, email)
		}
		return strings.Join(emails, ", "), nil
	default:
		return "", &MissingFieldError{Field: "Bcc"}
	}
}

// ParsedDate parses the Date field as an RFC 5322 date.
func (m *Message) ParsedDate() (time.Time, error) {
	raw, err := m.Date()
	if err != nil {
		return time.Time{}, err
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse Date %q: %w", raw, err)
	}
	return t, nil
}

// FromName returns the sender's display name. The second result is false
// when the name is absent or empty; that is not an error.
func (m *Message) FromName() (string, bool) {
	n, ok := m.doc.Lookup("FromFull", "Name")
	if !ok {
		return "", false
	}
	name, ok := n.AsString()
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// FromEmail returns the sender's address.
func (m *Message) FromEmail() (string, error) {
	n, ok := m.doc.Lookup("FromFull", "Email")
	if !ok {
		return "", &MissingFieldError{Field: "FromFull.Email"}
	}
	email, ok := n.AsString()
	if !ok {
		return "", &MissingFieldError{Field: "FromFull.Email"}
	}
	return email, nil
}

// From returns the sender as "Name <email>", or "<email>" when there is
// no display name. The nameless form has no leading space.
func (m *Message) From() (string, error) {
	email, err := m.FromEmail()
	if err != nil {
		return "", err
	}
	name, ok := m.FromName()
	if !ok {
		return "<" + email + ">", nil
	}
	return name + " <" + email + ">", nil
}

// To returns the ToFull recipients in payload order.
func (m *Message) To() ([]Recipient, error) { return m.recipients("ToFull") }

// Cc returns the CcFull recipients in payload order.
func (m *Message) Cc() ([]Recipient, error) { return m.recipients("CcFull") }

func (m *Message) recipients(field string) ([]Recipient, error) {
	list, ok := m.doc.Root().Field(field)
	if !ok || list.Kind() != document.Array {
		return nil, &MissingFieldError{Field: field}
	}

	out := make([]Recipient, 0, list.Len())
	for i, entry := range list.Items() {
		emailNode, _ := entry.Field("Email")
		email, ok := emailNode.AsString()
		if !ok {
			return nil, &MissingFieldError{Field: fmt.Sprintf("%s[%d].Email", field, i)}
		}

		r := Recipient{Email: email}
		if n, ok := entry.Field("Name"); ok {
			r.Name, _ = n.AsString()
		}
		if n, ok := entry.Field("MailboxHash"); ok {
			r.MailboxHash, _ = n.AsString()
		}
		out = append(out, r)
	}
	return out, nil
}

// HeaderValue scans the Headers list for an entry whose Name equals name
// exactly and returns its Value. The second result is false if no entry
// matches.
func (m *Message) HeaderValue(name string) (string, bool) {
	headers, _ := m.doc.Root().Field("Headers")
	for _, h := range headers.Items() {
		n, ok := h.Field("Name")
		if !ok {
			continue
		}
		if s, ok := n.AsString(); ok && s == name {
			v, _ := h.Field("Value")
			return v.Text(), true
		}
	}
	return "", false
}

// DateHeader returns the "Date" header.
func (m *Message) DateHeader() (string, bool) {
	return m.HeaderValue(DefaultHeaderName)
}

// Spam treats Headers as a list of sections and returns the first member of
// any section whose key equals name. This is not the same lookup as
// HeaderValue: with the usual {"Name", "Value"} entries it only matches keys
// such as "Name" or "Value", never a header name.
func (m *Message) Spam(name string) (string, bool) {
	headers, _ := m.doc.Root().Field("Headers")

	var sections []*document.Node
	switch headers.Kind() {
	case document.Array:
		sections = headers.Items()
	case document.Object:
		for _, f := range headers.Fields() {
			sections = append(sections, f.Value)
		}
	}

	for _, section := range sections {
		for _, f := range section.Fields() {
			if f.Name == name {
				return f.Value.Text(), true
			}
		}
	}
	return "", false
}

// SpamStatus calls Spam with "X-Spam-Status".
func (m *Message) SpamStatus() (string, bool) {
	return m.Spam(DefaultSpamHeader)
}

// Attachments returns a new collection over the payload's Attachments list.
// A missing or non-array field yields an empty collection.
func (m *Message) Attachments() *AttachmentCollection {
	list, _ := m.doc.Root().Field("Attachments")
	return newAttachmentCollection(list.Items())
}

// HasAttachments reports whether the payload carries at least one attachment.
func (m *Message) HasAttachments() bool {
	return m.Attachments().Len() > 0
}

func (m *Message) stringField(name string) (string, error) {
	return stringField(m.doc.Root(), name, name)
}

// stringField reads a string member of n; label is the path used in errors.
func stringField(n *document.Node, name, label string) (string, error) {
	v, ok := n.Field(name)
	if !ok {
		return "", &MissingFieldError{Field: label}
	}
	s, ok := v.AsString()
	if !ok {
		return "", &MissingFieldError{Field: label}
	}
	return s, nil
}
