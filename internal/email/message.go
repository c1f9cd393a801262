// Package email defines the flattened message model handed to relays.
package email

// Email is a fully decoded snapshot of an inbound message. Unlike
// inbound.Message it holds plain values, so relays never deal with
// missing fields or undecoded attachment content.
type Email struct {
	From        string
	FromAddress string
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	Date        string
	MessageID   string
	MailboxHash string
	Tag         string
	TextBody    string
	HtmlBody    string
	Headers     []Header
	Attachments []Attachment
}

// Header is one raw header line as delivered in the payload.
type Header struct {
	Name  string
	Value string
}

// Attachment represents a decoded file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Content     []byte
}

// Size returns the total decoded size of all attachments in bytes.
func (e *Email) Size() int64 {
	var n int64
	for _, att := range e.Attachments {
		n += int64(len(att.Content))
	}
	return n
}
