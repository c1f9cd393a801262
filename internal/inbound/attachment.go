package inbound

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"github.com/shineum/postmark-inbound/internal/document"
	"github.com/shineum/postmark-inbound/internal/storage"
)

// base64LineLength is the RFC 2045 line length used when re-chunking content.
const base64LineLength = 76

// Attachment wraps one entry of the Attachments list. It holds no state
// besides the entry, so every Read decodes the content again.
type Attachment struct {
	index int
	entry *document.Node
}

// DownloadOptions controls Attachment.Download.
type DownloadOptions struct {
	// Directory is prepended verbatim to the attachment name; include the
	// trailing separator. Required.
	Directory string

	// MaxContentLength rejects attachments whose declared ContentLength is
	// larger. Zero means no limit.
	MaxContentLength int64

	// AllowedContentTypes, when non-empty, lists the exact content types
	// accepted.
	AllowedContentTypes []string

	// Writer receives the decoded bytes. Nil writes to the local filesystem.
	Writer storage.Writer
}

func newAttachment(index int, entry *document.Node) *Attachment {
	return &Attachment{index: index, entry: entry}
}

// Index returns the position of the entry in the payload's Attachments list.
func (a *Attachment) Index() int {
	return a.index
}

func (a *Attachment) Name() (string, error)        { return a.stringField("Name") }
func (a *Attachment) ContentType() (string, error) { return a.stringField("ContentType") }
func (a *Attachment) ContentID() (string, error)   { return a.stringField("ContentID") }

// ContentLength returns the size declared in the payload. It is not checked
// against the decoded content. A number that is negative, fractional or
// outside the int64 range is a DecodeError.
func (a *Attachment) ContentLength() (int64, error) {
	n, ok := a.entry.Field("ContentLength")
	if !ok {
		return 0, &MissingFieldError{Field: a.label("ContentLength")}
	}
	v, ok := n.AsInt64()
	if !ok {
		if n.Kind() == document.Number {
			return 0, &DecodeError{Msg: fmt.Sprintf("inbound: %s is not an int64 integer: %s", a.label("ContentLength"), n.Text())}
		}
		return 0, &MissingFieldError{Field: a.label("ContentLength")}
	}
	if v < 0 {
		return 0, &DecodeError{Msg: fmt.Sprintf("inbound: %s is negative: %d", a.label("ContentLength"), v)}
	}
	return v, nil
}

// Read decodes the base64 Content field. Chunked and unchunked input decode
// to the same bytes.
func (a *Attachment) Read() ([]byte, error) {
	content, err := a.stringField("Content")
	if err != nil {
		return nil, err
	}
	return decodeContent(content, a.label("Content"))
}

// Download validates the attachment against opts and writes the decoded
// content to opts.Directory + Name(). No write is attempted if validation or
// decoding fails.
//
// The size check uses the declared ContentLength, so a payload that
// understates its length passes the limit. Name is not sanitized: a name
// containing path separators or ".." is written wherever it points.
func (a *Attachment) Download(ctx context.Context, opts DownloadOptions) error {
	if opts.Directory == "" {
		return &ConfigError{Option: "Directory", Reason: "an upload directory is required"}
	}
	if opts.MaxContentLength < 0 {
		return &ConfigError{Option: "MaxContentLength", Reason: "must not be negative"}
	}

	if opts.MaxContentLength > 0 {
		length, err := a.ContentLength()
		if err != nil {
			return err
		}
		if length > opts.MaxContentLength {
			return &SizeLimitExceededError{Name: a.displayName(), ContentLength: length, Max: opts.MaxContentLength}
		}
	}

	if len(opts.AllowedContentTypes) > 0 {
		contentType, err := a.ContentType()
		if err != nil {
			return err
		}
		if !slices.Contains(opts.AllowedContentTypes, contentType) {
			return &ContentTypeRejectedError{Name: a.displayName(), ContentType: contentType}
		}
	}

	name, err := a.Name()
	if err != nil {
		return err
	}

	data, err := a.Read()
	if err != nil {
		return err
	}

	w := opts.Writer
	if w == nil {
		w = storage.NewLocal()
	}

	path := opts.Directory + name
	if err := w.WriteFile(ctx, path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func (a *Attachment) stringField(name string) (string, error) {
	return stringField(a.entry, name, a.label(name))
}

// displayName is the Name field, or the entry position when Name is unusable.
func (a *Attachment) displayName() string {
	if name, err := a.Name(); err == nil {
		return name
	}
	return fmt.Sprintf("#%d", a.index)
}

func (a *Attachment) label(field string) string {
	return fmt.Sprintf("Attachments[%d].%s", a.index, field)
}

// decodeContent re-chunks content into 76-column lines and decodes it.
// The line breaks are ignored by the decoder, so the chunking never changes
// the output; unpadded input is accepted as well.
func decodeContent(content, label string) ([]byte, error) {
	chunked := chunkSplit(content, base64LineLength, "\r\n")

	decoded, err := base64.StdEncoding.DecodeString(chunked)
	if err == nil {
		return decoded, nil
	}

	decoded, rawErr := base64.RawStdEncoding.DecodeString(chunked)
	if rawErr == nil {
		return decoded, nil
	}

	return nil, &DecodeError{Msg: fmt.Sprintf("inbound: invalid base64 in %s", label), Err: err}
}

// chunkSplit inserts sep after every size bytes of s, including after the
// final chunk.
func chunkSplit(s string, size int, sep string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s) + (len(s)/size+1)*len(sep))
	for i := 0; i < len(s); i += size {
		end := min(i+size, len(s))
		b.WriteString(s[i:end])
		b.WriteString(sep)
	}
	return b.String()
}
