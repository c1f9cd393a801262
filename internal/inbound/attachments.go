package inbound

import (
	"iter"

	"github.com/shineum/postmark-inbound/internal/document"
)

// AttachmentCollection is an ordered view over a message's attachment
// entries with a zero-based cursor for sequential traversal. The entries
// are shared with the message and never modified; the cursor is not safe
// for concurrent use, so each traversal should own its collection. Use
// Clone to get an independent cursor over the same entries.
type AttachmentCollection struct {
	entries []*document.Node
	pos     int
}

func newAttachmentCollection(entries []*document.Node) *AttachmentCollection {
	return &AttachmentCollection{entries: entries}
}

// Len returns the number of entries.
func (c *AttachmentCollection) Len() int {
	return len(c.entries)
}

// Get moves the cursor to index and returns the attachment there. It
// returns false, not an error, when index is out of range or the entry is
// null or an empty object. The cursor moves either way.
func (c *AttachmentCollection) Get(index int) (*Attachment, bool) {
	c.pos = index
	if index < 0 || index >= len(c.entries) {
		return nil, false
	}
	entry := c.entries[index]
	if entry.IsNull() || (entry.Kind() == document.Object && entry.Len() == 0) {
		return nil, false
	}
	return newAttachment(index, entry), true
}

// Reset moves the cursor back to the first entry.
func (c *AttachmentCollection) Reset() {
	c.pos = 0
}

// HasCurrent reports whether the cursor references a non-null entry.
func (c *AttachmentCollection) HasCurrent() bool {
	return c.pos >= 0 && c.pos < len(c.entries) && !c.entries[c.pos].IsNull()
}

// Current returns a new Attachment for the entry under the cursor, or nil
// if HasCurrent is false.
func (c *AttachmentCollection) Current() *Attachment {
	if !c.HasCurrent() {
		return nil
	}
	return newAttachment(c.pos, c.entries[c.pos])
}

// Advance moves the cursor to the next entry.
func (c *AttachmentCollection) Advance() {
	c.pos++
}

// Position returns the cursor value.
func (c *AttachmentCollection) Position() int {
	return c.pos
}

// Clone returns a collection over the same entries with its own cursor,
// starting at the current position.
func (c *AttachmentCollection) Clone() *AttachmentCollection {
	return &AttachmentCollection{entries: c.entries, pos: c.pos}
}

// All resets the cursor and yields each attachment with its index until an
// invalid position is reached. Breaking out of the loop leaves the cursor on
// the last yielded entry.
func (c *AttachmentCollection) All() iter.Seq2[int, *Attachment] {
	return func(yield func(int, *Attachment) bool) {
		for c.Reset(); c.HasCurrent(); c.Advance() {
			if !yield(c.Position(), c.Current()) {
				return
			}
		}
	}
}
