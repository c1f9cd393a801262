// Package metrics records attachment processing outcomes.
package metrics

// Collector receives one call per processing outcome. Implementations must
// not block the caller for long and must not return errors; failures to
// publish are theirs to log.
type Collector interface {
	// AttachmentSaved records one written attachment and the number of
	// decoded bytes written for it.
	AttachmentSaved(bytes int64)
	// AttachmentRejected records one attachment skipped by size or
	// content-type validation.
	AttachmentRejected()
	// ProcessError records one payload that failed to process.
	ProcessError()
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) AttachmentSaved(int64) {}
func (Nop) AttachmentRejected()   {}
func (Nop) ProcessError()         {}

var _ Collector = Nop{}
