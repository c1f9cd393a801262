// Package storage provides the write targets used when saving decoded
// attachments: the local filesystem and an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"os"
)

// Writer creates or overwrites a file at path with data.
type Writer interface {
	WriteFile(ctx context.Context, path string, data []byte) error
}

// defaultPerm is the mode used for newly created files.
const defaultPerm os.FileMode = 0o644

// Local writes files onto the local filesystem. Parent directories are not
// created; a missing directory is a write failure.
type Local struct {
	// Perm is the mode for created files. Zero means 0644.
	Perm os.FileMode
}

// NewLocal creates a Local writer with default permissions.
func NewLocal() *Local {
	return &Local{Perm: defaultPerm}
}

// WriteFile writes data to path. The write is not atomic: a failure part way
// through may leave a truncated file behind.
func (l *Local) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	perm := l.Perm
	if perm == 0 {
		perm = defaultPerm
	}

	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

var _ Writer = (*Local)(nil)
