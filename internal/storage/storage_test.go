package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestLocalWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	w := NewLocal()
	if err := w.WriteFile(context.Background(), path, []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content: got %q, want %q", got, "hello")
	}
}

func TestLocalWriteFileOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("previous content"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := &Local{}
	if err := w.WriteFile(context.Background(), path, []byte("new")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content: got %q, want %q", got, "new")
	}
}

func TestLocalWriteFileMissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does-not-exist", "a.txt")

	err := NewLocal().WriteFile(context.Background(), path, []byte("x"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want wrapped os.ErrNotExist", err)
	}
}

func TestLocalWriteFileCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "a.txt")
	if err := NewLocal().WriteFile(ctx, path, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not be created when the context is cancelled")
	}
}

// mockS3Client implements PutObjectAPI for testing.
type mockS3Client struct {
	err       error
	callCount int
	lastInput *s3.PutObjectInput
	lastBody  []byte
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.callCount++
	m.lastInput = params
	if params.Body != nil {
		m.lastBody, _ = io.ReadAll(params.Body)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3WriteFile(t *testing.T) {
	t.Parallel()

	mock := &mockS3Client{}
	w := NewS3WithClient("inbound-bucket", mock)

	if err := w.WriteFile(context.Background(), "/attachments/2024/a.txt", []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount != 1 {
		t.Fatalf("call count: got %d, want 1", mock.callCount)
	}
	if got := *mock.lastInput.Bucket; got != "inbound-bucket" {
		t.Errorf("Bucket: got %q, want %q", got, "inbound-bucket")
	}
	if got := *mock.lastInput.Key; got != "attachments/2024/a.txt" {
		t.Errorf("Key: got %q, want %q", got, "attachments/2024/a.txt")
	}
	if got := *mock.lastInput.ContentLength; got != 5 {
		t.Errorf("ContentLength: got %d, want 5", got)
	}
	if string(mock.lastBody) != "hello" {
		t.Errorf("Body: got %q, want %q", mock.lastBody, "hello")
	}
	if w.Bucket() != "inbound-bucket" {
		t.Errorf("Bucket(): got %q, want %q", w.Bucket(), "inbound-bucket")
	}
}

func TestS3WriteFileError(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("access denied")
	w := NewS3WithClient("bucket", &mockS3Client{err: apiErr})

	err := w.WriteFile(context.Background(), "a.txt", []byte("x"))
	if !errors.Is(err, apiErr) {
		t.Fatalf("got %v, want wrapped API error", err)
	}
}

func TestS3WriteFileEmptyKey(t *testing.T) {
	t.Parallel()

	mock := &mockS3Client{}
	w := NewS3WithClient("bucket", mock)

	if err := w.WriteFile(context.Background(), "///", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
	if mock.callCount != 0 {
		t.Errorf("call count: got %d, want 0", mock.callCount)
	}
}
