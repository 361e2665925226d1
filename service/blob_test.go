package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDirBlobStoreRoundTrip(t *testing.T) {
	store, err := NewDirBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirBlobStore: %v", err)
	}
	ctx := context.Background()

	handle, err := store.Put(ctx, "contracts/NDA-1/nda.pdf", bytes.NewReader(pdfFixture), int64(len(pdfFixture)), "application/pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if handle != "contracts/NDA-1/nda.pdf" {
		t.Errorf("Unexpected handle %q", handle)
	}

	got, err := store.Get(ctx, handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, pdfFixture) {
		t.Error("Get returned different bytes than Put")
	}

	if err := store.Delete(ctx, handle); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, handle); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected ErrBlobNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, handle); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected ErrBlobNotFound on second delete, got %v", err)
	}
}

func TestDirBlobStoreEmptyBlob(t *testing.T) {
	store, _ := NewDirBlobStore(t.TempDir())
	ctx := context.Background()

	handle, err := store.Put(ctx, "empty.pdf", strings.NewReader(""), 0, "application/pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ComputeFingerprint(got) != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Error("Empty blob must hash to the empty SHA-256")
	}
}

func TestDirBlobStoreRejectsBadNames(t *testing.T) {
	store, _ := NewDirBlobStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", "../escape.pdf", "/etc/passwd", "a/../../b.pdf"} {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, name, strings.NewReader("x"), 1, ""); err == nil {
				t.Errorf("Expected Put(%q) to fail", name)
			}
			if _, err := store.Get(ctx, name); err == nil {
				t.Errorf("Expected Get(%q) to fail", name)
			}
		})
	}
}

func TestDirBlobStoreShortWrite(t *testing.T) {
	store, _ := NewDirBlobStore(t.TempDir())
	ctx := context.Background()

	if _, err := store.Put(ctx, "short.pdf", strings.NewReader("abc"), 10, ""); err == nil {
		t.Fatal("Expected size mismatch to fail")
	}
	if _, err := store.Get(ctx, "short.pdf"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Failed upload must not leave a blob behind, got %v", err)
	}
}

func TestDirBlobStoreCancelledContext(t *testing.T) {
	store, _ := NewDirBlobStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Get(ctx, "any.pdf"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
