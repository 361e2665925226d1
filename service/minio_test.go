package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/config"
	"github.com/ThomaseR24/signature-pad-canvas/model"
)

func newOfflineMinio(t *testing.T) *MinioService {
	t.Helper()
	svc, err := NewMinioService(&config.MinioConfig{
		Endpoint:   "127.0.0.1:1",
		AccessKey:  "test",
		SecretKey:  "test",
		Bucket:     "contracts",
		Region:     "us-east-1",
		ExpireDays: 7,
	})
	if err != nil {
		t.Fatalf("NewMinioService: %v", err)
	}
	return svc
}

func TestNewMinioService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:  "invalid-endpoint:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "test",
	}

	svc, err := NewMinioService(cfg)
	// The client is created lazily; connection problems show up on first use.
	if err != nil {
		t.Logf("NewMinioService returned error: %v", err)
	} else if svc == nil {
		t.Error("Expected non-nil service")
	}
}

func TestMinioServicePublicURL(t *testing.T) {
	tests := []struct {
		name       string
		useSSL     bool
		endpoint   string
		bucket     string
		objectName string
		expected   string
	}{
		{
			name:       "http url",
			endpoint:   "localhost:9000",
			bucket:     "test-bucket",
			objectName: "contracts/NDA-1/nda.pdf",
			expected:   "http://localhost:9000/test-bucket/contracts/NDA-1/nda.pdf",
		},
		{
			name:       "https url",
			useSSL:     true,
			endpoint:   "minio.example.com",
			bucket:     "contracts",
			objectName: "contracts/NDA-2/doc.pdf",
			expected:   "https://minio.example.com/contracts/contracts/NDA-2/doc.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MinioService{
				bucket: tt.bucket,
				config: &config.MinioConfig{
					Endpoint: tt.endpoint,
					UseSSL:   tt.useSSL,
				},
			}

			if got := svc.PublicURL(tt.objectName); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestMinioServicePresignedURL(t *testing.T) {
	svc := newOfflineMinio(t)

	// With a fixed region presigning is computed locally.
	url, err := svc.URL(context.Background(), "contracts/NDA-1/nda.pdf")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(url, "contracts/NDA-1/nda.pdf") || !strings.Contains(url, "X-Amz-Signature") {
		t.Errorf("Unexpected presigned URL %s", url)
	}
}

func TestDocumentURLFromMinio(t *testing.T) {
	c := &model.Contract{ID: "NDA-1", Document: model.DocumentRef{Handle: "contracts/NDA-1/nda.pdf"}}

	t.Run("presigned", func(t *testing.T) {
		svc := NewContractService(NewMemoryStore(0), newOfflineMinio(t))
		if url := svc.DocumentURL(context.Background(), c); !strings.Contains(url, "X-Amz-Signature") {
			t.Errorf("Expected presigned URL, got %q", url)
		}
	})

	t.Run("public fallback", func(t *testing.T) {
		minioSvc := newOfflineMinio(t)
		// presigning rejects expiries under one second
		minioSvc.config.ExpireDays = 0
		svc := NewContractService(NewMemoryStore(0), minioSvc)

		want := "http://127.0.0.1:1/contracts/contracts/NDA-1/nda.pdf"
		if url := svc.DocumentURL(context.Background(), c); url != want {
			t.Errorf("Expected %q, got %q", want, url)
		}
	})
}

func TestMinioServiceGetFailsAsRetrievalError(t *testing.T) {
	svc := newOfflineMinio(t)
	h := NewHasher(svc, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.FingerprintBlob(ctx, "contracts/NDA-1/nda.pdf")
	if !errors.Is(err, ErrRetrieval) {
		t.Fatalf("Expected ErrRetrieval, got %v", err)
	}
}

func TestMinioServiceImplementsBlobStore(t *testing.T) {
	var _ BlobStore = (*MinioService)(nil)
	var _ URLResolver = (*MinioService)(nil)
}
