package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/model"
)

// ComputeFingerprint returns the lowercase hex SHA-256 of b.
func ComputeFingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader hashes everything read from r.
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hasher fingerprints documents held in a BlobStore. Every fetch is bounded
// by FetchTimeout.
type Hasher struct {
	blobs        BlobStore
	fetchTimeout time.Duration
}

func NewHasher(blobs BlobStore, fetchTimeout time.Duration) *Hasher {
	return &Hasher{blobs: blobs, fetchTimeout: fetchTimeout}
}

// FingerprintBlob fetches the blob behind handle and hashes its bytes.
// Any failure, including the fetch deadline, is reported as ErrRetrieval.
func (h *Hasher) FingerprintBlob(ctx context.Context, handle string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("%w: contract has no document", ErrRetrieval)
	}
	if h.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.fetchTimeout)
		defer cancel()
	}

	data, err := h.blobs.Get(ctx, handle)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRetrieval, handle, err)
	}
	return ComputeFingerprint(data), nil
}

// metadataProjection is the canonical subset of contract metadata used by
// MetadataFingerprint. Field order is fixed by the struct.
type metadataProjection struct {
	ContractID string             `json:"contract_id"`
	CreatedAt  string             `json:"created_at"`
	Title      string             `json:"title"`
	Parties    [2]partyProjection `json:"parties"`
}

type partyProjection struct {
	Name           string               `json:"name"`
	Representative model.Representative `json:"representative"`
	Address        model.Address        `json:"address"`
}

// MetadataFingerprint hashes a canonical JSON projection of the contract's
// identity data. It does not cover the document bytes and is never used for
// the signing verdict.
func MetadataFingerprint(c *model.Contract) (string, error) {
	p := metadataProjection{
		ContractID: c.ID,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
		Title:      c.Title,
	}
	for i, party := range c.Parties {
		p.Parties[i] = partyProjection{
			Name:           party.Name,
			Representative: party.Representative,
			Address:        party.Address,
		}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return ComputeFingerprint(b), nil
}
