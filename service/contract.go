package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/model"
	"github.com/ThomaseR24/signature-pad-canvas/pkg/logger"
	"github.com/google/uuid"
)

// DefaultValidity is how long an NDA runs when no end date is given.
const DefaultValidity = 2 * 365 * 24 * time.Hour

// NewContract describes an upload
type NewContract struct {
	Title       string
	ValidFrom   time.Time
	ValidUntil  time.Time
	Parties     [2]model.Party
	Filename    string
	ContentType string
	Size        int64
}

// ContractService covers the contract lifecycle around the integrity core:
// upload, lookup, listing and deletion.
type ContractService struct {
	records RecordStore
	blobs   BlobStore
	now     func() time.Time
}

// evictingStore is a RecordStore that drops old contracts on its own.
type evictingStore interface {
	OnEvict(fn EvictFunc)
}

func NewContractService(records RecordStore, blobs BlobStore) *ContractService {
	s := &ContractService{records: records, blobs: blobs, now: time.Now}
	if es, ok := records.(evictingStore); ok {
		es.OnEvict(s.evicted)
	}
	return s
}

// evicted removes the document of a contract the record store dropped.
func (s *ContractService) evicted(ctx context.Context, c *model.Contract) {
	ctx = logger.WithContract(ctx, c.ID)
	if err := s.deleteDocument(ctx, c); err != nil {
		logger.Error(ctx, "failed to remove document of evicted contract", "handle", c.Document.Handle, "error", err)
		return
	}
	logger.Info(ctx, "evicted contract document removed", "handle", c.Document.Handle)
}

// deleteDocument removes the contract's blob. A blob that is already gone
// is not an error.
func (s *ContractService) deleteDocument(ctx context.Context, c *model.Contract) error {
	if c.Document.Handle == "" {
		return nil
	}
	err := s.blobs.Delete(ctx, c.Document.Handle)
	if errors.Is(err, ErrBlobNotFound) {
		logger.Warn(ctx, "document already missing", "handle", c.Document.Handle)
		return nil
	}
	return err
}

// NewContractID returns a time-based id with a random suffix
func NewContractID(now time.Time) string {
	return fmt.Sprintf("NDA-%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (in *NewContract) validate() error {
	if strings.TrimSpace(in.Filename) == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}
	for i, p := range in.Parties {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: party %d name is required", ErrValidation, i)
		}
		if p.Signature != nil {
			return fmt.Errorf("%w: party %d cannot be created signed", ErrValidation, i)
		}
	}
	if !in.ValidFrom.IsZero() && !in.ValidUntil.IsZero() && in.ValidUntil.Before(in.ValidFrom) {
		return fmt.Errorf("%w: valid_until is before valid_from", ErrValidation)
	}
	return nil
}

// Create stores the document and writes the unsigned contract record. The
// fingerprint stays empty until the first signature.
func (s *ContractService) Create(ctx context.Context, in NewContract, r io.Reader) (*model.Contract, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &model.Contract{
		ID:         NewContractID(now),
		Type:       model.ContractTypeNDA,
		Title:      strings.TrimSpace(in.Title),
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
		Parties:    in.Parties,
		CreatedAt:  now,
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now
	}
	if c.ValidUntil.IsZero() {
		c.ValidUntil = c.ValidFrom.Add(DefaultValidity)
	}
	c.Parties[model.PartyInitiator].Role = model.RoleDisclosing
	c.Parties[model.PartyPartner].Role = model.RoleReceiving
	ctx = logger.WithContract(ctx, c.ID)

	filename := path.Base(strings.ReplaceAll(in.Filename, "\\", "/"))
	objectName := fmt.Sprintf("contracts/%s/%s", c.ID, filename)
	handle, err := s.blobs.Put(ctx, objectName, r, in.Size, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	c.Document = model.DocumentRef{
		Handle:      handle,
		Filename:    filename,
		ContentType: in.ContentType,
		Size:        in.Size,
	}

	if err := s.records.Set(ctx, c); err != nil {
		if derr := s.blobs.Delete(ctx, handle); derr != nil {
			logger.Warn(ctx, "failed to remove document after record write failed", "handle", handle, "error", derr)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	logger.Info(ctx, "contract created", "handle", handle, "size", in.Size)
	return c, nil
}

func (s *ContractService) Get(ctx context.Context, id string) (*model.Contract, error) {
	c, err := s.records.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return c, err
}

// List returns all contracts, newest first
func (s *ContractService) List(ctx context.Context) ([]*model.Contract, error) {
	ids, err := s.records.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	contracts := make([]*model.Contract, 0, len(ids))
	for _, id := range ids {
		c, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// deleted since ListIDs
			continue
		}
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

// Delete removes the document and the record. A document that is already
// gone does not block removing the record.
func (s *ContractService) Delete(ctx context.Context, id string) error {
	ctx = logger.WithContract(ctx, id)
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.deleteDocument(ctx, c); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.records.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	logger.Info(ctx, "contract deleted")
	return nil
}

// OpenDocument returns the stored document bytes
func (s *ContractService) OpenDocument(ctx context.Context, id string) (*model.Contract, []byte, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, c.Document.Handle)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return c, data, nil
}

// publicURLer is implemented by blob stores with an unsigned object URL.
type publicURLer interface {
	PublicURL(handle string) string
}

// DocumentURL returns a direct download URL when the blob store supports it.
// If presigning fails it falls back to the unsigned URL, which only works
// when the bucket policy allows anonymous reads.
func (s *ContractService) DocumentURL(ctx context.Context, c *model.Contract) string {
	resolver, ok := s.blobs.(URLResolver)
	if !ok || c.Document.Handle == "" {
		return ""
	}
	url, err := resolver.URL(ctx, c.Document.Handle)
	if err == nil {
		return url
	}
	if pub, ok := s.blobs.(publicURLer); ok {
		logger.Warn(ctx, "presigning failed, using public document url", "contract_id", c.ID, "error", err)
		return pub.PublicURL(c.Document.Handle)
	}
	logger.Warn(ctx, "failed to resolve document url", "contract_id", c.ID, "error", err)
	return ""
}
