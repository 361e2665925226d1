package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/config"
	"github.com/ThomaseR24/signature-pad-canvas/model"
)

var pdfFixture = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func testParties() [2]model.Party {
	return [2]model.Party{
		{
			Name:           "Acme GmbH",
			Representative: model.Representative{Name: "Anna Schmidt", Position: "CEO", Email: "anna@acme.test"},
			Address:        model.Address{Street: "Hauptstr. 1", City: "Berlin", ZipCode: "10115", Country: "DE"},
		},
		{
			Name:           "Globex Ltd",
			Representative: model.Representative{Name: "Bob Jones", Position: "CTO", Email: "bob@globex.test"},
			Address:        model.Address{Street: "1 High St", City: "London", ZipCode: "EC1A", Country: "UK"},
		},
	}
}

type testEnv struct {
	records   RecordStore
	blobs     *DirBlobStore
	hasher    *Hasher
	recorder  *Recorder
	verifier  *Verifier
	contracts *ContractService
}

func newTestEnv(t *testing.T, records RecordStore, scope string) *testEnv {
	t.Helper()
	blobs, err := NewDirBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirBlobStore: %v", err)
	}
	if records == nil {
		records = NewMemoryStore(0)
	}
	hasher := NewHasher(blobs, time.Second)
	return &testEnv{
		records:   records,
		blobs:     blobs,
		hasher:    hasher,
		recorder:  NewRecorder(records, hasher, &config.SigningConfig{FingerprintScope: scope}),
		verifier:  NewVerifier(hasher),
		contracts: NewContractService(records, blobs),
	}
}

// upload creates a contract over the PDF fixture.
func (e *testEnv) upload(t *testing.T) *model.Contract {
	t.Helper()
	c, err := e.contracts.Create(context.Background(), NewContract{
		Title:       "Mutual NDA",
		Parties:     testParties(),
		Filename:    "nda.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(pdfFixture)),
	}, bytes.NewReader(pdfFixture))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

// overwrite replaces the document bytes behind the contract.
func (e *testEnv) overwrite(t *testing.T, c *model.Contract, data []byte) {
	t.Helper()
	_, err := e.blobs.Put(context.Background(), c.Document.Handle, bytes.NewReader(data), int64(len(data)), "application/pdf")
	if err != nil {
		t.Fatalf("overwrite blob: %v", err)
	}
}

func (e *testEnv) sign(t *testing.T, id string, party int, name string) *model.Contract {
	t.Helper()
	c, err := e.recorder.RecordSignature(context.Background(), SignRequest{
		ContractID:     id,
		PartyIndex:     party,
		SignerName:     name,
		SignatureImage: "data:image/png;base64,iVBORw0KGgo=",
		Timestamp:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordSignature(party %d): %v", party, err)
	}
	return c
}

// stubBlobStore fails or stalls on Get and counts calls.
type stubBlobStore struct {
	BlobStore
	getErr error
	block  bool

	mu   sync.Mutex
	gets int
}

func (s *stubBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.BlobStore.Get(ctx, handle)
}

func (s *stubBlobStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// failingRecordStore fails writes with a non-conflict error.
type failingRecordStore struct {
	RecordStore
	setErr error
}

func (s *failingRecordStore) Set(ctx context.Context, c *model.Contract) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.RecordStore.Set(ctx, c)
}

// barrierStore holds the first n Gets until all n have read, forcing the
// callers into a read-modify-write race.
type barrierStore struct {
	RecordStore
	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newBarrierStore(inner RecordStore, n int) *barrierStore {
	return &barrierStore{RecordStore: inner, pending: n, release: make(chan struct{})}
}

func (s *barrierStore) Get(ctx context.Context, id string) (*model.Contract, error) {
	c, err := s.RecordStore.Get(ctx, id)
	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		return c, err
	}
	s.pending--
	if s.pending == 0 {
		close(s.release)
	}
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c, err
}

// conflictStore reports a version conflict on every write.
type conflictStore struct {
	RecordStore
	sets int
}

func (s *conflictStore) Set(ctx context.Context, c *model.Contract) error {
	s.sets++
	return ErrVersionConflict
}

var errDiskFull = errors.New("disk full")
