package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/config"
	"github.com/ThomaseR24/signature-pad-canvas/model"
	"github.com/ThomaseR24/signature-pad-canvas/pkg/logger"
)

// SignRequest carries one party's signature
type SignRequest struct {
	ContractID     string
	PartyIndex     int
	SignerName     string
	SignatureImage string // data URI, opaque to the recorder
	Timestamp      time.Time
}

func (r *SignRequest) validate() error {
	if !model.ValidPartyIndex(r.PartyIndex) {
		return fmt.Errorf("%w: party index %d out of range", ErrValidation, r.PartyIndex)
	}
	if strings.TrimSpace(r.SignerName) == "" {
		return fmt.Errorf("%w: signer name is required", ErrValidation)
	}
	if r.SignatureImage == "" {
		return fmt.Errorf("%w: signature image is required", ErrValidation)
	}
	return nil
}

// Recorder attaches signatures to contracts
type Recorder struct {
	records     RecordStore
	hasher      *Hasher
	scope       string
	maxAttempts int
	now         func() time.Time
}

func NewRecorder(records RecordStore, hasher *Hasher, cfg *config.SigningConfig) *Recorder {
	scope := strings.ToLower(cfg.FingerprintScope)
	if scope == "" {
		scope = config.ScopeContract
	}
	attempts := cfg.MaxSignAttempts
	if attempts <= 0 {
		attempts = 5
	}
	return &Recorder{
		records:     records,
		hasher:      hasher,
		scope:       scope,
		maxAttempts: attempts,
		now:         time.Now,
	}
}

// Scope reports the configured fingerprint scope
func (r *Recorder) Scope() string { return r.scope }

// RecordSignature writes the party's signature sub-record.
//
// The contract is read, modified and written back with a version check.
// When another writer got there first the whole cycle is retried, so two
// parties signing at the same time both end up recorded.
func (r *Recorder) RecordSignature(ctx context.Context, req SignRequest) (*model.Contract, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx = logger.WithContract(ctx, req.ContractID)
	signedAt := req.Timestamp.UTC()
	if req.Timestamp.IsZero() {
		signedAt = r.now().UTC()
	}

	// The document is hashed at most once per call, even across retries.
	var computed string
	fingerprint := func(c *model.Contract) (string, error) {
		if computed == "" {
			fp, err := r.hasher.FingerprintBlob(ctx, c.Document.Handle)
			if err != nil {
				return "", err
			}
			computed = fp
		}
		return computed, nil
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		c, err := r.records.Get(ctx, req.ContractID)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		party := &c.Parties[req.PartyIndex]
		if party.Signature != nil {
			return nil, fmt.Errorf("%w: %s signed at %s", ErrAlreadySigned, party.Role, party.Signature.SignedAt.Format(time.RFC3339))
		}

		sigFingerprint := c.Fingerprint
		if c.Fingerprint == "" || r.scope == config.ScopePerSignature {
			fp, err := fingerprint(c)
			if err != nil {
				return nil, err
			}
			sigFingerprint = fp
			if c.Fingerprint == "" {
				c.Fingerprint = fp
			}
		}

		party.Signature = &model.Signature{
			Fingerprint: sigFingerprint,
			Image:       req.SignatureImage,
			SignedAt:    signedAt,
			SignerName:  strings.TrimSpace(req.SignerName),
		}

		err = r.records.Set(ctx, c)
		if errors.Is(err, ErrVersionConflict) {
			logger.Debug(ctx, "signature write lost a race, retrying", "attempt", attempt, "party", req.PartyIndex)
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		logger.Info(ctx, "signature recorded",
			"party", req.PartyIndex,
			"fingerprint", sigFingerprint,
			"status", c.Status(r.now()),
		)
		return c, nil
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts: %w", ErrStorage, r.maxAttempts, ErrVersionConflict)
}
