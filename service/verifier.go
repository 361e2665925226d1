package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThomaseR24/signature-pad-canvas/model"
	"github.com/ThomaseR24/signature-pad-canvas/pkg/logger"
)

// Verifier answers whether a contract's document changed since it was signed.
// It never turns a failed fetch into a verdict: errors come back as errors.
type Verifier struct {
	hasher *Hasher
}

func NewVerifier(hasher *Hasher) *Verifier {
	return &Verifier{hasher: hasher}
}

// compare builds a verdict from a stored and a current fingerprint.
func compare(stored, current string) model.Verification {
	v := model.Verification{
		StoredFingerprint:  stored,
		CurrentFingerprint: current,
		State:              model.VerificationMismatch,
	}
	if strings.EqualFold(stored, current) {
		v.State = model.VerificationValid
		v.IsValid = true
	}
	return v
}

func notSigned() model.Verification {
	return model.Verification{State: model.VerificationNotSigned}
}

// Verify checks the document against the contract fingerprint.
func (v *Verifier) Verify(ctx context.Context, c *model.Contract) (*model.Verification, error) {
	if c.Fingerprint == "" {
		res := notSigned()
		return &res, nil
	}
	current, err := v.hasher.FingerprintBlob(ctx, c.Document.Handle)
	if err != nil {
		return nil, err
	}
	res := compare(c.Fingerprint, current)
	v.logMismatch(ctx, c, -1, &res)
	return &res, nil
}

// VerifyParty checks the document against the fingerprint stored on one
// party's signature.
func (v *Verifier) VerifyParty(ctx context.Context, c *model.Contract, partyIndex int) (*model.Verification, error) {
	if !model.ValidPartyIndex(partyIndex) {
		return nil, fmt.Errorf("%w: party index %d out of range", ErrValidation, partyIndex)
	}
	sig := c.Parties[partyIndex].Signature
	if sig == nil || sig.Fingerprint == "" {
		res := notSigned()
		return &res, nil
	}
	current, err := v.hasher.FingerprintBlob(ctx, c.Document.Handle)
	if err != nil {
		return nil, err
	}
	res := compare(sig.Fingerprint, current)
	v.logMismatch(ctx, c, partyIndex, &res)
	return &res, nil
}

// Report verifies the contract and both signatures with a single fetch.
func (v *Verifier) Report(ctx context.Context, c *model.Contract) (*model.IntegrityReport, error) {
	report := &model.IntegrityReport{
		ContractID: c.ID,
		Document:   notSigned(),
		Parties:    [2]model.Verification{notSigned(), notSigned()},
	}
	if c.Fingerprint == "" && c.Parties[0].Signature == nil && c.Parties[1].Signature == nil {
		return report, nil
	}

	current, err := v.hasher.FingerprintBlob(ctx, c.Document.Handle)
	if err != nil {
		return nil, err
	}
	if c.Fingerprint != "" {
		report.Document = compare(c.Fingerprint, current)
		v.logMismatch(ctx, c, -1, &report.Document)
	}
	for i, p := range c.Parties {
		if p.Signature != nil && p.Signature.Fingerprint != "" {
			report.Parties[i] = compare(p.Signature.Fingerprint, current)
			v.logMismatch(ctx, c, i, &report.Parties[i])
		}
	}
	return report, nil
}

func (v *Verifier) logMismatch(ctx context.Context, c *model.Contract, party int, res *model.Verification) {
	if res.State != model.VerificationMismatch {
		return
	}
	logger.Warn(logger.WithContract(ctx, c.ID), "document may have been altered since signing",
		"party", party,
		"stored", res.StoredFingerprint,
		"current", res.CurrentFingerprint,
	)
}
