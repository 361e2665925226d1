package model

// Verification states
const (
	// VerificationValid means the document matches the fingerprint taken at signing.
	VerificationValid = "valid"
	// VerificationMismatch means the document may have been altered.
	VerificationMismatch = "mismatch"
	// VerificationNotSigned means nothing has been signed yet, so there is nothing to compare.
	VerificationNotSigned = "not_signed"
)

// Verification is the outcome of comparing a stored fingerprint with the current document
type Verification struct {
	StoredFingerprint  string `json:"stored_fingerprint,omitempty"`
	CurrentFingerprint string `json:"current_fingerprint,omitempty"`
	State              string `json:"state"`
	IsValid            bool   `json:"is_valid"`
}

// Applicable reports whether a verdict was produced.
func (v *Verification) Applicable() bool {
	return v.State != VerificationNotSigned
}

// IntegrityReport bundles the contract-level verdict with one verdict per party
type IntegrityReport struct {
	ContractID string          `json:"contract_id"`
	Document   Verification    `json:"document"`
	Parties    [2]Verification `json:"parties"`
}
