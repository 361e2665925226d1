package model

import (
	"fmt"
	"strings"
	"time"
)

// Contract represents an NDA with its uploaded document and both parties
type Contract struct {
	ID         string      `json:"contract_id"`
	Type       string      `json:"type"`
	Title      string      `json:"title"`
	ValidFrom  time.Time   `json:"valid_from"`
	ValidUntil time.Time   `json:"valid_until"`
	Parties    [2]Party    `json:"parties"`
	Document   DocumentRef `json:"document"`

	// Fingerprint is set by the first signer; empty until then.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Version is maintained by the record store for compare-and-swap writes.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentRef points at the immutable PDF blob
type DocumentRef struct {
	Handle      string `json:"handle"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Party struct {
	Role           string         `json:"role"`
	Name           string         `json:"name"`
	Representative Representative `json:"representative"`
	Address        Address        `json:"address"`
	Signature      *Signature     `json:"signature,omitempty"`
}

type Representative struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Email    string `json:"email"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Signature is the evidence that one party signed
type Signature struct {
	Fingerprint string    `json:"fingerprint"`
	Image       string    `json:"image"`
	SignedAt    time.Time `json:"signed_at"`
	SignerName  string    `json:"signer_name"`
}

const ContractTypeNDA = "NDA"

// Party indices and roles
const (
	PartyInitiator = 0
	PartyPartner   = 1

	RoleDisclosing = "disclosing_party"
	RoleReceiving  = "receiving_party"
)

// Contract status values, derived from the signatures
const (
	StatusPending = "pending"
	StatusSigned  = "signed"
	StatusExpired = "expired"
)

// Status derives the contract state at the given time.
func (c *Contract) Status(now time.Time) string {
	if c.FullySigned() {
		return StatusSigned
	}
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return StatusExpired
	}
	return StatusPending
}

// FullySigned reports whether both parties have a signature sub-record.
func (c *Contract) FullySigned() bool {
	return c.Parties[PartyInitiator].Signature != nil && c.Parties[PartyPartner].Signature != nil
}

// Clone returns a deep copy of the contract
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	cp := *c
	for i := range cp.Parties {
		if sig := c.Parties[i].Signature; sig != nil {
			s := *sig
			cp.Parties[i].Signature = &s
		}
	}
	return &cp
}

// ValidPartyIndex reports whether idx addresses one of the two parties.
func ValidPartyIndex(idx int) bool {
	return idx == PartyInitiator || idx == PartyPartner
}

// ParseParty maps a party designator to its index. Accepts "initiator",
// "partner", the role names and the numeric indices.
func ParseParty(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "initiator", RoleDisclosing, "0":
		return PartyInitiator, nil
	case "partner", RoleReceiving, "1":
		return PartyPartner, nil
	}
	return -1, fmt.Errorf("unknown party %q", s)
}
