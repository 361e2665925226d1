package service

import "errors"

var (
	// ErrNotFound is returned for an unknown contract id.
	ErrNotFound = errors.New("contract not found")
	// ErrValidation marks malformed input such as a bad party index or an empty name.
	ErrValidation = errors.New("validation failed")
	// ErrRetrieval marks a document blob that could not be read.
	ErrRetrieval = errors.New("document retrieval failed")
	// ErrStorage marks a failed record persistence.
	ErrStorage = errors.New("contract storage failed")
	// ErrVersionConflict is returned by RecordStore.Set when the stored
	// version no longer matches the one that was read.
	ErrVersionConflict = errors.New("contract version conflict")
	// ErrStoreFull is returned when a bounded store cannot take a new
	// contract without dropping a signed one.
	ErrStoreFull = errors.New("contract store is full")
	// ErrAlreadySigned is returned when a party signs a second time.
	ErrAlreadySigned = errors.New("party has already signed")
)
