package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ThomaseR24/signature-pad-canvas/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"validation", fmt.Errorf("%w: signer name is required", service.ErrValidation), http.StatusBadRequest},
		{"already signed", fmt.Errorf("%w: disclosing_party", service.ErrAlreadySigned), http.StatusConflict},
		{"retrieval", fmt.Errorf("%w: timeout", service.ErrRetrieval), http.StatusBadGateway},
		{"retries exhausted", fmt.Errorf("%w: gave up: %w", service.ErrStorage, service.ErrVersionConflict), http.StatusConflict},
		{"store full", fmt.Errorf("%w: %w", service.ErrStorage, service.ErrStoreFull), http.StatusInsufficientStorage},
		{"storage", fmt.Errorf("%w: disk full", service.ErrStorage), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
