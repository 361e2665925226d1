package handler

import (
	"errors"
	"net/http"

	"github.com/ThomaseR24/signature-pad-canvas/middleware"
	"github.com/ThomaseR24/signature-pad-canvas/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Contract not found"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrAlreadySigned):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrRetrieval):
		return http.StatusBadGateway, "Document could not be retrieved; integrity cannot be confirmed"
	case errors.Is(err, service.ErrVersionConflict):
		return http.StatusConflict, "Contract is being modified concurrently, please retry"
	case errors.Is(err, service.ErrStoreFull):
		return http.StatusInsufficientStorage, "Contract store is full"
	case errors.Is(err, service.ErrStorage):
		return http.StatusInternalServerError, "Failed to save contract"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		// picked up by the access log
		c.Error(err)
	}
	c.JSON(status, gin.H{
		"error":      msg,
		"request_id": middleware.GetRequestID(c),
	})
}
