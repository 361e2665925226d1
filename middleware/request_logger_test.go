package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ThomaseR24/signature-pad-canvas/pkg/logger"
	"github.com/gin-gonic/gin"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(&logger.Config{Level: "info", Format: "text", Output: &buf})

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.GET("/contracts/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.GET("/error", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	})
	router.GET("/server-error", func(c *gin.Context) {
		c.Error(errors.New("storage down"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		contains       []string
	}{
		{"success request", "/contracts/NDA-1", http.StatusOK, []string{"level=INFO", "contract_id=NDA-1", "route=/contracts/:id"}},
		{"client error", "/error", http.StatusBadRequest, []string{"level=WARN"}},
		{"server error", "/server-error", http.StatusInternalServerError, []string{"level=ERROR", "storage down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			logOutput := buf.String()
			want := append([]string{"request completed", tt.path, "request_id=req_"}, tt.contains...)
			for _, s := range want {
				if !strings.Contains(logOutput, s) {
					t.Errorf("Expected %q in log %q", s, logOutput)
				}
			}
		})
	}
}

func TestRequestLoggerWithQuery(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(&logger.Config{Level: "info", Format: "text", Output: &buf})

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test?foo=bar&baz=qux", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), "query=") {
		t.Error("Expected query parameters in log")
	}
}
