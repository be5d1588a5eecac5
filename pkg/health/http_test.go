package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestHTTPChecker tests status code mapping
func TestHTTPChecker(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		configure  func(*HTTPChecker) *HTTPChecker
		wantStatus Status
	}{
		{name: "ok", code: http.StatusOK, wantStatus: StatusHealthy},
		{name: "server error", code: http.StatusInternalServerError, wantStatus: StatusUnhealthy},
		{name: "unavailable is degraded", code: http.StatusServiceUnavailable, wantStatus: StatusDegraded},
		{
			name: "created outside custom range",
			code: http.StatusCreated,
			configure: func(c *HTTPChecker) *HTTPChecker {
				return c.WithStatusRange(200, 200)
			},
			wantStatus: StatusUnhealthy,
		},
		{
			name: "created inside custom range",
			code: http.StatusCreated,
			configure: func(c *HTTPChecker) *HTTPChecker {
				return c.WithStatusRange(200, 299)
			},
			wantStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			checker := NewHTTPChecker(server.URL)
			if tt.configure != nil {
				checker = tt.configure(checker)
			}

			result := checker.Check(context.Background())
			assert.Equal(t, tt.wantStatus, result.Status, result.Message)
			assert.False(t, result.CheckedAt.IsZero())
		})
	}
}

// TestHTTPCheckerHeaders tests custom headers and method
func TestHTTPCheckerHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "joyride" || r.Method != http.MethodHead {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithHeader("X-Probe", "joyride").WithMethod(http.MethodHead)

	result := checker.Check(context.Background())
	assert.True(t, result.Healthy(), result.Message)
}

// TestHTTPCheckerTimeout tests client timeout and cancelled contexts
func TestHTTPCheckerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result = NewHTTPChecker(server.URL).Check(ctx)
	assert.Equal(t, StatusUnhealthy, result.Status)

	assert.Equal(t, CheckTypeHTTP, NewHTTPChecker(server.URL).Type())
}
