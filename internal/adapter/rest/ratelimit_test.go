package rest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

func TestRateLimiter_PerClient(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(60, 2, nil)
	l.clockNow = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))

	// separate bucket per client
	assert.True(t, l.allow("10.0.0.2"))

	// one token per second refills
	now = now.Add(time.Second)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("10.0.0.1"))
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(60, 1, nil)
	l.clockNow = func() time.Time { return now }

	l.allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.2")

	now = now.Add(4 * time.Minute)
	l.evictIdle()

	assert.NotContains(t, l.visitors, "10.0.0.1")
	assert.Contains(t, l.visitors, "10.0.0.2")
}

func TestClientID(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "Remote address", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "X-Real-IP ignored", headers: map[string]string{"X-Real-IP": "203.0.113.7"}, remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "X-Forwarded-For ignored", headers: map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "No port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientID(req))
		})
	}
}

func TestRouter_RateLimitKey(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantStatus []int
	}{
		{
			name:       "Spoofed headers share the peer's bucket",
			wantStatus: []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusTooManyRequests},
		},
		{
			name:       "Trusted proxy headers pick the bucket",
			trustProxy: true,
			wantStatus: []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(RouterConfig{
				RateLimiter:       NewRateLimiter(1, 1, nil),
				TrustProxyHeaders: tt.trustProxy,
			})
			f.issuer.On("IssueTicket", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidInput)

			for i, want := range tt.wantStatus {
				req := httptest.NewRequest(http.MethodPost, "/payments/verify", strings.NewReader(`{}`))
				req.RemoteAddr = "192.0.2.1:5555"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
				rec := httptest.NewRecorder()

				f.router.ServeHTTP(rec, req)
				assert.Equal(t, want, rec.Code, "request %d", i)
			}
		})
	}
}
