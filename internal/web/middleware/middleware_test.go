package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/memberimport/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.SecurityConfig
		key      string
		wantCode int
		wantBody string
	}{
		{
			name:     "disabled lets everything through",
			cfg:      config.SecurityConfig{RequireAPIKey: false},
			wantCode: http.StatusOK,
		},
		{
			name:     "missing key",
			cfg:      config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}},
			wantCode: http.StatusUnauthorized,
			wantBody: "AUTH_MISSING_KEY",
		},
		{
			name:     "wrong key",
			cfg:      config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}},
			key:      "guess",
			wantCode: http.StatusForbidden,
			wantBody: "AUTH_INVALID_KEY",
		},
		{
			name:     "prefix of a valid key",
			cfg:      config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}},
			key:      "sec",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "second configured key",
			cfg:      config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"one", "two"}},
			key:      "two",
			wantCode: http.StatusOK,
		},
		{
			name:     "required with no keys rejects",
			cfg:      config.SecurityConfig{RequireAPIKey: true},
			key:      "anything",
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/imports/template", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(tt.cfg)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "untrusted peer keeps its own address",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.7:5555",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "203.0.113.7",
		},
		{
			name:       "trusted proxy with X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9", "X-Forwarded-For": "1.2.3.4"},
			want:       "198.51.100.9",
		},
		{
			name:       "trusted proxy with X-Forwarded-For chain",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.9, 10.9.9.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "single address entry",
			trusted:    []string{"192.0.2.1"},
			remoteAddr: "192.0.2.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "garbage forwarded value ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.1.2.3",
		},
		{
			name:       "ipv4 mapped ipv6 peer",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "[::ffff:10.1.2.3]:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "invalid CIDR is skipped",
			trusted:    []string{"bogus", "10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "no trusted proxies",
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("192.0.2.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("192.0.2.1"))
	assert.True(t, rl.Allow("192.0.2.2"), "other clients have their own bucket")

	now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("192.0.2.1"), "one token refills every 20s")
	assert.False(t, rl.Allow("192.0.2.1"))
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1)
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow("192.0.2.1"))
	require.True(t, rl.Allow("192.0.2.2"))
	assert.Len(t, rl.clients, 2)

	now = now.Add(5 * time.Minute)
	require.True(t, rl.Allow("192.0.2.3"))
	assert.Len(t, rl.clients, 1)
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Handler(okHandler)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func TestNewRateLimiter_NonPositive(t *testing.T) {
	rl := NewRateLimiter(0)
	assert.Equal(t, 1, rl.burst)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/imports", nil)
	req.Header.Set("User-Agent", "importctl/1.0")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, `"msg":"request"`)
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, `"path":"/api/imports"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"user_agent":"importctl/1.0"`)
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	_, _ = ww.Write([]byte("x"))
	ww.WriteHeader(http.StatusInternalServerError)
	ww.Flush()

	assert.Equal(t, http.StatusOK, ww.status)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, ww.Unwrap())
}
