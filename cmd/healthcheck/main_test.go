package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := map[string]string{
		"":               "127.0.0.1:8080",
		"garbage":        "127.0.0.1:8080",
		"0.0.0.0:9000":   "127.0.0.1:9000",
		":9000":          "127.0.0.1:9000",
		"[::]:9000":      "127.0.0.1:9000",
		"10.0.0.5:8080":  "10.0.0.5:8080",
		"localhost:8081": "localhost:8081",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeAddr(in), "input %q", in)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
	}{
		{name: "ok", status: http.StatusOK, body: `{"status":"ok"}`, want: 0},
		{name: "degraded", status: http.StatusOK, body: `{"status":"degraded"}`, want: 0},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: `{"status":"unavailable"}`, want: 1},
		{name: "unknown status", status: http.StatusOK, body: `{"status":"weird"}`, want: 1},
		{name: "not json", status: http.StatusOK, body: `hello`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			assert.Equal(t, tt.want, check(strings.TrimPrefix(srv.URL, "http://")))
		})
	}
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	assert.Equal(t, 1, check(addr))
}
