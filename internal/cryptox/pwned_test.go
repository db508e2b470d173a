package cryptox

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha1Upper(s string) string {
	sum := sha1.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func newRangeServer(t *testing.T, body func(prefix string) string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("Add-Padding"))
		prefix := strings.TrimPrefix(r.URL.Path, "/range/")
		assert.Len(t, prefix, 5)
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body(prefix))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPwnedRangeChecker_Breached(t *testing.T) {
	digest := sha1Upper("password123")

	tests := []struct {
		name     string
		password string
		body     string
		want     bool
	}{
		{name: "listed with count", password: "password123", body: "0000000000000000000000000000000000A:3\r\n" + digest[5:] + ":2254650\r\n", want: true},
		{name: "lowercase suffix", password: "password123", body: strings.ToLower(digest[5:]) + ":7\n", want: true},
		{name: "padding entry", password: "password123", body: digest[5:] + ":0\n"},
		{name: "not listed", password: "password123", body: "0000000000000000000000000000000000A:3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRangeServer(t, func(prefix string) string {
				assert.Equal(t, digest[:5], prefix)
				return tt.body
			}, http.StatusOK)

			c := NewPwnedRangeChecker(srv.Client(), srv.URL+"/")
			got, err := c.Breached(context.Background(), tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPwnedRangeChecker_Errors(t *testing.T) {
	srv := newRangeServer(t, func(string) string { return "" }, http.StatusServiceUnavailable)
	c := NewPwnedRangeChecker(srv.Client(), srv.URL)
	_, err := c.Breached(context.Background(), "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Breached(ctx, "whatever")
	require.Error(t, err)
}

func TestNewPwnedRangeChecker_Defaults(t *testing.T) {
	c := NewPwnedRangeChecker(nil, "")
	assert.Equal(t, http.DefaultClient, c.client)
	assert.Equal(t, DefaultPwnedRangeURL, c.baseURL)
}
