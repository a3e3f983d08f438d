package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
)

// newTestProvider builds a Provider pointed at an httptest server, with
// zone discovery skipped via an explicit zone id.
func newTestProvider(t *testing.T, handler http.HandlerFunc, dryRun bool) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New(Config{APIToken: "test-token", ZoneID: "zone123", DryRun: dryRun})
	require.NoError(t, err)
	p.client.http = srv.Client()
	p.client.baseURL = srv.URL
	return p, srv
}

func TestNewRejectsEmptyToken(t *testing.T) {
	_, err := New(Config{APIToken: ""})
	require.Error(t, err)
	de, ok := ddnserr.As(err)
	require.True(t, ok)
	assert.Equal(t, ddnserr.KindConfig, de.Kind)
}

func TestTokenStringIsRedacted(t *testing.T) {
	tok := apiToken("super-secret-value")
	assert.Equal(t, redacted, tok.String())
	assert.NotContains(t, redacted, "super-secret-value")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestUpdateRecordCreatesWhenMissing(t *testing.T) {
	var sawCreate bool
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "dns_records"):
			writeJSON(w, 200, envelope[[]dnsRecord]{Success: true, Result: nil})
		case r.Method == http.MethodPost:
			sawCreate = true
			writeJSON(w, 200, envelope[dnsRecord]{Success: true, Result: dnsRecord{ID: "new-id", Content: "203.0.113.4"}})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}, false)

	result, err := p.UpdateRecord(context.Background(), domain.MustParse("example.com"), netip.MustParseAddr("203.0.113.4"))
	require.NoError(t, err)
	assert.True(t, sawCreate)
	assert.Equal(t, "new-id", result.ProviderMetadata()["record_id"])
}

func TestUpdateRecordUnchangedWhenSame(t *testing.T) {
	var sawWrite bool
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			writeJSON(w, 200, envelope[[]dnsRecord]{Success: true, Result: []dnsRecord{{ID: "id1", Content: "203.0.113.4"}}})
		default:
			sawWrite = true
			t.Fatalf("unexpected write %s %s", r.Method, r.URL.Path)
		}
	}, false)

	result, err := p.UpdateRecord(context.Background(), domain.MustParse("example.com"), netip.MustParseAddr("203.0.113.4"))
	require.NoError(t, err)
	assert.False(t, sawWrite)
	assert.Equal(t, netip.MustParseAddr("203.0.113.4"), result.CurrentIP())
}

func TestUpdateRecordAuthenticationError(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, envelope[[]dnsRecord]{Success: false})
	}, false)

	_, err := p.UpdateRecord(context.Background(), domain.MustParse("example.com"), netip.MustParseAddr("203.0.113.4"))
	require.Error(t, err)
	de, ok := ddnserr.As(err)
	require.True(t, ok)
	assert.Equal(t, ddnserr.KindAuthentication, de.Kind)
}

func TestUpdateRecordRateLimitedHonoursRetryAfter(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		t.Fatalf("unexpected %s", r.Method)
	}, false)

	_, err := p.UpdateRecord(context.Background(), domain.MustParse("example.com"), netip.MustParseAddr("203.0.113.4"))
	require.Error(t, err)
	de, ok := ddnserr.As(err)
	require.True(t, ok)
	assert.Equal(t, ddnserr.KindRateLimited, de.Kind)
	assert.Equal(t, 7*time.Second, de.RetryAfter)
}

func TestDryRunNeverIssuesWrite(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, 200, envelope[[]dnsRecord]{Success: true, Result: nil})
		default:
			t.Fatalf("dry-run must not issue %s", r.Method)
		}
	}, true)

	result, err := p.UpdateRecord(context.Background(), domain.MustParse("example.com"), netip.MustParseAddr("203.0.113.4"))
	require.NoError(t, err)
	assert.Equal(t, contracts.ResultUpdated, result.Kind())
	assert.False(t, result.HasPreviousIP())
	assert.Equal(t, netip.MustParseAddr("203.0.113.4"), result.NewIP())
}

