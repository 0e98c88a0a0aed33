package license

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/rcourtman/pulse-compliance/internal/errors"
	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

func newRemote(t *testing.T, url string, key string) *RemoteVerifier {
	t.Helper()
	v, err := NewRemoteVerifier(url, StaticKey(key), "instance-a", time.Second,
		WithHTTPTransport(http.DefaultTransport),
		WithRetry(2, time.Millisecond),
	)
	require.NoError(t, err)
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestRemoteVerifier_SendsKeyAndInstance(t *testing.T) {
	var got verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, verifyResponse{Status: "valid", SiteActivated: true})
	}))
	defer srv.Close()

	res, err := newRemote(t, srv.URL, "key-123").Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, compliance.VerifierResult{Status: compliance.StatusValid, SiteActivated: true}, res)
	assert.Equal(t, verifyRequest{LicenseKey: "key-123", InstanceID: "instance-a"}, got)
}

func TestRemoteVerifier_Statuses(t *testing.T) {
	for _, status := range []string{"invalid", "pending", "expired", "EXPIRED"} {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, verifyResponse{Status: status})
			}))
			defer srv.Close()

			res, err := newRemote(t, srv.URL, "key").Check(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Status.Known())
			assert.False(t, res.SiteActivated)
		})
	}
}

func TestRemoteVerifier_UnrecognisedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, verifyResponse{Status: "suspended"})
	}))
	defer srv.Close()

	res, err := newRemote(t, srv.URL, "key").Check(context.Background())
	assert.ErrorIs(t, err, perrors.ErrInvalidResponse)
	assert.Equal(t, compliance.UnknownResult, res)
}

func TestRemoteVerifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, verifyResponse{Status: "valid", SiteActivated: true})
	}))
	defer srv.Close()

	res, err := newRemote(t, srv.URL, "key").Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusValid, res.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteVerifier_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	res, err := newRemote(t, srv.URL, "key").Check(context.Background())
	require.Error(t, err)
	assert.True(t, perrors.IsAuthError(err))
	assert.Equal(t, compliance.UnknownResult, res)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res, err := newRemote(t, url, "key").Check(context.Background())
	assert.ErrorIs(t, err, perrors.ErrConnectionFailed)
	assert.Equal(t, compliance.UnknownResult, res)
}

func TestRemoteVerifier_EmptyKeySkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()

	res, err := newRemote(t, srv.URL, "").Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, compliance.StatusInvalid, res.Status)
	assert.Zero(t, calls.Load())
}

func TestNewRemoteVerifier_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "https://"} {
		_, err := NewRemoteVerifier(raw, StaticKey("k"), "", 0)
		assert.Error(t, err, raw)
	}
}
