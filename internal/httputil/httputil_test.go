package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	c := NewStubClient(
		StubResponse{Status: http.StatusOK, Body: []byte("frame")},
		StubResponse{Status: http.StatusServiceUnavailable},
		StubResponse{Err: errors.New("connection refused")},
	)
	ctx := context.Background()

	got, err := Fetch(ctx, c, "http://cam/snapshot", 0)
	require.NoError(t, err)
	assert.Equal(t, "frame", string(got))

	_, err = Fetch(ctx, c, "http://cam/snapshot", 0)
	assert.ErrorContains(t, err, "status 503")

	_, err = Fetch(ctx, c, "http://cam/snapshot", 0)
	assert.ErrorContains(t, err, "connection refused")
	_, err = Fetch(ctx, c, "http://cam/snapshot", 0)
	assert.ErrorContains(t, err, "connection refused", "last response repeats")
	assert.Equal(t, 4, c.Requests())
}

func TestFetchLimit(t *testing.T) {
	c := NewStubClient(StubResponse{Status: http.StatusOK, Body: []byte("0123456789")})
	_, err := Fetch(context.Background(), c, "http://cam/", 4)
	assert.ErrorContains(t, err, "exceeds 4 bytes")

	got, err := Fetch(context.Background(), c, "http://cam/", 10)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestFetchRealServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	got, err := Fetch(context.Background(), srv.Client(), srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestAllowMethods(t *testing.T) {
	rec := httptest.NewRecorder()
	ok := AllowMethods(rec, httptest.NewRequest(http.MethodGet, "/x", nil), http.MethodPost, http.MethodPut)
	assert.False(t, ok)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, PUT", rec.Header().Get("Allow"))
	assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	assert.True(t, AllowMethods(rec, httptest.NewRequest(http.MethodPost, "/x", nil), http.MethodPost))
}
