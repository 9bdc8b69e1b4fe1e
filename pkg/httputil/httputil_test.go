package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("X-Method", r.Method)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(append([]byte(r.Header.Get("X-Test")+":"), body...))
		},
	))
	defer server.Close()

	client := NewClient(time.Second)
	status, body, err := client.NewHTTPRequest(
		context.Background(), http.MethodPost, server.URL, "payload",
		map[string]string{"X-Test": "header"},
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "header:payload", body)

	status, body, err = NewHTTPRequest(
		context.Background(), http.MethodGet, server.URL, "ignored", nil,
	)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, ":", body)

	_, _, err = client.NewHTTPRequest(context.Background(), "LIST", server.URL, "", nil)
	assert.Error(t, err)
}

func TestNewHTTPRequestCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		},
	))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := NewClient(time.Minute).NewHTTPRequest(
		ctx, http.MethodGet, server.URL, "", nil,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
