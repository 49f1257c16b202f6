package doorbell

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAudioReceiveSendsBasicAuthAndReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bha-api/audio-receive.cgi", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "alice", user)
		require.Equal(t, "secret", pass)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ulaw-bytes")) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "secret")
	body, err := c.OpenAudioReceive(context.Background())
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "ulaw-bytes", string(data))
}

func TestOpenAudioReceiveNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "wrong")
	_, err := c.OpenAudioReceive(context.Background())
	require.Error(t, err)
}

func TestOpenAudioTransmitSendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bha-api/audio-transmit.cgi", r.URL.Path)
		require.Equal(t, "audio/basic", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "push-to-talk-audio", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "alice", "secret")
	err := c.OpenAudioTransmit(context.Background(), strings.NewReader("push-to-talk-audio"))
	require.NoError(t, err)
}
