package transcription

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airenas/clipcheck/internal/pkg/test"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient(Options{URL: "http://srv:8000"})
	assert.NotNil(t, err)
	cl, err := NewClient(Options{APIKey: "key"})
	require.Nil(t, err)
	assert.Equal(t, "whisper-1", cl.model)
	cl, err = NewClient(Options{APIKey: "key", Model: "whisper-large"})
	require.Nil(t, err)
	assert.Equal(t, "whisper-large", cl.model)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" olia transcript "}`))
	}))
	defer srv.Close()
	cl := newTestClient(t, srv)

	res, err := cl.Transcribe(test.Ctx(t), newTestAudio(t))
	require.Nil(t, err)
	assert.Equal(t, "olia transcript", res)
}

func TestTranscribe_Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()
	cl := newTestClient(t, srv)

	_, err := cl.Transcribe(test.Ctx(t), newTestAudio(t))
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "failed to transcribe")
}

func TestTranscribe_FailsOnNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	cl := newTestClient(t, srv)

	_, err := cl.Transcribe(test.Ctx(t), "/no/such/file.wav")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "failed to transcribe")
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cl, err := NewClient(Options{URL: srv.URL, APIKey: "test-key"})
	require.Nil(t, err)
	return cl
}

func newTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.Nil(t, os.WriteFile(path, []byte("audio-data"), 0644))
	return path
}
