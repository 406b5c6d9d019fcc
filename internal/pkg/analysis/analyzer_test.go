package analysis

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/test"
)

func TestNewAnalyzer(t *testing.T) {
	_, err := NewAnalyzer(Options{Model: "m"})
	assert.NotNil(t, err)
	_, err = NewAnalyzer(Options{APIKey: "key"})
	assert.NotNil(t, err)
	a, err := NewAnalyzer(Options{APIKey: "key", Model: "gemini-flash"})
	require.Nil(t, err)
	assert.NotNil(t, a)
}

func TestAnalyze(t *testing.T) {
	var gotPrompt string
	srv := newChatServer(t, &gotPrompt, "```json\n"+
		`{"qualityScore": 0.85, "safetyPassed": true, "insights": ["Good quality"], "concerns": [], "recommendations": []}`+
		"\n```")
	defer srv.Close()
	a := newTestAnalyzer(t, srv)

	res := a.Analyze(test.Ctx(t), "Test transcript",
		&api.Metadata{Title: "Test Dataset", Description: "A test dataset"},
		&api.QualityResult{Passed: true, Duration: 10, SampleRate: 16000})
	assert.Equal(t, 0.85, res.QualityScore)
	assert.True(t, res.SafetyPassed)
	assert.Equal(t, []string{"Good quality"}, res.Insights)
	assert.Contains(t, gotPrompt, "Test Dataset")
	assert.Contains(t, gotPrompt, "A test dataset")
	assert.Contains(t, gotPrompt, "Test transcript")
	assert.Contains(t, gotPrompt, "qualityScore")
	assert.Contains(t, gotPrompt, "safetyPassed")
}

func TestAnalyze_SafeDefaultsOnBadResponse(t *testing.T) {
	srv := newChatServer(t, nil, "Invalid JSON response")
	defer srv.Close()
	a := newTestAnalyzer(t, srv)

	res := a.Analyze(test.Ctx(t), "Test transcript", &api.Metadata{Title: "Test"}, nil)
	assert.Equal(t, safeDefaults(), res)
}

func TestAnalyze_DegradesOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"API Error"}}`))
	}))
	defer srv.Close()
	a := newTestAnalyzer(t, srv)

	res := a.Analyze(test.Ctx(t), "Test transcript", &api.Metadata{Title: "Test"}, nil)
	assert.Equal(t, 0.5, res.QualityScore)
	assert.True(t, res.SafetyPassed)
	require.Equal(t, 1, len(res.Insights))
	assert.Contains(t, res.Insights[0], "analysis unavailable")
}

func TestBuildPrompt_TruncatesTranscript(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	prompt := buildPrompt(long, &api.Metadata{Title: "Test"}, nil)
	assert.Contains(t, prompt, "...")
	assert.Less(t, len(prompt), len(long))
}

func newChatServer(t *testing.T, prompt *string, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if prompt != nil {
			b, _ := io.ReadAll(r.Body)
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.Nil(t, json.Unmarshal(b, &req))
			require.Equal(t, 1, len(req.Messages))
			*prompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestAnalyzer(t *testing.T, srv *httptest.Server) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Options{URL: srv.URL, APIKey: "test-key", Model: "gemini-flash"})
	require.Nil(t, err)
	return a
}
