package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	openai "github.com/sashabaranov/go-openai"

	"github.com/airenas/clipcheck/internal/pkg/api"
)

const maxTranscriptLen = 2000

// Analyzer assesses a transcript with an LLM.
// It never fails the caller, a broken response degrades to safe defaults
type Analyzer struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

// Options is a configuration for the analyzer
type Options struct {
	URL    string
	APIKey string
	Model  string
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(opts Options) (*Analyzer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("no api key")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("no model")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.URL != "" {
		cfg.BaseURL = opts.URL
	}
	return &Analyzer{cli: openai.NewClientWithConfig(cfg), model: opts.Model, timeout: time.Minute}, nil
}

// Analyze sends the transcript for assessment and parses the structured reply
func (a *Analyzer) Analyze(ctx context.Context, transcript string, meta *api.Metadata, quality *api.QualityResult) *api.AnalysisResult {
	ctx, cancelF := context.WithTimeout(ctx, a.timeout)
	defer cancelF()
	resp, err := a.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(transcript, meta, quality)},
		},
	})
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("analysis degraded")
		res := safeDefaults()
		res.Insights = append(res.Insights, fmt.Sprintf("analysis unavailable: %v", err))
		return res
	}
	if len(resp.Choices) == 0 {
		goapp.Log.Warn().Msg("analysis returned no choices")
		return safeDefaults()
	}
	res, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("can't parse analysis response")
		return safeDefaults()
	}
	return res
}

func buildPrompt(transcript string, meta *api.Metadata, quality *api.QualityResult) string {
	sb := strings.Builder{}
	sb.WriteString("Assess the following audio clip submission.\n\n")
	if meta != nil {
		if meta.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", meta.Title)
		}
		if meta.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", meta.Description)
		}
	}
	if quality != nil {
		fmt.Fprintf(&sb, "Measured duration: %.1fs, sample rate: %d Hz\n", quality.Duration, quality.SampleRate)
	}
	fmt.Fprintf(&sb, "\nTranscript:\n%s\n", truncate(transcript, maxTranscriptLen))
	sb.WriteString("\nRespond with JSON only, using exactly these keys: " +
		`{"qualityScore": <0.0-1.0>, "safetyPassed": <bool>, "insights": [<string>], ` +
		`"concerns": [<string>], "recommendations": [<string>]}`)
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func safeDefaults() *api.AnalysisResult {
	return &api.AnalysisResult{QualityScore: 0.5, SafetyPassed: true,
		Insights: []string{}, Concerns: []string{}, Recommendations: []string{}}
}
