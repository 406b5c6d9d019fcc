package transcription

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client transcribes audio files using an OpenAI compatible ASR endpoint
type Client struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

// Options is a configuration for the transcription client
type Options struct {
	URL    string
	APIKey string
	Model  string
}

// NewClient creates a transcription client
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("no api key")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.URL != "" {
		cfg.BaseURL = opts.URL
	}
	res := Client{cli: openai.NewClientWithConfig(cfg)}
	res.model = opts.Model
	if res.model == "" {
		res.model = openai.Whisper1
	}
	res.timeout = time.Minute * 2
	return &res, nil
}

// Transcribe sends the audio file to the ASR service and returns plain text
func (cl *Client) Transcribe(ctx context.Context, path string) (string, error) {
	ctx, cancelF := context.WithTimeout(ctx, cl.timeout)
	defer cancelF()
	resp, err := cl.cli.CreateTranscription(ctx, openai.AudioRequest{Model: cl.model, FilePath: path})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
