package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	"github.com/airenas/clipcheck/internal/pkg/api"
)

// Client calls the audio quality checker service
type Client struct {
	httpclient *http.Client
	checkURL   string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates a quality checker client
func NewClient(checkURL string) (*Client, error) {
	res := Client{}
	if checkURL == "" {
		return nil, fmt.Errorf("no checkURL")
	}
	res.checkURL = checkURL
	res.timeout = time.Second * 50
	res.httpclient = &http.Client{Transport: newTransport()}
	res.backoff = newSimpleBackoff
	return &res, nil
}

// CheckFile sends the audio file and returns measured quality
func (cl *Client) CheckFile(ctx context.Context, path string) (*api.QualityCheck, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open audio: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(api.PrmFile, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("can't add file to request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("can't add file content to request: %w", err)
	}
	writer.Close()

	return goapp.InvokeWithBackoff(ctx, func() (*api.QualityCheck, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, cl.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.checkURL, bytes.NewReader(body.Bytes()))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		goapp.Log.Info().Str("url", req.URL.String()).Str("method", req.Method).Msg("call")
		resp, err := cl.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		res := &api.QualityCheck{}
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return nil, false, fmt.Errorf("can't unmarshal: %w", err)
		}
		return res, false, nil
	}, cl.backoff())
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
