package copyright

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
)

// Candidate is one fingerprint match returned by the matching service,
// before thresholding
type Candidate struct {
	Confidence  float64
	RecordingID string
	Title       string
	Artist      string
}

// LookupClient queries an AcoustID compatible fingerprint matching service
type LookupClient struct {
	httpclient *http.Client
	lookupURL  string
	apiKey     string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewLookupClient creates a matching service client
func NewLookupClient(lookupURL, apiKey string) (*LookupClient, error) {
	res := LookupClient{}
	if lookupURL == "" {
		return nil, fmt.Errorf("no lookupURL")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no api key")
	}
	res.lookupURL = lookupURL
	res.apiKey = apiKey
	res.timeout = time.Second * 30
	res.httpclient = &http.Client{Transport: newTransport()}
	res.backoff = newSimpleBackoff
	return &res, nil
}

type lookupResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Score      float64 `json:"score"`
		Recordings []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"recordings"`
	} `json:"results"`
}

// Lookup queries the service, returns candidates in service order
func (cl *LookupClient) Lookup(ctx context.Context, fingerprint string, duration float64) ([]Candidate, error) {
	form := url.Values{}
	form.Set("client", cl.apiKey)
	form.Set("fingerprint", fingerprint)
	form.Set("duration", strconv.Itoa(int(duration)))
	form.Set("meta", "recordings")
	body := form.Encode()

	return goapp.InvokeWithBackoff(ctx, func() ([]Candidate, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, cl.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.lookupURL, strings.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
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
		var respData lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return nil, false, fmt.Errorf("can't unmarshal: %w", err)
		}
		if respData.Status != "ok" {
			return nil, false, fmt.Errorf("service status '%s'", respData.Status)
		}
		return mapCandidates(&respData), false, nil
	}, cl.backoff())
}

func mapCandidates(resp *lookupResponse) []Candidate {
	res := []Candidate{}
	for _, r := range resp.Results {
		for _, rec := range r.Recordings {
			c := Candidate{Confidence: r.Score, RecordingID: rec.ID, Title: rec.Title}
			if len(rec.Artists) > 0 {
				c.Artist = rec.Artists[0].Name
			}
			res = append(res, c)
		}
	}
	return res
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
