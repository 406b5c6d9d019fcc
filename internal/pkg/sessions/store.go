package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/status"
)

// Store keeps verification sessions in a KV REST service (Upstash format)
type Store struct {
	httpclient *http.Client
	url        string
	token      string
	timeout    time.Duration
	backoff    func() backoff.BackOff
	nowF       func() time.Time
	newIDF     func() string
}

// NewStore creates a session store client
func NewStore(url, token string) (*Store, error) {
	res := Store{}
	if url == "" {
		return nil, fmt.Errorf("no store URL")
	}
	if token == "" {
		return nil, fmt.Errorf("no store token")
	}
	res.url = strings.TrimSuffix(url, "/")
	res.token = token
	res.timeout = time.Second * 10
	res.httpclient = kvHTTPClient()
	res.backoff = newSimpleBackoff
	res.nowF = func() time.Time { return time.Now().UTC() }
	res.newIDF = func() string { return uuid.New().String() }
	return &res, nil
}

func key(id string) string {
	return "session:" + id
}

// Create makes a new session record and stores it, returns new session ID
func (ss *Store) Create(ctx context.Context, verificationID string, initial *persistence.InitialData) (string, error) {
	id := ss.newIDF()
	now := ss.nowF()
	session := &persistence.Session{
		ID:             id,
		VerificationID: verificationID,
		Status:         status.Processing.String(),
		Stage:          string(status.Queued),
		Progress:       0,
		InitialData:    initial,
		Created:        now,
		Updated:        now,
	}
	if err := ss.set(ctx, session); err != nil {
		return "", fmt.Errorf("can't create session: %w", err)
	}
	goapp.Log.Info().Str("ID", id).Msg("created session")
	return id, nil
}

// Get loads a session record, returns nil if not found
func (ss *Store) Get(ctx context.Context, id string) (*persistence.Session, error) {
	return goapp.InvokeWithBackoff(ctx, func() (*persistence.Session, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, ss.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/get/%s", ss.url, key(id)), nil)
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Authorization", "Bearer "+ss.token)
		resp, err := ss.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if resp.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		var kvResp struct {
			Result string `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&kvResp); err != nil {
			return nil, false, fmt.Errorf("can't unmarshal: %w", err)
		}
		if kvResp.Result == "" {
			return nil, false, nil
		}
		res := &persistence.Session{}
		if err := json.Unmarshal([]byte(kvResp.Result), res); err != nil {
			return nil, false, fmt.Errorf("can't unmarshal session: %w", err)
		}
		return res, false, nil
	}, ss.backoff())
}

// UpdateStage sets current stage and progress of a running session
func (ss *Store) UpdateStage(ctx context.Context, id string, stage status.Stage, progress float64) error {
	return ss.update(ctx, id, func(s *persistence.Session) {
		s.Stage = string(stage)
		s.Progress = progress
	})
}

// MarkCompleted finalizes a session with verification results
func (ss *Store) MarkCompleted(ctx context.Context, id string, results *api.Result) error {
	return ss.update(ctx, id, func(s *persistence.Session) {
		s.Status = status.Completed.String()
		s.Stage = string(status.Done)
		s.Progress = 1
		s.Results = results
		s.Error = nil
	})
}

// MarkFailed finalizes a session with errors
func (ss *Store) MarkFailed(ctx context.Context, id string, errData *persistence.ErrorData) error {
	st := status.Failed
	if errData.Cancelled {
		st = status.Cancelled
	}
	errors := errData.Errors
	if len(errors) == 0 {
		errors = []string{errData.StageFailed}
	}
	return ss.update(ctx, id, func(s *persistence.Session) {
		s.Status = st.String()
		s.Stage = string(status.Broken)
		s.Progress = 0
		s.Results = nil
		s.Error = errors
	})
}

// Delete drops the session record
func (ss *Store) Delete(ctx context.Context, id string) error {
	_, err := goapp.InvokeWithBackoff(ctx, func() (interface{}, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, ss.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/del/%s", ss.url, key(id)), nil)
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Authorization", "Bearer "+ss.token)
		resp, err := ss.httpclient.Do(req)
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
		return nil, false, nil
	}, ss.backoff())
	return err
}

func (ss *Store) update(ctx context.Context, id string, apply func(s *persistence.Session)) error {
	session, err := ss.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("can't load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %s not found", id)
	}
	apply(session)
	session.Updated = ss.nowF()
	if err := ss.set(ctx, session); err != nil {
		return fmt.Errorf("can't save session: %w", err)
	}
	goapp.Log.Debug().Str("ID", id).Str("stage", session.Stage).Float64("progress", session.Progress).Msg("updated session")
	return nil
}

type setRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (ss *Store) set(ctx context.Context, session *persistence.Session) error {
	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("can't marshal session: %w", err)
	}
	body, err := json.Marshal(setRequest{Key: key(session.ID), Value: string(value)})
	if err != nil {
		return fmt.Errorf("can't marshal request: %w", err)
	}
	_, err = goapp.InvokeWithBackoff(ctx, func() (interface{}, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, ss.timeout)
		defer cancelF()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ss.url+"/set", bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Authorization", "Bearer "+ss.token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := ss.httpclient.Do(req)
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
		return nil, false, nil
	}, ss.backoff())
	return err
}

func kvHTTPClient() *http.Client {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return &http.Client{Transport: res}
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
