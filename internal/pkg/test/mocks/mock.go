package mocks

import (
	"context"
	"io"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/stretchr/testify/mock"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/status"
)

// SessionStore is sessions KV store mock
type SessionStore struct{ mock.Mock }

func (m *SessionStore) Create(ctx context.Context, verificationID string, initial *persistence.InitialData) (string, error) {
	args := m.Called(ctx, verificationID, initial)
	return args.String(0), args.Error(1)
}

func (m *SessionStore) Get(ctx context.Context, id string) (*persistence.Session, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Session](args.Get(0)), args.Error(1)
}

func (m *SessionStore) UpdateStage(ctx context.Context, id string, stage status.Stage, progress float64) error {
	args := m.Called(ctx, id, stage, progress)
	return args.Error(0)
}

func (m *SessionStore) MarkCompleted(ctx context.Context, id string, results *api.Result) error {
	args := m.Called(ctx, id, results)
	return args.Error(0)
}

func (m *SessionStore) MarkFailed(ctx context.Context, id string, errData *persistence.ErrorData) error {
	args := m.Called(ctx, id, errData)
	return args.Error(0)
}

func (m *SessionStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Filer is minio mock
type Filer struct{ mock.Mock }

func (m *Filer) SaveFile(ctx context.Context, name string, r io.Reader, size int64) error {
	args := m.Called(ctx, name, r, size)
	return args.Error(0)
}

func (m *Filer) LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error) {
	args := m.Called(ctx, fileName)
	return to[io.ReadSeekCloser](args.Get(0)), args.Error(1)
}

func (m *Filer) Clean(ctx context.Context, ID string) error {
	args := m.Called(ctx, ID)
	return args.Error(0)
}

func (m *Filer) ExpiredIDs(ctx context.Context, expire time.Duration) ([]string, error) {
	args := m.Called(ctx, expire)
	return to[[]string](args.Get(0)), args.Error(1)
}

// QualityChecker is quality service client mock
type QualityChecker struct{ mock.Mock }

func (m *QualityChecker) CheckFile(ctx context.Context, path string) (*api.QualityCheck, error) {
	args := m.Called(ctx, path)
	return to[*api.QualityCheck](args.Get(0)), args.Error(1)
}

// CopyrightChecker is copyright detector mock
type CopyrightChecker struct{ mock.Mock }

func (m *CopyrightChecker) CheckFile(ctx context.Context, path string) *api.CopyrightResult {
	args := m.Called(ctx, path)
	return to[*api.CopyrightResult](args.Get(0))
}

// Transcriber is ASR client mock
type Transcriber struct{ mock.Mock }

func (m *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// Analyzer is LLM analyzer mock
type Analyzer struct{ mock.Mock }

func (m *Analyzer) Analyze(ctx context.Context, transcript string, meta *api.Metadata, quality *api.QualityResult) *api.AnalysisResult {
	args := m.Called(ctx, transcript, meta, quality)
	return to[*api.AnalysisResult](args.Get(0))
}

// Sender is queue msg sender mock
type Sender struct{ mock.Mock }

func (m *Sender) SendMessage(ctx context.Context, msg amessages.Message, queue, jobType string) error {
	args := m.Called(ctx, msg, queue, jobType)
	return args.Error(0)
}

// Runner is verification pipeline mock
type Runner struct{ mock.Mock }

func (m *Runner) Run(ctx context.Context, sessionID, audioPath string, meta *api.Metadata) error {
	args := m.Called(ctx, sessionID, audioPath, meta)
	return args.Error(0)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
