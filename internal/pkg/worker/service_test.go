package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/vgarvardt/gue/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/messages"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/pipeline"
	"github.com/airenas/clipcheck/internal/pkg/test"
	"github.com/airenas/clipcheck/internal/pkg/test/mocks"
)

var (
	senderMock   *mocks.Sender
	sessionsMock *mocks.SessionStore
	filerMock    *mocks.Filer
	runnerMock   *mocks.Runner
	srvData      *ServiceData
)

func initTest(t *testing.T) {
	t.Helper()
	senderMock = &mocks.Sender{}
	sessionsMock = &mocks.SessionStore{}
	filerMock = &mocks.Filer{}
	runnerMock = &mocks.Runner{}
	srvData = &ServiceData{WorkerCount: 1, MsgSender: senderMock, Sessions: sessionsMock,
		Filer: filerMock, Runner: runnerMock, Testing: true}
	senderMock.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func newTestSession() *persistence.Session {
	return &persistence.Session{ID: "id-1", Status: "processing", Stage: "queued",
		InitialData: &persistence.InitialData{BlobName: "input.wav", Title: "Test", Description: "Test dataset"}}
}

type testFile struct{ *strings.Reader }

func (testFile) Close() error { return nil }

func newTestFile(data string) io.ReadSeekCloser {
	return testFile{strings.NewReader(data)}
}

func TestHandleVerify(t *testing.T) {
	initTest(t)
	sessionsMock.On("Get", mock.Anything, "id-1").Return(newTestSession(), nil)
	filerMock.On("LoadFile", mock.Anything, "id-1/input.wav").Return(newTestFile("audio-data"), nil)
	var gotPath string
	runnerMock.On("Run", mock.Anything, "id-1", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		gotPath = args.String(2)
		b, err := os.ReadFile(gotPath)
		require.Nil(t, err)
		assert.Equal(t, "audio-data", string(b))
	}).Return(nil)

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	require.Nil(t, err)
	runnerMock.AssertCalled(t, "Run", mock.Anything, "id-1", mock.Anything,
		&api.Metadata{Title: "Test", Description: "Test dataset"})
	assertInformSent(t, amessages.InformTypeStarted)
	assertInformSent(t, amessages.InformTypeFinished)
	// staged file is gone after the handler returns
	_, err = os.Stat(gotPath)
	assert.True(t, os.IsNotExist(err))
}

func TestHandleVerify_SkipNoSession(t *testing.T) {
	initTest(t)
	sessionsMock.On("Get", mock.Anything, "id-1").Return(nil, nil)

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	require.Nil(t, err)
	runnerMock.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleVerify_SkipTerminal(t *testing.T) {
	initTest(t)
	sess := newTestSession()
	sess.Status = "completed"
	sessionsMock.On("Get", mock.Anything, "id-1").Return(sess, nil)

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	require.Nil(t, err)
	runnerMock.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleVerify_FailsOnSessionErr(t *testing.T) {
	initTest(t)
	sessionsMock.On("Get", mock.Anything, "id-1").Return(nil, fmt.Errorf("olia err"))

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	assert.NotNil(t, err)
}

func TestHandleVerify_FailsOnNoFile(t *testing.T) {
	initTest(t)
	sess := newTestSession()
	sess.InitialData.BlobName = ""
	sessionsMock.On("Get", mock.Anything, "id-1").Return(sess, nil)

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	assert.NotNil(t, err)
}

func TestHandleVerify_InformsFailureOnRejection(t *testing.T) {
	initTest(t)
	sessionsMock.On("Get", mock.Anything, "id-1").Return(newTestSession(), nil)
	filerMock.On("LoadFile", mock.Anything, mock.Anything).Return(newTestFile("audio-data"), nil)
	runnerMock.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(pipeline.ErrQualityRejected)

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	require.Nil(t, err)
	assertInformSent(t, amessages.InformTypeFailed)
}

func TestHandleVerify_RetriesOnPersistenceErr(t *testing.T) {
	initTest(t)
	sessionsMock.On("Get", mock.Anything, "id-1").Return(newTestSession(), nil)
	filerMock.On("LoadFile", mock.Anything, mock.Anything).Return(newTestFile("audio-data"), nil)
	runnerMock.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: kv down", pipeline.ErrPersistenceFailed))

	err := handleVerify(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	assert.ErrorIs(t, err, pipeline.ErrPersistenceFailed)
}

func TestHandleFailure(t *testing.T) {
	initTest(t)
	sess := newTestSession()
	sess.Stage = "transcription"
	sessionsMock.On("Get", mock.Anything, "id-1").Return(sess, nil)
	sessionsMock.On("MarkFailed", mock.Anything, "id-1", mock.Anything).Return(nil)

	err := handleFailure(test.Ctx(t), &messages.FailureMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"},
		Error: "olia err"}, srvData)
	require.Nil(t, err)
	sessionsMock.AssertCalled(t, "MarkFailed", mock.Anything, "id-1",
		&persistence.ErrorData{Errors: []string{"olia err"}, StageFailed: "transcription"})
}

func TestHandleFailure_SkipTerminal(t *testing.T) {
	initTest(t)
	sess := newTestSession()
	sess.Status = "failed"
	sessionsMock.On("Get", mock.Anything, "id-1").Return(sess, nil)

	err := handleFailure(test.Ctx(t), &messages.FailureMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	require.Nil(t, err)
	sessionsMock.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleFailure_SkipNoSession(t *testing.T) {
	initTest(t)
	sessionsMock.On("Get", mock.Anything, "id-1").Return(nil, nil)

	err := handleFailure(test.Ctx(t), &messages.FailureMessage{QueueMessage: amessages.QueueMessage{ID: "id-1"}}, srvData)
	require.Nil(t, err)
	sessionsMock.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(d *ServiceData)
		wantErr bool
	}{
		{name: "OK", prepare: func(d *ServiceData) {}, wantErr: false},
		{name: "No workers", prepare: func(d *ServiceData) { d.WorkerCount = 0 }, wantErr: true},
		{name: "No sender", prepare: func(d *ServiceData) { d.MsgSender = nil }, wantErr: true},
		{name: "No sessions", prepare: func(d *ServiceData) { d.Sessions = nil }, wantErr: true},
		{name: "No filer", prepare: func(d *ServiceData) { d.Filer = nil }, wantErr: true},
		{name: "No runner", prepare: func(d *ServiceData) { d.Runner = nil }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initTest(t)
			srvData.GueClient = &gue.Client{}
			tt.prepare(srvData)
			err := validate(srvData)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func assertInformSent(t *testing.T, informType string) {
	t.Helper()
	senderMock.AssertCalled(t, "SendMessage", mock.Anything,
		mock.MatchedBy(func(m *amessages.InformMessage) bool { return m.Type == informType }),
		messages.Inform, messages.Inform)
}
