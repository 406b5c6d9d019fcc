package statusservice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vgarvardt/gue/v5"

	amessages "github.com/airenas/async-api/pkg/messages"

	"github.com/airenas/clipcheck/internal/pkg/messages"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/test"
	"github.com/airenas/clipcheck/internal/pkg/test/mocks"
)

var hData *HandlerData

func initHandlerTest(t *testing.T) {
	t.Helper()
	wsHandlerMock = &mockWSConnHandler{}
	sessionsMock = &mocks.SessionStore{}
	hData = &HandlerData{Sessions: sessionsMock, WSHandler: wsHandlerMock}
	sessionsMock.On("Get", mock.Anything, mock.Anything).Return(&persistence.Session{ID: "1",
		Status: "processing", Stage: "quality", Progress: 0.15}, nil)
}

func Test_handleStatus(t *testing.T) {
	initHandlerTest(t)
	connMock := &mockWSConn{}
	connMock.On("WriteJSON", mock.Anything).Return(nil)
	wsHandlerMock.On("GetConnections", "1").Return([]WsConn{connMock}, true)

	err := handleStatus(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "1"}}, hData)

	assert.Nil(t, err)
	connMock.AssertNumberOfCalls(t, "WriteJSON", 1)
	assert.Equal(t, &result{ID: "1", Status: "processing", Stage: "quality", Progress: 0.15},
		connMock.Calls[0].Arguments[0])
}

func Test_handleStatus_SeveralConns(t *testing.T) {
	initHandlerTest(t)
	connMock, connMock2 := &mockWSConn{}, &mockWSConn{}
	connMock.On("WriteJSON", mock.Anything).Return(fmt.Errorf("olia"))
	connMock2.On("WriteJSON", mock.Anything).Return(nil)
	wsHandlerMock.On("GetConnections", "1").Return([]WsConn{connMock, connMock2}, true)

	err := handleStatus(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "1"}}, hData)

	assert.Nil(t, err)
	connMock2.AssertNumberOfCalls(t, "WriteJSON", 1)
}

func Test_handleStatus_NoConn(t *testing.T) {
	initHandlerTest(t)
	wsHandlerMock.On("GetConnections", "1").Return(nil, false)

	err := handleStatus(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "1"}}, hData)

	assert.Nil(t, err)
	sessionsMock.AssertNumberOfCalls(t, "Get", 0)
}

func Test_handleStatus_NoSession(t *testing.T) {
	initHandlerTest(t)
	sessionsMock.ExpectedCalls = nil
	sessionsMock.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	wsHandlerMock.On("GetConnections", "1").Return([]WsConn{&mockWSConn{}}, true)

	err := handleStatus(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "1"}}, hData)

	assert.NotNil(t, err)
}

func Test_handleStatus_GetFails(t *testing.T) {
	initHandlerTest(t)
	sessionsMock.ExpectedCalls = nil
	sessionsMock.On("Get", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("olia"))
	wsHandlerMock.On("GetConnections", "1").Return([]WsConn{&mockWSConn{}}, true)

	err := handleStatus(test.Ctx(t), &messages.VerifyMessage{QueueMessage: amessages.QueueMessage{ID: "1"}}, hData)

	assert.NotNil(t, err)
}

func Test_validateHandler(t *testing.T) {
	initHandlerTest(t)
	tests := []struct {
		name    string
		data    *HandlerData
		wantErr bool
	}{
		{name: "OK", data: &HandlerData{GueClient: &gue.Client{}, WorkerCount: 1,
			Sessions: sessionsMock, WSHandler: wsHandlerMock}, wantErr: false},
		{name: "Fail gue", data: &HandlerData{WorkerCount: 1, Sessions: sessionsMock,
			WSHandler: wsHandlerMock}, wantErr: true},
		{name: "Fail count", data: &HandlerData{GueClient: &gue.Client{}, Sessions: sessionsMock,
			WSHandler: wsHandlerMock}, wantErr: true},
		{name: "Fail sessions", data: &HandlerData{GueClient: &gue.Client{}, WorkerCount: 1,
			WSHandler: wsHandlerMock}, wantErr: true},
		{name: "Fail handler", data: &HandlerData{GueClient: &gue.Client{}, WorkerCount: 1,
			Sessions: sessionsMock}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHandler(tt.data)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}
