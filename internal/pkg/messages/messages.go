package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"
)

const (
	st = "CLIPCHECK/"
	// Work queue name
	Work = st + "Work"
	// StatusChange queue name
	StatusChange = st + "StatusChange"
	// Inform queue name
	Inform = st + "Inform"

	// JobVerify is the verification job type within the Work queue
	JobVerify = "wrk-verify"
	// JobFail is the exhausted verification job type within the Work queue
	JobFail = "wrk-fail"
)

// VerifyMessage is the main message passing through the clipcheck system,
// ID is the verification session ID
type VerifyMessage struct {
	amessages.QueueMessage
}

// NewMessageFrom creates a copy of a message
func NewMessageFrom(m *VerifyMessage) *VerifyMessage {
	return &VerifyMessage{QueueMessage: m.QueueMessage}
}

// FailureMessage notifies about a verification job that exhausted its retries
type FailureMessage struct {
	amessages.QueueMessage
	Error string `json:"error,omitempty"`
}
