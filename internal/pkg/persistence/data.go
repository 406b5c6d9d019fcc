package persistence

import (
	"time"

	"github.com/airenas/clipcheck/internal/pkg/api"
)

type (

	// InitialData keeps caller supplied info, immutable after session creation
	InitialData struct {
		BlobName    string `json:"blob_name,omitempty"`
		SizeBytes   int64  `json:"size_bytes,omitempty"`
		FileFormat  string `json:"file_format,omitempty"`
		Title       string `json:"title,omitempty"`
		Description string `json:"description,omitempty"`
		Email       string `json:"email,omitempty"`
	}

	// Session is a verification session record as stored in KV
	Session struct {
		ID             string       `json:"id"`
		VerificationID string       `json:"verification_id"`
		Status         string       `json:"status"`
		Stage          string       `json:"stage"`
		Progress       float64      `json:"progress"`
		InitialData    *InitialData `json:"initial_data,omitempty"`
		Results        *api.Result  `json:"results,omitempty"`
		Error          []string     `json:"error,omitempty"`
		Created        time.Time    `json:"created_at"`
		Updated        time.Time    `json:"updated_at"`
	}

	// ErrorData keeps terminal failure info passed to the session store
	ErrorData struct {
		Errors      []string
		StageFailed string
		Cancelled   bool
	}
)
