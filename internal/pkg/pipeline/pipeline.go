package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/status"
)

var (
	// ErrQualityRejected indicates the audio failed the quality gate
	ErrQualityRejected = errors.New("audio rejected by quality check")
	// ErrTranscriptionFailed indicates the ASR call failed
	ErrTranscriptionFailed = errors.New("failed to transcribe")
	// ErrPersistenceFailed indicates a session store update failed, the run aborts
	ErrPersistenceFailed = errors.New("can't update session")
)

const transcriptPreviewLen = 200

// SessionStore persists run progress and terminal outcome
type SessionStore interface {
	UpdateStage(ctx context.Context, id string, stage status.Stage, progress float64) error
	MarkCompleted(ctx context.Context, id string, results *api.Result) error
	MarkFailed(ctx context.Context, id string, errData *persistence.ErrorData) error
}

// QualityChecker validates audio properties
type QualityChecker interface {
	CheckFile(ctx context.Context, path string) (*api.QualityCheck, error)
}

// CopyrightChecker runs fingerprint based copyright detection
type CopyrightChecker interface {
	CheckFile(ctx context.Context, path string) *api.CopyrightResult
}

// Transcriber turns audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Analyzer assesses the transcript
type Analyzer interface {
	Analyze(ctx context.Context, transcript string, meta *api.Metadata, quality *api.QualityResult) *api.AnalysisResult
}

// Pipeline runs the verification stages for one session, strictly in order.
// Quality rejection stops the run, copyright and analysis degrade without stopping it
type Pipeline struct {
	sessions    SessionStore
	quality     QualityChecker
	copyright   CopyrightChecker
	transcriber Transcriber
	analyzer    Analyzer
}

// NewPipeline creates the verification pipeline
func NewPipeline(sessions SessionStore, quality QualityChecker, copyright CopyrightChecker,
	transcriber Transcriber, analyzer Analyzer) (*Pipeline, error) {
	if sessions == nil {
		return nil, fmt.Errorf("no session store")
	}
	if quality == nil {
		return nil, fmt.Errorf("no quality checker")
	}
	if copyright == nil {
		return nil, fmt.Errorf("no copyright checker")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("no transcriber")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("no analyzer")
	}
	return &Pipeline{sessions: sessions, quality: quality, copyright: copyright,
		transcriber: transcriber, analyzer: analyzer}, nil
}

// Run executes all stages for the session. The audio must already be staged at audioPath
func (p *Pipeline) Run(ctx context.Context, sessionID, audioPath string, meta *api.Metadata) error {
	goapp.Log.Info().Str("ID", sessionID).Msg("start verification")

	if err := p.reportStage(ctx, sessionID, status.Quality, status.Quality.StartProgress()); err != nil {
		return err
	}
	qCheck, err := p.quality.CheckFile(ctx, audioPath)
	if err != nil {
		return p.failRun(ctx, sessionID, status.Quality,
			[]string{fmt.Sprintf("quality check failed: %v", err)}, err)
	}
	if !qCheck.Quality.Passed {
		errs := qCheck.Errors
		if len(errs) == 0 {
			errs = []string{"audio quality check failed"}
		}
		return p.failRun(ctx, sessionID, status.Quality, errs, ErrQualityRejected)
	}
	if err := p.reportStage(ctx, sessionID, status.Quality, status.Quality.EndProgress()); err != nil {
		return err
	}

	if err := p.reportStage(ctx, sessionID, status.Copyright, status.Copyright.StartProgress()); err != nil {
		return err
	}
	cpRes := p.copyright.CheckFile(ctx, audioPath)
	if err := p.reportStage(ctx, sessionID, status.Copyright, status.Copyright.EndProgress()); err != nil {
		return err
	}

	if err := p.reportStage(ctx, sessionID, status.Transcription, status.Transcription.StartProgress()); err != nil {
		return err
	}
	transcript, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return p.failRun(ctx, sessionID, status.Transcription,
			[]string{fmt.Sprintf("failed to transcribe: %v", err)},
			fmt.Errorf("%w: %v", ErrTranscriptionFailed, err))
	}
	if err := p.reportStage(ctx, sessionID, status.Transcription, status.Transcription.EndProgress()); err != nil {
		return err
	}

	if err := p.reportStage(ctx, sessionID, status.Analysis, status.Analysis.StartProgress()); err != nil {
		return err
	}
	anRes := p.analyzer.Analyze(ctx, transcript, meta, &qCheck.Quality)
	if err := p.reportStage(ctx, sessionID, status.Analysis, status.Analysis.EndProgress()); err != nil {
		return err
	}

	results := &api.Result{
		Approved:          qCheck.Quality.Passed && !cpRes.Detected && anRes.SafetyPassed,
		Quality:           &qCheck.Quality,
		Copyright:         cpRes,
		Transcript:        transcript,
		TranscriptPreview: preview(transcript),
		Analysis:          anRes,
		SafetyPassed:      anRes.SafetyPassed,
	}
	if err := p.sessions.MarkCompleted(ctx, sessionID, results); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	goapp.Log.Info().Str("ID", sessionID).Bool("approved", results.Approved).Msg("verification done")
	return nil
}

func (p *Pipeline) reportStage(ctx context.Context, id string, stage status.Stage, progress float64) error {
	if err := p.sessions.UpdateStage(ctx, id, stage, progress); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return nil
}

func (p *Pipeline) failRun(ctx context.Context, id string, stage status.Stage, errs []string, cause error) error {
	errData := &persistence.ErrorData{Errors: errs, StageFailed: string(stage)}
	if err := p.sessions.MarkFailed(ctx, id, errData); err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't mark session failed")
		// the session would stay in processing, propagate for a retry
		return fmt.Errorf("%w: can't mark session failed: %v, cause: %v", ErrPersistenceFailed, err, cause)
	}
	return cause
}

func preview(transcript string) string {
	if len(transcript) <= transcriptPreviewLen {
		return transcript
	}
	return transcript[:transcriptPreviewLen] + "..."
}
