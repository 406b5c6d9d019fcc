package copyright

import (
	"context"
	"fmt"
	"math"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/fingerprint"
	"github.com/airenas/clipcheck/internal/pkg/utils"
)

// Fingerprinter computes acoustic fingerprints
type Fingerprinter interface {
	Extract(ctx context.Context, path string) (*fingerprint.Data, error)
}

// Lookuper queries the fingerprint matching service
type Lookuper interface {
	Lookup(ctx context.Context, fingerprint string, duration float64) ([]Candidate, error)
}

// Detector classifies audio as a copyright hit or clear.
// Any failure degrades to an unchecked result, it never aborts the caller
type Detector struct {
	fingerprinter Fingerprinter
	lookup        Lookuper

	confidenceThreshold float64
	maxMatches          int
}

// NewDetector creates a copyright detector with default 0.8 threshold
func NewDetector(fp Fingerprinter, lookup Lookuper) (*Detector, error) {
	if fp == nil {
		return nil, fmt.Errorf("no fingerprinter")
	}
	if lookup == nil {
		return nil, fmt.Errorf("no lookup client")
	}
	return &Detector{fingerprinter: fp, lookup: lookup, confidenceThreshold: 0.8, maxMatches: 5}, nil
}

// CheckFile runs copyright detection on an audio file
func (d *Detector) CheckFile(ctx context.Context, path string) *api.CopyrightResult {
	data, err := d.fingerprinter.Extract(ctx, path)
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("copyright check degraded")
		return uncheckedResult(err)
	}
	candidates, err := d.lookup.Lookup(ctx, data.Fingerprint, data.Duration)
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("copyright check degraded")
		return uncheckedResult(err)
	}
	return d.classify(candidates)
}

// Check stages audio bytes into a scoped temporary file and runs detection.
// The file is removed on every exit path
func (d *Detector) Check(ctx context.Context, audio []byte, ext string) *api.CopyrightResult {
	var res *api.CopyrightResult
	err := utils.WithTmpFile(audio, ext, func(path string) error {
		res = d.CheckFile(ctx, path)
		return nil
	})
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("copyright check degraded")
		return uncheckedResult(err)
	}
	return res
}

func (d *Detector) classify(candidates []Candidate) *api.CopyrightResult {
	res := &api.CopyrightResult{Checked: true, Matches: []api.CopyrightMatch{}}
	maxConfidence := 0.0
	for _, c := range candidates {
		if c.Confidence > maxConfidence {
			maxConfidence = c.Confidence
		}
		if c.Confidence < d.confidenceThreshold || len(res.Matches) >= d.maxMatches {
			continue
		}
		res.Matches = append(res.Matches, api.CopyrightMatch{
			Title:       orUnknown(c.Title),
			Artist:      orUnknown(c.Artist),
			Confidence:  round3(c.Confidence),
			RecordingID: c.RecordingID,
		})
	}
	res.Detected = len(res.Matches) > 0
	res.Passed = !res.Detected
	res.Confidence = round3(maxConfidence)
	return res
}

func uncheckedResult(err error) *api.CopyrightResult {
	return &api.CopyrightResult{Detected: false, Passed: true, Checked: false,
		Matches: []api.CopyrightMatch{}, Error: err.Error()}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
