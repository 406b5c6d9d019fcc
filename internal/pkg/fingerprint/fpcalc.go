package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// ErrNoBackend indicates the chromaprint fpcalc binary is not installed
var ErrNoBackend = errors.New("no chromaprint backend (fpcalc) available")

// Data is computed acoustic fingerprint with audio duration in seconds
type Data struct {
	Fingerprint string  `json:"fingerprint"`
	Duration    float64 `json:"duration"`
}

// Extractor computes acoustic fingerprints by invoking chromaprint fpcalc
type Extractor struct {
	cmd       string
	maxLength int
	timeout   time.Duration
}

// NewExtractor creates a fingerprint extractor
func NewExtractor() *Extractor {
	return &Extractor{cmd: "fpcalc", maxLength: 120, timeout: time.Second * 30}
}

// Extract computes fingerprint and duration for the audio file
func (e *Extractor) Extract(ctx context.Context, path string) (*Data, error) {
	if _, err := exec.LookPath(e.cmd); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, e.cmd)
	}
	ctx, cancelF := context.WithTimeout(ctx, e.timeout)
	defer cancelF()

	cmd := exec.CommandContext(ctx, e.cmd, "-json", "-length", strconv.Itoa(e.maxLength), path)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	goapp.Log.Debug().Str("file", path).Msg("run fpcalc")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("fpcalc failed: %w: %s", err, errOut.String())
	}
	res, err := parseOutput(out.Bytes())
	if err != nil {
		return nil, err
	}
	return res, nil
}

func parseOutput(b []byte) (*Data, error) {
	res := &Data{}
	if err := json.Unmarshal(b, res); err != nil {
		return nil, fmt.Errorf("can't parse fpcalc output: %w", err)
	}
	if res.Fingerprint == "" {
		return nil, fmt.Errorf("no fingerprint in fpcalc output")
	}
	if res.Duration <= 0 {
		return nil, fmt.Errorf("no duration in fpcalc output")
	}
	return res, nil
}
