package copyright

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/airenas/clipcheck/internal/pkg/fingerprint"
	"github.com/airenas/clipcheck/internal/pkg/test"
)

type mockFingerprinter struct{ mock.Mock }

func (m *mockFingerprinter) Extract(ctx context.Context, path string) (*fingerprint.Data, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fingerprint.Data), args.Error(1)
}

type mockLookuper struct{ mock.Mock }

func (m *mockLookuper) Lookup(ctx context.Context, fp string, duration float64) ([]Candidate, error) {
	args := m.Called(ctx, fp, duration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Candidate), args.Error(1)
}

var (
	fpMock     *mockFingerprinter
	lookupMock *mockLookuper
)

func initTest(t *testing.T) *Detector {
	t.Helper()
	fpMock = &mockFingerprinter{}
	lookupMock = &mockLookuper{}
	d, err := NewDetector(fpMock, lookupMock)
	require.Nil(t, err)
	fpMock.On("Extract", mock.Anything, mock.Anything).Return(&fingerprint.Data{Fingerprint: "AQAAr", Duration: 120}, nil)
	return d
}

func TestNewDetector(t *testing.T) {
	_, err := NewDetector(nil, &mockLookuper{})
	assert.NotNil(t, err)
	_, err = NewDetector(&mockFingerprinter{}, nil)
	assert.NotNil(t, err)
	d, err := NewDetector(&mockFingerprinter{}, &mockLookuper{})
	require.Nil(t, err)
	assert.Equal(t, 0.8, d.confidenceThreshold)
	assert.Equal(t, 5, d.maxMatches)
}

func TestCheckFile_HighConfidenceDetected(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{Confidence: 0.95, RecordingID: "rec-123", Title: "Copyrighted Song", Artist: "Artist Name"},
	}, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.True(t, res.Detected)
	assert.False(t, res.Passed)
	assert.True(t, res.Checked)
	assert.Equal(t, 0.95, res.Confidence)
	require.Equal(t, 1, len(res.Matches))
	assert.Equal(t, "Copyrighted Song", res.Matches[0].Title)
	assert.Equal(t, "rec-123", res.Matches[0].RecordingID)
}

func TestCheckFile_LowConfidenceIgnored(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{Confidence: 0.65, RecordingID: "rec-456", Title: "Some Song", Artist: "Some Artist"},
	}, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.False(t, res.Detected)
	assert.True(t, res.Passed)
	// top level confidence still reports the near miss
	assert.Equal(t, 0.65, res.Confidence)
	assert.Equal(t, 0, len(res.Matches))
}

func TestCheckFile_NoMatches(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{}, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.False(t, res.Detected)
	assert.True(t, res.Passed)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, 0, len(res.Matches))
}

func TestCheckFile_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantCount  int
	}{
		{name: "Exactly 0.80 included", confidence: 0.80, wantCount: 1},
		{name: "Just below excluded", confidence: 0.799, wantCount: 0},
		{name: "0.79 excluded", confidence: 0.79, wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := initTest(t)
			lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
				{Confidence: tt.confidence, RecordingID: "rec", Title: "Song", Artist: "Artist"},
			}, nil)
			res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
			assert.Equal(t, tt.wantCount, len(res.Matches))
			assert.Equal(t, tt.wantCount > 0, res.Detected)
		})
	}
}

func TestCheckFile_KeepsServiceOrder(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{Confidence: 0.85, RecordingID: "rec-001", Title: "Song A", Artist: "Artist A"},
		{Confidence: 0.92, RecordingID: "rec-002", Title: "Song B", Artist: "Artist B"},
		{Confidence: 0.78, RecordingID: "rec-003", Title: "Song C", Artist: "Artist C"},
	}, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.True(t, res.Detected)
	require.Equal(t, 2, len(res.Matches))
	assert.Equal(t, 0.85, res.Matches[0].Confidence)
	assert.Equal(t, 0.92, res.Matches[1].Confidence)
	assert.Equal(t, 0.92, res.Confidence)
}

func TestCheckFile_MaxFiveMatches(t *testing.T) {
	d := initTest(t)
	candidates := []Candidate{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Candidate{Confidence: 0.95 - float64(i)*0.01,
			RecordingID: fmt.Sprintf("rec-%03d", i), Title: fmt.Sprintf("Song %d", i)})
	}
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.Equal(t, 5, len(res.Matches))
	assert.True(t, res.Detected)
}

func TestCheckFile_RoundsConfidence(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{Confidence: 0.9537428, RecordingID: "rec", Title: "Song", Artist: "Artist"},
	}, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.Equal(t, 0.954, res.Confidence)
	require.Equal(t, 1, len(res.Matches))
	assert.Equal(t, 0.954, res.Matches[0].Confidence)
}

func TestCheckFile_UnknownDefaults(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{
		{Confidence: 0.95, RecordingID: "rec-id"},
	}, nil)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	require.Equal(t, 1, len(res.Matches))
	assert.Equal(t, "Unknown", res.Matches[0].Title)
	assert.Equal(t, "Unknown", res.Matches[0].Artist)
}

func TestCheckFile_LookupFails(t *testing.T) {
	d := initTest(t)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, fmt.Errorf("network error"))

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.False(t, res.Detected)
	assert.False(t, res.Checked)
	assert.Contains(t, res.Error, "network error")
}

func TestCheckFile_FingerprintFails(t *testing.T) {
	fpMock = &mockFingerprinter{}
	lookupMock = &mockLookuper{}
	d, err := NewDetector(fpMock, lookupMock)
	require.Nil(t, err)
	fpMock.On("Extract", mock.Anything, mock.Anything).Return(nil, fingerprint.ErrNoBackend)

	res := d.CheckFile(test.Ctx(t), "/path/audio.wav")
	assert.False(t, res.Detected)
	assert.False(t, res.Checked)
	assert.Contains(t, res.Error, "no chromaprint backend")
	lookupMock.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheck_StagesTmpFile(t *testing.T) {
	d := initTest(t)
	var seen string
	fpMock.ExpectedCalls = nil
	fpMock.On("Extract", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.String(1)
		b, err := os.ReadFile(seen)
		require.Nil(t, err)
		assert.Equal(t, "audio-data", string(b))
	}).Return(&fingerprint.Data{Fingerprint: "AQAAr", Duration: 120}, nil)
	lookupMock.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return([]Candidate{}, nil)

	res := d.Check(test.Ctx(t), []byte("audio-data"), ".wav")
	assert.True(t, res.Passed)
	require.NotEmpty(t, seen)
	_, err := os.Stat(seen)
	assert.True(t, os.IsNotExist(err))
}

func TestCheck_TmpFileRemovedOnFailure(t *testing.T) {
	d := initTest(t)
	var seen string
	fpMock.ExpectedCalls = nil
	fpMock.On("Extract", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.String(1)
	}).Return(nil, fmt.Errorf("olia err"))

	res := d.Check(test.Ctx(t), []byte("audio-data"), ".wav")
	assert.False(t, res.Checked)
	require.NotEmpty(t, seen)
	_, err := os.Stat(seen)
	assert.True(t, os.IsNotExist(err))
}
