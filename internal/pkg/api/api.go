package api

const (
	// PrmFile is audio file form param
	PrmFile = "file"
	// PrmEmail is email form param
	PrmEmail = "email"
	// PrmTitle is dataset title form param
	PrmTitle = "title"
	// PrmDescription is dataset description form param
	PrmDescription = "description"
	// PrmVerificationID is caller correlation ID form param
	PrmVerificationID = "verificationID"
)

// Metadata is caller supplied dataset info passed to the analysis stage
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// QualityResult keeps measured audio properties
type QualityResult struct {
	Passed       bool    `json:"passed"`
	Duration     float64 `json:"duration,omitempty"`
	SampleRate   int     `json:"sample_rate,omitempty"`
	SilenceRatio float64 `json:"silence_ratio,omitempty"`
}

// QualityCheck is the quality checker response
type QualityCheck struct {
	Quality QualityResult `json:"quality"`
	Errors  []string      `json:"errors,omitempty"`
}

// CopyrightMatch is one thresholded fingerprint match
type CopyrightMatch struct {
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Confidence  float64 `json:"confidence"`
	RecordingID string  `json:"recording_id"`
}

// CopyrightResult keeps copyright detection outcome.
// Checked == false means the check degraded, not that the audio is clear
type CopyrightResult struct {
	Detected   bool             `json:"detected"`
	Passed     bool             `json:"passed"`
	Checked    bool             `json:"checked"`
	Confidence float64          `json:"confidence"`
	Matches    []CopyrightMatch `json:"matches"`
	Error      string           `json:"error,omitempty"`
}

// AnalysisResult keeps AI content assessment, always fully populated
type AnalysisResult struct {
	QualityScore    float64  `json:"qualityScore"`
	SafetyPassed    bool     `json:"safetyPassed"`
	Insights        []string `json:"insights"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// Result is the final verification payload persisted with a completed session
type Result struct {
	Approved          bool             `json:"approved"`
	Quality           *QualityResult   `json:"quality,omitempty"`
	Copyright         *CopyrightResult `json:"copyright,omitempty"`
	Transcript        string           `json:"transcript,omitempty"`
	TranscriptPreview string           `json:"transcriptPreview,omitempty"`
	Analysis          *AnalysisResult  `json:"analysis,omitempty"`
	SafetyPassed      bool             `json:"safetyPassed"`
}
