package status

// Status represents verification session state
type Status int

const (
	// Processing - verification is running
	Processing Status = iota + 1
	// Completed - final state, results present
	Completed
	// Failed - final state, errors present
	Failed
	// Cancelled - final state, run was cancelled
	Cancelled
)

var (
	statusName = map[Status]string{Processing: "processing", Completed: "completed",
		Failed: "failed", Cancelled: "cancelled"}
	nameStatus = map[string]Status{"processing": Processing, "completed": Completed,
		"failed": Failed, "cancelled": Cancelled}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Stage represents one named phase of the verification pipeline
type Stage string

const (
	// Queued - initial stage after session creation
	Queued Stage = "queued"
	// Quality - technical audio quality check
	Quality Stage = "quality"
	// Copyright - fingerprint match check
	Copyright Stage = "copyright"
	// Transcription - speech to text
	Transcription Stage = "transcription"
	// Analysis - AI content assessment
	Analysis Stage = "analysis"
	// Done - terminal stage of a completed session
	Done Stage = "completed"
	// Broken - terminal stage of a failed session
	Broken Stage = "failed"
)

type progressSpan struct {
	start, end float64
}

// values are fixed so progress never regresses while a run advances
var stageProgress = map[Stage]progressSpan{
	Queued:        {0, 0},
	Quality:       {0.15, 0.3},
	Copyright:     {0.35, 0.5},
	Transcription: {0.55, 0.75},
	Analysis:      {0.8, 0.9},
	Done:          {1, 1},
	Broken:        {0, 0},
}

// StartProgress returns the progress value reported when the stage begins
func (s Stage) StartProgress() float64 {
	return stageProgress[s].start
}

// EndProgress returns the progress value reported when the stage completes
func (s Stage) EndProgress() float64 {
	return stageProgress[s].end
}
