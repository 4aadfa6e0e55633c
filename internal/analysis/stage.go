package analysis

import "time"

// Stage is a step of the analysis state machine.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageUploadingDocument Stage = "uploading_document"
	StageConverting        Stage = "converting"
	StageUploadingImage    Stage = "uploading_image"
	StageScoring           Stage = "scoring"
	StageParsing           Stage = "parsing"
	StagePersisting        Stage = "persisting"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

var stageText = map[Stage]string{
	StageUploadingDocument: "Uploading File...",
	StageConverting:        "Converting to image...",
	StageUploadingImage:    "Uploading the image...",
	StageScoring:           "Analyzing resume...",
	StageParsing:           "Preparing data...",
	StagePersisting:        "Saving analysis...",
	StageDone:              "Analysis complete! Redirecting...",
}

// Text is the human-readable status shown while the stage runs.
func (s Stage) Text() string {
	return stageText[s]
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Status is one progress notification.
type Status struct {
	AnalysisID string    `json:"analysisId,omitempty"`
	Stage      Stage     `json:"stage"`
	Text       string    `json:"text"`
	At         time.Time `json:"at"`
}

// Observer receives status updates in order. It runs on the pipeline
// goroutine and must not block.
type Observer func(Status)

func (o Observer) notify(s Status) {
	if o != nil {
		o(s)
	}
}
