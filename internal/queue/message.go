package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current OrphanMessage schema version.
const MessageVersion = 1

// OrphanMessage reports blobs left behind by a failed analysis.
type OrphanMessage struct {
	AnalysisID string   `json:"analysisId"`
	Paths      []string `json:"paths"`
	Stage      string   `json:"stage"`
	Reason     string   `json:"reason,omitempty"`
	RequestID  string   `json:"requestId,omitempty"`
	ReportedAt string   `json:"reportedAt"`
	Version    int      `json:"version"`
}

// NewOrphanMessage stamps a message with the current time and schema version.
func NewOrphanMessage(analysisID, stage, reason string, paths []string) OrphanMessage {
	return OrphanMessage{
		AnalysisID: analysisID,
		Paths:      append([]string(nil), paths...),
		Stage:      stage,
		Reason:     reason,
		ReportedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg OrphanMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into an OrphanMessage.
func DecodeMessage(payload []byte) (OrphanMessage, error) {
	var msg OrphanMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return OrphanMessage{}, err
	}
	return msg, nil
}
