package models

import (
	"fmt"
	"time"
)

// NATS subjects. Reader ids must not contain "." or ">".
func ScanSubject(readerID string) string  { return fmt.Sprintf("bridge.%s.scan", readerID) }
func EventSubject(readerID string) string { return fmt.Sprintf("bridge.%s.event", readerID) }
func TaskSubject(readerID string) string  { return fmt.Sprintf("bridge.%s.task", readerID) }

// Wildcard subjects used by the server side subscriber.
const (
	ScanSubjectWildcard  = "bridge.*.scan"
	EventSubjectWildcard = "bridge.*.event"
)

// ScanMessage is published by a bridge after every tag encounter on the
// subject bridge.<reader_id>.scan.
type ScanMessage struct {
	ReaderID  string `json:"readerId"`
	SensorUid string `json:"sensorUid"`
	PatchInfo string `json:"patchInfo"`

	Type               string `json:"type"`
	SecurityGeneration int    `json:"securityGeneration"`
	State              string `json:"state"`

	Task      string `json:"task"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`

	Fram    []byte `json:"fram,omitempty"`
	RawDump []byte `json:"rawDump,omitempty"`

	StreamingAddress     []byte `json:"streamingAddress,omitempty"`
	StreamingUnlockCount int    `json:"streamingUnlockCount"`

	DurationMs int64     `json:"durationMs"`
	ScannedAt  time.Time `json:"scannedAt"`
}

// EventMessage is published by a bridge on bridge.<reader_id>.event for
// lifecycle notifications that are not tied to one scan.
type EventMessage struct {
	ReaderID    string                 `json:"readerId"`
	SensorUid   string                 `json:"sensorUid,omitempty"`
	Type        string                 `json:"type"`
	Level       string                 `json:"level"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// TaskMessage is published by the server on bridge.<reader_id>.task to
// request that the next encounter runs a specific task.
type TaskMessage struct {
	Task      string `json:"task"`
	SensorUid string `json:"sensorUid,omitempty"`
	Reference string `json:"reference,omitempty"`
}
