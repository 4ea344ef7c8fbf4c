package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	SensorUid *nfc.Uid `json:"sensorUid,omitempty" db:"sensor_uid"`
	ReaderID  *string  `json:"readerId,omitempty" db:"reader_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Code        string     `json:"code" db:"code"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Sensor events
	EventTypeScan       EventType = "SCAN"
	EventTypeActivation EventType = "ACTIVATION"
	EventTypeStreaming  EventType = "STREAMING"
	EventTypeUnlock     EventType = "UNLOCK"
	EventTypeError      EventType = "ERROR"

	// Reader events
	EventTypeReaderUp   EventType = "READER_UP"
	EventTypeReaderDown EventType = "READER_DOWN"

	// System events
	EventTypeAPICall    EventType = "API_CALL"
	EventTypeTaskQueued EventType = "TASK_QUEUED"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
	EventLevelFatal   EventLevel = "FATAL"
)
