package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// SensorRecord represents one physical sensor known to the server. It is
// keyed by the device uid and updated in place as new scans arrive.
type SensorRecord struct {
	BaseModel

	Uid                nfc.Uid        `json:"uid" db:"uid"`
	PatchInfo          nfc.PatchInfo  `json:"patchInfo" db:"patch_info"`
	Type               nfc.SensorType `json:"type" db:"type"`
	SecurityGeneration int            `json:"securityGeneration" db:"security_generation"`
	State              string         `json:"state" db:"state"`

	Name string `json:"name" db:"name"`

	// Streaming peripheral details, set after enable-streaming succeeds.
	StreamingAddress     []byte `json:"streamingAddress,omitempty" db:"streaming_address"`
	StreamingUnlockCount int    `json:"streamingUnlockCount" db:"streaming_unlock_count"`

	LastReaderID string     `json:"lastReaderId" db:"last_reader_id"`
	LastScanAt   *time.Time `json:"lastScanAt,omitempty" db:"last_scan_at"`

	IsDisabled bool `json:"isDisabled" db:"is_disabled"`
}

// Scan represents one completed tag encounter reported by a bridge.
type Scan struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	SensorUid nfc.Uid `json:"sensorUid" db:"sensor_uid"`
	ReaderID  string  `json:"readerId" db:"reader_id"`
	Task      string  `json:"task" db:"task"`

	// Fram is the decoded memory image; RawDump the diagnostic raw read,
	// when the task requested one. Either may be absent on failure.
	Fram    []byte `json:"fram,omitempty" db:"fram"`
	RawDump []byte `json:"rawDump,omitempty" db:"raw_dump"`

	Succeeded bool   `json:"succeeded" db:"succeeded"`
	Error     string `json:"error,omitempty" db:"error"`

	Duration time.Duration `json:"duration" db:"duration"`
}
