package nfc

import (
	"fmt"
	"time"
)

// SensorType identifies the hardware family of a sensor, derived from the
// first byte of its patch info.
type SensorType string

const (
	SensorGen1    SensorType = "GEN1"
	SensorProH    SensorType = "PRO_H"
	SensorGen2    SensorType = "GEN2"
	SensorGen3    SensorType = "GEN3"
	SensorUnknown SensorType = "UNKNOWN"
)

// SensorTypeFromPatchInfo maps the hardware sub-revision byte to a type.
func SensorTypeFromPatchInfo(p PatchInfo) SensorType {
	if len(p) == 0 {
		return SensorUnknown
	}
	switch p[0] {
	case 0xDF, 0xA2, 0xE5, 0xE6:
		return SensorGen1
	case 0x70:
		return SensorProH
	case 0x9D, 0x76:
		return SensorGen2
	case 0xC5, 0xC6:
		return SensorGen3
	default:
		return SensorUnknown
	}
}

// SensorState is the lifecycle state reported by the sensor hardware in
// byte 4 of its FRAM.
type SensorState byte

const (
	StateUnknown      SensorState = 0x00
	StateNotActivated SensorState = 0x01
	StateWarmingUp    SensorState = 0x02
	StateActive       SensorState = 0x03
	StateExpired      SensorState = 0x04
	StateShutdown     SensorState = 0x05
	StateFailure      SensorState = 0x06
)

// String returns a human label
func (s SensorState) String() string {
	switch s {
	case StateNotActivated:
		return "not activated"
	case StateWarmingUp:
		return "warming up"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateShutdown:
		return "shut down"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// framStateOffset is where the hardware state byte sits in FRAM.
const framStateOffset = 4

// Manufacturer code reported in the tag system info for sensors that
// speak the custom command dialects.
const manufacturerCustomDialect = 0x07

// Block counts of the readable memory region per hardware family.
const (
	gen1TotalBlocks    = 1252
	defaultTotalBlocks = 43
)

// Sensor is the mutable entity representing one physical device. It is
// created once per discovered tag identifier, reused across requests
// within a run and replaced only when a different tag is detected. All
// mutation happens from the single session sequence that owns the tag
// connection.
type Sensor struct {
	Type               SensorType
	SecurityGeneration int
	Uid                Uid
	PatchInfo          PatchInfo
	State              SensorState

	// Fram holds decoded memory and grows as blocks are read; its length
	// is always a multiple of BlockSize. EncryptedFram holds the raw
	// pre-decryption buffer for generation >= 2.
	Fram          []byte
	EncryptedFram []byte

	StreamingUnlockCode  uint32
	StreamingUnlockCount uint16
	StreamingAddress     []byte

	LastReadingDate time.Time
}

// NewSensor creates a sensor entity from the identifier reported by the
// tag interface.
func NewSensor(tagID []byte) (*Sensor, error) {
	uid, err := UidFromTag(tagID)
	if err != nil {
		return nil, fmt.Errorf("new sensor: %w", err)
	}
	return &Sensor{
		Type: SensorUnknown,
		Uid:  uid,
	}, nil
}

// SetPatchInfo records the discovered hardware sub-revision and derives
// the sensor type and security generation. The manufacturer code comes
// from the tag system info: tags that do not report the custom-dialect
// manufacturer fall back to generation 0 regardless of type.
func (s *Sensor) SetPatchInfo(p PatchInfo, manufacturerCode byte) {
	s.PatchInfo = append(PatchInfo(nil), p...)
	s.Type = SensorTypeFromPatchInfo(p)

	switch s.Type {
	case SensorGen1, SensorProH:
		if manufacturerCode == manufacturerCustomDialect {
			s.SecurityGeneration = 1
		} else {
			s.SecurityGeneration = 0
		}
	case SensorGen2:
		s.SecurityGeneration = 2
	case SensorGen3:
		s.SecurityGeneration = 3
	default:
		s.SecurityGeneration = 0
	}
}

// Backdoor returns the vendor-fixed 4-byte key gating privileged
// lock/unlock/raw commands on generation-1 hardware. Types that have no
// backdoor get a sentinel value that the tag will reject.
func (s *Sensor) Backdoor() [4]byte {
	switch s.Type {
	case SensorGen1:
		return [4]byte{0xc2, 0xad, 0x75, 0x21}
	case SensorProH:
		return [4]byte{0xc2, 0xad, 0x00, 0x90}
	default:
		return [4]byte{0xde, 0xad, 0xbe, 0xef}
	}
}

// TotalBlocks returns the number of addressable FRAM blocks for this
// hardware family.
func (s *Sensor) TotalBlocks() int {
	switch s.Type {
	case SensorGen1, SensorProH:
		return gen1TotalBlocks
	default:
		return defaultTotalBlocks
	}
}

// AuthData returns the authentication payload presented to the decoding
// service: the patch info followed by the unlock suffix for this uid
// under the default seed.
func (s *Sensor) AuthData() []byte {
	suffix := UnlockSuffix(s.Uid, SubUnlock, DefaultUnlockSeed)
	out := append([]byte(nil), s.PatchInfo...)
	return append(out, suffix[:]...)
}

// SetFram replaces the decoded memory buffer and refreshes the derived
// hardware state and reading timestamp.
func (s *Sensor) SetFram(fram []byte) {
	s.Fram = fram
	if len(fram) > framStateOffset {
		s.State = SensorState(fram[framStateOffset])
	}
	s.LastReadingDate = time.Now()
}
