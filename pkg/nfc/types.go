package nfc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// BlockSize is the fixed size of one addressable FRAM block in bytes.
const BlockSize = 8

// MaxParameters is the largest parameter payload the reader accepts for a
// single custom command (input buffer limit of the tag interface).
const MaxParameters = 32

// Uid represents the 8-byte device identifier of a sensor, stored
// byte-reversed with respect to the identifier reported by the reader.
type Uid [8]byte

// UidFromTag builds a Uid from the identifier reported by the tag
// interface, reversing the byte order. Returns an error if the reported
// identifier is not 8 bytes.
func UidFromTag(id []byte) (Uid, error) {
	var u Uid
	if len(id) != 8 {
		return u, fmt.Errorf("invalid tag identifier length: %d", len(id))
	}
	for i := range id {
		u[i] = id[len(id)-1-i]
	}
	return u, nil
}

// String returns hex string representation
func (u Uid) String() string {
	return hex.EncodeToString(u[:])
}

// MarshalJSON implements json.Marshaler
func (u Uid) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (u *Uid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}

	if len(b) != 8 {
		return fmt.Errorf("invalid uid length")
	}

	copy(u[:], b)
	return nil
}

// PatchInfo identifies the hardware sub-revision of a sensor. Usually six
// bytes; newer generations report longer payloads.
type PatchInfo []byte

// String returns hex string representation
func (p PatchInfo) String() string {
	return hex.EncodeToString(p)
}

// Command is a single custom command ready to be sent to the tag. Built
// fresh per invocation and never mutated.
type Command struct {
	Code        byte
	Parameters  []byte
	Description string
}

// Custom command opcodes. The 0xA0-0xA4 family is the generation-1
// backdoor dialect; 0xA1 doubles as the universal framed-command prefix
// for generation >= 1; the 0xB0-0xB4 family addresses single blocks.
const (
	CodeActivate            byte = 0xA0
	CodeFramed              byte = 0xA1
	CodeLock                byte = 0xA2
	CodeReadRaw             byte = 0xA3
	CodeUnlock              byte = 0xA4
	CodeReadSingleBlock     byte = 0xB0
	CodeWriteSingleBlock    byte = 0xB1
	CodeLockBlock           byte = 0xB2
	CodeReadMultipleBlocks  byte = 0xB3
	CodeWriteMultipleBlocks byte = 0xB4
)

// Subcommand is a functional code carried in the first parameter byte of a
// framed 0xA1 command. Values below 0x20 belong to the legacy family and
// require the unlock cipher suffix; values at or above 0x20 are the later
// challenge/response family.
type Subcommand byte

const (
	SubUnlock          Subcommand = 0x1A
	SubActivate        Subcommand = 0x1B
	SubEnableStreaming Subcommand = 0x1E
	SubGetSessionInfo  Subcommand = 0x1F
	SubReadChallenge   Subcommand = 0x20
	SubReadBlocks      Subcommand = 0x21
	SubReadAttribute   Subcommand = 0x22

	// Observed on the wire but undocumented; kept for diagnostic replay.
	SubUnknown0x1C Subcommand = 0x1C
	SubUnknown0x1D Subcommand = 0x1D
)

// cipherSuffixThreshold separates the legacy subcommand family, which
// carries the unlock cipher suffix, from the later one, which does not.
const cipherSuffixThreshold = 0x20

// String returns a human label; unknown values round-trip as hex.
func (c Subcommand) String() string {
	switch c {
	case SubUnlock:
		return "unlock"
	case SubActivate:
		return "activate"
	case SubEnableStreaming:
		return "enable streaming"
	case SubGetSessionInfo:
		return "get session info"
	case SubReadChallenge:
		return "read security challenge"
	case SubReadBlocks:
		return "read blocks"
	case SubReadAttribute:
		return "read attribute"
	default:
		return fmt.Sprintf("unknown 0x%02x", byte(c))
	}
}

// TaskRequest enumerates the end-to-end operations a session can perform.
// Exactly one may be outstanding per tag encounter.
type TaskRequest int

const (
	TaskNone TaskRequest = iota
	TaskActivate
	TaskEnableStreaming
	TaskReadFRAM
	TaskUnlock
	TaskReset
	TaskProlong
	TaskDump
)

// String returns a human label
func (t TaskRequest) String() string {
	switch t {
	case TaskNone:
		return "none"
	case TaskActivate:
		return "activate"
	case TaskEnableStreaming:
		return "enable streaming"
	case TaskReadFRAM:
		return "read fram"
	case TaskUnlock:
		return "unlock"
	case TaskReset:
		return "reset"
	case TaskProlong:
		return "prolong"
	case TaskDump:
		return "dump"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// ParseTaskRequest parses a task name as used in API payloads and NATS
// subjects.
func ParseTaskRequest(s string) (TaskRequest, error) {
	switch s {
	case "activate":
		return TaskActivate, nil
	case "enable_streaming":
		return TaskEnableStreaming, nil
	case "read_fram":
		return TaskReadFRAM, nil
	case "unlock":
		return TaskUnlock, nil
	case "reset":
		return TaskReset, nil
	case "prolong":
		return TaskProlong, nil
	case "dump":
		return TaskDump, nil
	default:
		return TaskNone, fmt.Errorf("unknown task: %q", s)
	}
}

// BlockRange addresses a contiguous run of fixed-size blocks.
type BlockRange struct {
	Start int
	Count int
}

// End returns the index one past the last block of the range.
func (r BlockRange) End() int {
	return r.Start + r.Count
}
