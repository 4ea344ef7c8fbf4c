package nfc

import (
	"bytes"
	"testing"
)

func TestUidFromTagReversesBytes(t *testing.T) {
	uid, err := UidFromTag(mustHex("e007a00000268cde"))
	if err != nil {
		t.Fatalf("UidFromTag: %v", err)
	}
	if uid.String() != "de8c260000a007e0" {
		t.Fatalf("uid = %s", uid)
	}
}

func TestUidFromTagRejectsBadLength(t *testing.T) {
	if _, err := UidFromTag([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSensorTypeFromPatchInfo(t *testing.T) {
	tests := []struct {
		first byte
		want  SensorType
	}{
		{0xDF, SensorGen1},
		{0xA2, SensorGen1},
		{0xE5, SensorGen1},
		{0xE6, SensorGen1},
		{0x70, SensorProH},
		{0x9D, SensorGen2},
		{0x76, SensorGen2},
		{0xC5, SensorGen3},
		{0xC6, SensorGen3},
		{0x11, SensorUnknown},
	}

	for _, tt := range tests {
		got := SensorTypeFromPatchInfo(PatchInfo{tt.first, 0, 0, 0, 0, 0})
		if got != tt.want {
			t.Errorf("type for 0x%02x = %s, want %s", tt.first, got, tt.want)
		}
	}

	if got := SensorTypeFromPatchInfo(nil); got != SensorUnknown {
		t.Errorf("type for empty patch info = %s", got)
	}
}

func TestSetPatchInfoDerivesGeneration(t *testing.T) {
	tests := []struct {
		name         string
		patchInfo    string
		manufacturer byte
		want         int
	}{
		{"gen1 custom dialect", "dfa20000010c", 0x07, 1},
		{"gen1 plain tag", "dfa20000010c", 0x00, 0},
		{"pro h custom dialect", "70a20000010c", 0x07, 1},
		{"newer hardware", "9d083001712b", 0x07, 2},
		{"newest hardware", "c5083001712b", 0x07, 3},
		{"unknown hardware", "11a20000010c", 0x07, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Sensor{}
			s.SetPatchInfo(mustHex(tt.patchInfo), tt.manufacturer)
			if s.SecurityGeneration != tt.want {
				t.Fatalf("generation = %d, want %d", s.SecurityGeneration, tt.want)
			}
		})
	}
}

func TestBackdoorByType(t *testing.T) {
	tests := []struct {
		typ  SensorType
		want string
	}{
		{SensorGen1, "c2ad7521"},
		{SensorProH, "c2ad0090"},
		{SensorGen2, "deadbeef"},
		{SensorUnknown, "deadbeef"},
	}

	for _, tt := range tests {
		s := &Sensor{Type: tt.typ}
		got := s.Backdoor()
		if !bytes.Equal(got[:], mustHex(tt.want)) {
			t.Errorf("backdoor for %s = %x, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestSetFramDerivesState(t *testing.T) {
	s := &Sensor{}
	fram := make([]byte, 6*BlockSize)
	fram[framStateOffset] = byte(StateActive)

	s.SetFram(fram)
	if s.State != StateActive {
		t.Fatalf("state = %s, want %s", s.State, StateActive)
	}
	if s.LastReadingDate.IsZero() {
		t.Fatal("reading date not set")
	}

	// A buffer too short to contain the state byte leaves it untouched.
	s.SetFram(fram[:framStateOffset])
	if s.State != StateActive {
		t.Fatalf("state clobbered by short buffer: %s", s.State)
	}
}

func TestTotalBlocksByFamily(t *testing.T) {
	if n := (&Sensor{Type: SensorGen1}).TotalBlocks(); n != gen1TotalBlocks {
		t.Fatalf("gen1 total blocks = %d", n)
	}
	if n := (&Sensor{Type: SensorGen2}).TotalBlocks(); n != defaultTotalBlocks {
		t.Fatalf("gen2 total blocks = %d", n)
	}
}
