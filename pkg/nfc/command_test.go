package nfc

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func commandSensor(t *testing.T, uid string, patchInfo string, manufacturer byte) *Sensor {
	t.Helper()
	u := mustUid(t, uid)
	tagID := make([]byte, 8)
	for i := range tagID {
		tagID[i] = u[7-i]
	}
	s, err := NewSensor(tagID)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}
	s.SetPatchInfo(mustHex(patchInfo), manufacturer)
	return s
}

func TestFramedCommandLegacyCarriesSuffix(t *testing.T) {
	s := commandSensor(t, "3f8cde26000a07e0", "dfa20000010c", 0x07)

	cmd := s.FramedCommand(SubUnlock, nil)
	if cmd.Code != CodeFramed {
		t.Fatalf("code = 0x%02x, want 0x%02x", cmd.Code, CodeFramed)
	}
	want := mustHex("1a49a22a67")
	if !bytes.Equal(cmd.Parameters, want) {
		t.Fatalf("parameters = %x, want %x", cmd.Parameters, want)
	}
}

func TestFramedCommandLaterFamilyHasNoSuffix(t *testing.T) {
	s := commandSensor(t, "3f8cde26000a07e0", "9d083001712b", 0x07)

	cmd := s.FramedCommand(SubReadBlocks, []byte{5, 2})
	want := []byte{byte(SubReadBlocks), 5, 2}
	if !bytes.Equal(cmd.Parameters, want) {
		t.Fatalf("parameters = %x, want %x", cmd.Parameters, want)
	}
}

func TestFramedCommandEnableStreaming(t *testing.T) {
	s := commandSensor(t, "3f8cde26000a07e0", "9d083001712b", 0x07)
	s.StreamingUnlockCode = 0x0f1e2d3c

	cmd := s.FramedCommand(SubEnableStreaming, nil)
	// [sub] [code little-endian] [suffix under the patch-info derived seed]
	want := mustHex("1e3c2d1e0f8e1f3740")
	if !bytes.Equal(cmd.Parameters, want) {
		t.Fatalf("parameters = %x, want %x", cmd.Parameters, want)
	}
}

func TestFramedCommandDeterministic(t *testing.T) {
	s := commandSensor(t, "c7aa51000024e007", "dfa20000010c", 0x07)
	a := s.FramedCommand(SubActivate, nil)
	b := s.FramedCommand(SubActivate, nil)
	if !bytes.Equal(a.Parameters, b.Parameters) {
		t.Fatalf("parameters differ: %x vs %x", a.Parameters, b.Parameters)
	}
}

func TestGetPatchInfoCommandIsBare(t *testing.T) {
	cmd := GetPatchInfoCommand()
	if cmd.Code != CodeFramed || len(cmd.Parameters) != 0 {
		t.Fatalf("got code 0x%02x with %d parameters", cmd.Code, len(cmd.Parameters))
	}
}

func TestActivationCommand(t *testing.T) {
	tests := []struct {
		name       string
		patchInfo  string
		wantCode   byte
		wantParams string
	}{
		{"gen1 backdoor", "dfa20000010c", CodeActivate, "c2ad7521"},
		{"pro h backdoor", "70a20000010c", CodeActivate, "c2ad0090"},
		{"framed on newer hardware", "9d083001712b", CodeFramed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := commandSensor(t, "3f8cde26000a07e0", tt.patchInfo, 0x07)
			cmd := s.ActivationCommand()
			if cmd.Code != tt.wantCode {
				t.Fatalf("code = 0x%02x, want 0x%02x", cmd.Code, tt.wantCode)
			}
			if tt.wantParams != "" && !bytes.Equal(cmd.Parameters, mustHex(tt.wantParams)) {
				t.Fatalf("parameters = %x, want %s", cmd.Parameters, tt.wantParams)
			}
			if tt.wantCode == CodeFramed && Subcommand(cmd.Parameters[0]) != SubActivate {
				t.Fatalf("subcommand = 0x%02x, want activate", cmd.Parameters[0])
			}
		})
	}
}

func TestActivationCommandUnknownTypeIsNoop(t *testing.T) {
	s := commandSensor(t, "3f8cde26000a07e0", "11a20000010c", 0x07)
	cmd := s.ActivationCommand()
	if cmd.Code != 0x00 {
		t.Fatalf("expected no-op, got code 0x%02x", cmd.Code)
	}
}

func TestUnlockCommandByGeneration(t *testing.T) {
	legacy := commandSensor(t, "3f8cde26000a07e0", "dfa20000010c", 0x07)
	if cmd := legacy.UnlockCommand(); cmd.Code != CodeUnlock {
		t.Fatalf("legacy unlock code = 0x%02x, want 0x%02x", cmd.Code, CodeUnlock)
	}

	framed := commandSensor(t, "3f8cde26000a07e0", "9d083001712b", 0x07)
	cmd := framed.UnlockCommand()
	if cmd.Code != CodeFramed || Subcommand(cmd.Parameters[0]) != SubUnlock {
		t.Fatalf("framed unlock = 0x%02x %x", cmd.Code, cmd.Parameters)
	}
}

func TestReadRawCommandLayout(t *testing.T) {
	s := commandSensor(t, "3f8cde26000a07e0", "dfa20000010c", 0x00)
	cmd := s.ReadRawCommand(0x0123, 24)
	want := mustHex("c2ad75212301" + hex.EncodeToString([]byte{24}))
	if cmd.Code != CodeReadRaw || !bytes.Equal(cmd.Parameters, want) {
		t.Fatalf("got 0x%02x %x, want 0x%02x %x", cmd.Code, cmd.Parameters, CodeReadRaw, want)
	}
}

func TestReadMultipleCommandForms(t *testing.T) {
	single := readMultipleCommand(0x0105, 1)
	if single.Code != CodeReadSingleBlock || !bytes.Equal(single.Parameters, []byte{0x05, 0x01}) {
		t.Fatalf("single form = 0x%02x %x", single.Code, single.Parameters)
	}

	multi := readMultipleCommand(0x0105, 3)
	if multi.Code != CodeReadMultipleBlocks || !bytes.Equal(multi.Parameters, []byte{0x05, 0x01, 0x02}) {
		t.Fatalf("multi form = 0x%02x %x", multi.Code, multi.Parameters)
	}
}

func TestReadBlocksCommandOneByteAddress(t *testing.T) {
	s := commandSensor(t, "3f8cde26000a07e0", "9d083001712b", 0x07)
	cmd := s.readBlocksCommand(40, 3)
	want := []byte{byte(SubReadBlocks), 40, 2}
	if !bytes.Equal(cmd.Parameters, want) {
		t.Fatalf("parameters = %x, want %x", cmd.Parameters, want)
	}
}
