package transport

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

func simConfig(patchInfo string) config.BridgeConfig {
	return config.BridgeConfig{
		Simulate:     true,
		SimUid:       "3f8cde26000a07e0",
		SimPatchInfo: patchInfo,
	}
}

func testOrchestrator() *nfc.Orchestrator {
	orch := nfc.NewOrchestrator(nil, zerolog.Nop())
	orch.Pulse = func() {}
	return orch
}

func TestNewSimTagRejectsBadIdentity(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.BridgeConfig
	}{
		{"bad uid", config.BridgeConfig{SimUid: "xyz", SimPatchInfo: "9d083001712b"}},
		{"short uid", config.BridgeConfig{SimUid: "3f8c", SimPatchInfo: "9d083001712b"}},
		{"bad patch info", config.BridgeConfig{SimUid: "3f8cde26000a07e0", SimPatchInfo: "9d08"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSimTag(tt.cfg, zerolog.Nop()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSimTagIdentifierIsReversed(t *testing.T) {
	tag, err := NewSimTag(simConfig("9d083001712b"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	uid, err := nfc.UidFromTag(tag.Identifier())
	if err != nil {
		t.Fatal(err)
	}
	if uid.String() != "3f8cde26000a07e0" {
		t.Errorf("uid = %s, want 3f8cde26000a07e0", uid)
	}
}

func TestSimTagGen2ReadSession(t *testing.T) {
	tag, err := NewSimTag(simConfig("9d083001712b"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	orch := testOrchestrator()
	res, err := orch.RunTask(context.Background(), tag, nfc.TaskReadFRAM)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	sensor := res.Sensor
	if sensor.Type != nfc.SensorGen2 {
		t.Errorf("Type = %s, want GEN2", sensor.Type)
	}
	if sensor.SecurityGeneration != 2 {
		t.Errorf("SecurityGeneration = %d, want 2", sensor.SecurityGeneration)
	}

	// Without a decoder only the encrypted image is kept
	if len(sensor.EncryptedFram) != 43*nfc.BlockSize {
		t.Fatalf("EncryptedFram length = %d, want %d", len(sensor.EncryptedFram), 43*nfc.BlockSize)
	}
	if sensor.Fram != nil {
		t.Errorf("Fram = %d bytes, want none without a decoder", len(sensor.Fram))
	}
	for i, b := range sensor.EncryptedFram {
		want := byte(i % 251)
		if i == 4 {
			want = byte(nfc.StateActive)
		}
		if b != want {
			t.Fatalf("EncryptedFram[%d] = 0x%02x, want 0x%02x", i, b, want)
		}
	}
}

func TestSimTagGen1DeepReadSession(t *testing.T) {
	tag, err := NewSimTag(simConfig("df0000017100"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	orch := testOrchestrator()
	res, err := orch.RunTask(context.Background(), tag, nfc.TaskReadFRAM)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	sensor := res.Sensor
	if sensor.SecurityGeneration != 1 {
		t.Errorf("SecurityGeneration = %d, want 1", sensor.SecurityGeneration)
	}
	if len(res.Fram) != 244*nfc.BlockSize {
		t.Errorf("Fram length = %d, want %d", len(res.Fram), 244*nfc.BlockSize)
	}
	if sensor.State != nfc.StateActive {
		t.Errorf("State = %s, want active", sensor.State)
	}
}

func TestSimTagActivationChangesState(t *testing.T) {
	tag, err := NewSimTag(simConfig("df0000017100"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	orch := testOrchestrator()
	if _, err := orch.RunTask(context.Background(), tag, nfc.TaskActivate); err != nil {
		t.Fatalf("activate: %v", err)
	}

	res, err := orch.RunTask(context.Background(), tag, nfc.TaskReadFRAM)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Sensor.State != nfc.StateWarmingUp {
		t.Errorf("State = %s, want warming up", res.Sensor.State)
	}
}

func TestSimTagEnableStreaming(t *testing.T) {
	tag, err := NewSimTag(simConfig("9d083001712b"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	orch := testOrchestrator()
	res, err := orch.RunTask(context.Background(), tag, nfc.TaskEnableStreaming)
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	sensor := res.Sensor
	if len(sensor.StreamingAddress) != 6 {
		t.Fatalf("StreamingAddress length = %d, want 6", len(sensor.StreamingAddress))
	}
	if sensor.StreamingUnlockCount != 0 {
		t.Errorf("StreamingUnlockCount = %d, want 0", sensor.StreamingUnlockCount)
	}
}

func TestSimTagImageFileLengthCheck(t *testing.T) {
	cfg := simConfig("9d083001712b")
	cfg.SimImageFile = "testdata/does-not-exist.bin"

	if _, err := NewSimTag(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing image file")
	}
}
