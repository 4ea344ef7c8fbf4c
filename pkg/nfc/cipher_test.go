package nfc

import (
	"encoding/hex"
	"testing"
)

func mustUid(t *testing.T, s string) Uid {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		t.Fatalf("bad uid fixture %q", s)
	}
	var u Uid
	copy(u[:], b)
	return u
}

// Suffix fixtures replayed from captured reader traffic. The cipher must
// reproduce them bit for bit.
func TestUnlockSuffix(t *testing.T) {
	tests := []struct {
		name string
		uid  string
		code Subcommand
		seed uint16
		want string
	}{
		{"unlock", "3f8cde26000a07e0", SubUnlock, DefaultUnlockSeed, "49a22a67"},
		{"activate", "3f8cde26000a07e0", SubActivate, DefaultUnlockSeed, "0efef111"},
		{"enable streaming", "3f8cde26000a07e0", SubEnableStreaming, DefaultUnlockSeed, "1a9f1dc8"},
		{"second uid", "c7aa51000024e007", SubUnlock, DefaultUnlockSeed, "7541088e"},
		{"session info custom seed", "c7aa51000024e007", SubGetSessionInfo, 0x0212, "a64977bf"},
		{"code at threshold", "0001020304050607", SubReadChallenge, DefaultUnlockSeed, "29928644"},
		{"all ones", "ffffffffffffffff", SubUnlock, 0xffff, "e6dbe97e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnlockSuffix(mustUid(t, tt.uid), tt.code, tt.seed)
			if hex.EncodeToString(got[:]) != tt.want {
				t.Errorf("UnlockSuffix() = %x, want %s", got, tt.want)
			}
		})
	}
}

// Both conditional key mixes must be live: a dead branch here would
// still produce self-consistent suffixes while diverging from the
// hardware keystream.
func TestCipherOpMixesBothKeyWords(t *testing.T) {
	if got := cipherOp(1); got != cipherKey[1] {
		t.Fatalf("cipherOp(1) = 0x%04x, want 0x%04x", got, cipherKey[1])
	}
	if got := cipherOp(2); got != cipherKey[0] {
		t.Fatalf("cipherOp(2) = 0x%04x, want 0x%04x", got, cipherKey[0])
	}
}

func TestUnlockSuffixDeterministic(t *testing.T) {
	uid := mustUid(t, "3f8cde26000a07e0")
	a := UnlockSuffix(uid, SubUnlock, DefaultUnlockSeed)
	b := UnlockSuffix(uid, SubUnlock, DefaultUnlockSeed)
	if a != b {
		t.Fatalf("suffix not deterministic: %x vs %x", a, b)
	}
}

func TestStreamingUnlockSeed(t *testing.T) {
	patchInfo := mustHex("9d083001712b")

	seed := StreamingUnlockSeed(patchInfo, 0x0f1e2d3c)
	if seed != 0x064d {
		t.Fatalf("seed = 0x%04x, want 0x064d", seed)
	}

	// Only the low word of the code participates.
	if s := StreamingUnlockSeed(patchInfo, 0xffff2d3c); s != seed {
		t.Fatalf("high word leaked into seed: 0x%04x", s)
	}

	// Short patch info falls back to the default seed.
	if s := StreamingUnlockSeed(patchInfo[:4], 0x0f1e2d3c); s != DefaultUnlockSeed {
		t.Fatalf("short patch info seed = 0x%04x, want default", s)
	}
}

func TestStreamingUnlockSuffix(t *testing.T) {
	uid := mustUid(t, "3f8cde26000a07e0")
	seed := StreamingUnlockSeed(mustHex("9d083001712b"), 0x0f1e2d3c)

	got := UnlockSuffix(uid, SubEnableStreaming, seed)
	if hex.EncodeToString(got[:]) != "8e1f3740" {
		t.Errorf("UnlockSuffix() = %x, want 8e1f3740", got)
	}
}
