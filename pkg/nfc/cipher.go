package nfc

// Unlock cipher for the legacy subcommand family. The transform below was
// recovered from captured reader traffic and must stay bit-for-bit
// identical to what the sensor firmware expects; it is verified by
// replaying captured (uid, code, seed) -> suffix fixtures, not derived
// from first principles.

// DefaultUnlockSeed is the session constant used for every legacy
// subcommand except enable-streaming, which derives its own seed from the
// patch info and the streaming unlock code.
const DefaultUnlockSeed uint16 = 0x1b6a

var cipherKey = [4]uint16{0xa0c5, 0x6860, 0x0000, 0x14c6}

func cipherOp(value uint16) uint16 {
	res := value >> 2
	if value&1 != 0 {
		res ^= cipherKey[1]
	}
	if value&2 != 0 {
		res ^= cipherKey[0]
	}
	return res
}

func processCrypto(input [4]uint16) [4]uint16 {
	r0 := cipherOp(input[0]) ^ input[3]
	r1 := cipherOp(r0) ^ input[2]
	r2 := cipherOp(r1) ^ input[1]
	r3 := cipherOp(r2) ^ input[0]
	r4 := cipherOp(r3)
	r5 := cipherOp(r4 ^ r0)
	r6 := cipherOp(r5 ^ r1)
	r7 := cipherOp(r6 ^ r2)

	f1 := r0 ^ r4
	f2 := r1 ^ r5
	f3 := r2 ^ r6
	f4 := r3 ^ r7

	return [4]uint16{f4, f3, f2, f1}
}

func prepareVariables(uid Uid, x, y uint16) [4]uint16 {
	s1 := uint16((uint32(uid[5])<<8 | uint32(uid[4])) + uint32(x) + uint32(y))
	s2 := uint16((uint32(uid[3])<<8 | uint32(uid[2])) + uint32(cipherKey[2]))
	s3 := uint16((uint32(uid[1])<<8 | uint32(uid[0])) + uint32(x)*2)
	s4 := 0x241a ^ cipherKey[3]
	return [4]uint16{s1, s2, s3, s4}
}

// UnlockSuffix derives the 4-byte authentication suffix appended to legacy
// framed commands. Deterministic and stateless.
func UnlockSuffix(uid Uid, code Subcommand, seed uint16) [4]byte {
	blockKey := processCrypto(prepareVariables(uid, uint16(code), seed))
	low := blockKey[0]
	high := blockKey[1]

	r1 := low ^ 0x4163
	r2 := high ^ 0x4344

	return [4]byte{byte(r1), byte(r1 >> 8), byte(r2), byte(r2 >> 8)}
}

// StreamingUnlockSeed derives the cipher seed for the enable-streaming
// command: the little-endian word at patchInfo[4:6] XORed with the low
// word of the streaming unlock code. Byte indices and order are fixed by
// the firmware.
func StreamingUnlockSeed(patchInfo PatchInfo, unlockCode uint32) uint16 {
	if len(patchInfo) < 6 {
		return DefaultUnlockSeed
	}
	word := uint16(patchInfo[4]) | uint16(patchInfo[5])<<8
	return word ^ uint16(unlockCode)
}
