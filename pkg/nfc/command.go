package nfc

import "fmt"

// Command catalog. Every builder is a pure function of the sensor
// identity and its arguments: same inputs, same bytes. Builders never
// fail; combinations that make no sense for the hardware yield a sentinel
// command the tag will reject instead of a mis-framed one.

// NoopCommand is returned for command/generation combinations that have
// no wire encoding.
func NoopCommand(reason string) Command {
	return Command{Code: 0x00, Description: "no-op: " + reason}
}

// FramedCommand builds a universal 0xA1 command carrying the given
// subcommand. Parameters are laid out as
//
//	[subcommand] [extra...] [auth suffix]
//
// where the 4-byte auth suffix is present only for the legacy family
// (subcommand < 0x20). The enable-streaming subcommand additionally
// injects the little-endian streaming unlock code before the suffix is
// computed and derives its own cipher seed from the patch info and that
// code.
func (s *Sensor) FramedCommand(sub Subcommand, extra []byte) Command {
	params := make([]byte, 0, MaxParameters)
	params = append(params, byte(sub))
	params = append(params, extra...)

	seed := DefaultUnlockSeed
	if sub == SubEnableStreaming {
		code := s.StreamingUnlockCode
		params = append(params,
			byte(code), byte(code>>8), byte(code>>16), byte(code>>24))
		seed = StreamingUnlockSeed(s.PatchInfo, code)
	}

	if byte(sub) < cipherSuffixThreshold {
		suffix := UnlockSuffix(s.Uid, sub, seed)
		params = append(params, suffix[:]...)
	}

	return Command{
		Code:        CodeFramed,
		Parameters:  params,
		Description: sub.String(),
	}
}

// GetPatchInfoCommand builds the bare 0xA1 command that reports the
// hardware sub-revision. It carries no subcommand and no suffix.
func GetPatchInfoCommand() Command {
	return Command{Code: CodeFramed, Description: "get patch info"}
}

// ActivationCommand builds the activation command for the sensor's
// dialect: the 0xA0 backdoor command for generation <= 1, the framed
// activate subcommand otherwise.
func (s *Sensor) ActivationCommand() Command {
	if s.SecurityGeneration <= 1 {
		if s.Type == SensorUnknown {
			return NoopCommand("activation not applicable")
		}
		backdoor := s.Backdoor()
		return Command{
			Code:        CodeActivate,
			Parameters:  backdoor[:],
			Description: "activate",
		}
	}
	return s.FramedCommand(SubActivate, nil)
}

// LockCommand builds the generation-1 lock command.
func (s *Sensor) LockCommand() Command {
	backdoor := s.Backdoor()
	return Command{
		Code:        CodeLock,
		Parameters:  backdoor[:],
		Description: "lock",
	}
}

// UnlockCommand builds the unlock command: the 0xA4 backdoor command for
// generation <= 1, the framed unlock subcommand otherwise.
func (s *Sensor) UnlockCommand() Command {
	if s.SecurityGeneration <= 1 {
		backdoor := s.Backdoor()
		return Command{
			Code:        CodeUnlock,
			Parameters:  backdoor[:],
			Description: "unlock",
		}
	}
	return s.FramedCommand(SubUnlock, nil)
}

// ReadRawCommand builds the generation-1 raw memory read for up to 24
// bytes starting at the given absolute address.
func (s *Sensor) ReadRawCommand(addr int, length int) Command {
	backdoor := s.Backdoor()
	params := append(backdoor[:],
		byte(addr&0xFF), byte(addr>>8), byte(length))
	return Command{
		Code:        CodeReadRaw,
		Parameters:  params,
		Description: fmt.Sprintf("read raw 0x%04x", addr),
	}
}

// readBlocksCommand builds the generation >= 2 framed block read. The
// one-byte address form only reaches block 255; callers must not request
// beyond it.
func (s *Sensor) readBlocksCommand(start, count int) Command {
	return s.FramedCommand(SubReadBlocks, []byte{byte(start), byte(count - 1)})
}

// readMultipleCommand builds the generation-1 0xB3 multi-block read. The
// hardware has no 1-block form of it, so a single block goes through the
// 0xB0 command instead.
func readMultipleCommand(start, count int) Command {
	if count == 1 {
		return Command{
			Code:        CodeReadSingleBlock,
			Parameters:  []byte{byte(start & 0xFF), byte(start >> 8)},
			Description: fmt.Sprintf("read block #%d", start),
		}
	}
	return Command{
		Code:        CodeReadMultipleBlocks,
		Parameters:  []byte{byte(start & 0xFF), byte(start >> 8), byte(count - 1)},
		Description: fmt.Sprintf("read blocks #%d-#%d", start, start+count-1),
	}
}
