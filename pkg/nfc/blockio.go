package nfc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// maxAttempts is the retry ceiling for every transport operation. There
// is no wall-clock timeout: the ceiling is the bound.
const maxAttempts = 5

// retryPulse is the perceptible pause between attempts.
const retryPulse = 250 * time.Millisecond

// rawChunk is the largest raw read the 0xA3 command returns per call.
const rawChunk = 24

// framedAddressLimit is the highest block reachable through the one-byte
// address form of the framed read-blocks subcommand.
const framedAddressLimit = 255

// BlockIO reads and writes contiguous runs of fixed-size blocks over a
// lossy per-call transport, selecting the command scheme by security
// generation. Within one call blocks are requested and reassembled in
// strictly increasing address order; a partial buffer accumulated before
// a fatal failure is still returned alongside the error for forensic
// logging.
type BlockIO struct {
	tag    Transport
	sensor *Sensor
	log    zerolog.Logger

	// Pulse runs between retry attempts. The default is a short delay
	// perceptible at the reader.
	Pulse func()
}

// NewBlockIO creates a BlockIO bound to one tag connection.
func NewBlockIO(tag Transport, sensor *Sensor, logger zerolog.Logger) *BlockIO {
	return &BlockIO{
		tag:    tag,
		sensor: sensor,
		log:    logger,
		Pulse:  func() { time.Sleep(retryPulse) },
	}
}

// withRetry runs fn up to the retry ceiling, pulsing between attempts.
// Once exhausted the last fault is wrapped into the given protocol kind.
// A user cancellation is passed through untouched and never retried.
func (b *BlockIO) withRetry(op string, kind ErrorKind, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCancelled) {
			return err
		}
		b.log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("transport fault")
		if attempt < maxAttempts {
			b.Pulse()
		}
	}
	return &ProtocolError{Kind: kind, Op: op, Err: err}
}

// Read reads r.Count blocks starting at r.Start, requesting up to chunk
// blocks per transport call. A chunk of zero or less requests the whole
// range in one call. The returned buffer length is a multiple of
// BlockSize; on error it holds whatever was read before the failure.
func (b *BlockIO) Read(ctx context.Context, r BlockRange, chunk int) ([]byte, error) {
	if chunk <= 0 || chunk > r.Count {
		chunk = r.Count
	}

	switch {
	case b.sensor.SecurityGeneration >= 2:
		return b.readFramed(ctx, r, chunk)
	case b.sensor.SecurityGeneration == 1:
		return b.readCustom(ctx, r, chunk)
	default:
		return b.readStandard(ctx, r, chunk)
	}
}

// readStandard is the generation-0 path: the plain multi-block read
// primitive, chunked, with the final chunk shrunk to the remaining count.
func (b *BlockIO) readStandard(ctx context.Context, r BlockRange, chunk int) ([]byte, error) {
	buf := make([]byte, 0, r.Count*BlockSize)
	remaining := r.Count
	requested := chunk

	for remaining > 0 {
		if remaining < requested {
			requested = remaining
		}
		start := r.Start + len(buf)/BlockSize

		var blocks [][]byte
		err := b.withRetry(fmt.Sprintf("read blocks #%d-#%d", start, start+requested-1), ErrKindRead,
			func() error {
				var e error
				blocks, e = b.tag.ReadMultipleBlocks(ctx, BlockRange{Start: start, Count: requested})
				return e
			})
		if err != nil {
			return buf, err
		}

		for _, block := range blocks {
			buf = append(buf, block...)
		}
		remaining -= requested
	}

	return buf, nil
}

// readCustom is the generation-1 path: the 0xB3 multi-block command, or
// 0xB0 for a single block since the hardware has no 1-block multi-read.
func (b *BlockIO) readCustom(ctx context.Context, r BlockRange, chunk int) ([]byte, error) {
	buf := make([]byte, 0, r.Count*BlockSize)
	remaining := r.Count
	requested := chunk

	for remaining > 0 {
		if remaining < requested {
			requested = remaining
		}
		start := r.Start + len(buf)/BlockSize
		cmd := readMultipleCommand(start, requested)

		var data []byte
		err := b.withRetry(cmd.Description, ErrKindReadBlocks, func() error {
			var e error
			data, e = b.tag.CustomCommand(ctx, cmd.Code, cmd.Parameters)
			return e
		})
		if err != nil {
			return buf, err
		}

		buf = append(buf, data...)
		remaining -= requested
	}

	return buf, nil
}

// readFramed is the generation >= 2 path: the framed read-blocks
// subcommand. The leading 8 bytes of every response are dummy padding and
// never reach the result buffer.
func (b *BlockIO) readFramed(ctx context.Context, r BlockRange, chunk int) ([]byte, error) {
	buf := make([]byte, 0, r.Count*BlockSize)

	if r.End()-1 > framedAddressLimit {
		return buf, &ProtocolError{
			Kind: ErrKindCommandNotSupported,
			Op:   fmt.Sprintf("block #%d beyond one-byte address form", r.End()-1),
		}
	}

	remaining := r.Count
	requested := chunk

	for remaining > 0 {
		if remaining < requested {
			requested = remaining
		}
		start := r.Start + len(buf)/BlockSize
		cmd := b.sensor.readBlocksCommand(start, requested)

		var data []byte
		err := b.withRetry(fmt.Sprintf("read blocks #%d-#%d", start, start+requested-1), ErrKindReadBlocks,
			func() error {
				var e error
				data, e = b.tag.CustomCommand(ctx, cmd.Code, cmd.Parameters)
				if e != nil {
					return e
				}
				if len(data) < BlockSize {
					return fmt.Errorf("short response: %d bytes", len(data))
				}
				return nil
			})
		if err != nil {
			return buf, err
		}

		buf = append(buf, data[BlockSize:]...)
		remaining -= requested
	}

	return buf, nil
}

// Write writes len(data)/BlockSize blocks starting at the given block
// index through the multi-block primitive. No generation-2/3 write path
// exists on the hardware.
func (b *BlockIO) Write(ctx context.Context, start int, data []byte) error {
	if b.sensor.SecurityGeneration >= 2 {
		return &ProtocolError{
			Kind: ErrKindCommandNotSupported,
			Op:   fmt.Sprintf("write not supported on security generation %d", b.sensor.SecurityGeneration),
		}
	}
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return &ProtocolError{
			Kind: ErrKindWrite,
			Op:   fmt.Sprintf("write length %d not a multiple of the block size", len(data)),
		}
	}

	blocks := make([][]byte, 0, len(data)/BlockSize)
	for i := 0; i < len(data); i += BlockSize {
		blocks = append(blocks, data[i:i+BlockSize])
	}

	r := BlockRange{Start: start, Count: len(blocks)}
	return b.withRetry(fmt.Sprintf("write blocks #%d-#%d", r.Start, r.End()-1), ErrKindWrite,
		func() error {
			return b.tag.WriteMultipleBlocks(ctx, r, blocks)
		})
}

// ReadRaw reads an arbitrary byte range of generation-0 memory through
// the 0xA3 backdoor command, in chunks of up to 24 bytes.
func (b *BlockIO) ReadRaw(ctx context.Context, addr, length int) ([]byte, error) {
	if b.sensor.SecurityGeneration != 0 {
		return nil, &ProtocolError{
			Kind: ErrKindCommandNotSupported,
			Op:   "raw read requires security generation 0",
		}
	}

	buf := make([]byte, 0, length)
	for len(buf) < length {
		n := length - len(buf)
		if n > rawChunk {
			n = rawChunk
		}
		cmd := b.sensor.ReadRawCommand(addr+len(buf), n)

		var data []byte
		err := b.withRetry(cmd.Description, ErrKindCustomCommand, func() error {
			var e error
			data, e = b.tag.CustomCommand(ctx, cmd.Code, cmd.Parameters)
			return e
		})
		if err != nil {
			return buf, err
		}
		buf = append(buf, data...)
	}

	return buf[:length], nil
}

// WriteRaw overwrites an arbitrary byte range of generation-0 memory. The
// range is widened to whole blocks, the enclosing blocks are read, the
// requested sub-range spliced in and the modified blocks written back.
// The whole operation is bracketed by the unlock and lock backdoor
// commands.
func (b *BlockIO) WriteRaw(ctx context.Context, addr int, data []byte) error {
	if b.sensor.SecurityGeneration != 0 {
		return &ProtocolError{
			Kind: ErrKindCommandNotSupported,
			Op:   "raw write requires security generation 0",
		}
	}
	if len(data) == 0 {
		return nil
	}

	unlock := b.sensor.UnlockCommand()
	err := b.withRetry(unlock.Description, ErrKindCustomCommand, func() error {
		_, e := b.tag.CustomCommand(ctx, unlock.Code, unlock.Parameters)
		return e
	})
	if err != nil {
		return err
	}

	startBlock := addr / BlockSize
	endBlock := (addr + len(data) - 1) / BlockSize
	enclosing := BlockRange{Start: startBlock, Count: endBlock - startBlock + 1}

	buf, err := b.readStandard(ctx, enclosing, enclosing.Count)
	if err == nil {
		copy(buf[addr-startBlock*BlockSize:], data)
		err = b.Write(ctx, startBlock, buf)
	}

	// The lock step is best effort: its failure is logged and swallowed,
	// which can leave the tag unlocked. Known risk, kept to match the
	// field-observed behavior of the original readers.
	lock := b.sensor.LockCommand()
	if _, lockErr := b.tag.CustomCommand(ctx, lock.Code, lock.Parameters); lockErr != nil {
		b.log.Error().Err(lockErr).Msg("lock command failed after raw write")
	}

	return err
}
