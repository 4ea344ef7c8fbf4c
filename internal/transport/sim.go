package transport

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// SimTag is an in-memory tag used when no physical reader is attached.
// It answers every command dialect the engine speaks, selected by the
// generation the configured patch info implies, so the full session
// sequence can run against it.
type SimTag struct {
	log zerolog.Logger

	uid       nfc.Uid
	patchInfo []byte
	memory    []byte

	locked bool
}

// NewSimTag builds a simulated tag from the bridge configuration. The
// memory image is loaded from sim_image_file when given, otherwise a
// deterministic pattern fills the family's full block count.
func NewSimTag(cfg config.BridgeConfig, logger zerolog.Logger) (*SimTag, error) {
	uidBytes, err := hex.DecodeString(cfg.SimUid)
	if err != nil || len(uidBytes) != 8 {
		return nil, fmt.Errorf("invalid sim_uid %q", cfg.SimUid)
	}

	patchInfo, err := hex.DecodeString(cfg.SimPatchInfo)
	if err != nil || len(patchInfo) < 6 {
		return nil, fmt.Errorf("invalid sim_patch_info %q", cfg.SimPatchInfo)
	}

	t := &SimTag{
		log:       logger,
		patchInfo: patchInfo,
	}
	copy(t.uid[:], uidBytes)

	if cfg.SimImageFile != "" {
		image, err := os.ReadFile(cfg.SimImageFile)
		if err != nil {
			return nil, fmt.Errorf("read sim image: %w", err)
		}
		if len(image) == 0 || len(image)%nfc.BlockSize != 0 {
			return nil, fmt.Errorf("sim image length %d is not a multiple of the block size", len(image))
		}
		t.memory = image
	} else {
		sensor := &nfc.Sensor{}
		sensor.SetPatchInfo(patchInfo, manufacturerCode)
		t.memory = make([]byte, sensor.TotalBlocks()*nfc.BlockSize)
		for i := range t.memory {
			t.memory[i] = byte(i % 251)
		}
		t.memory[4] = byte(nfc.StateActive)
	}

	return t, nil
}

// Manufacturer code reported in the system info. The engine keys the
// generation-1 custom dialect off this value.
const manufacturerCode = 0x07

// Connect establishes the tag connection
func (t *SimTag) Connect(ctx context.Context) error {
	return ctx.Err()
}

// Identifier reports the uid in wire order, reversed like a real reader.
func (t *SimTag) Identifier() []byte {
	id := make([]byte, len(t.uid))
	for i := range t.uid {
		id[i] = t.uid[len(t.uid)-1-i]
	}
	return id
}

// SystemInfo reports the memory layout
func (t *SimTag) SystemInfo(ctx context.Context) (*nfc.SystemInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &nfc.SystemInfo{
		TotalBlocks:      len(t.memory) / nfc.BlockSize,
		BlockSize:        nfc.BlockSize,
		ManufacturerCode: manufacturerCode,
		ICReference:      0x24,
	}, nil
}

// CustomCommand answers a vendor command
func (t *SimTag) CustomCommand(ctx context.Context, code byte, parameters []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch code {
	case nfc.CodeFramed:
		return t.framedCommand(parameters)

	case nfc.CodeActivate:
		if !t.checkBackdoor(parameters) {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		t.memory[4] = byte(nfc.StateWarmingUp)
		return nil, nil

	case nfc.CodeUnlock:
		if !t.checkBackdoor(parameters) {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		t.locked = false
		return nil, nil

	case nfc.CodeLock:
		if !t.checkBackdoor(parameters) {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		t.locked = true
		return nil, nil

	case nfc.CodeReadRaw:
		if len(parameters) != 7 || !t.checkBackdoor(parameters[:4]) {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		addr := int(parameters[4]) | int(parameters[5])<<8
		length := int(parameters[6])
		if addr+length > len(t.memory) {
			return nil, &nfc.TagError{Status: nfc.FaultBlockNotAvailable}
		}
		return append([]byte(nil), t.memory[addr:addr+length]...), nil

	case nfc.CodeReadSingleBlock:
		if len(parameters) != 2 {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		start := int(parameters[0]) | int(parameters[1])<<8
		return t.blocks(start, 1)

	case nfc.CodeReadMultipleBlocks:
		if len(parameters) != 3 {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		start := int(parameters[0]) | int(parameters[1])<<8
		return t.blocks(start, int(parameters[2])+1)

	default:
		return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
	}
}

// framedCommand answers the universal 0xA1 dialect
func (t *SimTag) framedCommand(parameters []byte) ([]byte, error) {
	if len(parameters) == 0 {
		return append([]byte(nil), t.patchInfo...), nil
	}

	switch nfc.Subcommand(parameters[0]) {
	case nfc.SubReadBlocks:
		if len(parameters) < 3 {
			return nil, &nfc.TagError{Status: nfc.FaultCommandNotSupported}
		}
		start := int(parameters[1])
		count := int(parameters[2]) + 1
		blocks, err := t.blocks(start, count)
		if err != nil {
			return nil, err
		}
		// The hardware prefixes one block of framing noise
		return append(make([]byte, nfc.BlockSize), blocks...), nil

	case nfc.SubEnableStreaming:
		// Device address of the now connectable peripheral
		return []byte{t.uid[0], t.uid[1], t.uid[2], t.uid[3], t.uid[4], t.uid[5]}, nil

	case nfc.SubActivate:
		t.memory[4] = byte(nfc.StateWarmingUp)
		return nil, nil

	case nfc.SubUnlock:
		t.locked = false
		return nil, nil

	default:
		return nil, &nfc.TagError{Status: nfc.FaultOptionNotSupported}
	}
}

// ReadMultipleBlocks serves the standard multi-block primitive
func (t *SimTag) ReadMultipleBlocks(ctx context.Context, r nfc.BlockRange) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := t.blocks(r.Start, r.Count)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, r.Count)
	for i := range out {
		out[i] = buf[i*nfc.BlockSize : (i+1)*nfc.BlockSize]
	}
	return out, nil
}

// WriteMultipleBlocks serves the standard multi-block write primitive
func (t *SimTag) WriteMultipleBlocks(ctx context.Context, r nfc.BlockRange, blocks [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.locked {
		return &nfc.TagError{Status: nfc.FaultBlockAlreadyLocked}
	}
	if r.End()*nfc.BlockSize > len(t.memory) || len(blocks) != r.Count {
		return &nfc.TagError{Status: nfc.FaultBlockNotAvailable}
	}
	for i, block := range blocks {
		if len(block) != nfc.BlockSize {
			return &nfc.TagError{Status: nfc.FaultContentCannotBeChanged}
		}
		copy(t.memory[(r.Start+i)*nfc.BlockSize:], block)
	}
	return nil
}

// Invalidate tears the session down
func (t *SimTag) Invalidate(message string) {
	if message != "" {
		t.log.Info().Str("reason", message).Msg("sim session invalidated")
		return
	}
	t.log.Debug().Msg("sim session closed")
}

// Rescan restarts peripheral discovery
func (t *SimTag) Rescan() {
	t.log.Info().Msg("sim peripheral rescan requested")
}

func (t *SimTag) checkBackdoor(parameters []byte) bool {
	sensor := &nfc.Sensor{}
	sensor.SetPatchInfo(t.patchInfo, manufacturerCode)
	backdoor := sensor.Backdoor()
	return bytes.Equal(parameters, backdoor[:])
}

func (t *SimTag) blocks(start, count int) ([]byte, error) {
	if start < 0 || count < 1 || (start+count)*nfc.BlockSize > len(t.memory) {
		return nil, &nfc.TagError{Status: nfc.FaultBlockNotAvailable}
	}
	return append([]byte(nil), t.memory[start*nfc.BlockSize:(start+count)*nfc.BlockSize]...), nil
}
