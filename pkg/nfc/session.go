package nfc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Read sizes per task. A deep read covers the whole generation-1 history
// region; everything else reads the live data region.
const (
	framReadBlocks = 43
	deepReadBlocks = 244
)

// defaultReadChunk is the number of blocks requested per transport call.
const defaultReadChunk = 3

// DefaultStreamingUnlockCode is used for enable-streaming when no code
// has been configured. Any 32-bit value works; the same value must later
// be presented when logging in to the streaming peripheral.
const DefaultStreamingUnlockCode uint32 = 42

// Raw-memory region dumped for diagnostics on generation-0 sensors.
const (
	dumpRawAddr   = 0
	dumpRawLength = 3 * rawChunk
)

// FRAM offsets rewritten by the reset and prolong tasks.
const (
	framAgeOffset     = 316
	framMaxLifeOffset = 326
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateHandshaking
	stateDispatching
	stateReading
	stateWriting
	stateTerminating
)

// Result is the outcome of one tag encounter.
type Result struct {
	Sensor  *Sensor
	Task    TaskRequest
	Fram    []byte
	RawDump []byte
}

// Orchestrator drives the end-to-end sequence for one requested task per
// tag encounter: metadata handshake, generation-appropriate command
// dispatch, block I/O and session teardown. It owns the sensor entity
// across encounters within one run, replacing it only when a different
// physical tag shows up.
//
// The model is single-threaded and cooperative: one encounter drives
// exactly one in-flight sequence, and the tag connection is exclusively
// owned for its lifetime.
type Orchestrator struct {
	decoder Decoder
	log     zerolog.Logger

	sensor *Sensor
	task   TaskRequest
	state  sessionState

	// UnlockCode is the streaming unlock code to persist when enabling
	// streaming.
	UnlockCode uint32

	// Pulse runs between handshake retry attempts and is handed to the
	// block layer for its retries.
	Pulse func()
}

// NewOrchestrator creates an orchestrator. The decoder may be nil when no
// out-of-process decoding service is configured.
func NewOrchestrator(decoder Decoder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		decoder:    decoder,
		log:        logger,
		task:       TaskNone,
		UnlockCode: DefaultStreamingUnlockCode,
		Pulse:      func() { time.Sleep(retryPulse) },
	}
}

// Sensor returns the entity for the last encountered tag, or nil before
// the first encounter.
func (o *Orchestrator) Sensor() *Sensor {
	return o.sensor
}

// Task returns the currently outstanding task request.
func (o *Orchestrator) Task() TaskRequest {
	return o.task
}

// RunTask performs one tag encounter for the requested task. The session
// is torn down on every exit path and the outstanding task cleared
// exactly once. A user cancellation of the proximity session is accepted
// silently: RunTask returns the partial result and a nil error.
func (o *Orchestrator) RunTask(ctx context.Context, tag Transport, task TaskRequest) (res *Result, err error) {
	o.task = task
	o.state = stateHandshaking

	terminated := false
	terminate := func(message string) {
		if terminated {
			return
		}
		terminated = true
		o.state = stateTerminating
		tag.Invalidate(message)
		o.task = TaskNone
		o.state = stateIdle
	}

	defer func() {
		if errors.Is(err, ErrCancelled) {
			o.log.Debug().Msg("session cancelled by user")
			err = nil
		}
		if err != nil {
			terminate(err.Error())
		} else {
			terminate("")
		}
	}()

	if err = tag.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	sensor, info, err := o.handshake(ctx, tag)
	if err != nil {
		// The one unrecoverable state: without metadata no task-specific
		// logic may run.
		return nil, err
	}
	o.sensor = sensor

	o.log.Info().
		Str("uid", sensor.Uid.String()).
		Str("type", string(sensor.Type)).
		Int("generation", sensor.SecurityGeneration).
		Int("total_blocks", info.TotalBlocks).
		Msg("sensor identified")

	o.state = stateDispatching
	res = &Result{Sensor: sensor, Task: task}
	err = o.dispatch(ctx, tag, task, res)
	return res, err
}

// handshake acquires the patch metadata and the memory-layout metadata.
// Each sub-step independently retries up to the ceiling; on exhaustion
// the returned error carries the failed step and tears the session down
// through the caller.
func (o *Orchestrator) handshake(ctx context.Context, tag Transport) (*Sensor, *SystemInfo, error) {
	patchCmd := GetPatchInfoCommand()

	var patchInfo []byte
	err := o.retry(func() error {
		var e error
		patchInfo, e = tag.CustomCommand(ctx, patchCmd.Code, patchCmd.Parameters)
		return e
	})
	if err != nil {
		return nil, nil, &ProtocolError{Kind: ErrKindCustomCommand, Op: "failed reading the patch info", Err: err}
	}

	var info *SystemInfo
	err = o.retry(func() error {
		var e error
		info, e = tag.SystemInfo(ctx)
		return e
	})
	if err != nil {
		return nil, nil, &ProtocolError{Kind: ErrKindCustomCommand, Op: "failed reading the system info", Err: err}
	}

	sensor := o.sensor
	uid, err := UidFromTag(tag.Identifier())
	if err != nil {
		return nil, nil, fmt.Errorf("unrecognized tag identifier: %w", err)
	}
	if sensor == nil || sensor.Uid != uid {
		// A different physical tag replaces the entity.
		sensor = &Sensor{Type: SensorUnknown, Uid: uid}
	}
	sensor.SetPatchInfo(patchInfo, info.ManufacturerCode)

	return sensor, info, nil
}

// retry runs fn up to the ceiling with a pulse between attempts. User
// cancellation stops immediately.
func (o *Orchestrator) retry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCancelled) {
			return err
		}
		if attempt < maxAttempts {
			o.Pulse()
		}
	}
	return err
}

// dispatch branches on the requested task.
func (o *Orchestrator) dispatch(ctx context.Context, tag Transport, task TaskRequest, res *Result) error {
	sensor := res.Sensor
	bio := NewBlockIO(tag, sensor, o.log)
	bio.Pulse = o.Pulse

	switch task {
	case TaskDump:
		return o.runDump(ctx, bio, res)

	case TaskEnableStreaming:
		return o.runEnableStreaming(ctx, tag, sensor)

	case TaskActivate:
		cmd := sensor.ActivationCommand()
		return o.runCommand(ctx, tag, cmd)

	case TaskUnlock:
		cmd := sensor.UnlockCommand()
		if err := o.runCommand(ctx, tag, cmd); err != nil {
			return err
		}
		sensor.StreamingUnlockCount++
		return nil

	case TaskReset:
		o.state = stateWriting
		if err := bio.WriteRaw(ctx, framAgeOffset, []byte{0x00, 0x00}); err != nil {
			return err
		}
		sensor.State = StateNotActivated
		return nil

	case TaskProlong:
		o.state = stateWriting
		return bio.WriteRaw(ctx, framMaxLifeOffset, []byte{0xff, 0xff})

	default:
		return o.runRead(ctx, bio, res)
	}
}

// runRead performs the block read of generation-appropriate size and, for
// generation 2, forwards the encrypted payload to the decoding service
// before storing it.
func (o *Orchestrator) runRead(ctx context.Context, bio *BlockIO, res *Result) error {
	sensor := res.Sensor
	o.state = stateReading

	blocks := framReadBlocks
	if sensor.SecurityGeneration == 1 {
		blocks = deepReadBlocks
	}

	buf, err := bio.Read(ctx, BlockRange{Start: 0, Count: blocks}, defaultReadChunk)
	if err != nil {
		// Partial buffers are kept for forensic logging.
		res.Fram = buf
		return err
	}

	if sensor.SecurityGeneration >= 2 {
		sensor.EncryptedFram = buf
		if o.decoder == nil {
			o.log.Warn().Msg("no decoder configured, storing encrypted memory only")
			return nil
		}
		req := DecodeRequest{
			PatchUid:  sensor.Uid[:],
			PatchInfo: sensor.PatchInfo,
			AuthData:  sensor.AuthData(),
			Content:   buf,
		}
		// The auth exchange refines the decode request; without it the
		// tag-derived payload is sent as is.
		auth, err := o.decoder.Authorize(ctx, AuthRequest{
			PatchUid: sensor.Uid[:],
			AuthData: req.AuthData,
		})
		if err != nil {
			o.log.Warn().Err(err).Msg("decoding service authorization unavailable")
		} else {
			req.P1 = auth.P1
			if len(auth.Data) > 0 {
				req.AuthData = auth.Data
			}
		}
		decoded, err := o.decoder.Decode(ctx, req)
		if err != nil {
			// Endpoint unavailability is non-fatal: the encrypted buffer
			// is already stored.
			o.log.Warn().Err(err).Msg("decoding service unavailable")
			return nil
		}
		sensor.SetFram(decoded)
		res.Fram = decoded
		return nil
	}

	sensor.SetFram(buf)
	res.Fram = buf
	return nil
}

// runDump performs the diagnostic raw-memory read plus a full block read,
// each independent of the other's outcome.
func (o *Orchestrator) runDump(ctx context.Context, bio *BlockIO, res *Result) error {
	sensor := res.Sensor
	o.state = stateReading

	if sensor.SecurityGeneration == 0 {
		raw, err := bio.ReadRaw(ctx, dumpRawAddr, dumpRawLength)
		if err != nil {
			o.log.Warn().Err(err).Msg("raw dump failed")
		} else {
			res.RawDump = raw
		}
	}

	buf, err := bio.Read(ctx, BlockRange{Start: 0, Count: framReadBlocks}, defaultReadChunk)
	res.Fram = buf
	if err != nil {
		return err
	}
	sensor.SetFram(buf)
	return nil
}

// runEnableStreaming issues the enable-streaming command. On success the
// returned 6-byte device address is persisted, the unlock counter reset
// and the reader asked to re-scan for the now discoverable peripheral.
// On failure the previous unlock code is restored: no partial state is
// ever persisted.
func (o *Orchestrator) runEnableStreaming(ctx context.Context, tag Transport, sensor *Sensor) error {
	prevCode := sensor.StreamingUnlockCode
	prevCount := sensor.StreamingUnlockCount

	sensor.StreamingUnlockCode = o.UnlockCode
	cmd := sensor.FramedCommand(SubEnableStreaming, nil)

	resp, err := tag.CustomCommand(ctx, cmd.Code, cmd.Parameters)
	if err == nil && len(resp) != 6 {
		err = fmt.Errorf("unexpected reply length %d", len(resp))
	}
	if err != nil {
		sensor.StreamingUnlockCode = prevCode
		sensor.StreamingUnlockCount = prevCount
		if errors.Is(err, ErrCancelled) {
			return err
		}
		return &ProtocolError{Kind: ErrKindCustomCommand, Op: cmd.Description, Err: err}
	}

	sensor.StreamingAddress = append([]byte(nil), resp...)
	sensor.StreamingUnlockCount = 0
	tag.Rescan()

	o.log.Info().
		Str("uid", sensor.Uid.String()).
		Str("address", fmt.Sprintf("%x", resp)).
		Msg("streaming enabled")
	return nil
}

// runCommand issues one catalog-built command and surfaces a tag fault as
// a protocol error.
func (o *Orchestrator) runCommand(ctx context.Context, tag Transport, cmd Command) error {
	if _, err := tag.CustomCommand(ctx, cmd.Code, cmd.Parameters); err != nil {
		if errors.Is(err, ErrCancelled) {
			return err
		}
		return &ProtocolError{Kind: ErrKindCustomCommand, Op: cmd.Description, Err: err}
	}
	o.log.Info().Str("command", cmd.Description).Msg("command executed")
	return nil
}
