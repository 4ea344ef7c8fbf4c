package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// Service is the reader-side daemon. It polls the proximity field, runs
// one session per encounter through the orchestrator and publishes the
// outcome over NATS. Task requests arriving from the server are held
// until a matching sensor is in the field.
type Service struct {
	config config.BridgeConfig
	nc     *nats.Conn
	tag    nfc.Transport
	orch   *nfc.Orchestrator
	log    zerolog.Logger

	mu      sync.Mutex
	pending *models.TaskMessage
}

// NewService creates the bridge service. The decoder may be nil when no
// decoding service is configured.
func NewService(cfg config.BridgeConfig, nc *nats.Conn, tag nfc.Transport, decoder nfc.Decoder, logger zerolog.Logger) *Service {
	orch := nfc.NewOrchestrator(decoder, logger)
	if cfg.StreamingUnlockCode != 0 {
		orch.UnlockCode = cfg.StreamingUnlockCode
	}

	return &Service{
		config: cfg,
		nc:     nc,
		tag:    tag,
		orch:   orch,
		log:    logger,
	}
}

// Start runs the poll loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe(models.TaskSubject(s.config.ReaderID), s.handleTaskRequest)
	if err != nil {
		return fmt.Errorf("subscribe task requests: %w", err)
	}

	s.publishEvent(models.EventMessage{
		ReaderID:    s.config.ReaderID,
		Type:        string(models.EventTypeReaderUp),
		Level:       string(models.EventLevelInfo),
		Description: "bridge started",
	})

	s.log.Info().
		Str("reader_id", s.config.ReaderID).
		Dur("poll_interval", s.config.PollInterval).
		Msg("Bridge service started")

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publishEvent(models.EventMessage{
				ReaderID:    s.config.ReaderID,
				Type:        string(models.EventTypeReaderDown),
				Level:       string(models.EventLevelInfo),
				Description: "bridge stopping",
			})
			sub.Unsubscribe()
			return ctx.Err()

		case <-ticker.C:
			s.runEncounter(ctx)
		}
	}
}

// handleTaskRequest holds the latest task request. A newer request
// replaces an unserved older one.
func (s *Service) handleTaskRequest(msg *nats.Msg) {
	var task models.TaskMessage
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		s.log.Error().Err(err).Msg("Failed to unmarshal task request")
		return
	}

	if _, err := nfc.ParseTaskRequest(task.Task); err != nil {
		s.log.Error().Err(err).Str("task", task.Task).Msg("Rejected task request")
		return
	}

	s.mu.Lock()
	s.pending = &task
	s.mu.Unlock()

	s.log.Info().
		Str("task", task.Task).
		Str("sensor_uid", task.SensorUid).
		Str("reference", task.Reference).
		Msg("Task request queued")
}

// nextTask decides what the coming encounter should run. A task targeted
// at a specific sensor is only consumed once that sensor has been seen in
// the field; until then the default task runs and the request stays
// queued.
func (s *Service) nextTask() (string, *models.TaskMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return s.config.DefaultTask, nil
	}

	if s.pending.SensorUid != "" {
		sensor := s.orch.Sensor()
		if sensor == nil || sensor.Uid.String() != s.pending.SensorUid {
			return s.config.DefaultTask, nil
		}
	}

	task := s.pending
	s.pending = nil
	return task.Task, task
}

// runEncounter performs one tag encounter and publishes the outcome. A
// failed connect means no tag is in the field and is not reported.
func (s *Service) runEncounter(ctx context.Context) {
	taskName, taskMsg := s.nextTask()

	task, err := nfc.ParseTaskRequest(taskName)
	if err != nil {
		s.log.Error().Err(err).Str("task", taskName).Msg("Invalid task, falling back to read")
		task = nfc.TaskReadFRAM
		taskName = "read_fram"
	}

	started := time.Now()
	res, err := s.orch.RunTask(ctx, s.tag, task)
	duration := time.Since(started)

	if res == nil || res.Sensor == nil {
		var protoErr *nfc.ProtocolError
		if errors.As(err, &protoErr) {
			// A tag was present but the handshake failed
			s.publishEvent(models.EventMessage{
				ReaderID:    s.config.ReaderID,
				Type:        string(models.EventTypeError),
				Level:       string(models.EventLevelError),
				Description: protoErr.Error(),
			})
		} else if err != nil {
			s.log.Debug().Err(err).Msg("No tag in the field")
		}
		if taskMsg != nil {
			s.requeue(taskMsg)
		}
		return
	}

	sensor := res.Sensor

	if taskMsg != nil && taskMsg.SensorUid != "" && taskMsg.SensorUid != sensor.Uid.String() {
		s.log.Warn().
			Str("requested", taskMsg.SensorUid).
			Str("actual", sensor.Uid.String()).
			Msg("Tag swapped between encounters, task ran on a different sensor")
	}

	scanMsg := models.ScanMessage{
		ReaderID:             s.config.ReaderID,
		SensorUid:            sensor.Uid.String(),
		PatchInfo:            sensor.PatchInfo.String(),
		Type:                 string(sensor.Type),
		SecurityGeneration:   sensor.SecurityGeneration,
		State:                sensor.State.String(),
		Task:                 taskName,
		Succeeded:            err == nil,
		Fram:                 res.Fram,
		RawDump:              res.RawDump,
		StreamingAddress:     sensor.StreamingAddress,
		StreamingUnlockCount: int(sensor.StreamingUnlockCount),
		DurationMs:           duration.Milliseconds(),
		ScannedAt:            started,
	}
	if err != nil {
		scanMsg.Error = err.Error()
	}

	data, marshalErr := json.Marshal(scanMsg)
	if marshalErr != nil {
		s.log.Error().Err(marshalErr).Msg("Failed to marshal scan result")
		return
	}

	if pubErr := s.nc.Publish(models.ScanSubject(s.config.ReaderID), data); pubErr != nil {
		s.log.Error().Err(pubErr).Msg("Failed to publish scan result")
	}

	logEvent := s.log.Info()
	if err != nil {
		logEvent = s.log.Warn().Err(err)
	}
	logEvent.
		Str("uid", scanMsg.SensorUid).
		Str("task", taskName).
		Dur("duration", duration).
		Msg("Encounter completed")
}

// requeue puts an unserved task request back
func (s *Service) requeue(task *models.TaskMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = task
	}
}

// publishEvent publishes a lifecycle event, best effort
func (s *Service) publishEvent(event models.EventMessage) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.nc.Publish(models.EventSubject(s.config.ReaderID), data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to publish bridge event")
	}
}
