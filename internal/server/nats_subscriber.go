package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
	"github.com/cgm-bridge/cgm-bridge-server/internal/storage"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// NATSSubscriber persists scan results and events published by bridges.
type NATSSubscriber struct {
	nc    *nats.Conn
	store storage.Store
	subs  []*nats.Subscription
}

// NewNATSSubscriber creates NATS subscriber
func NewNATSSubscriber(nc *nats.Conn, store storage.Store) *NATSSubscriber {
	return &NATSSubscriber{
		nc:    nc,
		store: store,
		subs:  make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions
func (s *NATSSubscriber) Start(ctx context.Context) error {
	// Subscribe to scan results from bridges
	sub1, err := s.nc.Subscribe(models.ScanSubjectWildcard, s.handleScanResult)
	if err != nil {
		return fmt.Errorf("subscribe scan results: %w", err)
	}
	s.subs = append(s.subs, sub1)

	// Subscribe to bridge lifecycle events
	sub2, err := s.nc.Subscribe(models.EventSubjectWildcard, s.handleBridgeEvent)
	if err != nil {
		return fmt.Errorf("subscribe bridge events: %w", err)
	}
	s.subs = append(s.subs, sub2)

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("NATS subscriber started")

	<-ctx.Done()

	// Unsubscribe
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleScanResult persists one scan result and refreshes the sensor
// record it belongs to.
func (s *NATSSubscriber) handleScanResult(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("Received scan result")

	var scanMsg models.ScanMessage
	if err := json.Unmarshal(msg.Data, &scanMsg); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal scan result")
		return
	}

	uidBytes, err := hex.DecodeString(scanMsg.SensorUid)
	if err != nil || len(uidBytes) != 8 {
		log.Error().Str("uid", scanMsg.SensorUid).Msg("Invalid sensor uid in scan result")
		return
	}
	var uid nfc.Uid
	copy(uid[:], uidBytes)

	ctx := context.Background()

	if err := s.upsertSensor(ctx, uid, &scanMsg); err != nil {
		log.Error().Err(err).Str("uid", scanMsg.SensorUid).Msg("Failed to upsert sensor")
		return
	}

	scan := &models.Scan{
		SensorUid: uid,
		ReaderID:  scanMsg.ReaderID,
		Task:      scanMsg.Task,
		Fram:      scanMsg.Fram,
		RawDump:   scanMsg.RawDump,
		Succeeded: scanMsg.Succeeded,
		Error:     scanMsg.Error,
		Duration:  time.Duration(scanMsg.DurationMs) * time.Millisecond,
	}

	if err := s.store.CreateScan(ctx, scan); err != nil {
		log.Error().Err(err).Str("uid", scanMsg.SensorUid).Msg("Failed to create scan record")
		return
	}

	level := models.EventLevelInfo
	eventType := models.EventTypeScan
	description := fmt.Sprintf("Scan completed - task: %s", scanMsg.Task)
	if !scanMsg.Succeeded {
		level = models.EventLevelError
		eventType = models.EventTypeError
		description = fmt.Sprintf("Scan failed - task: %s", scanMsg.Task)
	}

	event := &models.EventLog{
		SensorUid:   &uid,
		ReaderID:    &scanMsg.ReaderID,
		Type:        eventType,
		Level:       level,
		Code:        scanMsg.Error,
		Description: description,
		Details: models.Variables{
			"task":       scanMsg.Task,
			"durationMs": scanMsg.DurationMs,
			"framSize":   len(scanMsg.Fram),
		},
	}

	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to create event log")
	}

	log.Info().
		Str("uid", scanMsg.SensorUid).
		Str("reader_id", scanMsg.ReaderID).
		Str("task", scanMsg.Task).
		Bool("succeeded", scanMsg.Succeeded).
		Msg("Scan result processed")
}

// upsertSensor creates the sensor record on first sight and refreshes it
// on every scan after that.
func (s *NATSSubscriber) upsertSensor(ctx context.Context, uid nfc.Uid, scanMsg *models.ScanMessage) error {
	now := time.Now()

	sensor, err := s.store.GetSensor(ctx, uid)
	if err == storage.ErrNotFound {
		patchInfo, _ := hex.DecodeString(scanMsg.PatchInfo)
		sensor = &models.SensorRecord{
			Uid:                uid,
			PatchInfo:          patchInfo,
			Type:               nfc.SensorType(scanMsg.Type),
			SecurityGeneration: scanMsg.SecurityGeneration,
			State:              scanMsg.State,
			LastReaderID:       scanMsg.ReaderID,
			LastScanAt:         &now,
		}
		if scanMsg.StreamingAddress != nil {
			sensor.StreamingAddress = scanMsg.StreamingAddress
			sensor.StreamingUnlockCount = scanMsg.StreamingUnlockCount
		}
		return s.store.CreateSensor(ctx, sensor)
	}
	if err != nil {
		return err
	}

	sensor.Type = nfc.SensorType(scanMsg.Type)
	sensor.SecurityGeneration = scanMsg.SecurityGeneration
	if scanMsg.State != "" {
		sensor.State = scanMsg.State
	}
	if scanMsg.PatchInfo != "" {
		if patchInfo, err := hex.DecodeString(scanMsg.PatchInfo); err == nil {
			sensor.PatchInfo = patchInfo
		}
	}
	if scanMsg.StreamingAddress != nil {
		sensor.StreamingAddress = scanMsg.StreamingAddress
	}
	sensor.StreamingUnlockCount = scanMsg.StreamingUnlockCount
	sensor.LastReaderID = scanMsg.ReaderID
	sensor.LastScanAt = &now

	return s.store.UpdateSensor(ctx, sensor)
}

// handleBridgeEvent persists a bridge lifecycle event
func (s *NATSSubscriber) handleBridgeEvent(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Msg("Received bridge event")

	var eventMsg models.EventMessage
	if err := json.Unmarshal(msg.Data, &eventMsg); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal bridge event")
		return
	}

	ctx := context.Background()

	event := &models.EventLog{
		ReaderID:    &eventMsg.ReaderID,
		Type:        models.EventType(eventMsg.Type),
		Level:       models.EventLevel(eventMsg.Level),
		Description: eventMsg.Description,
		Details:     models.Variables(eventMsg.Details),
	}

	if eventMsg.SensorUid != "" {
		if uidBytes, err := hex.DecodeString(eventMsg.SensorUid); err == nil && len(uidBytes) == 8 {
			var uid nfc.Uid
			copy(uid[:], uidBytes)
			event.SensorUid = &uid
		}
	}

	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to create event log")
	}

	log.Info().
		Str("reader_id", eventMsg.ReaderID).
		Str("type", eventMsg.Type).
		Str("level", eventMsg.Level).
		Msg("Bridge event processed")
}
