package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
	"github.com/cgm-bridge/cgm-bridge-server/internal/storage"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// ========== Sensor handlers ==========

// HandleListSensors lists sensors
func (s *RESTServer) HandleListSensors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := paginationParams(r)

	sensors, total, err := s.store.ListSensors(ctx, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sensors": sensors,
		"total":   total,
	})
}

// HandleGetSensor gets a sensor
func (s *RESTServer) HandleGetSensor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := parseUid(chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
		return
	}

	sensor, err := s.store.GetSensor(ctx, uid)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "sensor not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, sensor)
}

// HandleUpdateSensor updates the user-editable sensor fields
func (s *RESTServer) HandleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := parseUid(chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
		return
	}

	var req struct {
		Name       string `json:"name" validate:"max=100"`
		IsDisabled bool   `json:"is_disabled"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := s.store.GetSensor(ctx, uid)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "sensor not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sensor.Name = req.Name
	sensor.IsDisabled = req.IsDisabled

	if err := s.store.UpdateSensor(ctx, sensor); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, sensor)
}

// HandleDeleteSensor deletes a sensor
func (s *RESTServer) HandleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := parseUid(chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
		return
	}

	if err := s.store.DeleteSensor(ctx, uid); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "sensor not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Scan handlers ==========

// HandleListSensorScans lists scans for one sensor
func (s *RESTServer) HandleListSensorScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := parseUid(chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
		return
	}

	limit, offset := paginationParams(r)

	scans, total, err := s.store.ListScans(ctx, &uid, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"scans": scans,
		"total": total,
	})
}

// HandleListScans lists scans across all sensors
func (s *RESTServer) HandleListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sensorUid *nfc.Uid
	if q := r.URL.Query().Get("sensor_uid"); q != "" {
		uid, err := parseUid(q)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
			return
		}
		sensorUid = &uid
	}

	limit, offset := paginationParams(r)

	scans, total, err := s.store.ListScans(ctx, sensorUid, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"scans": scans,
		"total": total,
	})
}

// HandleGetScan gets a scan
func (s *RESTServer) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	scan, err := s.store.GetScan(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, scan)
}

// ========== Task handlers ==========

// HandleRequestTask forwards a task request to a bridge. The task runs the
// next time the sensor is presented to that reader.
func (s *RESTServer) HandleRequestTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := parseUid(chi.URLParam(r, "uid"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
		return
	}

	var req struct {
		Task     string `json:"task" validate:"required"`
		ReaderID string `json:"reader_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := nfc.ParseTaskRequest(req.Task); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sensor, err := s.store.GetSensor(ctx, uid)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "sensor not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if sensor.IsDisabled {
		s.respondError(w, http.StatusConflict, "sensor is disabled")
		return
	}

	// Default to the reader that saw the sensor last
	readerID := req.ReaderID
	if readerID == "" {
		readerID = sensor.LastReaderID
	}
	if readerID == "" {
		s.respondError(w, http.StatusBadRequest, "reader_id is required for a sensor that has never been scanned")
		return
	}

	if s.nats == nil {
		s.respondError(w, http.StatusServiceUnavailable, "task forwarding is not available")
		return
	}

	reference := uuid.New().String()
	msg := models.TaskMessage{
		Task:      req.Task,
		SensorUid: uid.String(),
		Reference: reference,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.nats.Publish(models.TaskSubject(readerID), data); err != nil {
		log.Error().Err(err).Str("reader_id", readerID).Msg("Failed to publish task request")
		s.respondError(w, http.StatusBadGateway, "failed to forward task to reader")
		return
	}

	event := &models.EventLog{
		SensorUid:   &uid,
		ReaderID:    &readerID,
		Type:        models.EventTypeTaskQueued,
		Level:       models.EventLevelInfo,
		Description: "task queued via API",
		Details: models.Variables{
			"task":      req.Task,
			"reference": reference,
		},
	}
	if claims := claimsFromContext(ctx); claims != nil {
		event.Details["requested_by"] = claims.Email
	}
	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Warn().Err(err).Msg("Failed to record task event")
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"task":      req.Task,
		"reader_id": readerID,
		"reference": reference,
		"queued_at": time.Now(),
	})
}

// ========== Event handlers ==========

// HandleListEvents lists event logs
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters := storage.EventLogFilters{}
	q := r.URL.Query()

	if v := q.Get("sensor_uid"); v != "" {
		uid, err := parseUid(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid sensor uid")
			return
		}
		filters.SensorUid = &uid
	}

	if v := q.Get("reader_id"); v != "" {
		filters.ReaderID = &v
	}

	if v := q.Get("type"); v != "" {
		t := models.EventType(v)
		filters.Type = &t
	}

	if v := q.Get("level"); v != "" {
		l := models.EventLevel(v)
		filters.Level = &l
	}

	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
		filters.StartTime = &t
	}

	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid end_time")
			return
		}
		filters.EndTime = &t
	}

	limit, offset := paginationParams(r)

	events, total, err := s.store.ListEventLogs(ctx, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
