package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// ========== Sensor Methods ==========

// CreateSensor creates a new sensor record
func (s *PostgresStore) CreateSensor(ctx context.Context, sensor *models.SensorRecord) error {
	if sensor.ID == uuid.Nil {
		sensor.ID = uuid.New()
	}

	now := time.Now()
	sensor.CreatedAt = now
	sensor.UpdatedAt = now

	query := `
        INSERT INTO sensors (
            id, uid, created_at, updated_at, patch_info, type,
            security_generation, state, name, streaming_address,
            streaming_unlock_count, last_reader_id, last_scan_at, is_disabled
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		sensor.ID, sensor.Uid[:], sensor.CreatedAt, sensor.UpdatedAt,
		[]byte(sensor.PatchInfo), string(sensor.Type), sensor.SecurityGeneration,
		sensor.State, sensor.Name, sensor.StreamingAddress,
		sensor.StreamingUnlockCount, sensor.LastReaderID, sensor.LastScanAt,
		sensor.IsDisabled,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetSensor gets a sensor by uid
func (s *PostgresStore) GetSensor(ctx context.Context, uid nfc.Uid) (*models.SensorRecord, error) {
	query := `
        SELECT id, uid, created_at, updated_at, patch_info, type,
               security_generation, state, name, streaming_address,
               streaming_unlock_count, last_reader_id, last_scan_at, is_disabled
        FROM sensors
        WHERE uid = $1`

	sensor := &models.SensorRecord{}
	var uidBytes, patchInfoBytes []byte
	var sensorType string

	err := s.getDB().QueryRowContext(ctx, query, uid[:]).Scan(
		&sensor.ID, &uidBytes, &sensor.CreatedAt, &sensor.UpdatedAt,
		&patchInfoBytes, &sensorType, &sensor.SecurityGeneration,
		&sensor.State, &sensor.Name, &sensor.StreamingAddress,
		&sensor.StreamingUnlockCount, &sensor.LastReaderID, &sensor.LastScanAt,
		&sensor.IsDisabled,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	copy(sensor.Uid[:], uidBytes)
	sensor.PatchInfo = nfc.PatchInfo(patchInfoBytes)
	sensor.Type = nfc.SensorType(sensorType)

	return sensor, nil
}

// UpdateSensor updates a sensor record
func (s *PostgresStore) UpdateSensor(ctx context.Context, sensor *models.SensorRecord) error {
	sensor.UpdatedAt = time.Now()

	query := `
        UPDATE sensors SET
            updated_at = $2, patch_info = $3, type = $4,
            security_generation = $5, state = $6, name = $7,
            streaming_address = $8, streaming_unlock_count = $9,
            last_reader_id = $10, last_scan_at = $11, is_disabled = $12
        WHERE uid = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		sensor.Uid[:], sensor.UpdatedAt, []byte(sensor.PatchInfo),
		string(sensor.Type), sensor.SecurityGeneration, sensor.State,
		sensor.Name, sensor.StreamingAddress, sensor.StreamingUnlockCount,
		sensor.LastReaderID, sensor.LastScanAt, sensor.IsDisabled,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteSensor deletes a sensor record
func (s *PostgresStore) DeleteSensor(ctx context.Context, uid nfc.Uid) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM sensors WHERE uid = $1", uid[:])
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListSensors lists sensor records
func (s *PostgresStore) ListSensors(ctx context.Context, limit, offset int) ([]*models.SensorRecord, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sensors").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, uid, created_at, updated_at, patch_info, type,
               security_generation, state, name, streaming_address,
               streaming_unlock_count, last_reader_id, last_scan_at, is_disabled
        FROM sensors
        ORDER BY last_scan_at DESC NULLS LAST
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sensors []*models.SensorRecord
	for rows.Next() {
		sensor := &models.SensorRecord{}
		var uidBytes, patchInfoBytes []byte
		var sensorType string

		err := rows.Scan(
			&sensor.ID, &uidBytes, &sensor.CreatedAt, &sensor.UpdatedAt,
			&patchInfoBytes, &sensorType, &sensor.SecurityGeneration,
			&sensor.State, &sensor.Name, &sensor.StreamingAddress,
			&sensor.StreamingUnlockCount, &sensor.LastReaderID, &sensor.LastScanAt,
			&sensor.IsDisabled,
		)
		if err != nil {
			return nil, 0, err
		}

		copy(sensor.Uid[:], uidBytes)
		sensor.PatchInfo = nfc.PatchInfo(patchInfoBytes)
		sensor.Type = nfc.SensorType(sensorType)

		sensors = append(sensors, sensor)
	}

	return sensors, count, nil
}
