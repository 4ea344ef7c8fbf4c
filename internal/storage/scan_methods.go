package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// ========== Scan Methods ==========

// CreateScan creates a scan record
func (s *PostgresStore) CreateScan(ctx context.Context, scan *models.Scan) error {
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	scan.CreatedAt = time.Now()

	query := `
        INSERT INTO scans (
            id, created_at, sensor_uid, reader_id, task,
            fram, raw_dump, succeeded, error, duration_ms
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		scan.ID, scan.CreatedAt, scan.SensorUid[:], scan.ReaderID, scan.Task,
		scan.Fram, scan.RawDump, scan.Succeeded, scan.Error,
		scan.Duration.Milliseconds(),
	)

	return err
}

// GetScan gets a scan by id
func (s *PostgresStore) GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error) {
	query := `
        SELECT id, created_at, sensor_uid, reader_id, task,
               fram, raw_dump, succeeded, error, duration_ms
        FROM scans
        WHERE id = $1`

	scan := &models.Scan{}
	var uidBytes []byte
	var durationMs int64

	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&scan.ID, &scan.CreatedAt, &uidBytes, &scan.ReaderID, &scan.Task,
		&scan.Fram, &scan.RawDump, &scan.Succeeded, &scan.Error, &durationMs,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	copy(scan.SensorUid[:], uidBytes)
	scan.Duration = time.Duration(durationMs) * time.Millisecond

	return scan, nil
}

// ListScans lists scans, optionally filtered by sensor uid
func (s *PostgresStore) ListScans(ctx context.Context, sensorUid *nfc.Uid, limit, offset int) ([]*models.Scan, int64, error) {
	countQuery := "SELECT COUNT(*) FROM scans"
	listQuery := `
        SELECT id, created_at, sensor_uid, reader_id, task,
               fram, raw_dump, succeeded, error, duration_ms
        FROM scans`

	args := []interface{}{}
	if sensorUid != nil {
		countQuery += " WHERE sensor_uid = $1"
		listQuery += " WHERE sensor_uid = $1"
		args = append(args, (*sensorUid)[:])
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	listQuery += " ORDER BY created_at DESC"
	if sensorUid != nil {
		listQuery += " LIMIT $2 OFFSET $3"
	} else {
		listQuery += " LIMIT $1 OFFSET $2"
	}
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var scans []*models.Scan
	for rows.Next() {
		scan := &models.Scan{}
		var uidBytes []byte
		var durationMs int64

		err := rows.Scan(
			&scan.ID, &scan.CreatedAt, &uidBytes, &scan.ReaderID, &scan.Task,
			&scan.Fram, &scan.RawDump, &scan.Succeeded, &scan.Error, &durationMs,
		)
		if err != nil {
			return nil, 0, err
		}

		copy(scan.SensorUid[:], uidBytes)
		scan.Duration = time.Duration(durationMs) * time.Millisecond

		scans = append(scans, scan)
	}

	return scans, count, nil
}
