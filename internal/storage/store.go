package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cgm-bridge/cgm-bridge-server/internal/models"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Sensor methods
	CreateSensor(ctx context.Context, sensor *models.SensorRecord) error
	GetSensor(ctx context.Context, uid nfc.Uid) (*models.SensorRecord, error)
	UpdateSensor(ctx context.Context, sensor *models.SensorRecord) error
	DeleteSensor(ctx context.Context, uid nfc.Uid) error
	ListSensors(ctx context.Context, limit, offset int) ([]*models.SensorRecord, int64, error)

	// Scan methods
	CreateScan(ctx context.Context, scan *models.Scan) error
	GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error)
	ListScans(ctx context.Context, sensorUid *nfc.Uid, limit, offset int) ([]*models.Scan, int64, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	SensorUid *nfc.Uid
	ReaderID  *string
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}
