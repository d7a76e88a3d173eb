// Package sqlite provides the SQLite-backed delivery log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/iuprojects/lcnotes/internal/platform/storage/sqlitemigrate"
	"github.com/iuprojects/lcnotes/internal/services/mailer/storage"
	"github.com/iuprojects/lcnotes/internal/services/mailer/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for delivery records.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.DeliveryStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the delivery log at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordDelivery inserts one delivery record. Records are append-only; a
// duplicate id is an error.
func (s *Store) RecordDelivery(ctx context.Context, record storage.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeDeliveryRecord(record)
	if err != nil {
		return err
	}
	recipients, err := json.Marshal(normalized.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO mailer_deliveries (
	id,
	message_id,
	trigger_id,
	trigger_time,
	transport,
	recipients_json,
	subject,
	status,
	permanent,
	last_error,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.MessageID,
		normalized.TriggerID,
		toMillis(normalized.TriggerTime),
		normalized.Transport,
		string(recipients),
		normalized.Subject,
		string(normalized.Status),
		boolToInt(normalized.Permanent),
		normalized.LastError,
		toMillis(normalized.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// GetDelivery loads one delivery record by id.
func (s *Store) GetDelivery(ctx context.Context, id string) (storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DeliveryRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.DeliveryRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.DeliveryRecord{}, fmt.Errorf("delivery id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, message_id, trigger_id, trigger_time, transport, recipients_json, subject, status, permanent, last_error, created_at
FROM mailer_deliveries
WHERE id = ?
`, id)
	record, err := scanDelivery(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DeliveryRecord{}, storage.ErrNotFound
		}
		return storage.DeliveryRecord{}, fmt.Errorf("get delivery: %w", err)
	}
	return record, nil
}

// ListDeliveries lists newest-first delivery records.
func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, message_id, trigger_id, trigger_time, transport, recipients_json, subject, status, permanent, last_error, created_at
FROM mailer_deliveries
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	records := make([]storage.DeliveryRecord, 0, limit)
	for rows.Next() {
		record, scanErr := scanDelivery(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan delivery row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery rows: %w", err)
	}
	return records, nil
}

type scanner func(dest ...any) error

func scanDelivery(scan scanner) (storage.DeliveryRecord, error) {
	var (
		record         storage.DeliveryRecord
		triggerTime    int64
		recipientsJSON string
		status         string
		permanent      int
		createdAt      int64
	)
	if err := scan(
		&record.ID,
		&record.MessageID,
		&record.TriggerID,
		&triggerTime,
		&record.Transport,
		&recipientsJSON,
		&record.Subject,
		&status,
		&permanent,
		&record.LastError,
		&createdAt,
	); err != nil {
		return storage.DeliveryRecord{}, err
	}
	if err := json.Unmarshal([]byte(recipientsJSON), &record.Recipients); err != nil {
		return storage.DeliveryRecord{}, fmt.Errorf("decode recipients: %w", err)
	}
	record.TriggerTime = fromMillis(triggerTime)
	record.Status = storage.DeliveryStatus(status)
	record.Permanent = permanent != 0
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func normalizeDeliveryRecord(record storage.DeliveryRecord) (storage.DeliveryRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.MessageID = strings.TrimSpace(record.MessageID)
	record.TriggerID = strings.TrimSpace(record.TriggerID)
	record.Transport = strings.TrimSpace(record.Transport)
	record.Subject = strings.TrimSpace(record.Subject)
	record.LastError = strings.TrimSpace(record.LastError)
	if record.Recipients == nil {
		record.Recipients = []string{}
	}
	if record.ID == "" {
		return storage.DeliveryRecord{}, fmt.Errorf("delivery id is required")
	}
	if record.MessageID == "" {
		return storage.DeliveryRecord{}, fmt.Errorf("message id is required")
	}
	if record.Transport == "" {
		return storage.DeliveryRecord{}, fmt.Errorf("transport is required")
	}
	switch record.Status {
	case storage.DeliveryStatusDelivered, storage.DeliveryStatusFailed:
	default:
		return storage.DeliveryRecord{}, fmt.Errorf("delivery status %q is invalid", record.Status)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return record, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
