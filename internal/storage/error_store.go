package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// SQLiteErrorStore keeps error records looked up by resolution tasks
type SQLiteErrorStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteErrorStore creates the error record table on db if needed
func NewSQLiteErrorStore(db *sql.DB, logger *zap.Logger) (*SQLiteErrorStore, error) {
	s := &SQLiteErrorStore{
		logger: logger.Named("error-store"),
		db:     db,
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteErrorStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS error_records (
			error_id TEXT PRIMARY KEY,
			component TEXT NOT NULL,
			error_type TEXT,
			level TEXT NOT NULL,
			message TEXT,
			trace_id TEXT,
			environment TEXT,
			reproducible INTEGER NOT NULL DEFAULT 0,
			resolved INTEGER NOT NULL DEFAULT 0,
			resolved_at DATETIME,
			resolved_by TEXT,
			resolution TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_error_records_component ON error_records(component);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize error store: %w", err)
	}
	return nil
}

// Save inserts or replaces an error record
func (s *SQLiteErrorStore) Save(ctx context.Context, rec *model.ErrorRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var resolvedAt sql.NullTime
	if rec.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: rec.ResolvedAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO error_records (
			error_id, component, error_type, level, message, trace_id, environment,
			reproducible, resolved, resolved_at, resolved_by, resolution, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ErrorID,
		rec.Component,
		rec.ErrorType,
		rec.Level,
		rec.Message,
		rec.TraceID,
		rec.Environment,
		rec.Reproducible,
		rec.Resolved,
		resolvedAt,
		rec.ResolvedBy,
		rec.Resolution,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save error record: %w", err)
	}
	return nil
}

// FindByErrorID returns the record with the given id, or nil if there is none
func (s *SQLiteErrorStore) FindByErrorID(ctx context.Context, errorID string) (*model.ErrorRecord, error) {
	var (
		rec                                              model.ErrorRecord
		errorType, message, traceID, env, by, resolution sql.NullString
		resolvedAt                                       sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT error_id, component, error_type, level, message, trace_id, environment,
			reproducible, resolved, resolved_at, resolved_by, resolution, created_at
		FROM error_records
		WHERE error_id = ?`, errorID).Scan(
		&rec.ErrorID,
		&rec.Component,
		&errorType,
		&rec.Level,
		&message,
		&traceID,
		&env,
		&rec.Reproducible,
		&rec.Resolved,
		&resolvedAt,
		&by,
		&resolution,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan error record: %w", err)
	}

	rec.ErrorType = errorType.String
	rec.Message = message.String
	rec.TraceID = traceID.String
	rec.Environment = env.String
	rec.ResolvedBy = by.String
	rec.Resolution = resolution.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}
	return &rec, nil
}

// MarkResolved records the resolution of an error
func (s *SQLiteErrorStore) MarkResolved(ctx context.Context, errorID string, res model.ErrorResolution) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE error_records SET
			resolved = 1,
			resolved_at = ?,
			resolved_by = ?,
			resolution = ?
		WHERE error_id = ?`,
		res.ResolvedAt.UTC(),
		res.ResolvedBy,
		res.Resolution,
		errorID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark error resolved: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("error", errorID)
	}

	s.logger.Info("Error marked resolved",
		zap.String("error_id", errorID),
		zap.String("resolved_by", res.ResolvedBy))
	return nil
}
