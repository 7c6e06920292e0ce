package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/model"
)

// AlertRecord is one alert written by the database channel
type AlertRecord struct {
	ID       int64        `json:"id"`
	Alert    *model.Alert `json:"alert"`
	StoredAt time.Time    `json:"stored_at"`
}

// AlertLogFilter narrows List and Count. Zero fields are ignored.
type AlertLogFilter struct {
	AlertID  string
	Type     string
	Severity model.AlertSeverity
	Since    time.Time
}

// AlertLog defines the interface for the durable alert log
type AlertLog interface {
	// Store appends an alert
	Store(ctx context.Context, alert *model.Alert) error

	// List retrieves records newest first
	List(ctx context.Context, filter AlertLogFilter, offset, limit int) ([]*AlertRecord, error)

	// Count returns the number of records matching the filter
	Count(ctx context.Context, filter AlertLogFilter) (int, error)

	// DeleteBefore deletes records stored before the given time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteAlertLog implements AlertLog using SQLite
type SQLiteAlertLog struct {
	logger *zap.Logger
	db     *sql.DB
	now    func() time.Time
}

// NewSQLiteAlertLog creates the alert log table on db if needed
func NewSQLiteAlertLog(db *sql.DB, logger *zap.Logger) (*SQLiteAlertLog, error) {
	s := &SQLiteAlertLog{
		logger: logger.Named("alert-log"),
		db:     db,
		now:    time.Now,
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteAlertLog) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			components TEXT,
			metrics TEXT,
			actions TEXT,
			alert_timestamp DATETIME NOT NULL,
			stored_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alert_log_alert_id ON alert_log(alert_id);
		CREATE INDEX IF NOT EXISTS idx_alert_log_severity ON alert_log(severity);
		CREATE INDEX IF NOT EXISTS idx_alert_log_stored_at ON alert_log(stored_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize alert log: %w", err)
	}
	return nil
}

// Store implements AlertLog.Store
func (s *SQLiteAlertLog) Store(ctx context.Context, alert *model.Alert) error {
	components, err := json.Marshal(alert.Components)
	if err != nil {
		return fmt.Errorf("failed to marshal components: %w", err)
	}
	metrics, err := json.Marshal(alert.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	actions, err := json.Marshal(alert.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_log (
			alert_id, type, severity, title, description,
			components, metrics, actions, alert_timestamp, stored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Type,
		string(alert.Severity),
		alert.Title,
		alert.Description,
		string(components),
		string(metrics),
		string(actions),
		alert.Timestamp.UTC(),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}
	return nil
}

// List implements AlertLog.List
func (s *SQLiteAlertLog) List(ctx context.Context, filter AlertLogFilter, offset, limit int) ([]*AlertRecord, error) {
	where, args := filter.clause()
	query := `SELECT id, alert_id, type, severity, title, description, components, metrics, actions,
		alert_timestamp, stored_at FROM alert_log` + where + " ORDER BY stored_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var records []*AlertRecord
	for rows.Next() {
		var (
			rec                         AlertRecord
			alert                       model.Alert
			severity                    string
			description                 sql.NullString
			components, metrics, action sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&alert.ID,
			&alert.Type,
			&severity,
			&alert.Title,
			&description,
			&components,
			&metrics,
			&action,
			&alert.Timestamp,
			&rec.StoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		alert.Severity = model.AlertSeverity(severity)
		alert.Description = description.String
		if err := decodeJSON(components, &alert.Components); err != nil {
			return nil, fmt.Errorf("failed to decode components: %w", err)
		}
		if err := decodeJSON(metrics, &alert.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		if err := decodeJSON(action, &alert.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions: %w", err)
		}

		rec.Alert = &alert
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// Count implements AlertLog.Count
func (s *SQLiteAlertLog) Count(ctx context.Context, filter AlertLogFilter) (int, error) {
	where, args := filter.clause()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_log"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// DeleteBefore implements AlertLog.DeleteBefore
func (s *SQLiteAlertLog) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alert_log WHERE stored_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete alerts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old alert log records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

func (f AlertLogFilter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.AlertID != "" {
		conds = append(conds, "alert_id = ?")
		args = append(args, f.AlertID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "stored_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func decodeJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
