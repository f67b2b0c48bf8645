package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Severity levels for durable log entries.
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// LogEntry is a durable diagnostic row. Failed pipeline runs write one so the
// failure survives process restarts, unlike the operational slog stream.
type LogEntry struct {
	ID       int64
	Time     string
	Severity string
	Msg      string
	Info     map[string]any
}

// AddLogEntry persists a diagnostic row and returns its id. Info is stored as
// JSON; a nil map stores the empty string.
func (s *DB) AddLogEntry(ctx context.Context, severity, msg string, info map[string]any) (int64, error) {
	encoded := ""
	if len(info) > 0 {
		b, err := json.Marshal(info)
		if err != nil {
			return 0, fmt.Errorf("encode log info: %w", err)
		}
		encoded = string(b)
	}
	return s.InsertReturningID(ctx,
		`INSERT INTO logging (severity, msg, information) VALUES (?, ?, ?) RETURNING logging_id`,
		severity, msg, encoded)
}

// LogEntryByID loads a single diagnostic row.
func (s *DB) LogEntryByID(ctx context.Context, id int64) (LogEntry, error) {
	row, err := s.FetchOne(ctx,
		`SELECT logging_id, time, severity, msg, information FROM logging WHERE logging_id = ?`, id)
	if err != nil {
		return LogEntry{}, err
	}
	e := LogEntry{
		ID:       toInt64(row["logging_id"]),
		Time:     fmt.Sprint(row["time"]),
		Severity: fmt.Sprint(row["severity"]),
		Msg:      fmt.Sprint(row["msg"]),
	}
	if raw, _ := row["information"].(string); raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.Info); err != nil {
			return LogEntry{}, fmt.Errorf("decode log info: %w", err)
		}
	}
	return e, nil
}

// toInt64 normalizes the integer types the two drivers hand back.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// AsInt64 exposes driver-integer normalization to packages reading Rows.
func AsInt64(v any) int64 { return toInt64(v) }

// AsString renders a Row value as a string, with nil mapping to "".
func AsString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
