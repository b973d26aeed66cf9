package database

import (
	"database/sql"
	"time"
)

// SQLite stores timestamps as TEXT in this layout so lexical order matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for a SQLite TEXT column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// FormatNullTime renders an optional timestamp, mapping nil to NULL.
func FormatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// ParseTime parses a timestamp written by FormatTime. RFC3339 values written
// by other tools are accepted as well.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ParseNullTime parses an optional timestamp column.
func ParseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := ParseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
