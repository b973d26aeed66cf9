package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseTime(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("CET", 3600))

	parsed, err := ParseTime(FormatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))

	parsed, err = ParseTime("2026-03-01T11:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 11, parsed.Hour())

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestNullTime(t *testing.T) {
	assert.False(t, FormatNullTime(nil).Valid)

	parsed, err := ParseNullTime(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, parsed)

	now := time.Now()
	parsed, err = ParseNullTime(FormatNullTime(&now))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, now.Equal(*parsed))
}

func TestFormatTimeSortsChronologically(t *testing.T) {
	earlier := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(1500 * time.Millisecond)

	assert.Less(t, FormatTime(earlier), FormatTime(later))
}
