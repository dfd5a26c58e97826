package session

import (
	"fmt"
	"time"
)

// TimestampLayout is how timestamps are rendered in output rows.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatDuration renders d as zero-padded HH:MM:SS. Hours are not wrapped at
// 24 and sub-second parts are truncated.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)

	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
