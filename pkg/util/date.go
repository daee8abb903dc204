package util

import "time"

// MonthStamp formats t as the YYYY-MM bucket used for quota accounting.
// Always evaluated in UTC so every process agrees on the boundary.
func MonthStamp(t time.Time) string {
	return t.UTC().Format("2006-01")
}
