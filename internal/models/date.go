package models

import "time"

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
