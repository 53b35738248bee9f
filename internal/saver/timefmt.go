package saver

import (
	"strings"
	"time"
	_ "time/tzdata" // terminals often run on hosts without a zoneinfo database

	"ohlcv-watch/internal/model"
)

// isoLayout always prints a numeric offset, so UTC renders as +00:00.
const isoLayout = "2006-01-02T15:04:05-07:00"

// ResolveZone loads the display location. The literal "UTC" (any case) or an
// empty name keeps timestamps in UTC.
func ResolveZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &model.ConfigError{Field: "timezone", Value: name, Reason: "unknown IANA timezone"}
	}
	return loc, nil
}

// FormatTime renders t as ISO-8601 in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(isoLayout)
}
