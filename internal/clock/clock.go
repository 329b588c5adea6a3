// Package clock converts naive local date-times into absolute instants for a
// configured user timezone, and back.
//
// Reminder strings come from the extraction step without an offset, so the
// same zone must be used both to tell the extractor what "today" is and to
// convert what it returns. Today and ToAbsolute take the zone name for that
// reason.
//
// DST resolution is deterministic:
//   - an ambiguous wall time (autumn overlap) maps to the earlier instant
//   - a nonexistent wall time (spring gap) is pushed forward by the gap length
package clock

import (
	"fmt"
	"time"
)

// LocalLayout is the canonical wall-clock layout exchanged with the extractor.
const LocalLayout = "2006-01-02T15:04"

// DateLayout is the reference-date layout given to the extractor.
const DateLayout = "2006-01-02"

// accepted input layouts, most specific first
var localLayouts = []string{
	"2006-01-02T15:04:05",
	LocalLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// LoadZone resolves an IANA timezone name.
func LoadZone(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, fmt.Errorf("empty timezone")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ParseLocal parses a naive date-time into its wall-clock fields. The result
// is expressed in UTC only as a carrier; it is not an instant.
func ParseLocal(s string) (time.Time, error) {
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid local date-time %q (want %s)", s, LocalLayout)
}

// ToAbsolute converts a naive local date-time in zone tz to a UTC instant.
func ToAbsolute(local, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	wall, err := ParseLocal(local)
	if err != nil {
		return time.Time{}, err
	}
	return Resolve(wall, loc), nil
}

// Resolve maps wall-clock fields (carried in a UTC time) to an instant in loc.
//
// Offsets are sampled a day either side of the wall time. At most one
// transition falls inside that window for any real zone, so the two samples
// are the only candidate offsets.
func Resolve(wall time.Time, loc *time.Location) time.Time {
	wall = time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, time.UTC)

	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()
	_, after := wall.Add(24 * time.Hour).In(loc).Zone()

	early := wall.Add(-time.Duration(before) * time.Second)
	late := wall.Add(-time.Duration(after) * time.Second)

	earlyOK := matchesWall(early, wall, loc)
	lateOK := matchesWall(late, wall, loc)

	switch {
	case earlyOK && lateOK:
		if late.Before(early) {
			return late.UTC()
		}
		return early.UTC()
	case earlyOK:
		return early.UTC()
	case lateOK:
		return late.UTC()
	default:
		// gap: applying the pre-transition offset lands past the gap
		return early.UTC()
	}
}

func matchesWall(instant, wall time.Time, loc *time.Location) bool {
	l := instant.In(loc)
	return l.Year() == wall.Year() && l.Month() == wall.Month() && l.Day() == wall.Day() &&
		l.Hour() == wall.Hour() && l.Minute() == wall.Minute() && l.Second() == wall.Second()
}

// ToLocal renders an instant as a naive local date-time in zone tz.
func ToLocal(instant time.Time, tz string) (string, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(LocalLayout), nil
}

// Today returns the calendar date of now in zone tz.
func Today(now time.Time, tz string) (string, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return "", err
	}
	return now.In(loc).Format(DateLayout), nil
}
