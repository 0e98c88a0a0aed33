package compliance

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.midnightUTC().Format(dateLayout)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// DaysSince returns the number of calendar days from earlier to d. A change at
// 23:59 and a check at 00:01 the next day count as one day.
func (d Date) DaysSince(earlier Date) int {
	return int(d.midnightUTC().Sub(earlier.midnightUTC()).Hours() / 24)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// midnightUTC is used for arithmetic only; UTC has no DST so day differences are exact.
func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Clock provides the current instant and the current calendar date in the
// installation's configured time zone.
type Clock interface {
	Now() time.Time
	Today() Date
}

// ZoneClock is a Clock bound to a time zone.
type ZoneClock struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewZoneClock returns a Clock reading the wall clock in loc. A nil loc means UTC.
func NewZoneClock(loc *time.Location) *ZoneClock {
	return NewZoneClockWith(clockwork.NewRealClock(), loc)
}

// NewZoneClockWith wraps an existing clockwork.Clock, such as a fake clock in tests.
func NewZoneClockWith(clock clockwork.Clock, loc *time.Location) *ZoneClock {
	if loc == nil {
		loc = time.UTC
	}
	return &ZoneClock{clock: clock, loc: loc}
}

// LoadZoneClock resolves an IANA time zone name and returns a ZoneClock for it.
func LoadZoneClock(name string) (*ZoneClock, error) {
	if name == "" {
		return NewZoneClock(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return NewZoneClock(loc), nil
}

func (c *ZoneClock) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

func (c *ZoneClock) Today() Date {
	return DateOf(c.Now())
}

// Location returns the configured time zone.
func (c *ZoneClock) Location() *time.Location {
	return c.loc
}
