// Package markethours answers whether the exchange session is open at a given instant.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata" // the oracle must work on images without a zoneinfo database
)

// Oracle knows a single daily trading window in a fixed timezone, Monday to Friday.
// There is no holiday calendar.
type Oracle struct {
	loc   *time.Location
	open  time.Duration // offset from local midnight, inclusive
	close time.Duration // offset from local midnight, inclusive
}

// New builds an Oracle for the given IANA timezone and "HH:MM" window bounds.
func New(timezone, open, close string) (*Oracle, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	openAt, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("parse market open: %w", err)
	}
	closeAt, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("parse market close: %w", err)
	}
	if closeAt < openAt {
		return nil, fmt.Errorf("market close %s is before open %s", close, open)
	}

	return &Oracle{loc: loc, open: openAt, close: closeAt}, nil
}

// IsOpen reports whether now falls on a weekday inside the trading window.
func (o *Oracle) IsOpen(now time.Time) bool {
	local := now.In(o.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())

	return sinceMidnight >= o.open && sinceMidnight <= o.close
}

// Location returns the session timezone.
func (o *Oracle) Location() *time.Location { return o.loc }

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
