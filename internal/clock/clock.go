// Package clock provides the wall clock used for "is it in the past"
// decisions and reminder timing.
package clock

import "time"

// Clock reports the current instant and the device-local location in which
// form dates are interpreted.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// System is the real clock in the process-local zone.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Location() *time.Location { return time.Local }

// Fixed is a frozen clock, handy for tests and dry runs.
type Fixed struct {
	At  time.Time
	Loc *time.Location
}

func (f Fixed) Now() time.Time { return f.At }

func (f Fixed) Location() *time.Location {
	if f.Loc == nil {
		return time.UTC
	}
	return f.Loc
}

// Snapshot is the current time as shown next to the form.
type Snapshot struct {
	Time string `json:"time"`
	Date string `json:"date"`
}

// Display formats now as "HH:mm" and "dd.MM.yyyy".
func Display(c Clock) Snapshot {
	now := c.Now().In(c.Location())
	return Snapshot{Time: now.Format("15:04"), Date: now.Format("02.01.2006")}
}
