package event

import (
	"strconv"
	"strings"
	"time"

	"planevent/internal/i18n"
	"planevent/internal/model"
)

const dateTimeLayout = "2006-01-02 15:04"

// Result is the ordered list of user-facing validation messages.
type Result struct {
	Errors []string `json:"errors"`
}

// Valid reports whether no check failed.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Validate checks the raw form fields and collects every failing concern in
// a fixed order: title, date, time, past start, business hours, contact
// addresses, end time. Dates are read in loc and compared with now.
func Validate(f model.FormState, now time.Time, loc *time.Location, cat *i18n.Catalog) Result {
	tag := cat.Resolve(f.Language)
	errs := make([]string, 0)
	add := func(key i18n.Key, args ...any) {
		errs = append(errs, cat.Text(tag, key, args...))
	}

	if strings.TrimSpace(f.Title) == "" {
		add(i18n.TitleEmpty)
	}
	if f.Date == "" {
		add(i18n.DateEmpty)
	}
	if f.Time == "" {
		add(i18n.TimeEmpty)
	}

	if f.Date != "" && f.Time != "" {
		start, err := ParseStart(f.Date, f.Time, loc)
		switch {
		case err != nil:
			add(i18n.DateTimeInvalid)
		case start.Before(now):
			add(i18n.DateTimePast)
		}
	}

	if f.Advanced && !f.IgnoreWorkHours && f.Time != "" {
		startMin := ParseTimeToMinutes(f.Time)
		if startMin < ParseTimeToMinutes(f.WorkStart) || startMin >= ParseTimeToMinutes(f.WorkEnd) {
			add(i18n.OutsideWorkHours)
		}
	}

	if strings.TrimSpace(f.Contacts) != "" {
		for _, seg := range strings.Split(f.Contacts, ",") {
			seg = strings.TrimSpace(seg)
			if !strings.Contains(seg, "@") {
				add(i18n.InvalidEmail, seg)
			}
		}
	}

	if f.UseEndTime && f.EndTime != "" && f.Time != "" {
		if ParseTimeToMinutes(f.EndTime) <= ParseTimeToMinutes(f.Time) {
			add(i18n.EndBeforeStart)
		}
	}

	return Result{Errors: errs}
}

// ParseTimeToMinutes maps "HH:MM" to minutes since midnight. Empty input is
// 0, and unreadable parts count as 0.
func ParseTimeToMinutes(s string) int {
	if s == "" {
		return 0
	}
	hh, mm, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil {
		return 0
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		m = 0
	}
	return h*60 + m
}

// ParseStart composes "YYYY-MM-DD" and "HH:MM" into a civil time in loc.
func ParseStart(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(dateTimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
}
