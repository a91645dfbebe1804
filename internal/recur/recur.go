// Package recur resolves the recurrence of an event and builds rule strings
// from the graphical rule editor. Rules are never expanded into occurrences.
package recur

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"planevent/internal/model"
)

// Resolve picks the recurrence of a form: non-empty advanced text wins over
// the preset whenever advanced mode is on.
func Resolve(f model.FormState) model.Recurrence {
	if f.Advanced {
		if raw := model.TrimRulePrefix(f.AdvancedRule); raw != "" {
			return model.AdvancedRecurrence(raw)
		}
	}
	return model.PresetRecurrence(model.ParsePreset(f.Recurrence))
}

// Check reports whether rule follows RFC 5545 RRULE grammar. A leading
// "RRULE:" is accepted.
func Check(rule string) error {
	rule = model.TrimRulePrefix(rule)
	if rule == "" {
		return errors.New("rrule is empty")
	}
	if _, err := rrule.StrToROption(rule); err != nil {
		return fmt.Errorf("invalid rrule %q: %w", rule, err)
	}
	return nil
}

// Frequencies offered by the graphical editor.
const (
	Daily   = "DAILY"
	Weekly  = "WEEKLY"
	Monthly = "MONTHLY"
	Yearly  = "YEARLY"
)

// Weekdays lists the BYDAY codes in calendar order.
var Weekdays = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// Builder is the state of the graphical rule editor.
type Builder struct {
	Freq     string   `json:"freq" yaml:"freq"`
	Interval int      `json:"interval" yaml:"interval"`
	Days     []string `json:"days" yaml:"days"`
	// Until is an optional "YYYY-MM-DD" end date.
	Until string `json:"until" yaml:"until"`
}

// NewBuilder returns the editor defaults: weekly, every week, on Monday.
func NewBuilder() Builder {
	return Builder{Freq: Weekly, Interval: 1, Days: []string{"MO"}}
}

// Toggle removes day if selected, otherwise appends it. Selection order is
// kept and ends up in BYDAY.
func (b *Builder) Toggle(day string) {
	day = strings.ToUpper(strings.TrimSpace(day))
	for i, d := range b.Days {
		if d == day {
			b.Days = append(b.Days[:i:i], b.Days[i+1:]...)
			return
		}
	}
	b.Days = append(b.Days, day)
}

// Rule renders FREQ=<f>;INTERVAL=<n>[;BYDAY=<codes>][;UNTIL=<YYYYMMDD>T235959Z].
// BYDAY is dropped for daily rules.
func (b Builder) Rule() (string, error) {
	freq := strings.ToUpper(strings.TrimSpace(b.Freq))
	switch freq {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return "", fmt.Errorf("unsupported frequency %q", b.Freq)
	}
	if b.Interval < 1 {
		return "", fmt.Errorf("interval must be a positive integer, got %d", b.Interval)
	}

	var sb strings.Builder
	sb.WriteString("FREQ=" + freq + ";INTERVAL=" + strconv.Itoa(b.Interval))

	if len(b.Days) > 0 && freq != Daily {
		days := make([]string, 0, len(b.Days))
		for _, d := range b.Days {
			d = strings.ToUpper(strings.TrimSpace(d))
			if !isWeekday(d) {
				return "", fmt.Errorf("unknown weekday %q", d)
			}
			days = append(days, d)
		}
		sb.WriteString(";BYDAY=" + strings.Join(days, ","))
	}

	if until := strings.TrimSpace(b.Until); until != "" {
		if _, err := time.Parse("2006-01-02", until); err != nil {
			return "", fmt.Errorf("invalid until date %q: %w", b.Until, err)
		}
		sb.WriteString(";UNTIL=" + strings.ReplaceAll(until, "-", "") + "T235959Z")
	}

	return sb.String(), nil
}

func isWeekday(d string) bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}
