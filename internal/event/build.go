package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"planevent/internal/contacts"
	"planevent/internal/i18n"
	"planevent/internal/model"
	"planevent/internal/recur"
)

// DefaultDurationMinutes applies when no usable preset duration is set.
const DefaultDurationMinutes = 60

// ErrNonPositiveDuration is returned when the end time is not after the start.
var ErrNonPositiveDuration = errors.New("event duration must be positive")

// Build derives the export descriptor from a form that passed Validate.
// Dates are interpreted in loc.
func Build(f model.FormState, loc *time.Location, cat *i18n.Catalog) (model.Descriptor, error) {
	start, err := ParseStart(f.Date, f.Time, loc)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("parse start: %w", err)
	}

	duration, err := resolveDuration(f, start, loc)
	if err != nil {
		return model.Descriptor{}, err
	}

	tag := cat.Resolve(f.Language)
	parsed := contacts.Parse(f.Contacts)

	d := model.Descriptor{
		Title:           strings.TrimSpace(f.Title),
		Location:        strings.TrimSpace(f.Location),
		Description:     f.Description,
		Start:           start,
		TimeZone:        f.TimeZone,
		DurationMinutes: duration,
		Recurrence:      recur.Resolve(f),
		Visibility:      resolveVisibility(f.Visibility),
		Attendees:       parsed.Attendees,
		Emails:          parsed.Emails,
		Attachments:     nonBlank(f.Attachments),
		Language:        tag.String(),
	}

	if f.Advanced {
		d.Alarm = &model.Alarm{
			MinutesBefore: f.ReminderMinutes,
			Description:   cat.Text(tag, i18n.AlarmDescription, d.Title),
		}
	}

	return d, nil
}

// resolveDuration prefers an explicit end time on the start date over the
// preset duration.
func resolveDuration(f model.FormState, start time.Time, loc *time.Location) (int, error) {
	if f.UseEndTime && f.EndTime != "" {
		end, err := ParseStart(f.Date, f.EndTime, loc)
		if err != nil {
			return 0, fmt.Errorf("parse end time: %w", err)
		}
		minutes := int(end.Sub(start) / time.Minute)
		if minutes <= 0 {
			return 0, ErrNonPositiveDuration
		}
		return minutes, nil
	}
	if f.DurationMinutes <= 0 {
		return DefaultDurationMinutes, nil
	}
	return f.DurationMinutes, nil
}

func resolveVisibility(v model.Visibility) model.Visibility {
	if model.Visibility(strings.ToLower(string(v))) == model.Private {
		return model.Private
	}
	return model.Public
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
