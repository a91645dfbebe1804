package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "planevent/internal/log"
	"planevent/internal/model"
	"planevent/internal/recur"
)

const (
	// ProductID identifies planevent as the producer of exported files.
	ProductID = "-//planevent//planevent 1.0//EN"

	localLayout = "20060102T150405"
)

// EncodeOptions tweaks values that are normally generated.
type EncodeOptions struct {
	// UID of the VEVENT; a random UUID when empty.
	UID string
	// Stamp is DTSTAMP; time.Now when zero.
	Stamp time.Time
}

// Encode serializes one descriptor as a VCALENDAR with a single VEVENT:
//
//   - DTSTART carries the civil start with TZID when a zone is known
//   - DURATION is PT<n>M
//   - attendees are mailto: URIs with CN when a name was typed
//   - an advanced-mode reminder becomes a DISPLAY VALARM
//
// The recurrence rule is grammar-checked and the payload is parsed back
// before it is returned.
func Encode(d model.Descriptor, opts EncodeOptions) ([]byte, error) {
	if d.DurationMinutes <= 0 {
		return nil, errors.New("ics: duration must be positive")
	}

	uid := opts.UID
	if uid == "" {
		uid = uuid.NewString() + "@planevent"
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(stamp)

	var startParams []ical.PropertyParameter
	if d.TimeZone != "" {
		startParams = append(startParams, ical.WithTZID(d.TimeZone))
	}
	ev.AddProperty(ical.ComponentPropertyDtStart, d.Start.Format(localLayout), startParams...)
	ev.AddProperty(ical.ComponentProperty(ical.PropertyDuration), "PT"+strconv.Itoa(d.DurationMinutes)+"M")

	ev.SetSummary(d.Title)
	if d.Description != "" {
		ev.SetDescription(d.Description)
	}
	if d.Location != "" {
		ev.SetLocation(d.Location)
	}

	for _, a := range d.Attendees {
		params := []ical.PropertyParameter{
			&ical.KeyValues{Key: string(ical.ParameterRsvp), Value: []string{"TRUE"}},
		}
		if a.Name != "" {
			params = append(params, ical.WithCN(a.Name))
		}
		ev.AddProperty(ical.ComponentPropertyAttendee, "mailto:"+a.Email, params...)
	}

	if d.Alarm != nil {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger("-PT" + strconv.Itoa(d.Alarm.MinutesBefore) + "M")
		alarm.SetDescription(d.Alarm.Description)
	}

	for _, uri := range d.Attachments {
		ev.AddProperty(ical.ComponentPropertyAttach, uri)
	}

	if rule, ok := d.Recurrence.Rule(); ok {
		if err := recur.Check(rule); err != nil {
			return nil, fmt.Errorf("ics: %w", err)
		}
		ev.AddProperty(ical.ComponentPropertyRrule, rule)
	}

	class := "PUBLIC"
	if d.Visibility == model.Private {
		class = "PRIVATE"
	}
	ev.AddProperty(ical.ComponentPropertyClass, class)

	out := []byte(cal.Serialize(ical.WithNewLineWindows))

	if _, err := Decode(bytes.NewReader(out)); err != nil {
		appLog.Error("ics self-check failed", err, "uid", uid)
		return nil, fmt.Errorf("ics: generated payload does not parse: %w", err)
	}

	appLog.Debug("ics encoded", "uid", uid, "bytes", len(out), "attendees", len(d.Attendees))
	return out, nil
}
