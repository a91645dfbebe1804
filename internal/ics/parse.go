package ics

import (
	"errors"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"
)

// ParsedEvent is the flat view of an exported VEVENT. It is used to check
// generated payloads before they leave Encode.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string
	Class       string

	// Start is the raw DTSTART value, StartTZ its TZID parameter.
	Start    string
	StartTZ  string
	Duration string

	RawRRule    string
	Attendees   []ParsedAttendee
	Attachments []string
	Alarms      []ParsedAlarm
}

type ParsedAttendee struct {
	Name  string
	Email string
	RSVP  bool
}

type ParsedAlarm struct {
	Action      string
	Trigger     string
	Description string
}

// Decode parses an ICS payload and returns its VEVENTs.
func Decode(r io.Reader) ([]ParsedEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			return nil, perr
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil, errors.New("no VEVENT in calendar")
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.Class = propValue(ve, ical.ComponentPropertyClass)
	out.Duration = propValue(ve, ical.ComponentProperty(ical.PropertyDuration))
	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.Start = dtStart.Value
	out.StartTZ = firstParam(dtStart, string(ical.ParameterTzid))

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		email := p.Value
		if len(email) >= len("mailto:") && strings.EqualFold(email[:len("mailto:")], "mailto:") {
			email = email[len("mailto:"):]
		}
		out.Attendees = append(out.Attendees, ParsedAttendee{
			Name:  firstParam(p, string(ical.ParameterCn)),
			Email: email,
			RSVP:  strings.EqualFold(firstParam(p, string(ical.ParameterRsvp)), "TRUE"),
		})
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttach) {
		out.Attachments = append(out.Attachments, p.Value)
	}

	for _, a := range ve.Alarms() {
		out.Alarms = append(out.Alarms, ParsedAlarm{
			Action:      alarmValue(a, ical.ComponentPropertyAction),
			Trigger:     alarmValue(a, ical.ComponentPropertyTrigger),
			Description: alarmValue(a, ical.ComponentPropertyDescription),
		})
	}

	return out, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func alarmValue(a *ical.VAlarm, prop ical.ComponentProperty) string {
	if p := a.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func firstParam(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
