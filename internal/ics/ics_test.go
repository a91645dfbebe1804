package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"planevent/internal/model"
)

func sampleDescriptor() model.Descriptor {
	return model.Descriptor{
		Title:           "Planning",
		Location:        "Room 4",
		Description:     "Quarterly agenda",
		Start:           time.Date(2030, 1, 15, 10, 0, 0, 0, time.UTC),
		TimeZone:        "Europe/Warsaw",
		DurationMinutes: 90,
		Recurrence:      model.PresetRecurrence(model.PresetWorkdays),
		Visibility:      model.Private,
		Attendees: []model.Attendee{
			{Name: "John", Email: "john@example.com"},
			{Email: "anna@example.com"},
		},
		Attachments: []string{"https://example.com/agenda.pdf"},
		Alarm:       &model.Alarm{MinutesBefore: 15, Description: "Event reminder: Planning"},
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	out, err := Encode(sampleDescriptor(), EncodeOptions{UID: "uid-1@planevent", Stamp: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	for _, want := range []string{"BEGIN:VCALENDAR", "METHOD:PUBLISH", "BEGIN:VALARM", "END:VCALENDAR"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}

	events, err := Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.UID != "uid-1@planevent" || ev.Summary != "Planning" || ev.Location != "Room 4" || ev.Description != "Quarterly agenda" {
		t.Fatalf("unexpected text fields %+v", ev)
	}
	if ev.Start != "20300115T100000" || ev.StartTZ != "Europe/Warsaw" {
		t.Fatalf("unexpected start %s tz=%s", ev.Start, ev.StartTZ)
	}
	if ev.Duration != "PT90M" {
		t.Fatalf("unexpected duration %s", ev.Duration)
	}
	if ev.RawRRule != "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR" {
		t.Fatalf("unexpected rrule %s", ev.RawRRule)
	}
	if ev.Class != "PRIVATE" {
		t.Fatalf("unexpected class %s", ev.Class)
	}
	if len(ev.Attendees) != 2 ||
		ev.Attendees[0].Name != "John" || ev.Attendees[0].Email != "john@example.com" || !ev.Attendees[0].RSVP ||
		ev.Attendees[1].Name != "" || ev.Attendees[1].Email != "anna@example.com" {
		t.Fatalf("unexpected attendees %+v", ev.Attendees)
	}
	if len(ev.Attachments) != 1 || ev.Attachments[0] != "https://example.com/agenda.pdf" {
		t.Fatalf("unexpected attachments %v", ev.Attachments)
	}
	if len(ev.Alarms) != 1 || ev.Alarms[0].Action != "DISPLAY" || ev.Alarms[0].Trigger != "-PT15M" || ev.Alarms[0].Description != "Event reminder: Planning" {
		t.Fatalf("unexpected alarms %+v", ev.Alarms)
	}
}

func TestEncodeMinimal(t *testing.T) {
	d := model.Descriptor{
		Title:           "Call",
		Start:           time.Date(2030, 2, 1, 8, 5, 0, 0, time.UTC),
		DurationMinutes: 30,
		Recurrence:      model.NoRecurrence(),
		Visibility:      model.Public,
	}
	out, err := Encode(d, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events, err := Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	ev := events[0]
	if ev.UID == "" || !strings.HasSuffix(ev.UID, "@planevent") {
		t.Fatalf("expected generated UID, got %q", ev.UID)
	}
	if ev.StartTZ != "" || ev.Start != "20300201T080500" {
		t.Fatalf("floating start expected, got %s tz=%q", ev.Start, ev.StartTZ)
	}
	if ev.RawRRule != "" || len(ev.Alarms) != 0 || len(ev.Attendees) != 0 || ev.Class != "PUBLIC" {
		t.Fatalf("unexpected optional fields %+v", ev)
	}
}

func TestEncodeErrors(t *testing.T) {
	d := sampleDescriptor()
	d.Recurrence = model.AdvancedRecurrence("FREQ=SOMETIMES")
	if _, err := Encode(d, EncodeOptions{}); err == nil {
		t.Fatal("expected rrule grammar error")
	}

	d = sampleDescriptor()
	d.DurationMinutes = 0
	if _, err := Encode(d, EncodeOptions{}); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(strings.NewReader("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n")); err == nil {
		t.Fatal("expected no VEVENT error")
	}
	noUID := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nDTSTART:20300101T100000\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	if _, err := Decode(strings.NewReader(noUID)); err == nil {
		t.Fatal("expected missing UID error")
	}
}

func TestTextValuesEscapedOnce(t *testing.T) {
	d := sampleDescriptor()
	d.Title = "Plan; review, Q1"
	d.Description = "Line one, with; marks \\ and\nline two"
	d.Alarm = &model.Alarm{MinutesBefore: 15, Description: "Event reminder: Plan; review, Q1"}

	out, err := Encode(d, EncodeOptions{UID: "uid-2@planevent"})
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	for _, line := range []string{
		"\r\nSUMMARY:Plan\\; review\\, Q1\r\n",
		"\r\nDESCRIPTION:Line one\\, with\\; marks \\\\ and\\nline two\r\n",
		"\r\nDESCRIPTION:Event reminder: Plan\\; review\\, Q1\r\n",
	} {
		if !strings.Contains(text, line) {
			t.Fatalf("missing line %q in:\n%s", line, text)
		}
	}

	events, err := Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	ev := events[0]
	if ev.Summary != d.Title || ev.Description != d.Description || ev.Alarms[0].Description != d.Alarm.Description {
		t.Fatalf("text did not survive a round trip: %+v", ev)
	}
}

func TestEncodeUsesCRLF(t *testing.T) {
	out, err := Encode(sampleDescriptor(), EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	if !strings.HasSuffix(text, "END:VCALENDAR\r\n") {
		t.Fatalf("payload must end with a CRLF line: %q", text[len(text)-20:])
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && (i == 0 || text[i-1] != '\r') {
			t.Fatalf("bare LF at byte %d in:\n%q", i, text)
		}
	}
}

func TestAdvancedRuleWithContentLineName(t *testing.T) {
	d := sampleDescriptor()
	d.Recurrence = model.AdvancedRecurrence("RRULE:FREQ=DAILY;COUNT=3")
	out, err := Encode(d, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "\r\nRRULE:FREQ=DAILY;COUNT=3\r\n") {
		t.Fatalf("unexpected rule line in:\n%s", out)
	}
}
