package model

import (
	"strings"
	"time"
)

// Visibility is the CLASS of an exported event.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// PrivateMarker prefixes the details of private events in links and mails.
const PrivateMarker = "[PRIVATE]"

// FormState is the raw field state of the event form. It is decoded from
// JSON (HTTP) or YAML (CLI) and never persisted.
type FormState struct {
	Title       string `json:"title" yaml:"title"`
	Location    string `json:"location" yaml:"location"`
	Description string `json:"description" yaml:"description"`

	// Date is "YYYY-MM-DD"; Time and EndTime are "HH:MM".
	Date    string `json:"date" yaml:"date"`
	Time    string `json:"time" yaml:"time"`
	EndTime string `json:"end_time" yaml:"end_time"`

	UseEndTime      bool `json:"use_end_time" yaml:"use_end_time"`
	DurationMinutes int  `json:"duration_minutes" yaml:"duration_minutes"`

	// Recurrence is a preset name, see Preset.
	Recurrence string `json:"recurrence" yaml:"recurrence"`
	TimeZone   string `json:"timezone" yaml:"timezone"`
	Contacts   string `json:"contacts" yaml:"contacts"`

	Advanced        bool   `json:"advanced" yaml:"advanced"`
	AdvancedRule    string `json:"advanced_rule" yaml:"advanced_rule"`
	ReminderMinutes int    `json:"reminder_minutes" yaml:"reminder_minutes"`
	WorkStart       string `json:"work_start" yaml:"work_start"`
	WorkEnd         string `json:"work_end" yaml:"work_end"`
	IgnoreWorkHours bool   `json:"ignore_work_hours" yaml:"ignore_work_hours"`

	Visibility  Visibility `json:"visibility" yaml:"visibility"`
	Attachments []string   `json:"attachments" yaml:"attachments"`

	// Language selects the message catalog ("pl" or "en").
	Language string `json:"language" yaml:"language"`
}

// AddAttachment appends a trimmed URL. Blank input is ignored.
func (f *FormState) AddAttachment(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	f.Attachments = append(f.Attachments, url)
}

// ApplyRule replaces the advanced rule text with a generated rule.
func (f *FormState) ApplyRule(rule string) {
	f.AdvancedRule = rule
}

// Attendee is one parsed contact.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Alarm is a display reminder fired MinutesBefore the event start.
type Alarm struct {
	MinutesBefore int
	Description   string
}

// Descriptor is the fully resolved, emitter-ready event. It is rebuilt from
// FormState on every export.
type Descriptor struct {
	Title       string
	Location    string
	Description string

	// Start holds the civil date and time typed into the form.
	Start time.Time
	// TimeZone annotates Start in exported artifacts.
	TimeZone        string
	DurationMinutes int

	Recurrence Recurrence
	Visibility Visibility

	Attendees   []Attendee
	Emails      []string
	Attachments []string

	Alarm    *Alarm
	Language string
}

// End returns Start shifted by the event duration.
func (d Descriptor) End() time.Time {
	return d.Start.Add(time.Duration(d.DurationMinutes) * time.Minute)
}

// Details is the description as shared outside the calendar file.
func (d Descriptor) Details() string {
	if d.Visibility == Private {
		return PrivateMarker + " " + d.Description
	}
	return d.Description
}
