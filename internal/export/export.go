// Package export turns a validated form into the three shareable artifacts:
// a calendar file, a web-calendar link and a mailto invitation.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"planevent/internal/clock"
	"planevent/internal/contacts"
	"planevent/internal/event"
	"planevent/internal/i18n"
	"planevent/internal/ics"
	appLog "planevent/internal/log"
	"planevent/internal/metrics"
	"planevent/internal/model"
	"planevent/internal/notify"
)

const (
	// DefaultLinkBase is the Google Calendar "create event" endpoint.
	DefaultLinkBase = "https://calendar.google.com/calendar/render"

	// FallbackFileName is used when the title has no usable characters.
	FallbackFileName = "plan-event.ics"

	compactLayout = "20060102T150405"
)

// Emitter names used in logs and metrics.
const (
	EmitterFile = "ics"
	EmitterLink = "link"
	EmitterMail = "mail"
)

// ErrNoRecipients is wrapped by the error Mail returns when the contacts
// field holds no usable address.
var ErrNoRecipients = errors.New("no valid recipients")

// ValidationError carries the localized messages of a rejected form.
type ValidationError struct {
	Errors []string
	cause  error
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Unwrap() error { return e.cause }

// SerializationError reports a calendar file that could not be produced.
type SerializationError struct {
	// Message is the localized text shown to the user.
	Message string
	Err     error
}

func (e *SerializationError) Error() string { return e.Message }

func (e *SerializationError) Unwrap() error { return e.Err }

// Options configures an Exporter. Zero values pick sane defaults.
type Options struct {
	Clock     clock.Clock
	Catalog   *i18n.Catalog
	Scheduler *notify.Scheduler
	Metrics   *metrics.Metrics
	LinkBase  string
}

// Exporter validates form state and runs one emitter per call. It keeps no
// per-form state and is safe for concurrent use.
type Exporter struct {
	clock     clock.Clock
	cat       *i18n.Catalog
	scheduler *notify.Scheduler
	metrics   *metrics.Metrics
	linkBase  string
}

func New(opts Options) *Exporter {
	e := &Exporter{
		clock:     opts.Clock,
		cat:       opts.Catalog,
		scheduler: opts.Scheduler,
		metrics:   opts.Metrics,
		linkBase:  opts.LinkBase,
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.cat == nil {
		e.cat = i18n.New("en")
	}
	if e.linkBase == "" {
		e.linkBase = DefaultLinkBase
	}
	return e
}

// Catalog exposes the message catalog used for responses.
func (e *Exporter) Catalog() *i18n.Catalog { return e.cat }

// Validate runs the form checks against the exporter clock.
func (e *Exporter) Validate(f model.FormState) event.Result {
	return event.Validate(f, e.clock.Now(), e.clock.Location(), e.cat)
}

// Descriptor validates f and builds the emitter input.
func (e *Exporter) Descriptor(f model.FormState) (model.Descriptor, error) {
	if res := e.Validate(f); !res.Valid() {
		return model.Descriptor{}, &ValidationError{Errors: res.Errors}
	}
	d, err := event.Build(f, e.clock.Location(), e.cat)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("build descriptor: %w", err)
	}
	return d, nil
}

// File is a downloadable calendar file.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// File renders the form as an .ics attachment.
func (e *Exporter) File(f model.FormState) (File, error) {
	d, err := e.prepare(EmitterFile, f)
	if err != nil {
		return File{}, err
	}

	body, err := ics.Encode(d, ics.EncodeOptions{Stamp: e.clock.Now()})
	if err != nil {
		e.metrics.Export(EmitterFile, metrics.OutcomeFailed)
		tag := e.cat.Resolve(d.Language)
		return File{}, &SerializationError{
			Message: e.cat.Text(tag, i18n.SerializationFailed, err.Error()),
			Err:     err,
		}
	}

	e.metrics.Export(EmitterFile, metrics.OutcomeOK)
	appLog.Info("calendar file exported", "title", d.Title, "bytes", len(body))
	return File{
		Name:        FileName(d.Title),
		ContentType: "text/calendar; charset=utf-8",
		Body:        body,
	}, nil
}

// Link builds the web-calendar "create event" URL for the form.
func (e *Exporter) Link(f model.FormState) (string, error) {
	d, err := e.prepare(EmitterLink, f)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", d.Title)
	q.Set("details", d.Details())
	if d.Location != "" {
		q.Set("location", d.Location)
	}
	if d.TimeZone != "" {
		q.Set("ctz", d.TimeZone)
	}
	q.Set("dates", d.Start.Format(compactLayout)+"/"+d.End().Format(compactLayout))
	if rule, ok := d.Recurrence.Rule(); ok {
		q.Set("recur", "RRULE:"+rule)
	}
	for _, email := range d.Emails {
		q.Add("add", email)
	}

	e.metrics.Export(EmitterLink, metrics.OutcomeOK)
	return e.linkBase + "?" + q.Encode(), nil
}

// Reminder statuses reported by Mail.
const (
	ReminderNone      = ""
	ReminderScheduled = "scheduled"
	ReminderDenied    = "denied"
	ReminderPassed    = "passed"
)

// Reminder is the outcome of the reminder attached to an advanced-mode mail.
type Reminder struct {
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Mail is a composed invitation.
type Mail struct {
	Target   string    `json:"target"`
	Reminder *Reminder `json:"reminder,omitempty"`
}

// Mail composes the mailto invitation. In advanced mode it also schedules a
// local reminder; a reminder that cannot be set does not fail the mail.
func (e *Exporter) Mail(f model.FormState) (Mail, error) {
	d, err := e.prepare(EmitterMail, f)
	if err != nil {
		return Mail{}, err
	}
	tag := e.cat.Resolve(d.Language)

	// Same recipient list as the link's add= parameters.
	recipients := d.Emails
	if len(recipients) == 0 {
		e.metrics.Export(EmitterMail, metrics.OutcomeInvalid)
		return Mail{}, &ValidationError{
			Errors: []string{e.cat.Text(tag, i18n.NoRecipients)},
			cause:  ErrNoRecipients,
		}
	}

	target := "mailto:" + strings.Join(recipients, ",") +
		"?subject=" + encodeComponent(d.Title) +
		"&body=" + encodeComponent(e.mailBody(d, tag))

	out := Mail{Target: target}
	if d.Alarm != nil {
		out.Reminder = e.scheduleReminder(d, tag)
	}

	e.metrics.Export(EmitterMail, metrics.OutcomeOK)
	appLog.Info("mail composed", "title", d.Title, "recipients", len(recipients))
	return out, nil
}

func (e *Exporter) mailBody(d model.Descriptor, tag language.Tag) string {
	var b strings.Builder
	b.WriteString(e.cat.Text(tag, i18n.MailIntro))
	b.WriteString("\n\n")
	b.WriteString(d.Title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %s\n", e.cat.Text(tag, i18n.MailDate), d.Start.Format("02.01.2006"))
	fmt.Fprintf(&b, "%s: %s - %s\n", e.cat.Text(tag, i18n.MailTime), d.Start.Format("15:04"), d.End().Format("15:04"))
	if d.Location != "" {
		fmt.Fprintf(&b, "%s: %s\n", e.cat.Text(tag, i18n.MailLocation), d.Location)
	}
	b.WriteString("\n")
	b.WriteString(d.Details())
	b.WriteString("\n\n")
	b.WriteString(e.cat.Text(tag, i18n.MailFooter))
	return b.String()
}

func (e *Exporter) scheduleReminder(d model.Descriptor, tag language.Tag) *Reminder {
	at := d.Start.Add(-time.Duration(d.Alarm.MinutesBefore) * time.Minute)
	r := &Reminder{At: at}

	err := notify.ErrPermissionDenied
	if e.scheduler != nil {
		err = e.scheduler.Schedule(at, e.cat.Text(tag, i18n.ReminderTitle), d.Title)
	}

	switch {
	case err == nil:
		r.Status = ReminderScheduled
		r.Message = e.cat.Text(tag, i18n.ReminderScheduled, at.Format("02.01.2006 15:04"))
		e.metrics.Reminder(metrics.OutcomeScheduled)
	case errors.Is(err, notify.ErrReminderPassed):
		r.Status = ReminderPassed
		r.Message = e.cat.Text(tag, i18n.ReminderPassed)
		e.metrics.Reminder(metrics.OutcomePassed)
	default:
		r.Status = ReminderDenied
		r.Message = e.cat.Text(tag, i18n.NotificationsOff)
		e.metrics.Reminder(metrics.OutcomeDenied)
	}
	appLog.Debug("reminder outcome", "status", r.Status, "at", at.Format(time.RFC3339))
	return r
}

func (e *Exporter) prepare(emitter string, f model.FormState) (model.Descriptor, error) {
	d, err := e.Descriptor(f)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			e.metrics.Export(emitter, metrics.OutcomeInvalid)
		} else {
			e.metrics.Export(emitter, metrics.OutcomeFailed)
		}
		return model.Descriptor{}, err
	}
	return d, nil
}

// Import is the result of a CSV contacts import.
type Import struct {
	Contacts string `json:"contacts"`
	Count    int    `json:"count"`
	Message  string `json:"message"`
}

// ImportContacts appends the addresses read from r to existing and reports
// the localized summary.
func (e *Exporter) ImportContacts(existing string, r io.Reader, lang string) (Import, error) {
	out, n, err := contacts.ImportCSV(existing, r)
	if err != nil {
		return Import{}, err
	}
	e.metrics.Imported(n)
	tag := e.cat.Resolve(lang)
	return Import{Contacts: out, Count: n, Message: e.cat.Text(tag, i18n.ContactsImported, n)}, nil
}

var slugFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(func(r rune) rune {
		switch r {
		case 'ł':
			return 'l'
		case 'Ł':
			return 'L'
		}
		return r
	}),
	norm.NFC,
)

// FileName derives a download name from the event title: diacritics folded,
// lower case, runs of other characters collapsed to "-".
func FileName(title string) string {
	folded, _, err := transform.String(slugFolder, title)
	if err != nil {
		folded = title
	}

	var b bytes.Buffer
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return FallbackFileName
	}
	return slug + ".ics"
}

// encodeComponent escapes s for a URI component, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
