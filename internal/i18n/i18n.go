// Package i18n holds every user-facing message in one table indexed by
// message key and language.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a message in the catalog.
type Key string

const (
	TitleEmpty       Key = "title_empty"
	DateEmpty        Key = "date_empty"
	TimeEmpty        Key = "time_empty"
	DateTimeInvalid  Key = "date_time_invalid"
	DateTimePast     Key = "date_time_past"
	OutsideWorkHours Key = "outside_work_hours"
	InvalidEmail     Key = "invalid_email"
	EndBeforeStart   Key = "end_before_start"
	NoRecipients     Key = "no_recipients"

	AlarmDescription    Key = "alarm_description"
	ReminderTitle       Key = "reminder_title"
	NotificationsOff    Key = "notifications_off"
	ReminderPassed      Key = "reminder_passed"
	ReminderScheduled   Key = "reminder_scheduled"
	ContactsImported    Key = "contacts_imported"
	SerializationFailed Key = "serialization_failed"

	MailIntro    Key = "mail_intro"
	MailDate     Key = "mail_date"
	MailTime     Key = "mail_time"
	MailLocation Key = "mail_location"
	MailFooter   Key = "mail_footer"
)

var (
	Polish  = language.Polish
	English = language.English
)

var messages = map[Key]map[language.Tag]string{
	TitleEmpty: {
		Polish:  "Tytuł nie może być pusty.",
		English: "Title cannot be empty.",
	},
	DateEmpty: {
		Polish:  "Data nie może być pusta.",
		English: "Date cannot be empty.",
	},
	TimeEmpty: {
		Polish:  "Godzina rozpoczęcia nie może być pusta.",
		English: "Start time cannot be empty.",
	},
	DateTimeInvalid: {
		Polish:  "Niepoprawny format daty lub godziny.",
		English: "Invalid date or time format.",
	},
	DateTimePast: {
		Polish:  "Data/godzina nie może być w przeszłości.",
		English: "Date/time cannot be in the past.",
	},
	OutsideWorkHours: {
		Polish:  "Wydarzenie zaczyna się poza godzinami pracy.",
		English: "The event starts outside working hours.",
	},
	InvalidEmail: {
		Polish:  "Niepoprawny format adresu: %q",
		English: "Invalid email format: %q",
	},
	EndBeforeStart: {
		Polish:  "Godzina zakończenia musi być późniejsza niż godzina rozpoczęcia.",
		English: "End time must be after the start time.",
	},
	NoRecipients: {
		Polish:  "Brak poprawnych adresów email w polu uczestników.",
		English: "No valid email addresses in the participants field.",
	},
	AlarmDescription: {
		Polish:  "Powiadomienie o wydarzeniu: %s",
		English: "Event reminder: %s",
	},
	ReminderTitle: {
		Polish:  "Przypomnienie o wydarzeniu",
		English: "Event reminder",
	},
	NotificationsOff: {
		Polish:  "Proszę włączyć powiadomienia (lub je odblokować).",
		English: "Please enable notifications.",
	},
	ReminderPassed: {
		Polish:  "Ustawiona godzina powiadomienia już minęła.",
		English: "Reminder time has already passed.",
	},
	ReminderScheduled: {
		Polish:  "Przypomnienie ustawione na %s.",
		English: "Reminder scheduled for %s.",
	},
	ContactsImported: {
		Polish:  "Zaimportowano %d adresów e-mail z pliku CSV.",
		English: "Imported %d email addresses from CSV file.",
	},
	SerializationFailed: {
		Polish:  "Nie udało się utworzyć pliku kalendarza: %s",
		English: "Could not create the calendar file: %s",
	},
	MailIntro: {
		Polish:  "Zapraszam na wydarzenie:",
		English: "I invite you to the event:",
	},
	MailDate: {
		Polish:  "Data",
		English: "Date",
	},
	MailTime: {
		Polish:  "Czas",
		English: "Time",
	},
	MailLocation: {
		Polish:  "Miejsce",
		English: "Location",
	},
	MailFooter: {
		Polish:  "Dodaj do swojego kalendarza klikając w załączony plik .ics",
		English: "Add to your calendar by clicking the attached .ics file",
	},
}

var supported = []language.Tag{Polish, English}

// Catalog resolves message keys for a language.
type Catalog struct {
	builder  *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
}

// New builds the catalog; fallback is used when no requested language matches.
func New(fallback string) *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(English))
	for key, byLang := range messages {
		for tag, msg := range byLang {
			// SetString only fails on malformed messages.
			_ = b.SetString(tag, string(key), msg)
		}
	}
	c := &Catalog{
		builder:  b,
		matcher:  language.NewMatcher(supported),
		fallback: English,
	}
	if tag, ok := c.match(fallback); ok {
		c.fallback = tag
	}
	return c
}

// Resolve picks the first candidate that names a supported language
// ("pl", "en-GB" or a whole Accept-Language header), or the fallback.
func (c *Catalog) Resolve(candidates ...string) language.Tag {
	for _, s := range candidates {
		if tag, ok := c.match(s); ok {
			return tag
		}
	}
	return c.fallback
}

func (c *Catalog) match(s string) (language.Tag, bool) {
	if s == "" {
		return language.Und, false
	}
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return language.Und, false
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return language.Und, false
	}
	return supported[idx], true
}

// Printer returns a message printer bound to tag.
func (c *Catalog) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(c.builder))
}

// Text formats key in tag.
func (c *Catalog) Text(tag language.Tag, key Key, args ...any) string {
	return c.Printer(tag).Sprintf(string(key), args...)
}
