package model

import "strings"

// rulePrefix is the content-line name some users paste along with the rule.
const rulePrefix = "RRULE:"

// Preset is a simple recurrence choice offered next to the advanced rule.
type Preset string

const (
	PresetNone     Preset = "none"
	PresetDaily    Preset = "daily"
	PresetWeekly   Preset = "weekly"
	PresetMonthly  Preset = "monthly"
	PresetYearly   Preset = "yearly"
	PresetWeekend  Preset = "weekend"
	PresetWorkdays Preset = "workdays"
)

var presetRules = map[Preset]string{
	PresetDaily:    "FREQ=DAILY",
	PresetWeekly:   "FREQ=WEEKLY",
	PresetMonthly:  "FREQ=MONTHLY",
	PresetYearly:   "FREQ=YEARLY",
	PresetWeekend:  "FREQ=WEEKLY;BYDAY=SA,SU",
	PresetWorkdays: "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
}

// ParsePreset maps a form value to a Preset. Unknown values mean none.
func ParsePreset(s string) Preset {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presetRules[p]; ok {
		return p
	}
	return PresetNone
}

// RecurrenceKind tags the Recurrence variant.
type RecurrenceKind int

const (
	RecurrenceNone RecurrenceKind = iota
	RecurrencePreset
	RecurrenceAdvanced
)

// Recurrence is either no repetition, a preset, or a raw advanced rule.
// Only the constructors below produce valid values.
type Recurrence struct {
	kind   RecurrenceKind
	preset Preset
	raw    string
}

// NoRecurrence is a one-off event.
func NoRecurrence() Recurrence { return Recurrence{kind: RecurrenceNone} }

// PresetRecurrence wraps a preset; PresetNone yields NoRecurrence.
func PresetRecurrence(p Preset) Recurrence {
	if _, ok := presetRules[p]; !ok {
		return NoRecurrence()
	}
	return Recurrence{kind: RecurrencePreset, preset: p}
}

// AdvancedRecurrence wraps a raw rule. Surrounding space and a leading
// "RRULE:" are dropped so the stored text is always the rule body.
func AdvancedRecurrence(raw string) Recurrence {
	return Recurrence{kind: RecurrenceAdvanced, raw: TrimRulePrefix(raw)}
}

// TrimRulePrefix strips whitespace and a leading "RRULE:" (any case).
func TrimRulePrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len(rulePrefix) && strings.EqualFold(raw[:len(rulePrefix)], rulePrefix) {
		raw = strings.TrimSpace(raw[len(rulePrefix):])
	}
	return raw
}

func (r Recurrence) Kind() RecurrenceKind { return r.kind }

// Rule returns the rule body (without "RRULE:") and whether there is one.
func (r Recurrence) Rule() (string, bool) {
	switch r.kind {
	case RecurrencePreset:
		return presetRules[r.preset], true
	case RecurrenceAdvanced:
		return r.raw, r.raw != ""
	default:
		return "", false
	}
}
