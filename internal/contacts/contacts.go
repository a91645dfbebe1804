// Package contacts turns the free-text participant field into attendees and
// imports additional addresses from plain-text CSV exports.
package contacts

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"planevent/internal/model"
)

var emailShape = regexp.MustCompile(`.+@.+\..+`)

// Result holds parallel views of the parsed contact list.
type Result struct {
	Emails    []string         `json:"emails"`
	Attendees []model.Attendee `json:"attendees"`
}

// Parse splits s on commas. A segment whose last word contains "@" yields
// that word as the address and the preceding words as the display name;
// any other segment is taken whole as the address. Addresses are not
// validated here.
func Parse(s string) Result {
	res := Result{Emails: []string{}, Attendees: []model.Attendee{}}
	for _, seg := range Segments(s) {
		fields := strings.Fields(seg)
		last := fields[len(fields)-1]
		if strings.Contains(last, "@") {
			name := strings.Join(fields[:len(fields)-1], " ")
			res.Emails = append(res.Emails, last)
			res.Attendees = append(res.Attendees, model.Attendee{Name: name, Email: last})
			continue
		}
		res.Emails = append(res.Emails, seg)
		res.Attendees = append(res.Attendees, model.Attendee{Email: seg})
	}
	return res
}

// Segments returns the trimmed, non-empty comma-separated parts of s.
func Segments(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// IsValidEmail reports whether s has the minimal "x@y.z" shape.
func IsValidEmail(s string) bool {
	return emailShape.MatchString(strings.TrimSpace(s))
}

// ImportCSV reads newline-delimited addresses from r and appends the valid
// ones to existing, comma-space joined. Duplicates are kept.
func ImportCSV(existing string, r io.Reader) (string, int, error) {
	var accepted []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		candidate := strings.TrimSpace(scanner.Text())
		if IsValidEmail(candidate) {
			accepted = append(accepted, candidate)
		}
	}
	if err := scanner.Err(); err != nil {
		return existing, 0, fmt.Errorf("read csv: %w", err)
	}

	out := strings.TrimSpace(existing)
	if len(accepted) == 0 {
		return out, 0, nil
	}
	if out != "" {
		out += ", "
	}
	out += strings.Join(accepted, ", ")
	return out, len(accepted), nil
}
