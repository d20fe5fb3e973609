// Package validation collects per-field input errors.
package validation

import (
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Errors maps a field name to the first message recorded for it.
type Errors map[string]string

func (e Errors) Add(field, message string) {
	if _, exists := e[field]; exists {
		return
	}
	e[field] = message
}

// Err returns nil when nothing was recorded, so callers can `return errs.Err()`.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MinLength checks the trimmed value has at least n characters.
func (e Errors) MinLength(field, value string, n int, message string) {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		e.Add(field, message)
	}
}

func (e Errors) MaxLength(field, value string, n int, message string) {
	if utf8.RuneCountInString(value) > n {
		e.Add(field, message)
	}
}

func (e Errors) Match(field, value string, pattern *regexp.Regexp, message string) {
	if !pattern.MatchString(value) {
		e.Add(field, message)
	}
}

func (e Errors) Email(field, value, message string) {
	if !IsEmail(value) {
		e.Add(field, message)
	}
}

// IsEmail accepts a bare addr-spec ("a@example.com"), not a display-name form.
func IsEmail(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndex(value, "@")
	return at > 0 && strings.Contains(value[at+1:], ".")
}
