// Package validate parses raw user text against the grammars the conversation
// understands: dates, times, places, languages and menu keywords. Every
// function is pure; failures are returned as values, never as errors.
package validate

import (
	"strings"
	"unicode"
)

// Reason is a machine-readable validation failure code.
type Reason string

const (
	ReasonFormat              Reason = "format"
	ReasonNonNumeric          Reason = "non_numeric"
	ReasonInvalidMonth        Reason = "invalid_month"
	ReasonInvalidDay          Reason = "invalid_day"
	ReasonFutureDate          Reason = "future_date"
	ReasonYearOutOfRange      Reason = "year_out_of_range"
	ReasonTimeDelimiter       Reason = "time_delimiter"
	ReasonHourOutOfRange      Reason = "hour_out_of_range"
	ReasonMinuteOutOfRange    Reason = "minute_out_of_range"
	ReasonTimeOutOfRange      Reason = "time_out_of_range"
	ReasonEmpty               Reason = "empty"
	ReasonTooLong             Reason = "too_long"
	ReasonLocationNotFound    Reason = "location_not_found"
	ReasonUnsupportedLanguage Reason = "unsupported_language"
)

// Outcome is the result of validating one token. When Valid is false, Hint is
// a catalog key for the user-facing explanation and Params fills it in.
type Outcome struct {
	Valid   bool
	Value   string
	Skipped bool

	Reason Reason
	Hint   string
	Params map[string]string
	// Options lists acceptable values where the grammar is a closed set.
	Options []string
}

func valid(v string) Outcome {
	return Outcome{Valid: true, Value: v}
}

func skipped() Outcome {
	return Outcome{Valid: true, Skipped: true}
}

func invalid(reason Reason, hint string, params map[string]string) Outcome {
	return Outcome{Reason: reason, Hint: hint, Params: params}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalize lower-cases, collapses inner whitespace and strips trailing
// punctuation so "  Main   Menu! " compares equal to "main menu".
func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ','
	})
}

// stripDecoration removes leading emoji, bullets and spaces from a label.
func stripDecoration(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
