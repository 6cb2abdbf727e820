package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinBirthYear is the earliest year accepted for a birth date.
	MinBirthYear = 1900
	// pivotBuffer shifts the two-digit year pivot: YY >= (current YY + buffer)
	// expands to 19YY, anything lower to 20YY.
	pivotBuffer = 1
)

// Date validates a birth date written as DDMMYY, DDMMYYYY or with slash/dot
// delimiters (D/M/YY, DD.MM.YYYY). On success Value is canonical DDMMYYYY.
// today bounds the accepted range; dates strictly after it are rejected.
func Date(input string, today time.Time) Outcome {
	s := strings.TrimSpace(input)
	if s == "" {
		return invalid(ReasonFormat, "error.date_format", nil)
	}

	if strings.ContainsAny(s, "/.") {
		joined, ok := joinDelimitedDate(s)
		if !ok {
			return invalid(ReasonFormat, "error.date_format", nil)
		}
		s = joined
	}

	if !allDigits(s) {
		return invalid(ReasonNonNumeric, "error.date_non_numeric", nil)
	}

	var day, month, year int
	switch len(s) {
	case 6:
		day, month = atoi(s[0:2]), atoi(s[2:4])
		year = expandYear(atoi(s[4:6]), today)
	case 8:
		day, month, year = atoi(s[0:2]), atoi(s[2:4]), atoi(s[4:8])
	default:
		return invalid(ReasonFormat, "error.date_format", nil)
	}

	if year < MinBirthYear {
		return invalid(ReasonYearOutOfRange, "error.date_year_range", map[string]string{
			"min": strconv.Itoa(MinBirthYear),
		})
	}
	if month < 1 || month > 12 {
		return invalid(ReasonInvalidMonth, "error.date_month", nil)
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return invalid(ReasonInvalidDay, "error.date_day", map[string]string{
			"max": strconv.Itoa(daysIn(time.Month(month), year)),
		})
	}

	y, m, d := today.Date()
	todayDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).After(todayDate) {
		return invalid(ReasonFutureDate, "error.date_future", nil)
	}

	return valid(fmt.Sprintf("%02d%02d%04d", day, month, year))
}

// joinDelimitedDate turns "1/6/90" into "010690". Day and month may be one or
// two digits, the year two or four.
func joinDelimitedDate(s string) (string, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '.' })
	if len(parts) != 3 {
		return "", false
	}
	day, month, year := parts[0], parts[1], parts[2]
	if len(day) < 1 || len(day) > 2 || len(month) < 1 || len(month) > 2 {
		return "", false
	}
	if len(year) != 2 && len(year) != 4 {
		return "", false
	}
	if len(day) == 1 {
		day = "0" + day
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return day + month + year, true
}

func expandYear(yy int, today time.Time) int {
	if yy >= today.Year()%100+pivotBuffer {
		return 1900 + yy
	}
	return 2000 + yy
}

func daysIn(m time.Month, year int) int {
	// Day 0 of the following month is the last day of m.
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Time validates a 24-hour HHMM time. One to three digits are left-padded
// with zeros ("930" is "0930"). The whole input "skip", in any case, yields a
// skipped outcome.
func Time(input string) Outcome {
	s := strings.TrimSpace(input)
	if strings.EqualFold(s, "skip") {
		return skipped()
	}
	if s == "" {
		return invalid(ReasonFormat, "error.time_format", nil)
	}

	if !allDigits(s) {
		if looksDelimitedTime(s) {
			return invalid(ReasonTimeDelimiter, "error.time_delimiter", nil)
		}
		return invalid(ReasonFormat, "error.time_format", nil)
	}
	if len(s) > 4 {
		return invalid(ReasonFormat, "error.time_format", nil)
	}
	s = strings.Repeat("0", 4-len(s)) + s

	hour, minute := atoi(s[0:2]), atoi(s[2:4])
	hourBad, minuteBad := hour > 23, minute > 59
	switch {
	case hourBad && minuteBad:
		return invalid(ReasonTimeOutOfRange, "error.time_hour_minute", nil)
	case hourBad:
		return invalid(ReasonHourOutOfRange, "error.time_hour", nil)
	case minuteBad:
		return invalid(ReasonMinuteOutOfRange, "error.time_minute", nil)
	}
	return valid(s)
}

// looksDelimitedTime reports whether s is digits separated by a time
// delimiter, such as "14:30", "9.15" or "14h30".
func looksDelimitedTime(s string) bool {
	digits, delims := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(":.-hH ", r):
			delims++
		default:
			return false
		}
	}
	return digits > 0 && delims > 0
}
