package content

import (
	"hash/fnv"
	"strconv"
	"time"
)

type signBoundary struct {
	month time.Month
	day   int
	sign  string
}

// Start dates of each sign, in calendar order.
var signStarts = []signBoundary{
	{time.January, 20, "aquarius"},
	{time.February, 19, "pisces"},
	{time.March, 21, "aries"},
	{time.April, 20, "taurus"},
	{time.May, 21, "gemini"},
	{time.June, 21, "cancer"},
	{time.July, 23, "leo"},
	{time.August, 23, "virgo"},
	{time.September, 23, "libra"},
	{time.October, 23, "scorpio"},
	{time.November, 22, "sagittarius"},
	{time.December, 22, "capricorn"},
}

// SunSign returns the tropical sun sign id for a day of the year.
func SunSign(day int, month time.Month) string {
	sign := "capricorn"
	for _, b := range signStarts {
		if month > b.month || (month == b.month && day >= b.day) {
			sign = b.sign
		}
	}
	return sign
}

// parseBirthDate splits a canonical DDMMYYYY value.
func parseBirthDate(ddmmyyyy string) (day int, month time.Month, year int, ok bool) {
	if len(ddmmyyyy) != 8 {
		return 0, 0, 0, false
	}
	d, err1 := strconv.Atoi(ddmmyyyy[:2])
	m, err2 := strconv.Atoi(ddmmyyyy[2:4])
	y, err3 := strconv.Atoi(ddmmyyyy[4:])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return d, time.Month(m), y, true
}

// reduce sums digits until a single digit remains, keeping the master
// numbers 11, 22 and 33.
func reduce(n int) int {
	for n > 9 && n != 11 && n != 22 && n != 33 {
		sum := 0
		for n > 0 {
			sum += n % 10
			n /= 10
		}
		n = sum
	}
	return n
}

// LifePath is the numerology life path number of a DDMMYYYY date.
func LifePath(ddmmyyyy string) int {
	d, m, y, ok := parseBirthDate(ddmmyyyy)
	if !ok {
		return 0
	}
	return reduce(reduce(d) + reduce(int(m)) + reduce(y))
}

// PersonalYear is the numerology personal year number for year.
func PersonalYear(ddmmyyyy string, year int) int {
	d, m, _, ok := parseBirthDate(ddmmyyyy)
	if !ok {
		return 0
	}
	return reduce(reduce(d) + reduce(int(m)) + reduce(year))
}

var majorArcana = []string{
	"The Fool", "The Magician", "The High Priestess", "The Empress", "The Emperor",
	"The Hierophant", "The Lovers", "The Chariot", "Strength", "The Hermit",
	"Wheel of Fortune", "Justice", "The Hanged Man", "Death", "Temperance",
	"The Devil", "The Tower", "The Star", "The Moon", "The Sun", "Judgement", "The World",
}

// draw picks a stable value in [0, n) for the seed parts, so a user sees the
// same card for the same day.
func draw(n int, parts ...string) int {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return int(h.Sum32() % uint32(n))
}
