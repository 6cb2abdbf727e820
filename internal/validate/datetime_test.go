package validate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, time.October, 15, 9, 30, 0, 0, time.UTC)

func TestDate_validEightDigitsRoundTrip(t *testing.T) {
	for _, d := range []string{"15061990", "29022000", "01011900", "31121999", "15102026"} {
		out := Date(d, today)
		require.True(t, out.Valid, "date %s should be valid, got %s", d, out.Reason)
		assert.Equal(t, d, out.Value)
	}
}

func TestDate_sixDigitsExpandAndRoundTrip(t *testing.T) {
	cases := map[string]string{
		"150690": "15061990",
		"010105": "01012005",
		"311227": "31121927", // 27 >= 26+1 pivots to the 1900s
		"010126": "01012026",
	}
	for in, want := range cases {
		out := Date(in, today)
		require.True(t, out.Valid, "date %s should be valid, got %s", in, out.Reason)
		assert.Equal(t, want, out.Value)

		again := Date(out.Value, today)
		assert.True(t, again.Valid)
		assert.Equal(t, want, again.Value)
	}
}

func TestDate_delimitedFormsNormalize(t *testing.T) {
	cases := map[string]string{
		"15/06/1990": "15061990",
		"15.06.1990": "15061990",
		"1/6/90":     "01061990",
		" 20/02/95 ": "20021995",
	}
	for in, want := range cases {
		out := Date(in, today)
		require.True(t, out.Valid, "date %q should be valid, got %s", in, out.Reason)
		assert.Equal(t, want, out.Value)
	}
}

func TestDate_rejections(t *testing.T) {
	cases := []struct {
		in     string
		reason Reason
	}{
		{"", ReasonFormat},
		{"1506199", ReasonFormat},
		{"150619900", ReasonFormat},
		{"15/06", ReasonFormat},
		{"15-06-1990", ReasonNonNumeric},
		{"june 1990", ReasonNonNumeric},
		{"ab/cd/ef", ReasonNonNumeric},
		{"15131990", ReasonInvalidMonth},
		{"15001990", ReasonInvalidMonth},
		{"31041990", ReasonInvalidDay},
		{"29021999", ReasonInvalidDay},
		{"00011990", ReasonInvalidDay},
		{"31122099", ReasonFutureDate},
		{"16102026", ReasonFutureDate},
		{"01010001", ReasonYearOutOfRange},
		{"01010000", ReasonYearOutOfRange},
		{"31121899", ReasonYearOutOfRange},
	}
	for _, tc := range cases {
		out := Date(tc.in, today)
		assert.False(t, out.Valid, "date %q should be rejected", tc.in)
		assert.Equal(t, tc.reason, out.Reason, "date %q", tc.in)
		assert.NotEmpty(t, out.Hint)
	}
}

func TestDate_rejectsEveryFutureDay(t *testing.T) {
	for offset := 1; offset <= 800; offset += 7 {
		future := today.AddDate(0, 0, offset)
		in := fmt.Sprintf("%02d%02d%04d", future.Day(), int(future.Month()), future.Year())
		out := Date(in, today)
		assert.Equal(t, ReasonFutureDate, out.Reason, "date %s", in)
	}
}

func TestTime_skipIsWholeInputCaseInsensitive(t *testing.T) {
	for _, in := range []string{"skip", "Skip", "SKIP", "  sKiP  "} {
		out := Time(in)
		assert.True(t, out.Valid, in)
		assert.True(t, out.Skipped, in)
	}
	for _, in := range []string{"maybe skip", "skip it", "skipping"} {
		out := Time(in)
		assert.False(t, out.Valid, in)
		assert.False(t, out.Skipped, in)
		assert.Equal(t, ReasonFormat, out.Reason, in)
	}
}

func TestTime_padsShortInput(t *testing.T) {
	assert.Equal(t, Time("0930"), Time("930"))
	out := Time("930")
	require.True(t, out.Valid)
	assert.Equal(t, "0930", out.Value)
	assert.Equal(t, "0005", Time("5").Value)
	assert.Equal(t, "0045", Time("45").Value)
}

func TestTime_delimitersHaveTheirOwnHint(t *testing.T) {
	for _, in := range []string{"14:30", "9.15", "14h30", "14 30"} {
		out := Time(in)
		assert.Equal(t, ReasonTimeDelimiter, out.Reason, in)
		assert.Equal(t, "error.time_delimiter", out.Hint, in)
	}
	assert.Equal(t, ReasonFormat, Time("12345").Reason)
	assert.Equal(t, ReasonFormat, Time("noon").Reason)
}

func TestTime_componentsCheckedIndependently(t *testing.T) {
	for h := 0; h <= 30; h++ {
		for _, m := range []int{0, 30, 59, 60, 75, 99} {
			out := Time(fmt.Sprintf("%02d%02d", h, m))
			switch {
			case h > 23 && m > 59:
				assert.Equal(t, ReasonTimeOutOfRange, out.Reason)
			case h > 23:
				assert.Equal(t, ReasonHourOutOfRange, out.Reason)
			case m > 59:
				assert.Equal(t, ReasonMinuteOutOfRange, out.Reason)
			default:
				assert.True(t, out.Valid)
			}
		}
	}
}
