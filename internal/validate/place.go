package validate

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxPlaceLength bounds a place candidate in characters.
const MaxPlaceLength = 120

// Place accepts any non-empty text as a location candidate. Whether the
// candidate names a real place is decided by the geocoder.
func Place(input string) Outcome {
	s := strings.Join(strings.Fields(input), " ")
	if s == "" {
		return invalid(ReasonEmpty, "error.place_empty", nil)
	}
	if utf8.RuneCountInString(s) > MaxPlaceLength {
		return invalid(ReasonTooLong, "error.place_too_long", map[string]string{
			"max": strconv.Itoa(MaxPlaceLength),
		})
	}
	return valid(s)
}

// PlaceNotFound is the outcome for a candidate the geocoder could not resolve.
// It carries the candidate so the re-prompt can quote it.
func PlaceNotFound(candidate string) Outcome {
	return invalid(ReasonLocationNotFound, "error.place_not_found", map[string]string{
		"candidate": candidate,
	})
}
