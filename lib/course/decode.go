package course

import (
	"strconv"
	"strings"
	"unicode"
)

// Outcome records whether a best-effort field came from the page or
// fell back to its default.
type Outcome uint8

const (
	Unset Outcome = iota
	Parsed
	Defaulted
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Defaulted:
		return "defaulted"
	}
	return "unset"
}

// NotApplicable is written into time and location fields that have no
// value, like arranged classes or truncated rows.
const NotApplicable = "N/A"

// DecodeCredits accepts a single digit, anything else is 0.
func DecodeCredits(s string) (int, Outcome) {
	s = strings.TrimSpace(s)
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return int(s[0] - '0'), Parsed
	}
	return 0, Defaulted
}

// DecodeScheduleCredits accepts a decimal like "3.0" and truncates it.
func DecodeScheduleCredits(s string) (int, Outcome) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, Defaulted
	}
	return int(value), Parsed
}

// DecodeClassSize accepts plain digits. Pages that print "enrolled/cap"
// are not a class size.
func DecodeClassSize(s string) (int, Outcome) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "/") {
		return 0, Defaulted
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, Defaulted
		}
	}
	value, err := strconv.Atoi(s)
	if err != nil {
		return 0, Defaulted
	}
	return value, Parsed
}

// IsTime reports whether s is something NormalizeTime should attempt.
func IsTime(s string) bool {
	switch {
	case s == "", s == NotApplicable, strings.EqualFold(s, "TBA"), strings.Contains(s, "ARR"):
		return false
	}
	return true
}

// NormalizeTime turns a clock string into an integer of the form hhmm
// on a 24 hour clock: "9:00 am" is 900, "1:30 pm" is 1330 and
// "3:00PM" is 1500. Noon stays 12xx.
func NormalizeTime(s string) (int, Outcome) {
	if !IsTime(s) {
		return 0, Defaulted
	}

	hour, rest, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, Defaulted
	}
	joined := hour + rest

	digits, suffix, found := strings.Cut(joined, " ")
	if !found {
		// suffix stuck onto the digits
		end := len(joined)
		for end > 0 && unicode.IsLetter(rune(joined[end-1])) {
			end--
		}
		digits, suffix = joined[:end], joined[end:]
	}

	value, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return 0, Defaulted
	}
	if strings.EqualFold(strings.TrimSpace(suffix), "pm") && strings.TrimSpace(hour) != "12" {
		value += 1200
	}
	return value, Parsed
}

// SplitCourseCode splits "CS-1114" or "CS 1114" into subject and
// number. The subject must be 2-4 characters and the number either 4
// characters or 4 followed by a letter.
func SplitCourseCode(code string) (subject string, number string, ok bool) {
	code = strings.TrimSpace(code)
	for _, sep := range []string{"-", " "} {
		parts := strings.Split(code, sep)
		if len(parts) != 2 {
			continue
		}
		if validSubjectLength(parts[0]) && validNumber(parts[1]) {
			return parts[0], parts[1], true
		}
		return "", "", false
	}
	return "", "", false
}

func validSubjectLength(s string) bool {
	return len(s) >= 2 && len(s) <= 4
}

func validNumber(s string) bool {
	if len(s) == 4 {
		return true
	}
	return len(s) == 5 && unicode.IsLetter(rune(s[4]))
}

// SplitBuildingRoom splits a catalog location like "MCB 100". Anything
// that is not exactly two words has no building or room.
func SplitBuildingRoom(location string) (building string, room string) {
	parts := strings.Split(location, " ")
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// SplitAtFirstDigit splits a schedule location like "Torgersen 1060"
// or "GOODW155" at the first digit (a '.' counts as one).
func SplitAtFirstDigit(location string) (building string, room string) {
	for i, r := range location {
		if (r >= '0' && r <= '9') || r == '.' {
			return strings.TrimSpace(location[:i]), location[i:]
		}
	}
	return strings.TrimSpace(location), ""
}
