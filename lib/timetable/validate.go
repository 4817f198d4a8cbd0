package timetable

import (
	"strings"
	"vtaccess/lib/semester"
	"vtaccess/lib/vterr"
)

// ValidSubject accepts 2 to 4 characters.
func ValidSubject(subject string) bool {
	return len(subject) >= 2 && len(subject) <= 4
}

// ValidCourseNumber requires the first four characters to be digits,
// anything after them ("2504H") is a suffix.
func ValidCourseNumber(number string) bool {
	if len(number) < 4 {
		return false
	}
	for _, r := range number[:4] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CheckAreaFormat normalizes a curriculum area designator: "1W" is
// AR1W, "3" and "03" are AR03. Areas run from 1 to 7.
func CheckAreaFormat(area string) (string, error) {
	area = strings.ToUpper(strings.TrimSpace(area))
	switch {
	case area == "1W":
		return "AR1W", nil
	case len(area) == 1 && area[0] >= '1' && area[0] <= '7':
		return "AR0" + area, nil
	case len(area) == 2 && area[0] == '0' && area[1] >= '1' && area[1] <= '7':
		return "AR" + area, nil
	}
	return "", vterr.Newf(vterr.InvalidArea, "timetable: check area", "%q is not a curriculum area", area)
}

func checkTerm(op string, term semester.Code) error {
	if !semester.Valid(string(term)) {
		return vterr.Newf(vterr.InvalidInput, op, "%q is not a semester code", term)
	}
	return nil
}

func checkSubject(op, subject string) error {
	if !ValidSubject(subject) {
		return vterr.Newf(vterr.InvalidInput, op, "%q is not a subject code", subject)
	}
	return nil
}

func checkCourseNumber(op, number string) error {
	if !ValidCourseNumber(number) {
		return vterr.Newf(vterr.InvalidInput, op, "%q is not a course number", number)
	}
	return nil
}
