package course

import (
	"slices"
	"time"
)

type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	AnyDay

	dayCount = 6
)

var dayNames = [dayCount]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "AnyDay"}

func (d Weekday) String() string {
	if d < 0 || d >= dayCount {
		return "Unknown"
	}
	return dayNames[d]
}

func DayNames() []string {
	return dayNames[:]
}

type Day struct {
	Name    string
	Courses []*Course
}

func (d *Day) Add(c *Course) {
	d.Courses = append(d.Courses, c)
}

func (d *Day) HasCourses() bool {
	return len(d.Courses) > 0
}

// Sort orders the day by normalized begin time, keeping the page order
// for ties.
func (d *Day) Sort() {
	slices.SortStableFunc(d.Courses, func(a, b *Course) int {
		return a.Span.Begin - b.Span.Begin
	})
}

const DefaultOwner = "MySchedule"

type Schedule struct {
	Owner string
	days  [dayCount]*Day
}

func NewSchedule(owner string) *Schedule {
	if owner == "" {
		owner = DefaultOwner
	}
	s := &Schedule{Owner: owner}
	for i := range s.days {
		s.days[i] = &Day{Name: dayNames[i]}
	}
	return s
}

func (s *Schedule) Day(d Weekday) *Day {
	if d < 0 || d >= dayCount {
		return nil
	}
	return s.days[d]
}

// Days returns the six buckets, Monday first and AnyDay last.
func (s *Schedule) Days() []*Day {
	return s.days[:]
}

// AssignDays adds c to the bucket of every day letter in days (MTWRF).
// The first character that is not a day letter sends c to AnyDay and
// ends the walk.
func (s *Schedule) AssignDays(c *Course, days string) {
	for _, r := range days {
		switch r {
		case 'M':
			s.days[Monday].Add(c)
		case 'T':
			s.days[Tuesday].Add(c)
		case 'W':
			s.days[Wednesday].Add(c)
		case 'R':
			s.days[Thursday].Add(c)
		case 'F':
			s.days[Friday].Add(c)
		default:
			s.days[AnyDay].Add(c)
			return
		}
	}
}

func (s *Schedule) IsEmpty() bool {
	for _, d := range s.days {
		if d.HasCourses() {
			return false
		}
	}
	return true
}

// Len counts bucket entries, a course meeting three days counts three
// times.
func (s *Schedule) Len() int {
	n := 0
	for _, d := range s.days {
		n += len(d.Courses)
	}
	return n
}

// AllCourses lists every distinct course (by Equal) in bucket order.
func (s *Schedule) AllCourses() []*Course {
	var out []*Course
	for _, d := range s.days {
		for _, c := range d.Courses {
			if slices.ContainsFunc(out, func(existing *Course) bool {
				return Equal(existing, c)
			}) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

func (s *Schedule) Sort() {
	for _, d := range s.days {
		d.Sort()
	}
}

// Credits totals the credits of every distinct course whose credit
// value was read from the page.
func (s *Schedule) Credits() int {
	total := 0
	for _, c := range s.AllCourses() {
		if c.Decoding.Credits == Parsed {
			total += c.Credits
		}
	}
	return total
}

// Shared returns a schedule, owned by s, that holds the courses found
// on the same day in both s and other.
func (s *Schedule) Shared(other *Schedule) *Schedule {
	shared := NewSchedule(s.Owner)
	if other == nil {
		return shared
	}
	for i, day := range s.days {
		for _, mine := range day.Courses {
			for _, theirs := range other.days[i].Courses {
				if Equal(mine, theirs) {
					shared.days[i].Add(mine)
					break
				}
			}
		}
	}
	return shared
}

// Today picks the bucket for the given day. Weekends show AnyDay when
// it has courses and Monday otherwise.
func (s *Schedule) Today(now time.Time) Weekday {
	switch now.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	}
	if s.days[AnyDay].HasCourses() {
		return AnyDay
	}
	return Monday
}
