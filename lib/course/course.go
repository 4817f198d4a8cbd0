package course

import (
	"fmt"
	"strings"
	"time"
)

// Span is the normalized (hhmm) begin and end of a meeting, used for
// ordering courses within a day.
type Span struct {
	Begin int
	End   int
}

// Decoding records which best-effort fields were parsed from the page
// and which fell back to a default.
type Decoding struct {
	Credits   Outcome
	ClassSize Outcome
	Begin     Outcome
	End       Outcome
}

// Course is one meeting of a section. Extractors hand out *Course and
// a Schedule stores the same pointer in every day it meets, so an
// edit through one day is visible through the others.
type Course struct {
	Name         string
	CRN          string
	SubjectCode  string
	CourseNumber string
	Teacher      string
	Days         string
	BeginTime    string
	EndTime      string
	Building     string
	Room         string
	Credits      int
	ClassSize    int
	// only set on exam records
	Date *time.Time

	Span     Span
	Decoding Decoding
}

func New() *Course {
	return &Course{Credits: -1, ClassSize: -1}
}

// NormalizeName replaces '&', which the portal prints raw.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "&", "and")
}

func (c *Course) SetName(name string) {
	c.Name = NormalizeName(name)
}

func (c *Course) SetCourseCode(code string) bool {
	subject, number, ok := SplitCourseCode(code)
	if !ok {
		return false
	}
	c.SubjectCode = subject
	c.CourseNumber = number
	return true
}

func (c *Course) SetBeginTime(begin string) {
	c.BeginTime = begin
	c.Span.Begin, c.Decoding.Begin = NormalizeTime(begin)
}

func (c *Course) SetEndTime(end string) {
	c.EndTime = end
	c.Span.End, c.Decoding.End = NormalizeTime(end)
}

func (c *Course) SetTimes(begin, end string) {
	c.SetBeginTime(begin)
	c.SetEndTime(end)
}

// SetTimeRange splits "9:05AM - 9:55AM".
func (c *Course) SetTimeRange(r string) {
	begin, end, found := strings.Cut(r, "-")
	if !found {
		c.SetTimes(NotApplicable, NotApplicable)
		return
	}
	c.SetTimes(strings.TrimSpace(begin), strings.TrimSpace(end))
}

func (c *Course) SetCredits(value int, outcome Outcome) {
	c.Credits = value
	c.Decoding.Credits = outcome
}

func (c *Course) SetClassSize(value int, outcome Outcome) {
	c.ClassSize = value
	c.Decoding.ClassSize = outcome
}

// Code is the catalog form of the course code, "CS-1114".
func (c *Course) Code() string {
	if c.SubjectCode == "" && c.CourseNumber == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s", c.SubjectCode, c.CourseNumber)
}

func (c *Course) Location() string {
	return strings.TrimSpace(c.Building + " " + c.Room)
}

// HasURLFields reports whether the course carries enough identity to
// build detail page urls (comments, exam times).
func (c *Course) HasURLFields() bool {
	return len(c.SubjectCode) >= 2 && len(c.CourseNumber) >= 4 && len(c.CRN) >= 3
}

func (c *Course) Clone() *Course {
	clone := *c
	if c.Date != nil {
		date := *c.Date
		clone.Date = &date
	}
	return &clone
}

func (c *Course) String() string {
	return fmt.Sprintf("%s %s (%s - %s) %s", c.Code(), c.Name, c.BeginTime, c.EndTime, c.Location())
}

// Equal compares name, building, room and begin time. CRN and course
// code do not take part, two sections of one course meeting in the
// same place at the same time are the same entry.
func Equal(a, b *Course) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name &&
		a.Building == b.Building &&
		a.Room == b.Room &&
		a.BeginTime == b.BeginTime
}
