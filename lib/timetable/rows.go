package timetable

import (
	"strings"
	"vtaccess/lib/course"
	"vtaccess/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	additionalTimesMarker = "Additional Times"
	additionalTimeSuffix  = " * Additional Time *"
)

// primary rows shorter than this were cut off before the days column
const fullRowCells = 8

// ReadRows decodes the section table of a timetable response. Row 0 is
// the header.
//
// With allowDuplicates unset a primary row is dropped when its course
// code equals the code of the row appended right before it. Only
// adjacent repeats collapse, the same code further down the table is
// kept.
func ReadRows(doc *goquery.Document, allowDuplicates bool) []*course.Course {
	rows := doc.Find("table").First().Find("tr")

	var courses []*course.Course
	var previous *course.Course
	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := htmlutil.Cells(row)
		if len(cells) <= 1 {
			return
		}

		var c *course.Course
		continuation := strings.Contains(htmlutil.Cell(cells, 4), additionalTimesMarker)
		if continuation {
			c = readContinuationRow(cells, previous)
		} else {
			c = readPrimaryRow(cells)
			previous = c
		}

		if continuation ||
			allowDuplicates ||
			len(courses) == 0 ||
			c.Code() != courses[len(courses)-1].Code() {
			courses = append(courses, c)
		}
	})
	return courses
}

func readPrimaryRow(cells []string) *course.Course {
	c := course.New()
	c.CRN = htmlutil.Cell(cells, 0)
	c.SetCourseCode(htmlutil.Cell(cells, 1))
	c.SetName(htmlutil.Cell(cells, 2))
	c.SetCredits(course.DecodeCredits(htmlutil.Cell(cells, 4)))
	c.SetClassSize(course.DecodeClassSize(htmlutil.Cell(cells, 5)))
	c.Teacher = htmlutil.Cell(cells, 6)

	if len(cells) < fullRowCells {
		c.Days = course.NotApplicable
		c.SetTimes(course.NotApplicable, course.NotApplicable)
		return c
	}

	c.Days = htmlutil.Cell(cells, 7)
	var location string
	if strings.Contains(c.Days, "ARR") {
		// online and arranged sections have no time columns
		c.SetTimes(course.NotApplicable, course.NotApplicable)
		location = htmlutil.Cell(cells, 9)
	} else {
		c.SetTimes(htmlutil.Cell(cells, 8), htmlutil.Cell(cells, 9))
		location = htmlutil.Cell(cells, 10)
	}
	c.Building, c.Room = course.SplitBuildingRoom(location)
	return c
}

// readContinuationRow builds the extra meeting of the section read
// just before it.
func readContinuationRow(cells []string, previous *course.Course) *course.Course {
	c := course.New()
	if previous != nil {
		c.CRN = previous.CRN
		c.SubjectCode = previous.SubjectCode
		c.CourseNumber = previous.CourseNumber
		c.Name = previous.Name
		c.Teacher = previous.Teacher
		c.SetClassSize(previous.ClassSize, previous.Decoding.ClassSize)
	}
	c.Name += additionalTimeSuffix
	c.SetCredits(0, course.Defaulted)

	c.Days = htmlutil.Cell(cells, 5)
	c.SetTimes(htmlutil.Cell(cells, 6), htmlutil.Cell(cells, 7))
	c.Building, c.Room = course.SplitBuildingRoom(htmlutil.Cell(cells, 8))
	return c
}
