package hokiespa

import (
	"context"
	"log/slog"
	"strings"
	"vtaccess/lib/course"
	"vtaccess/lib/htmlutil"
	"vtaccess/lib/semester"
	"vtaccess/lib/vterr"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

const additionalTimes = "* Additional Times *"

// the first two rows of a schedule table are headers and the last one
// is a footer
const (
	headerRows = 2
	footerRows = 1
)

// RetrieveSchedule builds the signed in student's weekly schedule for
// a term. A term without courses is NotFound.
func (c *Client) RetrieveSchedule(ctx context.Context, term semester.Code) (*course.Schedule, error) {
	ctx, span := tracer.Start(ctx, "hokiespa:RetrieveSchedule")
	defer span.End()

	const op = "hokiespa: retrieve schedule"
	if !semester.Valid(term.String()) {
		return nil, vterr.Newf(vterr.InvalidInput, op, "%q is not a semester code", term)
	}
	err := c.checkSession(ctx, op)
	if err != nil {
		return nil, err
	}

	page, err := c.detailPage(ctx, op, term, false)
	if err != nil {
		return nil, err
	}

	schedule, ok := ReadSchedule(page.Doc)
	if !ok {
		return nil, vterr.Newf(vterr.NotFound, op, "no courses in %s", term.Name())
	}
	span.SetAttributes(attribute.Int("entries", schedule.Len()))
	return schedule, nil
}

// ReadSchedule decodes a schedule detail page. It reports false when
// the table has no course rows.
func ReadSchedule(doc *goquery.Document) (*course.Schedule, bool) {
	rows := doc.Find("body center table tbody tr")
	if rows.Length()-footerRows <= headerRows {
		return nil, false
	}

	schedule := course.NewSchedule("")
	name := ""
	for i := headerRows; i < rows.Length()-footerRows; i++ {
		cells := htmlutil.Cells(rows.Eq(i))

		if htmlutil.Cell(cells, 2) == additionalTimes {
			if len(cells) < 8 {
				slog.Debug("skipping short schedule row", "row", i, "cells", len(cells))
				continue
			}
			c := readContinuationRow(cells, name)
			assignDays(schedule, c)
			continue
		}

		if len(cells) < 9 {
			slog.Debug("skipping short schedule row", "row", i, "cells", len(cells))
			continue
		}
		c := readPrimaryRow(cells)
		name = c.Name
		assignDays(schedule, c)
	}
	return schedule, true
}

func readPrimaryRow(cells []string) *course.Course {
	c := course.New()
	c.CRN = cells[0]
	c.SetCourseCode(cells[1])
	c.SetName(cells[2])
	c.SetCredits(course.DecodeScheduleCredits(cells[4]))
	setMeetingTime(c, cells[5])
	c.Days = cells[6]
	c.Building, c.Room = course.SplitAtFirstDigit(cells[7])
	c.Teacher = cells[8]
	return c
}

// readContinuationRow decodes an extra meeting of the row above it. It
// only carries the time, days, place and instructor.
func readContinuationRow(cells []string, name string) *course.Course {
	c := course.New()
	c.Name = name
	c.SetCredits(0, course.Defaulted)
	setMeetingTime(c, cells[4])
	c.Days = cells[5]
	c.Building, c.Room = course.SplitAtFirstDigit(cells[6])
	c.Teacher = cells[7]
	return c
}

func setMeetingTime(c *course.Course, s string) {
	if s == "TBA" || strings.Contains(s, "ARR") {
		c.SetTimes(course.NotApplicable, course.NotApplicable)
		return
	}
	c.SetTimeRange(s)
}

// arranged days have no weekday letters worth walking
func assignDays(schedule *course.Schedule, c *course.Course) {
	if c.Days == "" || c.Days == "(ARR)" || c.Days == "TBA" {
		schedule.AssignDays(c, course.AnyDay.String())
		return
	}
	schedule.AssignDays(c, c.Days)
}
