package commands

import (
	"io"
	"strconv"
	"vtaccess/lib/course"
	"vtaccess/lib/semester"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func orBlank(value int) string {
	if value < 0 {
		return ""
	}
	return strconv.Itoa(value)
}

func renderCourses(out io.Writer, courses []*course.Course) {
	t := newTable(out)
	t.AppendHeader(table.Row{"CRN", "Course", "Name", "Credits", "Seats", "Days", "Begin", "End", "Location", "Instructor"})
	for _, c := range courses {
		t.AppendRow(table.Row{
			c.CRN, c.Code(), c.Name, orBlank(c.Credits), orBlank(c.ClassSize),
			c.Days, c.BeginTime, c.EndTime, c.Location(), c.Teacher,
		})
	}
	t.Render()
}

// renderSchedule prints one section per day that has courses.
func renderSchedule(out io.Writer, schedule *course.Schedule) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Day", "CRN", "Course", "Name", "Begin", "End", "Location", "Instructor"})
	for _, day := range schedule.Days() {
		if !day.HasCourses() {
			continue
		}
		for i, c := range day.Courses {
			label := ""
			if i == 0 {
				label = day.Name
			}
			t.AppendRow(table.Row{label, c.CRN, c.Code(), c.Name, c.BeginTime, c.EndTime, c.Location(), c.Teacher})
		}
		t.AppendSeparator()
	}
	t.AppendFooter(table.Row{"", "", "", "Credits", schedule.Credits()})
	t.Render()
}

func renderExams(out io.Writer, term semester.Code, exams []*course.Course) {
	t := newTable(out)
	t.SetTitle("Final exams, " + term.Name())
	t.AppendHeader(table.Row{"CRN", "Course", "Name", "Date", "Begin", "End"})
	for _, exam := range exams {
		date := "TBA"
		if exam.Date != nil {
			date = exam.Date.Format("Mon Jan 2")
		}
		t.AppendRow(table.Row{exam.CRN, exam.Code(), exam.Name, date, exam.BeginTime, exam.EndTime})
	}
	t.Render()
}
