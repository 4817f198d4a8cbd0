package timetable

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"vtaccess/lib/course"

	_ "embed"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/sections.html
var sectionsPage []byte

//go:embed testdata/single.html
var singlePage []byte

func parse(t testing.TB, page []byte) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(page))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestReadRowsSingleSection(t *testing.T) {
	courses := ReadRows(parse(t, singlePage), false)
	require.Len(t, courses, 1)

	c := courses[0]
	require.Equal(t, "12345", c.CRN)
	require.Equal(t, "CS", c.SubjectCode)
	require.Equal(t, "1114", c.CourseNumber)
	require.Equal(t, "Intro Programming", c.Name)
	require.Equal(t, 3, c.Credits)
	require.Equal(t, 30, c.ClassSize)
	require.Equal(t, "Smith", c.Teacher)
	require.Equal(t, "MWF", c.Days)
	require.Equal(t, "MCB", c.Building)
	require.Equal(t, "100", c.Room)
	require.Equal(t, 900, c.Span.Begin)
	require.Equal(t, 950, c.Span.End)
	require.Equal(t, course.Parsed, c.Decoding.Begin)
}

type sectionRow struct {
	CRN       string
	Code      string
	Name      string
	Teacher   string
	Days      string
	Begin     string
	End       string
	Building  string
	Room      string
	Credits   int
	ClassSize int
	Decoding  course.Decoding
}

func summarize(courses []*course.Course) []sectionRow {
	rows := make([]sectionRow, len(courses))
	for i, c := range courses {
		rows[i] = sectionRow{
			CRN:       c.CRN,
			Code:      c.Code(),
			Name:      c.Name,
			Teacher:   c.Teacher,
			Days:      c.Days,
			Begin:     c.BeginTime,
			End:       c.EndTime,
			Building:  c.Building,
			Room:      c.Room,
			Credits:   c.Credits,
			ClassSize: c.ClassSize,
			Decoding:  c.Decoding,
		}
	}
	return rows
}

func TestReadRowsSections(t *testing.T) {
	parsed := course.Decoding{Credits: course.Parsed, ClassSize: course.Parsed, Begin: course.Parsed, End: course.Parsed}

	expected := []sectionRow{
		{
			CRN: "12345", Code: "CS-1114", Name: "Intro Programming", Teacher: "Smith",
			Days: "MWF", Begin: "9:00 am", End: "9:50 am", Building: "MCB", Room: "100",
			Credits: 3, ClassSize: 30, Decoding: parsed,
		},
		{
			CRN: "12345", Code: "CS-1114", Name: "Intro Programming * Additional Time *", Teacher: "Smith",
			Days: "T", Begin: "2:00PM", End: "3:15PM", Building: "TORG", Room: "1060",
			Credits: 0, ClassSize: 30,
			Decoding: course.Decoding{Credits: course.Defaulted, ClassSize: course.Parsed, Begin: course.Parsed, End: course.Parsed},
		},
		{
			CRN: "13000", Code: "CS-2114", Name: "Software Design and Data Structures", Teacher: "Staff",
			Days: "(ARR)", Begin: course.NotApplicable, End: course.NotApplicable,
			Credits: 0, ClassSize: 0,
			Decoding: course.Decoding{Credits: course.Defaulted, ClassSize: course.Defaulted, Begin: course.Defaulted, End: course.Defaulted},
		},
		{
			CRN: "13001", Code: "CS-1114", Name: "Intro Programming", Teacher: "Smith",
			Days: "MWF", Begin: "1:25PM", End: "2:15PM", Building: "GOODW", Room: "190",
			Credits: 3, ClassSize: 0,
			Decoding: course.Decoding{Credits: course.Parsed, ClassSize: course.Defaulted, Begin: course.Parsed, End: course.Parsed},
		},
		{
			CRN: "14000", Code: "CS-3114", Name: "Data Structures", Teacher: "Shaffer",
			Days: course.NotApplicable, Begin: course.NotApplicable, End: course.NotApplicable,
			Credits: 3, ClassSize: 40,
			Decoding: course.Decoding{Credits: course.Parsed, ClassSize: course.Parsed, Begin: course.Defaulted, End: course.Defaulted},
		},
	}

	diff := cmp.Diff(expected, summarize(ReadRows(parse(t, sectionsPage), false)))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestReadRowsAllowDuplicates(t *testing.T) {
	courses := ReadRows(parse(t, sectionsPage), true)
	crns := make([]string, len(courses))
	for i, c := range courses {
		crns[i] = c.CRN
	}
	require.Equal(t, []string{"12345", "12345", "12346", "13000", "13001", "14000"}, crns)
}

func TestReadRowsContinuationSharesSection(t *testing.T) {
	courses := ReadRows(parse(t, sectionsPage), false)
	primary, extra := courses[0], courses[1]

	require.Equal(t, primary.Name+" * Additional Time *", extra.Name)
	require.Equal(t, primary.CRN, extra.CRN)
	require.Equal(t, primary.Code(), extra.Code())
	require.Equal(t, primary.ClassSize, extra.ClassSize)
	require.NotSame(t, primary, extra)
}

func table(codes ...string) []byte {
	var b strings.Builder
	b.WriteString("<table><tr><td>CRN</td><td>Course</td></tr>")
	for i, code := range codes {
		fmt.Fprintf(&b,
			"<tr><td>%d</td><td>%s</td><td>Name</td><td>L</td><td>3</td><td>30</td><td>Staff</td><td>MWF</td><td>9:00 am</td><td>9:50 am</td><td>MCB 100</td></tr>",
			10000+i, code,
		)
	}
	b.WriteString("</table>")
	return []byte(b.String())
}

func TestReadRowsAdjacentSuppression(t *testing.T) {
	cases := []struct {
		codes    []string
		expected []string
	}{
		{[]string{"CS-1114", "CS-1114", "CS-2114"}, []string{"CS-1114", "CS-2114"}},
		{[]string{"CS-1114", "CS-2114", "CS-1114"}, []string{"CS-1114", "CS-2114", "CS-1114"}},
		{[]string{"CS-1114", "CS-1114", "CS-1114"}, []string{"CS-1114"}},
		{nil, nil},
	}

	for _, test := range cases {
		courses := ReadRows(parse(t, table(test.codes...)), false)
		var codes []string
		for _, c := range courses {
			codes = append(codes, c.Code())
		}
		diff := cmp.Diff(test.expected, codes, cmpopts.EquateEmpty())
		if diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestReadRowsWithoutTable(t *testing.T) {
	require.Empty(t, ReadRows(parse(t, []byte("<p>No sections found</p>")), false))
}
