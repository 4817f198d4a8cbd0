package timetable

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"vtaccess/lib/course"
	"vtaccess/lib/fetch"
	"vtaccess/lib/htmlutil"
	"vtaccess/lib/semester"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/textutil"
	"vtaccess/lib/vterr"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("vtaccess.lib.timetable")

const (
	TimetableURL = "https://banweb.banner.vt.edu/ssb/prod/HZSKVTSC.P_ProcRequest"
	CommentsURL  = "https://banweb.banner.vt.edu/ssb/prod/HZSKVTSC.P_ProcComments"
)

// teacher names closer than this count as a match
const teacherSimilarity = 0.9

type Options struct {
	TimetableURL string
	CommentsURL  string
	Fetch        fetch.Options
}

// Client reads the public timetable of classes. It needs no login.
type Client struct {
	opts    Options
	fetcher *fetch.Fetcher
}

func NewClient(opts Options) *Client {
	if opts.TimetableURL == "" {
		opts.TimetableURL = TimetableURL
	}
	if opts.CommentsURL == "" {
		opts.CommentsURL = CommentsURL
	}
	return &Client{
		opts:    opts,
		fetcher: fetch.New(opts.Fetch),
	}
}

// Query is one search of the timetable. Empty fields match anything.
type Query struct {
	Term    semester.Code
	Subject string
	Number  string
	CRN     string
	// already normalized by CheckAreaFormat
	Area     string
	OpenOnly bool
}

func (q Query) form() map[string]string {
	area := q.Area
	if area == "" {
		area = "AR%"
	}
	subject := q.Subject
	if subject == "" {
		subject = "%"
	}
	form := map[string]string{
		"CAMPUS":           "0",
		"TERMYEAR":         q.Term.String(),
		"CORE_CODE":        area,
		"subj_code":        subject,
		"SCHDTYPE":         "%",
		"CRSE_NUMBER":      q.Number,
		"crn":              q.CRN,
		"PRINT_FRIEND":     "Y",
		"BTN_PRESSED":      "FIND class sections",
		"disp_comments_in": "Y",
		"history":          "N",
	}
	if q.OpenOnly {
		form["open_only"] = "on"
	}
	return form
}

// Search runs a query and decodes the section table of the response.
func (c *Client) Search(ctx context.Context, q Query, allowDuplicates bool) ([]*course.Course, error) {
	ctx, span := tracer.Start(ctx, "timetable:Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("term", q.Term.String()),
		attribute.String("subject", q.Subject),
		attribute.String("number", q.Number),
		attribute.String("crn", q.CRN),
		attribute.String("area", q.Area),
	)

	err := checkTerm("timetable: search", q.Term)
	if err != nil {
		return nil, err
	}

	page, err := c.fetcher.Fetch(ctx, fetch.Request{
		URL:    c.opts.TimetableURL,
		Method: http.MethodPost,
		Form:   q.form(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch timetable")
		return nil, err
	}

	courses := ReadRows(page.Doc, allowDuplicates)
	span.SetAttributes(attribute.Int("courses", len(courses)))
	return courses, nil
}

// Subjects lists the subject codes offered by the timetable, in page
// order.
func (c *Client) Subjects(ctx context.Context, term semester.Code) ([]string, error) {
	ctx, span := tracer.Start(ctx, "timetable:Subjects")
	defer span.End()

	const op = "timetable: subjects"
	err := checkTerm(op, term)
	if err != nil {
		return nil, err
	}

	page, err := c.fetcher.Fetch(ctx, fetch.Request{
		URL:  c.opts.TimetableURL,
		Form: map[string]string{"TERMYEAR": term.String()},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch timetable")
		return nil, err
	}

	subjects := readSubjects(page.Doc)
	if len(subjects) == 0 {
		span.SetStatus(codes.Error, "no subject list")
		return nil, vterr.Newf(vterr.NotFound, op, "timetable page has no subject list")
	}
	return subjects, nil
}

func readSubjects(doc *goquery.Document) []string {
	options := doc.Find("select[name=subj_code] option")
	if options.Length() == 0 {
		options = doc.Find(".one tbody").First().Find("tr").Eq(4).Find("td").First().Find("select option")
	}

	var subjects []string
	options.Each(func(i int, option *goquery.Selection) {
		// the first option is the "all subjects" placeholder
		if i == 0 {
			return
		}
		fields := strings.Fields(htmlutil.Text(option))
		if len(fields) == 0 {
			return
		}
		subjects = append(subjects, fields[0])
	})
	return subjects
}

// AllCourses queries every subject in turn, so sections of one subject
// stay contiguous in the result.
func (c *Client) AllCourses(ctx context.Context, term semester.Code, allowDuplicates, openOnly bool) ([]*course.Course, error) {
	ctx, span := tracer.Start(ctx, "timetable:AllCourses")
	defer span.End()

	subjects, err := c.Subjects(ctx, term)
	if err != nil {
		return nil, err
	}

	var all []*course.Course
	for _, subject := range subjects {
		courses, err := c.Search(ctx, Query{
			Term:     term,
			Subject:  subject,
			OpenOnly: openOnly,
		}, allowDuplicates)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to query subject")
			return nil, err
		}
		slog.DebugContext(ctx, "read subject", "subject", subject, "courses", len(courses))
		all = append(all, courses...)
	}
	return all, nil
}

func (c *Client) CoursesBySubject(ctx context.Context, term semester.Code, subject string, allowDuplicates, openOnly bool) ([]*course.Course, error) {
	err := checkSubject("timetable: courses by subject", subject)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, Query{Term: term, Subject: subject, OpenOnly: openOnly}, allowDuplicates)
}

// Courses returns every section of one course, duplicates included.
func (c *Client) Courses(ctx context.Context, term semester.Code, subject, number string, openOnly bool) ([]*course.Course, error) {
	const op = "timetable: courses"
	err := checkSubject(op, subject)
	if err != nil {
		return nil, err
	}
	err = checkCourseNumber(op, number)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, Query{
		Term:     term,
		Subject:  subject,
		Number:   number,
		OpenOnly: openOnly,
	}, true)
}

// CoursesByTeacher keeps the sections of a course whose instructor
// matches teacher, by containment first and then by similarity.
func (c *Client) CoursesByTeacher(ctx context.Context, term semester.Code, subject, number, teacher string, openOnly bool) ([]*course.Course, error) {
	if strings.TrimSpace(teacher) == "" {
		return nil, vterr.Newf(vterr.InvalidInput, "timetable: courses by teacher", "teacher is empty")
	}
	courses, err := c.Courses(ctx, term, subject, number, openOnly)
	if err != nil {
		return nil, err
	}

	var matched []*course.Course
	for _, section := range courses {
		if textutil.MatchName(section.Teacher, []string{teacher}, teacherSimilarity) {
			matched = append(matched, section)
		}
	}
	return matched, nil
}

func (c *Client) CourseByCRN(ctx context.Context, term semester.Code, crn string, openOnly bool) (*course.Course, error) {
	const op = "timetable: course by crn"
	if strings.TrimSpace(crn) == "" {
		return nil, vterr.Newf(vterr.InvalidInput, op, "crn is empty")
	}
	courses, err := c.Search(ctx, Query{Term: term, CRN: crn, OpenOnly: openOnly}, false)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, vterr.Newf(vterr.NotFound, op, "no section with crn %s in %s", crn, term)
	}
	return courses[0], nil
}

// AreaCourses lists the sections that satisfy a curriculum area.
func (c *Client) AreaCourses(ctx context.Context, term semester.Code, area string, allowDuplicates, openOnly bool) ([]*course.Course, error) {
	err := checkTerm("timetable: area courses", term)
	if err != nil {
		return nil, err
	}
	normalized, err := CheckAreaFormat(area)
	if err != nil {
		return nil, err
	}
	return c.Search(ctx, Query{Term: term, Area: normalized, OpenOnly: openOnly}, allowDuplicates)
}

// SuggestSubject returns the known subject closest to input, for "did
// you mean" hints on a mistyped subject code.
func SuggestSubject(input string, subjects []string) (string, bool) {
	best, similarity := textutil.Closest(strings.ToUpper(strings.TrimSpace(input)), subjects)
	return best, similarity > 0
}
