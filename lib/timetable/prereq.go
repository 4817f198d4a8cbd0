package timetable

import (
	"context"
	"regexp"
	"strings"
	"vtaccess/lib/course"
	"vtaccess/lib/fetch"
	"vtaccess/lib/htmlutil"
	"vtaccess/lib/semester"
	"vtaccess/lib/vterr"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// prerequisites are searched for in this many terms starting with the
// one before the requested term
const prerequisiteTerms = 4

const prerequisitesLabel = "Prerequisites:"

var (
	minimumGrade = regexp.MustCompile(`\(MIN grade of [A-Z]?[+-]?\)`)
	separators   = regexp.MustCompile(` (or|and|OR|AND) `)
	spaces       = regexp.MustCompile(` +`)
)

func (c *Client) commentsForm(term semester.Code, section *course.Course) map[string]string {
	return map[string]string{
		"CRN":     section.CRN,
		"TERM":    string(term.Term()),
		"YEAR":    term.String()[:4],
		"SUBJ":    section.SubjectCode,
		"CRSE":    section.CourseNumber,
		"history": "N",
	}
}

// PrerequisiteText returns the raw prerequisite expression printed on
// a section's comments page.
func (c *Client) PrerequisiteText(ctx context.Context, term semester.Code, section *course.Course) (string, error) {
	ctx, span := tracer.Start(ctx, "timetable:PrerequisiteText")
	defer span.End()

	const op = "timetable: prerequisite text"
	err := checkTerm(op, term)
	if err != nil {
		return "", err
	}
	if section == nil || !section.HasURLFields() {
		return "", vterr.Newf(vterr.InvalidInput, op, "section lacks crn, subject or number")
	}
	span.SetAttributes(attribute.String("course", section.Code()), attribute.String("crn", section.CRN))

	page, err := c.fetcher.Fetch(ctx, fetch.Request{
		URL:  c.opts.CommentsURL,
		Form: c.commentsForm(term, section),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch comments")
		return "", err
	}

	text, ok := readPrerequisiteText(page.Doc)
	if !ok {
		return "", vterr.Newf(vterr.NotFound, op, "%s has no prerequisites row", section.Code())
	}
	return text, nil
}

func readPrerequisiteText(doc *goquery.Document) (string, bool) {
	scope := doc.Find("body center").Eq(1)
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	text := ""
	found := false
	scope.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := htmlutil.Cells(row)
		if len(cells) < 2 || !strings.Contains(cells[0], prerequisitesLabel) {
			return true
		}
		text = cells[1]
		found = true
		return false
	})
	return text, found
}

// NormalizePrerequisites turns "(CS 1114 or CS 1705) and (MATH 1225
// (MIN grade of C))" into ["CS 1114", "CS 1705", "MATH 1225"]. "None"
// gives no tokens.
func NormalizePrerequisites(raw string) []string {
	text := minimumGrade.ReplaceAllString(raw, "")
	text = separators.ReplaceAllString(text, ", ")
	text = strings.NewReplacer("(", "", ")", "").Replace(text)
	text = spaces.ReplaceAllString(text, " ")
	if strings.Contains(text, "None") {
		return nil
	}

	var tokens []string
	for _, part := range strings.Split(text, ",") {
		token := strings.TrimSpace(part)
		_, number, ok := course.SplitCourseCode(token)
		if !ok || !ValidCourseNumber(number) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// Prerequisites resolves each prerequisite of a section to a section
// offered in one of the four terms starting just before term.
func (c *Client) Prerequisites(ctx context.Context, term semester.Code, section *course.Course, allowDuplicates bool) ([]*course.Course, error) {
	ctx, span := tracer.Start(ctx, "timetable:Prerequisites")
	defer span.End()

	raw, err := c.PrerequisiteText(ctx, term, section)
	if err != nil {
		return nil, err
	}

	var resolved []*course.Course
	for _, token := range NormalizePrerequisites(raw) {
		subject, number, _ := course.SplitCourseCode(token)
		found, err := c.findInWindow(ctx, term, subject, number)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to resolve prerequisite")
			return nil, err
		}
		if len(found) == 0 {
			continue
		}
		if allowDuplicates {
			resolved = append(resolved, found...)
		} else {
			resolved = append(resolved, found[0])
		}
	}

	kept := resolved[:0]
	for _, prerequisite := range resolved {
		if strings.Contains(prerequisite.Name, "Additional Time") {
			continue
		}
		kept = append(kept, prerequisite)
	}
	span.SetAttributes(attribute.Int("prerequisites", len(kept)))
	return kept, nil
}

// PrerequisitesFor locates a course by subject and number first.
func (c *Client) PrerequisitesFor(ctx context.Context, term semester.Code, subject, number string, allowDuplicates bool) ([]*course.Course, error) {
	const op = "timetable: prerequisites for"
	err := checkTerm(op, term)
	if err != nil {
		return nil, err
	}
	err = checkSubject(op, subject)
	if err != nil {
		return nil, err
	}
	err = checkCourseNumber(op, number)
	if err != nil {
		return nil, err
	}

	found, err := c.findInWindow(ctx, term, subject, number)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, vterr.Newf(vterr.NotFound, op, "%s-%s is not offered around %s", subject, number, term)
	}
	return c.Prerequisites(ctx, term, found[0], allowDuplicates)
}

// findInWindow returns the sections of the first term in the window
// that offers the course, or nothing.
func (c *Client) findInWindow(ctx context.Context, term semester.Code, subject, number string) ([]*course.Course, error) {
	for _, t := range semester.Window(term.Previous(), prerequisiteTerms) {
		found, err := c.Courses(ctx, t, subject, number, false)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}
