package hokiespa

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"vtaccess/lib/course"
	"vtaccess/lib/fetch"
	"vtaccess/lib/htmlutil"
	"vtaccess/lib/semester"
	"vtaccess/lib/timezone"
	"vtaccess/lib/vterr"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const examDateLayout = "January 2, 2006"

// the exam id column only exists on rows with a scheduled final
const examIDCell = 9

// ExamQuery identifies one exam detail page.
type ExamQuery struct {
	Term    semester.Code
	Name    string
	CRN     string
	Subject string
	Number  string
	ExamID  string
}

func (q ExamQuery) examNumber() string {
	// common time exams are listed under this placeholder
	if strings.EqualFold(q.ExamID, "CTE") {
		return "XXX"
	}
	return q.ExamID
}

func (q ExamQuery) form() map[string]string {
	term := q.Term.String()
	return map[string]string{
		"CRN":      q.CRN,
		"SUBJECT":  q.Subject,
		"CRSE_NUM": q.Number,
		"TERM":     term[4:],
		"YEAR":     term[:4],
		"EXAMNUM":  q.examNumber(),
	}
}

func (q ExamQuery) validate(op string) error {
	if !semester.Valid(q.Term.String()) {
		return vterr.Newf(vterr.InvalidInput, op, "%q is not a semester code", q.Term)
	}
	if q.CRN == "" || q.Subject == "" || q.Number == "" || q.ExamID == "" {
		return vterr.Newf(vterr.InvalidInput, op, "exam query needs crn, subject, number and exam id")
	}
	return nil
}

// RetrieveExamSchedule collects the final exam of every course on the
// student's schedule. Courses whose exam page cannot be read are left
// out.
func (c *Client) RetrieveExamSchedule(ctx context.Context, term semester.Code) ([]*course.Course, error) {
	ctx, span := tracer.Start(ctx, "hokiespa:RetrieveExamSchedule")
	defer span.End()

	const op = "hokiespa: retrieve exam schedule"
	if !semester.Valid(term.String()) {
		return nil, vterr.Newf(vterr.InvalidInput, op, "%q is not a semester code", term)
	}
	err := c.checkSession(ctx, op)
	if err != nil {
		return nil, err
	}

	page, err := c.detailPage(ctx, op, term, true)
	if err != nil {
		return nil, err
	}

	queries, ok := ReadExamQueries(page.Doc, term)
	if !ok {
		return nil, vterr.Newf(vterr.NotFound, op, "no schedule table in %s", term.Name())
	}

	var exams []*course.Course
	for _, q := range queries {
		exam, err := c.RetrieveExamTimes(ctx, q)
		if err != nil {
			if vterr.KindOf(err) == vterr.SessionTimeout {
				return nil, err
			}
			slog.WarnContext(ctx, "skipping exam", "crn", q.CRN, "course", q.Subject+"-"+q.Number, "err", err)
			continue
		}
		exams = append(exams, exam)
	}
	span.SetAttributes(attribute.Int("exams", len(exams)))
	return exams, nil
}

// ReadExamQueries reads the print friendly schedule page. It reports
// false when the page has no course table.
func ReadExamQueries(doc *goquery.Document, term semester.Code) ([]ExamQuery, bool) {
	tables := doc.Find("body table")
	if tables.Length() < 2 {
		return nil, false
	}

	rows := tables.Eq(1).Find("tr")
	var queries []ExamQuery
	for i := headerRows; i < rows.Length()-footerRows; i++ {
		cells := htmlutil.Cells(rows.Eq(i))
		if htmlutil.Cell(cells, 2) == additionalTimes || len(cells) <= examIDCell {
			continue
		}
		subject, number, ok := course.SplitCourseCode(cells[1])
		if !ok {
			slog.Debug("skipping exam row", "row", i, "code", cells[1])
			continue
		}
		queries = append(queries, ExamQuery{
			Term:    term,
			Name:    cells[2],
			CRN:     cells[0],
			Subject: subject,
			Number:  number,
			ExamID:  cells[examIDCell],
		})
	}
	return queries, true
}

// RetrieveExamTimes reads the date and times of one final exam.
func (c *Client) RetrieveExamTimes(ctx context.Context, q ExamQuery) (*course.Course, error) {
	ctx, span := tracer.Start(ctx, "hokiespa:RetrieveExamTimes")
	defer span.End()

	const op = "hokiespa: retrieve exam times"
	err := q.validate(op)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("crn", q.CRN),
		attribute.String("course", q.Subject+"-"+q.Number),
		attribute.String("exam", q.ExamID),
	)

	page, err := c.session.Fetch(ctx, fetch.Request{
		URL:     c.opts.ExamTimeURL,
		Form:    q.form(),
		Referer: c.popupURL(q.Term),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch exam times")
		return nil, err
	}

	exam, err := ReadExamTimes(page.Doc, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read exam times")
		return nil, err
	}
	return exam, nil
}

// ReadExamTimes decodes an exam detail page: course, date, begin and
// end time on rows 2 through 5.
func ReadExamTimes(doc *goquery.Document, q ExamQuery) (*course.Course, error) {
	const op = "hokiespa: read exam times"

	rows := doc.Find("body table tr")
	labels := []string{"Course:", "Exam Date:", "Begin Time:", "End Time:"}
	values := make([]string, len(labels))
	for i, label := range labels {
		text := htmlutil.Text(rows.Eq(i + 2))
		_, value, found := strings.Cut(text, label)
		if !found {
			return nil, vterr.Newf(vterr.NotFound, op, "exam page has no %q row", label)
		}
		values[i] = strings.TrimSpace(value)
	}

	exam := course.New()
	exam.SetName(q.Name)
	exam.CRN = q.CRN
	if !exam.SetCourseCode(values[0]) {
		exam.SubjectCode = q.Subject
		exam.CourseNumber = q.Number
	}
	exam.SetTimes(values[2], values[3])

	date, err := time.ParseInLocation(examDateLayout, values[1], timezone.Location)
	if err != nil {
		slog.Debug("unreadable exam date", "crn", q.CRN, "date", values[1])
	} else {
		exam.Date = &date
	}
	return exam, nil
}
