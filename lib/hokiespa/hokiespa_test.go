package hokiespa

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"vtaccess/lib/cas"
	"vtaccess/lib/course"
	"vtaccess/lib/fetch"
	"vtaccess/lib/semester"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/timezone"
	"vtaccess/lib/vterr"

	_ "embed"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/schedule.html
var schedulePage []byte

//go:embed testdata/exams.html
var examsPage []byte

//go:embed testdata/empty.html
var emptyPage []byte

//go:embed testdata/login_form.html
var loginFormPage []byte

var _ Session = (*cas.Session)(nil)

const (
	fall2024   = semester.Code("202409")
	spring2024 = semester.Code("202401")
)

type exam struct {
	code  string
	date  string
	begin string
	end   string
}

var examTimes = map[string]exam{
	"83712": {"CS 3114", "December 12, 2024", "7:45AM", "9:45AM"},
	"83800": {"MATH 2214", "December 16, 2024", "1:05PM", "3:05PM"},
}

type spa struct {
	srv *httptest.Server

	popups atomic.Int32
	// number of detail requests to answer with the login form
	expired atomic.Int32
	// crn whose exam page has lost its rows
	brokenExam atomic.Value

	mutex sync.Mutex
	exams []url.Values
}

func newSPA(t *testing.T) *spa {
	s := &spa{}
	s.brokenExam.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/popup", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "hzskschd.P_CrseSchdDetl", query.Get("link_in"))
		assert.Equal(t, "N", query.Get("disp_header"))
		if cookie, err := r.Cookie("IDMSESSID"); assert.NoError(t, err) {
			assert.NotEmpty(t, cookie.Value)
		}
		n := s.popups.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "SESSID", Value: fmt.Sprintf("spa-%d", n)})
		w.Write([]byte("<html><body></body></html>"))
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Referer(), "/popup?")
		if cookie, err := r.Cookie("SESSID"); assert.NoError(t, err) {
			assert.Equal(t, fmt.Sprintf("spa-%d", s.popups.Load()), cookie.Value)
		}

		if s.expired.Load() > 0 {
			s.expired.Add(-1)
			w.Write(loginFormPage)
			return
		}

		query := r.URL.Query()
		switch {
		case query.Get("term_in") == spring2024.String():
			w.Write(emptyPage)
		case query.Get("print_friendly") == "Y":
			w.Write(examsPage)
		default:
			w.Write(schedulePage)
		}
	})
	mux.HandleFunc("/exam", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		s.mutex.Lock()
		s.exams = append(s.exams, query)
		s.mutex.Unlock()

		e, ok := examTimes[query.Get("CRN")]
		if !ok || query.Get("CRN") == s.brokenExam.Load().(string) {
			w.Write([]byte("<html><body><table><tr><td>No exam found</td></tr></table></body></html>"))
			return
		}
		fmt.Fprintf(w, `<html><body><table>
<tr><td>Final Exam Schedule</td></tr>
<tr><td>Fall 2024</td></tr>
<tr><td>Course: %s</td></tr>
<tr><td>Exam Date: %s</td></tr>
<tr><td>Begin Time: %s</td></tr>
<tr><td>End Time: %s</td></tr>
</table></body></html>`, e.code, e.date, e.begin, e.end)
	})

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *spa) options() Options {
	return Options{
		PopupURL:    s.srv.URL + "/popup",
		DetailURL:   s.srv.URL + "/detail",
		ExamTimeURL: s.srv.URL + "/exam",
	}
}

// fakeSession stands in for a logged in cas.Session.
type fakeSession struct {
	fetcher   *fetch.Fetcher
	cookies   map[string]string
	active    bool
	refreshOK bool
	refreshes int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		fetcher: fetch.New(fetch.Options{
			Timeout:      5 * time.Second,
			AllowedHosts: []string{"127.0.0.1"},
		}),
		cookies:   map[string]string{"IDMSESSID": "hokiebird"},
		active:    true,
		refreshOK: true,
	}
}

func (s *fakeSession) IsActive(context.Context) bool {
	return s.active
}

func (s *fakeSession) Refresh(context.Context) bool {
	s.refreshes++
	s.active = s.refreshOK
	return s.refreshOK
}

func (s *fakeSession) Cookie(name string) string {
	return s.cookies[name]
}

func (s *fakeSession) Fetch(ctx context.Context, r fetch.Request) (fetch.Page, error) {
	r.Cookies = s.cookies
	return s.fetcher.Fetch(ctx, r)
}

func newClient(t *testing.T, s *spa, session Session) *Client {
	c, err := NewClient(context.Background(), session, s.options())
	require.NoError(t, err)
	return c
}

func TestMain(m *testing.M) {
	cleanup := telemetry.SetupForTesting("test:hokiespa")
	defer cleanup()
	m.Run()
}

func TestRetrieveSchedule(t *testing.T) {
	s := newSPA(t)
	session := newFakeSession()

	schedule, err := newClient(t, s, session).RetrieveSchedule(context.Background(), fall2024)
	require.NoError(t, err)
	require.Equal(t, course.DefaultOwner, schedule.Owner)
	require.Equal(t, int32(1), s.popups.Load())
	require.Equal(t, "spa-1", session.Cookie("SESSID"))

	names := func(d course.Weekday) []string {
		var out []string
		for _, c := range schedule.Day(d).Courses {
			out = append(out, c.Name)
		}
		return out
	}
	dataStructures := "Data Structures and Algorithms"
	require.Equal(t, []string{dataStructures}, names(course.Monday))
	require.Equal(t, []string{"Intro Differential Equations"}, names(course.Tuesday))
	require.Equal(t, []string{dataStructures}, names(course.Wednesday))
	require.Equal(t, []string{dataStructures, "Intro Differential Equations"}, names(course.Thursday))
	require.Equal(t, []string{dataStructures}, names(course.Friday))
	require.Equal(t, []string{"Online Writing", "Seminar"}, names(course.AnyDay))
	require.Equal(t, 8, schedule.Len())
	require.Equal(t, 10, schedule.Credits())

	lecture := schedule.Day(course.Monday).Courses[0]
	require.Same(t, lecture, schedule.Day(course.Wednesday).Courses[0])
	require.Same(t, lecture, schedule.Day(course.Friday).Courses[0])
	require.Equal(t, "83712", lecture.CRN)
	require.Equal(t, "CS-3114", lecture.Code())
	require.Equal(t, "MCB", lecture.Building)
	require.Equal(t, "100", lecture.Room)
	require.Equal(t, 905, lecture.Span.Begin)
	require.Equal(t, 955, lecture.Span.End)
	require.Equal(t, 3, lecture.Credits)
	require.Equal(t, "Shaffer", lecture.Teacher)

	extra := schedule.Day(course.Thursday).Courses[0]
	require.NotSame(t, lecture, extra)
	require.Equal(t, "TORG", extra.Building)
	require.Equal(t, "1060", extra.Room)
	require.Equal(t, 1430, extra.Span.Begin)
	require.Equal(t, course.Defaulted, extra.Decoding.Credits)

	math := schedule.Day(course.Tuesday).Courses[0]
	require.Equal(t, "McBryde", math.Building)
	require.Equal(t, "113", math.Room)
	require.Equal(t, 1215, math.Span.End)

	online := schedule.Day(course.AnyDay).Courses[0]
	require.Equal(t, course.NotApplicable, online.BeginTime)
	require.Equal(t, course.NotApplicable, online.EndTime)
	require.Equal(t, "ONLINE", online.Building)
	require.Empty(t, online.Room)
}

func TestRetrieveScheduleNoCourses(t *testing.T) {
	s := newSPA(t)
	schedule, err := newClient(t, s, newFakeSession()).RetrieveSchedule(context.Background(), spring2024)
	require.ErrorIs(t, err, vterr.ErrNotFound)
	require.False(t, fetch.IsTransport(err))
	require.Nil(t, schedule)
}

func TestRetrieveScheduleRequiresSession(t *testing.T) {
	s := newSPA(t)

	session := newFakeSession()
	session.active = false
	session.refreshOK = false
	_, err := NewClient(context.Background(), session, s.options())
	require.ErrorIs(t, err, vterr.ErrSessionTimeout)
	require.Equal(t, 1, session.refreshes)

	session = newFakeSession()
	c := newClient(t, s, session)
	delete(session.cookies, "IDMSESSID")
	_, err = c.RetrieveSchedule(context.Background(), fall2024)
	require.ErrorIs(t, err, vterr.ErrSessionTimeout)

	session.cookies["IDMSESSID"] = "hokiebird"
	session.active = false
	_, err = c.RetrieveSchedule(context.Background(), fall2024)
	require.ErrorIs(t, err, vterr.ErrSessionTimeout)

	_, err = c.RetrieveSchedule(context.Background(), "2024")
	require.ErrorIs(t, err, vterr.ErrInvalidInput)

	require.Zero(t, s.popups.Load())
}

func TestRetrieveScheduleRefreshesOnce(t *testing.T) {
	s := newSPA(t)
	session := newFakeSession()
	c := newClient(t, s, session)

	s.expired.Store(1)
	schedule, err := c.RetrieveSchedule(context.Background(), fall2024)
	require.NoError(t, err)
	require.False(t, schedule.IsEmpty())
	require.Equal(t, 1, session.refreshes)
	require.Equal(t, int32(2), s.popups.Load())

	s.expired.Store(2)
	_, err = c.RetrieveSchedule(context.Background(), fall2024)
	require.ErrorIs(t, err, vterr.ErrSessionTimeout)
	require.Equal(t, 2, session.refreshes)

	s.expired.Store(1)
	session.refreshOK = false
	_, err = c.RetrieveSchedule(context.Background(), fall2024)
	require.ErrorIs(t, err, vterr.ErrSessionTimeout)
	require.Equal(t, 3, session.refreshes)
}

func TestRetrieveExamSchedule(t *testing.T) {
	s := newSPA(t)
	exams, err := newClient(t, s, newFakeSession()).RetrieveExamSchedule(context.Background(), fall2024)
	require.NoError(t, err)
	require.Len(t, exams, 2)

	require.Len(t, s.exams, 2)
	require.Equal(t, url.Values{
		"CRN":      {"83712"},
		"SUBJECT":  {"CS"},
		"CRSE_NUM": {"3114"},
		"TERM":     {"09"},
		"YEAR":     {"2024"},
		"EXAMNUM":  {"05T"},
	}, s.exams[0])
	require.Equal(t, "XXX", s.exams[1].Get("EXAMNUM"))

	first := exams[0]
	require.Equal(t, "Data Structures and Algorithms", first.Name)
	require.Equal(t, "83712", first.CRN)
	require.Equal(t, "CS-3114", first.Code())
	require.Equal(t, "7:45AM", first.BeginTime)
	require.Equal(t, 745, first.Span.Begin)
	require.Equal(t, 945, first.Span.End)
	require.NotNil(t, first.Date)
	require.True(t, timezone.Date(2024, time.December, 12).Equal(*first.Date))

	second := exams[1]
	require.Equal(t, "MATH-2214", second.Code())
	require.Equal(t, 1305, second.Span.Begin)
	require.True(t, timezone.Date(2024, time.December, 16).Equal(*second.Date))
}

func TestRetrieveExamScheduleSkipsUnreadableExams(t *testing.T) {
	s := newSPA(t)
	s.brokenExam.Store("83800")

	exams, err := newClient(t, s, newFakeSession()).RetrieveExamSchedule(context.Background(), fall2024)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	require.Equal(t, "83712", exams[0].CRN)
	require.Len(t, s.exams, 2)
}

func TestRetrieveExamTimesValidates(t *testing.T) {
	s := newSPA(t)
	c := newClient(t, s, newFakeSession())

	_, err := c.RetrieveExamTimes(context.Background(), ExamQuery{
		Term:    fall2024,
		CRN:     "83712",
		Subject: "CS",
		Number:  "3114",
	})
	require.ErrorIs(t, err, vterr.ErrInvalidInput)

	_, err = c.RetrieveExamTimes(context.Background(), ExamQuery{
		Term:    "20249",
		CRN:     "83712",
		Subject: "CS",
		Number:  "3114",
		ExamID:  "05T",
	})
	require.ErrorIs(t, err, vterr.ErrInvalidInput)
	require.Empty(t, s.exams)
}

func TestReadExamTimesMissingRows(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(
		"<table><tr><td>Final Exam Schedule</td></tr><tr><td>Fall 2024</td></tr><tr><td>Course: CS 3114</td></tr></table>",
	))
	require.NoError(t, err)

	_, err = ReadExamTimes(doc, ExamQuery{Term: fall2024, CRN: "83712", Subject: "CS", Number: "3114", ExamID: "05T"})
	require.ErrorIs(t, err, vterr.ErrNotFound)
}

func TestReadExamQueries(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(examsPage))
	require.NoError(t, err)

	queries, ok := ReadExamQueries(doc, fall2024)
	require.True(t, ok)
	var ids []string
	for _, q := range queries {
		ids = append(ids, q.CRN+" "+q.ExamID)
	}
	require.Equal(t, []string{"83712 05T", "83800 CTE"}, ids)

	doc, err = goquery.NewDocumentFromReader(strings.NewReader("<table><tr><td>x</td></tr></table>"))
	require.NoError(t, err)
	_, ok = ReadExamQueries(doc, fall2024)
	require.False(t, ok)
}
