package scheduleio

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"vtaccess/lib/course"
	"vtaccess/lib/semester"
	"vtaccess/lib/timezone"
)

const (
	DefaultSchedulesPath = "schedules.xml"
	DefaultExamsPath     = "exams.xml"

	dateLayout = "01/02/2006"
)

// Store reads and writes the schedule and exam files.
type Store struct {
	SchedulesPath string
	ExamsPath     string
}

func New(schedulesPath, examsPath string) Store {
	if schedulesPath == "" {
		schedulesPath = DefaultSchedulesPath
	}
	if examsPath == "" {
		examsPath = DefaultExamsPath
	}
	return Store{SchedulesPath: schedulesPath, ExamsPath: examsPath}
}

type xmlCourse struct {
	Name         string `xml:"Name"`
	CRN          string `xml:"Crn"`
	SubjectCode  string `xml:"SubjectCode"`
	CourseNumber string `xml:"CourseNumber"`
	Teacher      string `xml:"Teacher"`
	BeginTime    string `xml:"BeginTime"`
	EndTime      string `xml:"EndTime"`
	Building     string `xml:"Building"`
	Room         string `xml:"Room"`
	Date         string `xml:"Date,omitempty"`
	Credits      int    `xml:"Credits"`
	ClassSize    int    `xml:"ClassSize"`
	Days         string `xml:"Days"`
}

type xmlDay struct {
	Courses []xmlCourse `xml:"Course"`
}

type xmlSchedule struct {
	Owner     string `xml:"Owner"`
	Monday    xmlDay `xml:"Monday"`
	Tuesday   xmlDay `xml:"Tuesday"`
	Wednesday xmlDay `xml:"Wednesday"`
	Thursday  xmlDay `xml:"Thursday"`
	Friday    xmlDay `xml:"Friday"`
	AnyDay    xmlDay `xml:"AnyDay"`
}

// days is in the same order as course.Schedule.Days.
func (s *xmlSchedule) days() []*xmlDay {
	return []*xmlDay{&s.Monday, &s.Tuesday, &s.Wednesday, &s.Thursday, &s.Friday, &s.AnyDay}
}

type xmlSchedules struct {
	XMLName   xml.Name      `xml:"Schedules"`
	Schedules []xmlSchedule `xml:"Schedule"`
}

type xmlExams struct {
	XMLName  xml.Name    `xml:"ExamSchedule"`
	Courses  []xmlCourse `xml:"Course"`
	Semester string      `xml:"Semester"`
}

func toXML(c *course.Course) xmlCourse {
	x := xmlCourse{
		Name:         c.Name,
		CRN:          c.CRN,
		SubjectCode:  c.SubjectCode,
		CourseNumber: c.CourseNumber,
		Teacher:      c.Teacher,
		BeginTime:    c.BeginTime,
		EndTime:      c.EndTime,
		Building:     c.Building,
		Room:         c.Room,
		Credits:      c.Credits,
		ClassSize:    c.ClassSize,
		Days:         c.Days,
	}
	if c.Date != nil {
		x.Date = c.Date.In(timezone.Location).Format(dateLayout)
	}
	return x
}

func fromXML(x xmlCourse) (*course.Course, error) {
	c := course.New()
	c.Name = strings.TrimSpace(x.Name)
	c.CRN = strings.TrimSpace(x.CRN)
	c.SubjectCode = strings.TrimSpace(x.SubjectCode)
	c.CourseNumber = strings.TrimSpace(x.CourseNumber)
	c.Teacher = strings.TrimSpace(x.Teacher)
	c.Building = strings.TrimSpace(x.Building)
	c.Room = strings.TrimSpace(x.Room)
	c.Days = strings.TrimSpace(x.Days)
	c.SetTimes(strings.TrimSpace(x.BeginTime), strings.TrimSpace(x.EndTime))
	c.SetCredits(x.Credits, outcome(x.Credits))
	c.SetClassSize(x.ClassSize, outcome(x.ClassSize))

	if date := strings.TrimSpace(x.Date); date != "" {
		parsed, err := time.ParseInLocation(dateLayout, date, timezone.Location)
		if err != nil {
			return nil, fmt.Errorf("course %s has a bad date: %w", c.Code(), err)
		}
		c.Date = &parsed
	}
	return c, nil
}

// negative counts were never read from a page
func outcome(value int) course.Outcome {
	if value < 0 {
		return course.Defaulted
	}
	return course.Parsed
}

// EncodeSchedules writes the owner's schedule followed by the friends'.
func EncodeSchedules(w io.Writer, owner *course.Schedule, friends []*course.Schedule) error {
	if owner == nil {
		return fmt.Errorf("no schedule to encode")
	}

	doc := xmlSchedules{}
	for _, s := range append([]*course.Schedule{owner}, friends...) {
		if s == nil {
			continue
		}
		x := xmlSchedule{Owner: s.Owner}
		for i, day := range s.Days() {
			bucket := x.days()[i]
			for _, c := range day.Courses {
				bucket.Courses = append(bucket.Courses, toXML(c))
			}
		}
		doc.Schedules = append(doc.Schedules, x)
	}
	return encode(w, doc)
}

// DecodeSchedules reads schedules back, the owner's first. A course
// listed under several days comes back as one *course.Course shared by
// those days.
func DecodeSchedules(r io.Reader) ([]*course.Schedule, error) {
	var doc xmlSchedules
	err := xml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}
	if len(doc.Schedules) == 0 {
		return nil, fmt.Errorf("schedules file has no schedule")
	}

	schedules := make([]*course.Schedule, 0, len(doc.Schedules))
	for _, x := range doc.Schedules {
		s := course.NewSchedule(strings.TrimSpace(x.Owner))
		var seen []*course.Course
		for i, bucket := range x.days() {
			for _, xc := range bucket.Courses {
				if strings.TrimSpace(xc.Name) == "" {
					continue
				}
				c, err := fromXML(xc)
				if err != nil {
					return nil, err
				}
				seen, c = relink(seen, c)
				s.Days()[i].Add(c)
			}
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// relink returns the course already read for another day when c is
// the same meeting.
func relink(seen []*course.Course, c *course.Course) ([]*course.Course, *course.Course) {
	for _, existing := range seen {
		if course.Equal(existing, c) && existing.CRN == c.CRN && existing.Days == c.Days {
			return seen, existing
		}
	}
	return append(seen, c), c
}

// EncodeExams writes the exam list and the term it belongs to.
func EncodeExams(w io.Writer, exams []*course.Course, term semester.Code) error {
	doc := xmlExams{Semester: term.String()}
	for _, c := range exams {
		if c == nil {
			continue
		}
		doc.Courses = append(doc.Courses, toXML(c))
	}
	return encode(w, doc)
}

func DecodeExams(r io.Reader) ([]*course.Course, semester.Code, error) {
	var doc xmlExams
	err := xml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode exams: %w", err)
	}

	exams := make([]*course.Course, 0, len(doc.Courses))
	for _, xc := range doc.Courses {
		c, err := fromXML(xc)
		if err != nil {
			return nil, "", err
		}
		exams = append(exams, c)
	}

	term := strings.TrimSpace(doc.Semester)
	if term == "" {
		return exams, "", nil
	}
	code, err := semester.Parse(term)
	if err != nil {
		return nil, "", fmt.Errorf("exams file has a bad semester: %w", err)
	}
	return exams, code, nil
}

func encode(w io.Writer, doc any) error {
	_, err := io.WriteString(w, xml.Header)
	if err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	err = enc.Encode(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func (s Store) SaveSchedules(owner *course.Schedule, friends []*course.Schedule) error {
	return writeFile(s.SchedulesPath, func(w io.Writer) error {
		return EncodeSchedules(w, owner, friends)
	})
}

func (s Store) LoadSchedules() ([]*course.Schedule, error) {
	f, err := os.Open(s.SchedulesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSchedules(f)
}

func (s Store) SaveExams(exams []*course.Course, term semester.Code) error {
	return writeFile(s.ExamsPath, func(w io.Writer) error {
		return EncodeExams(w, exams, term)
	})
}

func (s Store) LoadExams() ([]*course.Course, semester.Code, error) {
	f, err := os.Open(s.ExamsPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return DecodeExams(f)
}

// writeFile replaces path only once the whole document is written.
func writeFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = write(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
