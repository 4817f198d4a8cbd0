package schedulestore

import (
	"context"
	"testing"
	"time"
	"vtaccess/lib/course"
	"vtaccess/lib/semester"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/testutil"
	"vtaccess/lib/timezone"
	"vtaccess/lib/vterr"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cleanup := telemetry.SetupForTesting("test:schedulestore")
	defer cleanup()
	m.Run()
}

func meeting(crn, code, name, days, begin string) *course.Course {
	c := course.New()
	c.CRN = crn
	c.SetCourseCode(code)
	c.SetName(name)
	c.Days = days
	c.SetTimes(begin, course.NotApplicable)
	c.Building, c.Room = "MCB", "100"
	c.SetCredits(3, course.Parsed)
	return c
}

func newStore(t *testing.T) Store {
	store := NewStore(testutil.OpenDB(t, testutil.DBParams{}))
	require.NoError(t, store.Init(context.Background()))
	// a second init leaves existing tables alone
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSaveSchedule(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := store.LatestSchedule(ctx, "hokiebird", "202409")
	require.ErrorIs(t, err, vterr.ErrNotFound)

	schedule := course.NewSchedule("")
	lecture := meeting("83712", "CS-3114", "Data Structures", "MWF", "9:05AM")
	schedule.AssignDays(lecture, lecture.Days)
	schedule.AssignDays(meeting("84000", "ENGL-1106", "Online Writing", "(ARR)", course.NotApplicable), course.AnyDay.String())

	first, err := store.SaveSchedule(ctx, "hokiebird", "202409", schedule)
	require.NoError(t, err)

	loaded, snapshot, err := store.LatestSchedule(ctx, "hokiebird", "202409")
	require.NoError(t, err)
	require.Equal(t, first.ID, snapshot.ID)
	require.Equal(t, schedule.Len(), loaded.Len())
	require.Equal(t, 6, loaded.Credits())

	monday := loaded.Day(course.Monday).Courses[0]
	require.Same(t, monday, loaded.Day(course.Wednesday).Courses[0])
	require.Same(t, monday, loaded.Day(course.Friday).Courses[0])
	require.Equal(t, "CS-3114", monday.Code())
	require.Equal(t, 905, monday.Span.Begin)
	require.Equal(t, course.Parsed, monday.Decoding.Credits)
	require.Equal(t, -1, monday.ClassSize)
	require.Equal(t, "Online Writing", loaded.Day(course.AnyDay).Courses[0].Name)

	// saving the term again replaces it
	smaller := course.NewSchedule("")
	smaller.AssignDays(meeting("90000", "MATH-2214", "Differential Equations", "TR", "11:00AM"), "TR")
	second, err := store.SaveSchedule(ctx, "hokiebird", "202409", smaller)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	loaded, snapshot, err = store.LatestSchedule(ctx, "hokiebird", "202409")
	require.NoError(t, err)
	require.Equal(t, second.ID, snapshot.ID)
	require.Equal(t, 2, loaded.Len())
	require.Empty(t, loaded.Day(course.Monday).Courses)

	_, err = store.SaveSchedule(ctx, "hokiebird", "2024", smaller)
	require.ErrorIs(t, err, vterr.ErrInvalidInput)
}

func TestSaveExams(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	exam := meeting("83712", "CS-3114", "Data Structures", "", "7:45AM")
	date := timezone.Date(2024, time.December, 12)
	exam.Date = &date

	_, err := store.SaveExams(ctx, "hokiebird", "202409", []*course.Course{exam, nil})
	require.NoError(t, err)

	exams, _, err := store.Exams(ctx, "hokiebird", "202409")
	require.NoError(t, err)
	require.Len(t, exams, 1)
	require.Equal(t, "83712", exams[0].CRN)
	require.NotNil(t, exams[0].Date)
	require.True(t, date.Equal(*exams[0].Date))

	_, _, err = store.Exams(ctx, "someone-else", "202409")
	require.ErrorIs(t, err, vterr.ErrNotFound)
}

func TestTerms(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, term := range []semester.Code{"202401", "202409", "202405"} {
		_, err := store.SaveSchedule(ctx, "hokiebird", term, course.NewSchedule(""))
		require.NoError(t, err)
	}
	_, err := store.SaveExams(ctx, "hokiebird", "202409", nil)
	require.NoError(t, err)
	_, err = store.SaveExams(ctx, "other", "202501", nil)
	require.NoError(t, err)

	terms, err := store.Terms(ctx, "hokiebird")
	require.NoError(t, err)
	require.Equal(t, []semester.Code{"202409", "202405", "202401"}, terms)
}
