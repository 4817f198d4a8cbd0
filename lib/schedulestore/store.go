package schedulestore

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"vtaccess/lib/course"
	"vtaccess/lib/semester"
	"vtaccess/lib/telemetry"
	"vtaccess/lib/timezone"
	"vtaccess/lib/vterr"

	_ "embed"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var tracer = telemetry.Tracer("vtaccess.lib.schedulestore")

//go:embed schema.sql
var Schema string

const (
	kindSchedule = "schedule"
	kindExams    = "exams"
)

// Store keeps the latest schedule and exam list of each owner and
// term.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Init creates the tables if they do not exist yet.
func (s Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

type Snapshot struct {
	ID      uuid.UUID
	TakenAt time.Time
}

// replace drops the owner's previous snapshot of the same kind and
// term and registers a new one.
func replace(ctx context.Context, tx *sql.Tx, owner string, term semester.Code, kind string) (Snapshot, error) {
	for _, query := range []string{
		"delete from snapshot_placement where snapshot_id in (select id from snapshot where owner = ? and term = ? and kind = ?)",
		"delete from snapshot_course where snapshot_id in (select id from snapshot where owner = ? and term = ? and kind = ?)",
		"delete from snapshot where owner = ? and term = ? and kind = ?",
	} {
		_, err := tx.ExecContext(ctx, query, owner, term.String(), kind)
		if err != nil {
			return Snapshot{}, err
		}
	}

	snapshot := Snapshot{ID: uuid.New(), TakenAt: timezone.Now()}
	_, err := tx.ExecContext(ctx,
		"insert into snapshot (id, owner, term, kind, taken_at) values (?, ?, ?, ?, ?)",
		snapshot.ID.String(), owner, term.String(), kind, snapshot.TakenAt.Unix(),
	)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func insertCourse(ctx context.Context, tx *sql.Tx, id uuid.UUID, idx int, c *course.Course) error {
	var examDate sql.NullInt64
	if c.Date != nil {
		examDate = sql.NullInt64{Int64: c.Date.Unix(), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `insert into snapshot_course (
		snapshot_id, idx, crn, subject, number, name, teacher, days,
		begin_time, end_time, building, room,
		credits, credits_outcome, class_size, class_size_outcome, exam_date
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), idx, c.CRN, c.SubjectCode, c.CourseNumber, c.Name, c.Teacher, c.Days,
		c.BeginTime, c.EndTime, c.Building, c.Room,
		c.Credits, int(c.Decoding.Credits), c.ClassSize, int(c.Decoding.ClassSize), examDate,
	)
	return err
}

// SaveSchedule replaces the owner's stored schedule for term.
func (s Store) SaveSchedule(ctx context.Context, owner string, term semester.Code, schedule *course.Schedule) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "schedulestore:SaveSchedule")
	defer span.End()
	span.SetAttributes(attribute.String("term", term.String()))

	const op = "schedulestore: save schedule"
	if schedule == nil || !semester.Valid(term.String()) {
		return Snapshot{}, vterr.Newf(vterr.InvalidInput, op, "need a schedule and a valid term")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	snapshot, err := replace(ctx, tx, owner, term, kindSchedule)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to replace snapshot")
		return Snapshot{}, err
	}

	// a course meeting several days is stored once
	indices := map[*course.Course]int{}
	for day, bucket := range schedule.Days() {
		for position, c := range bucket.Courses {
			idx, ok := indices[c]
			if !ok {
				idx = len(indices)
				indices[c] = idx
				err = insertCourse(ctx, tx, snapshot.ID, idx, c)
				if err != nil {
					return Snapshot{}, err
				}
			}
			_, err = tx.ExecContext(ctx,
				"insert into snapshot_placement (snapshot_id, day, position, course_idx) values (?, ?, ?, ?)",
				snapshot.ID.String(), day, position, idx,
			)
			if err != nil {
				return Snapshot{}, err
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit")
		return Snapshot{}, err
	}
	return snapshot, nil
}

// SaveExams replaces the owner's stored exam list for term.
func (s Store) SaveExams(ctx context.Context, owner string, term semester.Code, exams []*course.Course) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "schedulestore:SaveExams")
	defer span.End()

	if !semester.Valid(term.String()) {
		return Snapshot{}, vterr.Newf(vterr.InvalidInput, "schedulestore: save exams", "%q is not a semester code", term)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	snapshot, err := replace(ctx, tx, owner, term, kindExams)
	if err != nil {
		return Snapshot{}, err
	}
	idx := 0
	for _, c := range exams {
		if c == nil {
			continue
		}
		err = insertCourse(ctx, tx, snapshot.ID, idx, c)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert exam")
			return Snapshot{}, err
		}
		idx++
	}
	return snapshot, tx.Commit()
}

func (s Store) snapshot(ctx context.Context, op, owner string, term semester.Code, kind string) (Snapshot, error) {
	var id string
	var takenAt int64
	err := s.db.QueryRowContext(ctx,
		"select id, taken_at from snapshot where owner = ? and term = ? and kind = ?",
		owner, term.String(), kind,
	).Scan(&id, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, vterr.Newf(vterr.NotFound, op, "nothing stored for %s in %s", owner, term)
	}
	if err != nil {
		return Snapshot{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: parsed, TakenAt: time.Unix(takenAt, 0).In(timezone.Location)}, nil
}

func (s Store) courses(ctx context.Context, id uuid.UUID) ([]*course.Course, error) {
	rows, err := s.db.QueryContext(ctx, `select
		crn, subject, number, name, teacher, days, begin_time, end_time,
		building, room, credits, credits_outcome, class_size, class_size_outcome, exam_date
	from snapshot_course where snapshot_id = ? order by idx`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*course.Course
	for rows.Next() {
		c := course.New()
		var begin, end string
		var creditsOutcome, classSizeOutcome int
		var examDate sql.NullInt64
		err = rows.Scan(
			&c.CRN, &c.SubjectCode, &c.CourseNumber, &c.Name, &c.Teacher, &c.Days, &begin, &end,
			&c.Building, &c.Room, &c.Credits, &creditsOutcome, &c.ClassSize, &classSizeOutcome, &examDate,
		)
		if err != nil {
			return nil, err
		}
		c.SetTimes(begin, end)
		c.Decoding.Credits = course.Outcome(creditsOutcome)
		c.Decoding.ClassSize = course.Outcome(classSizeOutcome)
		if examDate.Valid {
			date := time.Unix(examDate.Int64, 0).In(timezone.Location)
			c.Date = &date
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestSchedule loads the stored schedule of owner for term. Courses
// meeting on several days share one *course.Course again.
func (s Store) LatestSchedule(ctx context.Context, owner string, term semester.Code) (*course.Schedule, Snapshot, error) {
	ctx, span := tracer.Start(ctx, "schedulestore:LatestSchedule")
	defer span.End()

	snapshot, err := s.snapshot(ctx, "schedulestore: latest schedule", owner, term, kindSchedule)
	if err != nil {
		return nil, Snapshot{}, err
	}
	courses, err := s.courses(ctx, snapshot.ID)
	if err != nil {
		return nil, Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		"select day, course_idx from snapshot_placement where snapshot_id = ? order by day, position",
		snapshot.ID.String(),
	)
	if err != nil {
		return nil, Snapshot{}, err
	}
	defer rows.Close()

	schedule := course.NewSchedule(owner)
	for rows.Next() {
		var day, idx int
		err = rows.Scan(&day, &idx)
		if err != nil {
			return nil, Snapshot{}, err
		}
		bucket := schedule.Day(course.Weekday(day))
		if bucket == nil || idx < 0 || idx >= len(courses) {
			continue
		}
		bucket.Add(courses[idx])
	}
	return schedule, snapshot, rows.Err()
}

func (s Store) Exams(ctx context.Context, owner string, term semester.Code) ([]*course.Course, Snapshot, error) {
	ctx, span := tracer.Start(ctx, "schedulestore:Exams")
	defer span.End()

	snapshot, err := s.snapshot(ctx, "schedulestore: exams", owner, term, kindExams)
	if err != nil {
		return nil, Snapshot{}, err
	}
	exams, err := s.courses(ctx, snapshot.ID)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return exams, snapshot, nil
}

// Terms lists the terms anything is stored for, newest first.
func (s Store) Terms(ctx context.Context, owner string) ([]semester.Code, error) {
	rows, err := s.db.QueryContext(ctx,
		"select distinct term from snapshot where owner = ? order by term desc",
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []semester.Code
	for rows.Next() {
		var term string
		err = rows.Scan(&term)
		if err != nil {
			return nil, err
		}
		terms = append(terms, semester.Code(term))
	}
	return terms, rows.Err()
}
