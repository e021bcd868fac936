package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
)

var errMissingReference = errors.New("referenced row does not exist")

type GradebookRepository struct {
	db *DB
}

var _ gradebook.Repository = (*GradebookRepository)(nil)

func NewGradebookRepository(db *DB) *GradebookRepository {
	return &GradebookRepository{db: db}
}

// Writes

// SetGradeMappings replaces the grade scale. Mappings without an ID get one.
func (repo *GradebookRepository) SetGradeMappings(scale []grading.GradeMapping) []grading.GradeMapping {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	mappings := make([]grading.GradeMapping, len(scale))
	for i, m := range scale {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		mappings[i] = m
	}
	repo.db.mappings = mappings
	return append([]grading.GradeMapping(nil), mappings...)
}

func (repo *GradebookRepository) CreateStudent(st gradebook.Student) (gradebook.Student, error) {
	st.FullName = core.CleanString(st.FullName)
	st.Email = core.CleanString(st.Email, true /* lower */)
	if st.FullName == "" || st.Email == "" {
		return gradebook.Student{}, core.NewValidationError(errors.New("invalid student"),
			core.FieldError{Field: "full_name", Error: "full name and email are required"})
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *GradebookRepository) CreateSubject(sub gradebook.Subject) (gradebook.Subject, error) {
	if sub.Credits < 1 {
		return gradebook.Subject{}, core.NewValidationError(errors.New("invalid subject"),
			core.FieldError{Field: "credits", Error: "credits must be at least 1"})
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *GradebookRepository) CreateSemester(sem gradebook.Semester) (gradebook.Semester, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if sem.ID == "" {
		sem.ID = uuid.NewString()
	}
	if sem.SessionID == "" {
		sem.SessionID = uuid.NewString()
	}
	repo.db.semesters[sem.ID] = &sem
	return sem, nil
}

// LockSemester freezes (or unfreezes) the grades of a semester.
func (repo *GradebookRepository) LockSemester(id string, locked bool) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	sem, ok := repo.db.semesters[id]
	if !ok {
		return gradebook.ErrSemesterNotFound
	}
	sem.IsLocked = locked
	return nil
}

func (repo *GradebookRepository) CreateEnrollment(enr gradebook.Enrollment) (gradebook.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[enr.StudentID]; !ok {
		return gradebook.Enrollment{}, errors.Wrap(errMissingReference, "student "+enr.StudentID)
	}
	if _, ok := repo.db.subjects[enr.SubjectID]; !ok {
		return gradebook.Enrollment{}, errors.Wrap(errMissingReference, "subject "+enr.SubjectID)
	}
	if _, ok := repo.db.semesters[enr.SemesterID]; !ok {
		return gradebook.Enrollment{}, errors.Wrap(errMissingReference, "semester "+enr.SemesterID)
	}
	if enr.ID == "" {
		enr.ID = uuid.NewString()
	}
	repo.db.enrollments[enr.ID] = &enrollmentRow{Enrollment: enr, seq: len(repo.db.enrollments)}
	return enr, nil
}

func (repo *GradebookRepository) UpsertGrades(_ context.Context, grades []gradebook.Grade) ([]gradebook.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, g := range grades {
		if _, ok := repo.db.enrollments[g.EnrollmentID]; !ok {
			return nil, errors.Wrap(errMissingReference, "enrollment "+g.EnrollmentID)
		}
		if !gradebook.ValidMarks(g.Marks) {
			return nil, core.NewValidationError(
				errors.Errorf("marks %v out of range for enrollment %s", g.Marks, g.EnrollmentID),
				core.FieldError{Field: "marks", Error: "marks must be a number between 0 and 100"},
			)
		}
	}

	now := time.Now().UTC()
	saved := make([]gradebook.Grade, 0, len(grades))
	for _, g := range grades {
		if old, ok := repo.db.grades[g.EnrollmentID]; ok {
			g.ID = old.ID
		} else {
			g.ID = uuid.NewString()
		}
		g.UpdatedAt = now
		stored := g
		repo.db.grades[g.EnrollmentID] = &stored
		saved = append(saved, g)
	}
	return saved, nil
}

// Reads

func (repo *GradebookRepository) ListGradeMappings(_ context.Context) ([]grading.GradeMapping, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return append([]grading.GradeMapping(nil), repo.db.mappings...), nil
}

func (repo *GradebookRepository) ListStudents(_ context.Context) ([]gradebook.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]gradebook.Student, 0, len(repo.db.students))
	for _, st := range repo.db.students {
		students = append(students, *st)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].FullName < students[j].FullName })
	return students, nil
}

func (repo *GradebookRepository) GetStudent(_ context.Context, id string) (gradebook.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if st, ok := repo.db.students[id]; ok {
		return *st, nil
	}
	return gradebook.Student{}, gradebook.ErrStudentNotFound
}

func (repo *GradebookRepository) GetSubject(_ context.Context, id string) (gradebook.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if sub, ok := repo.db.subjects[id]; ok {
		return *sub, nil
	}
	return gradebook.Subject{}, gradebook.ErrSubjectNotFound
}

func (repo *GradebookRepository) GetSemester(_ context.Context, id string) (gradebook.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if sem, ok := repo.db.semesters[id]; ok {
		return *sem, nil
	}
	return gradebook.Semester{}, gradebook.ErrSemesterNotFound
}

func (repo *GradebookRepository) ListStudentEnrollments(_ context.Context, studentID string) ([]gradebook.EnrollmentRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.records(func(e *enrollmentRow) bool { return e.StudentID == studentID }), nil
}

func (repo *GradebookRepository) ListSubjectEnrollments(
	_ context.Context,
	subjectID, semesterID string,
	orderings ...core.DBOrdering,
) ([]gradebook.EnrollmentRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := repo.records(func(e *enrollmentRow) bool {
		return e.SubjectID == subjectID && e.SemesterID == semesterID
	})
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "student_name", Ascending: true}}
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range orderings {
			c := compareRecords(records[i], records[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return records, nil
}

// records joins the enrollments matching keep, in insertion order. Callers hold the read lock.
func (repo *GradebookRepository) records(keep func(*enrollmentRow) bool) []gradebook.EnrollmentRecord {
	rows := make([]*enrollmentRow, 0)
	for _, e := range repo.db.enrollments {
		if keep(e) {
			rows = append(rows, e)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	records := make([]gradebook.EnrollmentRecord, 0, len(rows))
	for _, e := range rows {
		rec := gradebook.EnrollmentRecord{
			Enrollment: e.Enrollment,
			Student:    *repo.db.students[e.StudentID],
			Subject:    *repo.db.subjects[e.SubjectID],
			Semester:   *repo.db.semesters[e.SemesterID],
		}
		if g, ok := repo.db.grades[e.ID]; ok {
			grade := *g
			rec.Grade = &grade
		}
		records = append(records, rec)
	}
	return records
}

// compareRecords returns -1, 0 or 1. Unknown fields compare equal; ungraded marks sort lowest.
func compareRecords(a, b gradebook.EnrollmentRecord, field string) int {
	switch field {
	case "student_name":
		return strings.Compare(strings.ToLower(a.Student.FullName), strings.ToLower(b.Student.FullName))
	case "student_number":
		return strings.Compare(a.Student.StudentNumber, b.Student.StudentNumber)
	case "marks":
		am, bm := a.Marks(), b.Marks()
		switch {
		case am == nil && bm == nil:
			return 0
		case am == nil:
			return -1
		case bm == nil:
			return 1
		case *am < *bm:
			return -1
		case *am > *bm:
			return 1
		}
	}
	return 0
}
