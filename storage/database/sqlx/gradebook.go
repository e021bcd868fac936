// Package sqlxrepos implements the gradebook repository over postgres.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
)

const enrollmentsQuery = `
SELECT e.id, e.student_id, e.subject_id, e.semester_id,
       st.full_name AS student_full_name, st.email AS student_email, st.student_number,
       sub.code AS subject_code, sub.name AS subject_name, sub.credits AS subject_credits,
       sem.name AS semester_name, sem.academic_session_id AS session_id, ses.name AS session_name,
       sem.start_date, sem.end_date, sem.is_locked,
       g.id AS grade_id, g.marks, g.grade_mapping_id, g.updated_at AS grade_updated_at
FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN subjects sub ON sub.id = e.subject_id
JOIN semesters sem ON sem.id = e.semester_id
JOIN academic_sessions ses ON ses.id = sem.academic_session_id
LEFT JOIN grades g ON g.enrollment_id = e.id
`

const upsertGradeQuery = `
INSERT INTO grades (enrollment_id, marks, grade_mapping_id) VALUES ($1, $2, $3)
ON CONFLICT (enrollment_id) DO UPDATE
   SET marks = EXCLUDED.marks, grade_mapping_id = EXCLUDED.grade_mapping_id, updated_at = now()
RETURNING id, enrollment_id, marks, grade_mapping_id, updated_at
`

var subjectEnrollmentsOrderings = map[string]string{
	"student_name":   "lower(st.full_name)",
	"student_number": "st.student_number",
	"marks":          "g.marks",
}

var marksNulls = strings.NewReplacer("g.marks ASC", "g.marks ASC NULLS FIRST", "g.marks DESC", "g.marks DESC NULLS LAST")

type (
	enrollmentRow struct {
		ID             string       `db:"id"`
		StudentID      string       `db:"student_id"`
		SubjectID      string       `db:"subject_id"`
		SemesterID     string       `db:"semester_id"`
		StudentName    string       `db:"student_full_name"`
		StudentEmail   string       `db:"student_email"`
		StudentNumber  null.String  `db:"student_number"`
		SubjectCode    string       `db:"subject_code"`
		SubjectName    string       `db:"subject_name"`
		SubjectCredits int          `db:"subject_credits"`
		SemesterName   string       `db:"semester_name"`
		SessionID      string       `db:"session_id"`
		SessionName    string       `db:"session_name"`
		StartDate      time.Time    `db:"start_date"`
		EndDate        time.Time    `db:"end_date"`
		IsLocked       bool         `db:"is_locked"`
		GradeID        null.String  `db:"grade_id"`
		Marks          null.Float64 `db:"marks"`
		GradeMappingID null.String  `db:"grade_mapping_id"`
		GradeUpdatedAt null.Time    `db:"grade_updated_at"`
	}

	gradeRow struct {
		ID             string      `db:"id"`
		EnrollmentID   string      `db:"enrollment_id"`
		Marks          float64     `db:"marks"`
		GradeMappingID null.String `db:"grade_mapping_id"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	mappingRow struct {
		ID          string  `db:"id"`
		LetterGrade string  `db:"letter_grade"`
		GradePoint  float64 `db:"grade_point"`
		MinMarks    float64 `db:"min_marks"`
		MaxMarks    float64 `db:"max_marks"`
	}

	studentRow struct {
		ID            string      `db:"id"`
		FullName      string      `db:"full_name"`
		Email         string      `db:"email"`
		StudentNumber null.String `db:"student_number"`
	}

	semesterRow struct {
		ID          string    `db:"id"`
		SessionID   string    `db:"session_id"`
		SessionName string    `db:"session_name"`
		Name        string    `db:"name"`
		StartDate   time.Time `db:"start_date"`
		EndDate     time.Time `db:"end_date"`
		IsLocked    bool      `db:"is_locked"`
	}
)

// record normalizes a joined row; the grade is nil when no marks were entered.
func (r enrollmentRow) record() gradebook.EnrollmentRecord {
	rec := gradebook.EnrollmentRecord{
		Enrollment: gradebook.Enrollment{
			ID:         r.ID,
			StudentID:  r.StudentID,
			SubjectID:  r.SubjectID,
			SemesterID: r.SemesterID,
		},
		Student: gradebook.Student{
			ID:            r.StudentID,
			FullName:      r.StudentName,
			Email:         r.StudentEmail,
			StudentNumber: r.StudentNumber.String,
		},
		Subject: gradebook.Subject{
			ID:      r.SubjectID,
			Code:    r.SubjectCode,
			Name:    r.SubjectName,
			Credits: r.SubjectCredits,
		},
		Semester: gradebook.Semester{
			ID:          r.SemesterID,
			SessionID:   r.SessionID,
			SessionName: r.SessionName,
			Name:        r.SemesterName,
			StartDate:   r.StartDate,
			EndDate:     r.EndDate,
			IsLocked:    r.IsLocked,
		},
	}
	if r.GradeID.Valid && r.Marks.Valid {
		rec.Grade = &gradebook.Grade{
			ID:             r.GradeID.String,
			EnrollmentID:   r.ID,
			Marks:          r.Marks.Float64,
			GradeMappingID: r.GradeMappingID.Ptr(),
			UpdatedAt:      r.GradeUpdatedAt.Time,
		}
	}
	return rec
}

func (r gradeRow) grade() gradebook.Grade {
	return gradebook.Grade{
		ID:             r.ID,
		EnrollmentID:   r.EnrollmentID,
		Marks:          r.Marks,
		GradeMappingID: r.GradeMappingID.Ptr(),
		UpdatedAt:      r.UpdatedAt,
	}
}

// validID reports whether id can be looked up; malformed ids match nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type GradebookRepository struct {
	db *sqlx.DB
}

var _ gradebook.Repository = (*GradebookRepository)(nil)

func NewGradebookRepository(db *sqlx.DB) *GradebookRepository {
	return &GradebookRepository{db: db}
}

func (repo *GradebookRepository) ListGradeMappings(ctx context.Context) ([]grading.GradeMapping, error) {
	var rows []mappingRow
	q := "SELECT id, letter_grade, grade_point, min_marks, max_marks FROM grade_mappings ORDER BY min_marks DESC"
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting grade mappings")
	}
	scale := make([]grading.GradeMapping, len(rows))
	for i, r := range rows {
		scale[i] = grading.GradeMapping{
			ID:          r.ID,
			LetterGrade: r.LetterGrade,
			GradePoint:  r.GradePoint,
			MinMarks:    r.MinMarks,
			MaxMarks:    r.MaxMarks,
		}
	}
	return scale, nil
}

func (repo *GradebookRepository) ListStudents(ctx context.Context) ([]gradebook.Student, error) {
	var rows []studentRow
	q := "SELECT id, full_name, email, student_number FROM students ORDER BY full_name"
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]gradebook.Student, len(rows))
	for i, r := range rows {
		students[i] = r.student()
	}
	return students, nil
}

func (r studentRow) student() gradebook.Student {
	return gradebook.Student{ID: r.ID, FullName: r.FullName, Email: r.Email, StudentNumber: r.StudentNumber.String}
}

func (repo *GradebookRepository) GetStudent(ctx context.Context, id string) (gradebook.Student, error) {
	if !validID(id) {
		return gradebook.Student{}, gradebook.ErrStudentNotFound
	}
	var row studentRow
	q := "SELECT id, full_name, email, student_number FROM students WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return gradebook.Student{}, gradebook.ErrStudentNotFound
		}
		return gradebook.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.student(), nil
}

func (repo *GradebookRepository) GetSubject(ctx context.Context, id string) (gradebook.Subject, error) {
	if !validID(id) {
		return gradebook.Subject{}, gradebook.ErrSubjectNotFound
	}
	var sub gradebook.Subject
	q := "SELECT id, code, name, credits FROM subjects WHERE id = $1"
	if err := repo.db.QueryRowxContext(ctx, q, id).Scan(&sub.ID, &sub.Code, &sub.Name, &sub.Credits); err != nil {
		if err == sql.ErrNoRows {
			return gradebook.Subject{}, gradebook.ErrSubjectNotFound
		}
		return gradebook.Subject{}, errors.Wrap(err, "selecting subject")
	}
	return sub, nil
}

func (repo *GradebookRepository) GetSemester(ctx context.Context, id string) (gradebook.Semester, error) {
	if !validID(id) {
		return gradebook.Semester{}, gradebook.ErrSemesterNotFound
	}
	var row semesterRow
	q := `SELECT sem.id, sem.academic_session_id AS session_id, ses.name AS session_name,
                 sem.name, sem.start_date, sem.end_date, sem.is_locked
          FROM semesters sem JOIN academic_sessions ses ON ses.id = sem.academic_session_id
          WHERE sem.id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return gradebook.Semester{}, gradebook.ErrSemesterNotFound
		}
		return gradebook.Semester{}, errors.Wrap(err, "selecting semester")
	}
	return gradebook.Semester(row), nil
}

func (repo *GradebookRepository) ListStudentEnrollments(ctx context.Context, studentID string) ([]gradebook.EnrollmentRecord, error) {
	if !validID(studentID) {
		return []gradebook.EnrollmentRecord{}, nil
	}
	q := enrollmentsQuery + "WHERE e.student_id = $1 ORDER BY sem.start_date, e.created_at"
	return repo.selectRecords(ctx, q, studentID)
}

func (repo *GradebookRepository) ListSubjectEnrollments(
	ctx context.Context,
	subjectID, semesterID string,
	orderings ...core.DBOrdering,
) ([]gradebook.EnrollmentRecord, error) {
	if !validID(subjectID) || !validID(semesterID) {
		return []gradebook.EnrollmentRecord{}, nil
	}
	orderBy := core.OrderBy(orderings, subjectEnrollmentsOrderings, "lower(st.full_name) ASC")
	orderBy = marksNulls.Replace(orderBy) // ungraded enrollments sort lowest
	q := enrollmentsQuery + "WHERE e.subject_id = $1 AND e.semester_id = $2 ORDER BY " + orderBy + ", e.created_at"
	return repo.selectRecords(ctx, q, subjectID, semesterID)
}

func (repo *GradebookRepository) selectRecords(ctx context.Context, q string, args ...interface{}) ([]gradebook.EnrollmentRecord, error) {
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	records := make([]gradebook.EnrollmentRecord, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// UpsertGrades writes every grade in one transaction.
func (repo *GradebookRepository) UpsertGrades(ctx context.Context, grades []gradebook.Grade) ([]gradebook.Grade, error) {
	for _, g := range grades {
		if !validID(g.EnrollmentID) {
			return nil, core.NewValidationError(errors.New("invalid enrollment"),
				core.FieldError{Field: "enrollment_id", Error: "invalid enrollment id " + g.EnrollmentID})
		}
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	saved := make([]gradebook.Grade, 0, len(grades))
	for _, g := range grades {
		var row gradeRow
		if err = tx.QueryRowxContext(ctx, upsertGradeQuery, g.EnrollmentID, g.Marks, null.StringFromPtr(g.GradeMappingID)).StructScan(&row); err != nil {
			return nil, errors.Wrapf(err, "upserting grade of enrollment %s", g.EnrollmentID)
		}
		saved = append(saved, row.grade())
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing grades")
	}
	return saved, nil
}
