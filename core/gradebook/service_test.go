package gradebook_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/services/email"
	"github.com/trezcool/alama/storage/database/inmem"
	"github.com/trezcool/alama/tests"
)

type fixture struct {
	svc  *gradebook.Service
	repo *inmemdb.GradebookRepository

	amina, baraka, chausiku gradebook.Student
	math, lab, prog         gradebook.Subject
	summer, winter          gradebook.Semester

	aminaMathSummer, aminaLabSummer, aminaProgWinter, aminaLabWinter gradebook.Enrollment
	barakaMathSummer, barakaLabSummer                                gradebook.Enrollment
}

// setup builds:
//
//	Summer 2023 (locked): amina math 85 (A+), lab 72 (A-); baraka math 30 (F), lab 41 (D)
//	Fall 2023:            amina prog 62 (B), lab pending
//
// chausiku has no enrollment.
func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)

	f := &fixture{repo: testutil.NewGradebook(t)}
	f.svc = gradebook.NewService(f.repo, testutil.NewValidator(), emailsvc.NewConsoleServiceMock(conf), logger, conf)

	// the open semester is created first: transcripts must not depend on insertion order
	f.winter = testutil.CreateSemester(t, f.repo, "Fall 2023", false)
	f.summer = testutil.CreateSemester(t, f.repo, "Summer 2023", true)

	f.math = testutil.CreateSubject(t, f.repo, "MATH-101", "Calculus", 3)
	f.lab = testutil.CreateSubject(t, f.repo, "CSE-102", "Programming Lab", 1)
	f.prog = testutil.CreateSubject(t, f.repo, "CSE-103", "Structured Programming", 3)

	f.amina = testutil.CreateStudent(t, f.repo, "Amina Njeri", "amina@alama.test")
	f.baraka = testutil.CreateStudent(t, f.repo, "Baraka Otieno", "baraka@alama.test")
	f.chausiku = testutil.CreateStudent(t, f.repo, "Chausiku Wanjiru", "chausiku@alama.test")

	f.aminaProgWinter = testutil.Enroll(t, f.repo, f.amina, f.prog, f.winter)
	f.aminaLabWinter = testutil.Enroll(t, f.repo, f.amina, f.lab, f.winter)
	f.aminaMathSummer = testutil.Enroll(t, f.repo, f.amina, f.math, f.summer)
	f.aminaLabSummer = testutil.Enroll(t, f.repo, f.amina, f.lab, f.summer)
	f.barakaMathSummer = testutil.Enroll(t, f.repo, f.baraka, f.math, f.summer)
	f.barakaLabSummer = testutil.Enroll(t, f.repo, f.baraka, f.lab, f.summer)

	testutil.SetMarks(t, f.repo, f.aminaMathSummer, 85)
	testutil.SetMarks(t, f.repo, f.aminaLabSummer, 72)
	testutil.SetMarks(t, f.repo, f.aminaProgWinter, 62)
	testutil.SetMarks(t, f.repo, f.barakaMathSummer, 30)
	testutil.SetMarks(t, f.repo, f.barakaLabSummer, 41)
	return f
}

func fPtr(f float64) *float64 { return &f }

func TestService_Transcript(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tr, err := f.svc.Transcript(ctx, f.amina.ID)
	require.NoError(t, err)

	assert.Equal(t, f.amina.ID, tr.StudentID)
	assert.Equal(t, "Amina Njeri", tr.StudentName)
	require.Len(t, tr.Semesters, 2)

	summer, winter := tr.Semesters[0], tr.Semesters[1]
	assert.Equal(t, "Summer 2023", summer.SemesterName)
	assert.Equal(t, 3.88, summer.GPA)
	assert.Equal(t, 4, summer.TotalCredits)
	assert.Len(t, summer.Subjects, 2)
	assert.Empty(t, summer.Pending)

	assert.Equal(t, "Winter 2023", winter.SemesterName, "Fall is shown as Winter")
	assert.Equal(t, 3.0, winter.GPA)
	assert.Equal(t, 3, winter.TotalCredits)
	require.Len(t, winter.Pending, 1)
	assert.Equal(t, "CSE-102", winter.Pending[0].SubjectCode)
	assert.Equal(t, grading.UngradedLetter, winter.Pending[0].LetterGrade)

	assert.Equal(t, 3.5, tr.CGPA)
	assert.Equal(t, 7, tr.TotalCredits)
	assert.Equal(t, 7, tr.EarnedCredits)

	t.Run("failing student", func(t *testing.T) {
		tr, err := f.svc.Transcript(ctx, f.baraka.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.5, tr.CGPA)
		assert.Equal(t, 4, tr.TotalCredits)
		assert.Equal(t, 1, tr.EarnedCredits)
	})

	t.Run("no enrollment", func(t *testing.T) {
		tr, err := f.svc.Transcript(ctx, f.chausiku.ID)
		require.NoError(t, err)
		assert.Empty(t, tr.Semesters)
		assert.Equal(t, 0.0, tr.CGPA)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := f.svc.Transcript(ctx, "nope")
		assert.Equal(t, gradebook.ErrStudentNotFound, errors.Cause(err))
	})
}

func TestService_Overview(t *testing.T) {
	f := setup(t)

	ov, err := f.svc.Overview(context.Background(), f.amina.ID)
	require.NoError(t, err)

	assert.Equal(t, grading.Standing{Label: "Very Good", Severity: grading.SeverityGood}, ov.Standing)
	assert.False(t, ov.AtRisk)
	assert.Equal(t, 113, ov.RemainingCredits)
	assert.Equal(t, 2, ov.StrongSubjects)
	assert.Equal(t, 0, ov.StrugglingSubjects)

	require.Len(t, ov.Trend, 2)
	assert.Equal(t, 3.88, ov.Trend[0].GPA)
	assert.Equal(t, 3.5, ov.Trend[1].CGPA)

	assert.Equal(t, 7, ov.Projection.CurrentCredits)
	assert.Equal(t, grading.DefaultFutureCredits, ov.Projection.FutureCredits)
	assert.True(t, ov.Projection.AlreadyMet)
	assert.True(t, ov.Projection.Reachable)
	assert.InDelta(t, 50.5/18, ov.Projection.Required, 1e-9)

	assert.Equal(t, []grading.Insight{{
		Kind:    grading.InsightWarning,
		Message: "Your GPA decreased by 0.88 points. Review your study strategies.",
	}}, ov.Insights)

	t.Run("at risk", func(t *testing.T) {
		ov, err := f.svc.Overview(context.Background(), f.baraka.ID)
		require.NoError(t, err)
		assert.True(t, ov.AtRisk)
		assert.Equal(t, grading.SeverityDanger, ov.Standing.Severity)
		assert.Equal(t, 119, ov.RemainingCredits)
		assert.False(t, ov.Projection.AlreadyMet)
		assert.True(t, ov.Projection.Reachable)
		assert.InDelta(t, 64.0/18, ov.Projection.Required, 1e-9)
	})
}

func TestService_Simulate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Simulate(ctx, f.amina.ID, gradebook.Simulation{})
	require.NoError(t, err)
	assert.Len(t, res.Subjects, 4, "pending subjects are simulated too")
	assert.InDelta(t, 24.5/8, res.ActualGPA, 1e-9)
	assert.Equal(t, res.ActualGPA, res.SimulatedGPA)

	res, err = f.svc.Simulate(ctx, f.amina.ID, gradebook.Simulation{
		Overrides: map[string]float64{f.aminaLabWinter.ID: 4.0},
	})
	require.NoError(t, err)
	assert.InDelta(t, 24.5/8, res.ActualGPA, 1e-9)
	assert.InDelta(t, 28.5/8, res.SimulatedGPA, 1e-9)
	for _, s := range res.Subjects {
		if s.EnrollmentID == f.aminaLabWinter.ID {
			assert.Equal(t, 0.0, s.Actual)
			assert.Equal(t, 4.0, s.Simulated)
			assert.Equal(t, "A+", s.Label)
			assert.Equal(t, "Winter 2023", s.SemesterName)
		}
	}

	_, err = f.svc.Simulate(ctx, f.amina.ID, gradebook.Simulation{
		Overrides: map[string]float64{f.aminaLabWinter.ID: 4.5},
	})
	var vErrs validator.ValidationErrors
	assert.True(t, errors.As(err, &vErrs), "err = %v; want validation errors", err)

	_, err = f.svc.Simulate(ctx, "nope", gradebook.Simulation{})
	assert.Equal(t, gradebook.ErrStudentNotFound, errors.Cause(err))
}

func TestService_SubjectReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	names := func(rep gradebook.SubjectReport) []string {
		out := make([]string, 0, len(rep.Rows))
		for _, r := range rep.Rows {
			out = append(out, r.StudentName)
		}
		return out
	}

	rep, err := f.svc.SubjectReport(ctx, f.math.ID, f.summer.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Amina Njeri", "Baraka Otieno"}, names(rep))
	assert.Equal(t, "A+", rep.Rows[0].LetterGrade)
	assert.Equal(t, "F", rep.Rows[1].LetterGrade)

	require.NotNil(t, rep.Analytics)
	assert.Equal(t, 2, rep.Analytics.TotalStudents)
	assert.Equal(t, 1, rep.Analytics.Passed)
	assert.Equal(t, 50.0, rep.Analytics.PassRate)
	assert.Equal(t, 57.5, rep.Analytics.Average)
	assert.Equal(t, 85.0, rep.Analytics.Highest)
	assert.Equal(t, 30.0, rep.Analytics.Lowest)

	rep, err = f.svc.SubjectReport(ctx, f.math.ID, f.summer.ID, core.DBOrdering{Field: "marks", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Baraka Otieno", "Amina Njeri"}, names(rep))

	t.Run("nothing graded", func(t *testing.T) {
		rep, err := f.svc.SubjectReport(ctx, f.lab.ID, f.winter.ID)
		require.NoError(t, err)
		require.Len(t, rep.Rows, 1)
		assert.Nil(t, rep.Rows[0].Marks)
		assert.Nil(t, rep.Analytics)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.SubjectReport(ctx, "nope", f.summer.ID)
		assert.Equal(t, gradebook.ErrSubjectNotFound, errors.Cause(err))
		_, err = f.svc.SubjectReport(ctx, f.math.ID, "nope")
		assert.Equal(t, gradebook.ErrSemesterNotFound, errors.Cause(err))
	})
}

func TestService_CommitGrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	entry := func(id string, marks *float64) gradebook.GradeEntry {
		return gradebook.GradeEntry{EnrollmentID: id, Marks: marks}
	}

	tests := []struct {
		name       string
		subjectID  string
		semesterID string
		grades     []gradebook.GradeEntry
		check      func(error) bool
	}{
		{
			name:       "no grades",
			subjectID:  f.lab.ID,
			semesterID: f.winter.ID,
			check:      isValidatorErr,
		},
		{
			name:       "missing marks",
			subjectID:  f.lab.ID,
			semesterID: f.winter.ID,
			grades:     []gradebook.GradeEntry{entry(f.aminaLabWinter.ID, nil)},
			check:      isValidatorErr,
		},
		{
			name:       "marks out of range",
			subjectID:  f.lab.ID,
			semesterID: f.winter.ID,
			grades:     []gradebook.GradeEntry{entry(f.aminaLabWinter.ID, fPtr(100.5))},
			check:      isValidatorErr,
		},
		{
			name:       "locked semester",
			subjectID:  f.math.ID,
			semesterID: f.summer.ID,
			grades:     []gradebook.GradeEntry{entry(f.aminaMathSummer.ID, fPtr(90))},
			check:      func(err error) bool { return errors.Cause(err) == gradebook.ErrSemesterLocked },
		},
		{
			name:       "enrollment of another subject",
			subjectID:  f.lab.ID,
			semesterID: f.winter.ID,
			grades:     []gradebook.GradeEntry{entry(f.aminaProgWinter.ID, fPtr(90))},
			check:      core.IsValidationError,
		},
		{
			name:       "unknown semester",
			subjectID:  f.lab.ID,
			semesterID: "nope",
			grades:     []gradebook.GradeEntry{entry(f.aminaLabWinter.ID, fPtr(90))},
			check:      func(err error) bool { return errors.Cause(err) == gradebook.ErrSemesterNotFound },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CommitGrades(ctx, tt.subjectID, tt.semesterID, gradebook.CommitGrades{Grades: tt.grades})
			if err == nil || !tt.check(err) {
				t.Errorf("CommitGrades() err = %v", err)
			}
		})
	}

	t.Run("field of unknown enrollment", func(t *testing.T) {
		_, err := f.svc.CommitGrades(ctx, f.prog.ID, f.winter.ID, gradebook.CommitGrades{Grades: []gradebook.GradeEntry{
			entry(f.aminaProgWinter.ID, fPtr(70)),
			entry("nope", fPtr(70)),
		}})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "err = %v", err)
		assert.Equal(t, []core.FieldError{{Field: "grades[1].enrollment_id", Error: "enrollment not found in this subject and semester"}}, vErr.Fields)
	})

	t.Run("commit", func(t *testing.T) {
		saved, err := f.svc.CommitGrades(ctx, f.lab.ID, f.winter.ID, gradebook.CommitGrades{Grades: []gradebook.GradeEntry{
			entry(" "+f.aminaLabWinter.ID+" ", fPtr(77)),
		}})
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, f.aminaLabWinter.ID, saved[0].EnrollmentID)
		assert.NotEmpty(t, saved[0].ID)

		scale, err := f.svc.GradeScale(ctx)
		require.NoError(t, err)
		require.NotNil(t, saved[0].GradeMappingID)
		assert.Equal(t, scale[1].ID, *saved[0].GradeMappingID, "77 marks resolve to A")

		tr, err := f.svc.Transcript(ctx, f.amina.ID)
		require.NoError(t, err)
		assert.Empty(t, tr.Semesters[1].Pending)
		assert.Equal(t, 3.19, tr.Semesters[1].GPA) // (3*3 + 3.75) / 4 = 3.1875
		assert.Equal(t, 8, tr.TotalCredits)
	})
}

func isValidatorErr(err error) bool {
	var vErrs validator.ValidationErrors
	return errors.As(err, &vErrs)
}

func TestService_AtRisk(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	students, err := f.svc.AtRisk(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1, "students without grades are not at risk")
	assert.Equal(t, gradebook.AtRiskStudent{
		StudentID:     f.baraka.ID,
		Name:          "Baraka Otieno",
		Email:         "baraka@alama.test",
		CGPA:          0.5,
		Standing:      "Needs Improvement",
		TotalCredits:  4,
		EarnedCredits: 1,
	}, students[0])
}

func TestService_NotifyAtRisk(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	emailsvc.ResetSentMessages()

	students, err := f.svc.NotifyAtRisk(ctx, true /* dryRun */)
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Empty(t, emailsvc.SentMessages)

	students, err = f.svc.NotifyAtRisk(ctx, false)
	require.NoError(t, err)
	assert.Len(t, students, 1)
	require.Len(t, emailsvc.SentMessages, 1)

	msg := emailsvc.SentMessages[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, "advisor@alama.test", msg.To[0].Address)
	assert.Equal(t, "1 student(s) at academic risk", msg.Subject)
	assert.True(t, strings.Contains(msg.TextContent, "Baraka Otieno <baraka@alama.test>: CGPA 0.50"), msg.TextContent)
	assert.Contains(t, msg.HTMLContent, "Baraka Otieno")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "at-risk-students.csv", msg.Attachments[0].Filename)
	assert.Equal(t, "text/csv", msg.Attachments[0].ContentType)
}
