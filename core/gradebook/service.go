// Package gradebook turns stored enrollments and grades into transcripts,
// reports and committed grades.
package gradebook

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/mail"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

var (
	// errors
	ErrStudentNotFound  = errors.New("student not found")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrSemesterNotFound = errors.New("semester not found")
	ErrSemesterLocked   = errors.New("semester is locked, grades can no longer be changed")

	errUnknownEnrollment = errors.New("enrollment not found in this subject and semester")
)

const atRiskTemplate = "at_risk_referral"

type (
	// Repository gives the rows the gradebook is computed from.
	// Implementations normalise joined rows into EnrollmentRecords.
	Repository interface {
		ListGradeMappings(ctx context.Context) ([]grading.GradeMapping, error)
		ListStudents(ctx context.Context) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		GetSemester(ctx context.Context, id string) (Semester, error)
		ListStudentEnrollments(ctx context.Context, studentID string) ([]EnrollmentRecord, error)
		// ListSubjectEnrollments orders by student_name, student_number or marks; student_name ASC by default.
		ListSubjectEnrollments(ctx context.Context, subjectID, semesterID string, orderings ...core.DBOrdering) ([]EnrollmentRecord, error)
		// UpsertGrades inserts or replaces the grade of each enrollment.
		UpsertGrades(ctx context.Context, grades []Grade) ([]Grade, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		mailSvc  core.EmailService
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(repo Repository, validate *validator.Validate, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
	}
}

// GradeScale returns the active scale, best grade first.
func (svc *Service) GradeScale(ctx context.Context) ([]grading.GradeMapping, error) {
	scale, err := svc.repo.ListGradeMappings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing grade mappings")
	}
	sort.SliceStable(scale, func(i, j int) bool { return scale[i].MinMarks > scale[j].MinMarks })
	return scale, nil
}

func (svc *Service) Transcript(ctx context.Context, studentID string) (grading.Transcript, error) {
	student, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return grading.Transcript{}, err
	}
	records, err := svc.repo.ListStudentEnrollments(ctx, student.ID)
	if err != nil {
		return grading.Transcript{}, errors.Wrap(err, "listing student enrollments")
	}
	scale, err := svc.GradeScale(ctx)
	if err != nil {
		return grading.Transcript{}, err
	}
	return svc.transcript(student, records, scale), nil
}

// Overview is the transcript plus the standing, trend, insights and
// the GPA needed next term to reach the configured target CGPA.
func (svc *Service) Overview(ctx context.Context, studentID string) (StudentOverview, error) {
	tr, err := svc.Transcript(ctx, studentID)
	if err != nil {
		return StudentOverview{}, err
	}

	remaining := svc.conf.Grading.GraduationCredits - tr.EarnedCredits
	if remaining < 0 {
		remaining = 0
	}
	return StudentOverview{
		Transcript:         tr,
		Standing:           grading.Classify(tr.CGPA),
		AtRisk:             grading.IsAtRisk(tr.CGPA),
		Trend:              grading.Trend(tr.Semesters),
		Insights:           grading.Insights(tr.Semesters, tr.CGPA),
		Projection:         grading.ProjectTarget(tr.CGPA, tr.TotalCredits, svc.conf.Grading.TargetCGPA, svc.conf.Grading.FutureCredits),
		RemainingCredits:   remaining,
		StrongSubjects:     len(grading.StrongSubjects(tr.Semesters)),
		StrugglingSubjects: len(grading.StrugglingSubjects(tr.Semesters)),
	}, nil
}

// Simulate recomputes a student's GPA over all their enrollments, graded or not,
// with sim.Overrides replacing the actual grade points.
func (svc *Service) Simulate(ctx context.Context, studentID string, sim Simulation) (SimulationResult, error) {
	if err := svc.validate.Struct(sim); err != nil {
		return SimulationResult{}, err
	}

	student, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return SimulationResult{}, err
	}
	records, err := svc.repo.ListStudentEnrollments(ctx, student.ID)
	if err != nil {
		return SimulationResult{}, errors.Wrap(err, "listing student enrollments")
	}
	scale, err := svc.GradeScale(ctx)
	if err != nil {
		return SimulationResult{}, err
	}

	res := SimulationResult{Subjects: make([]SimulatedSubject, 0, len(records))}
	subjects := make([]grading.SimulatedSubject, 0, len(records))
	for _, rec := range records {
		sg := subjectGrade(rec, scale)
		simulated := sg.GradePoint
		if gp, ok := sim.Overrides[rec.ID]; ok {
			simulated = gp
		}
		subjects = append(subjects, grading.SimulatedSubject{Key: rec.ID, Credits: sg.Credits, GradePoint: sg.GradePoint})
		res.Subjects = append(res.Subjects, SimulatedSubject{
			EnrollmentID: rec.ID,
			SubjectCode:  sg.SubjectCode,
			SubjectName:  sg.SubjectName,
			SemesterName: grading.NormalizeSemesterName(rec.Semester.Name),
			Credits:      sg.Credits,
			Actual:       sg.GradePoint,
			Simulated:    simulated,
			Label:        grading.GradeOptionLabel(simulated),
		})
	}
	res.ActualGPA = grading.Simulate(subjects, nil)
	res.SimulatedGPA = grading.Simulate(subjects, sim.Overrides)
	return res, nil
}

// ReportOrderings are the fields a subject report can be ordered by.
var ReportOrderings = []string{"student_name", "student_number", "marks"}

// SubjectReport lists the marks of every student enrolled in a subject for a semester,
// along with the subject analytics.
func (svc *Service) SubjectReport(ctx context.Context, subjectID, semesterID string, orderings ...core.DBOrdering) (SubjectReport, error) {
	subject, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return SubjectReport{}, err
	}
	semester, err := svc.repo.GetSemester(ctx, semesterID)
	if err != nil {
		return SubjectReport{}, err
	}
	records, err := svc.repo.ListSubjectEnrollments(ctx, subject.ID, semester.ID, orderings...)
	if err != nil {
		return SubjectReport{}, errors.Wrap(err, "listing subject enrollments")
	}
	scale, err := svc.GradeScale(ctx)
	if err != nil {
		return SubjectReport{}, err
	}

	report := SubjectReport{
		Subject:  subject,
		Semester: semester,
		Rows:     make([]ReportRow, 0, len(records)),
	}
	marks := make([]float64, 0, len(records))
	for _, rec := range records {
		sg := subjectGrade(rec, scale)
		report.Rows = append(report.Rows, ReportRow{
			EnrollmentID:  rec.ID,
			StudentID:     rec.Student.ID,
			StudentName:   rec.Student.FullName,
			StudentNumber: rec.Student.StudentNumber,
			Marks:         sg.Marks,
			LetterGrade:   sg.LetterGrade,
			GradePoint:    sg.GradePoint,
		})
		if sg.Marks != nil {
			marks = append(marks, *sg.Marks)
		}
	}
	report.Analytics = grading.AnalyzeSubject(marks, len(records), scale)
	return report, nil
}

// CommitGrades writes marks for enrollments of a subject in an unlocked semester.
// Each grade is stored with the mapping its marks resolve to.
func (svc *Service) CommitGrades(ctx context.Context, subjectID, semesterID string, cg CommitGrades) ([]Grade, error) {
	if err := svc.validate.Struct(cg); err != nil {
		return nil, err
	}

	semester, err := svc.repo.GetSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	if semester.IsLocked {
		return nil, ErrSemesterLocked
	}
	subject, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	records, err := svc.repo.ListSubjectEnrollments(ctx, subject.ID, semester.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing subject enrollments")
	}
	enrolled := make(map[string]bool, len(records))
	for _, rec := range records {
		enrolled[rec.ID] = true
	}

	var fldErrs []core.FieldError
	for i, entry := range cg.Grades {
		if !enrolled[core.CleanString(entry.EnrollmentID)] {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("grades[%d].enrollment_id", i),
				Error: errUnknownEnrollment.Error(),
			})
		}
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(errUnknownEnrollment, fldErrs...)
	}

	scale, err := svc.GradeScale(ctx)
	if err != nil {
		return nil, err
	}

	grades := make([]Grade, 0, len(cg.Grades))
	for _, entry := range cg.Grades {
		g := Grade{EnrollmentID: core.CleanString(entry.EnrollmentID), Marks: *entry.Marks}
		if mapping, ok := grading.ResolveGrade(g.Marks, scale); ok && mapping.ID != "" {
			id := mapping.ID
			g.GradeMappingID = &id
		}
		grades = append(grades, g)
	}

	saved, err := svc.repo.UpsertGrades(ctx, grades)
	if err != nil {
		return nil, errors.Wrap(err, "saving grades")
	}
	svc.logger.Info(
		fmt.Sprintf("%d grade(s) committed for %s in %s", len(saved), subject.Code, semester.Name),
		map[string]interface{}{"subject_id": subject.ID, "semester_id": semester.ID},
	)
	return saved, nil
}

// AtRisk lists graded students whose CGPA is below grading.AtRiskThreshold.
func (svc *Service) AtRisk(ctx context.Context) ([]AtRiskStudent, error) {
	students, err := svc.repo.ListStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing students")
	}
	scale, err := svc.GradeScale(ctx)
	if err != nil {
		return nil, err
	}

	atRisk := make([]AtRiskStudent, 0)
	for _, st := range students {
		records, err := svc.repo.ListStudentEnrollments(ctx, st.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "listing enrollments of student %s", st.ID)
		}
		tr := svc.transcript(st, records, scale)
		if tr.TotalCredits == 0 || !grading.IsAtRisk(tr.CGPA) {
			continue
		}
		atRisk = append(atRisk, AtRiskStudent{
			StudentID:     st.ID,
			Name:          st.FullName,
			Email:         st.Email,
			CGPA:          tr.CGPA,
			Standing:      grading.Classify(tr.CGPA).Label,
			TotalCredits:  tr.TotalCredits,
			EarnedCredits: tr.EarnedCredits,
		})
	}
	return atRisk, nil
}

// NotifyAtRisk sends the at-risk list to the advisor, with a CSV attached.
// Nothing is sent when dryRun is set or when no student is at risk.
func (svc *Service) NotifyAtRisk(ctx context.Context, dryRun bool) ([]AtRiskStudent, error) {
	students, err := svc.AtRisk(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun || len(students) == 0 {
		return students, nil
	}

	advisor, err := mail.ParseAddress(svc.conf.AdvisorEmail)
	if err != nil {
		return nil, errors.Wrap(err, "parsing advisor email")
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{*advisor},
		Subject:      fmt.Sprintf("%d student(s) at academic risk", len(students)),
		TemplateName: atRiskTemplate,
		TemplateData: map[string]interface{}{
			"Threshold": grading.AtRiskThreshold,
			"Students":  students,
		},
	}
	report, err := atRiskCSV(students)
	if err != nil {
		return nil, err
	}
	if err := msg.Attach(report, "at-risk-students.csv", "text/csv"); err != nil {
		return nil, errors.Wrap(err, "attaching report")
	}
	svc.mailSvc.SendMessages(msg)

	svc.logger.Info(fmt.Sprintf("advisor notified of %d at-risk student(s)", len(students)))
	return students, nil
}

func atRiskCSV(students []AtRiskStudent) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"student_id", "name", "email", "cgpa", "standing", "earned_credits", "total_credits"})
	for _, st := range students {
		_ = w.Write([]string{
			st.StudentID,
			st.Name,
			st.Email,
			strconv.FormatFloat(st.CGPA, 'f', 2, 64),
			st.Standing,
			strconv.Itoa(st.EarnedCredits),
			strconv.Itoa(st.TotalCredits),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "writing at-risk report")
	}
	return buf, nil
}
