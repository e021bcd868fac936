package gradebook

import (
	"time"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

type (
	Student struct {
		ID            string `json:"id"`
		FullName      string `json:"full_name"`
		Email         string `json:"email"`
		StudentNumber string `json:"student_number,omitempty"`
	}

	Subject struct {
		ID      string `json:"id"`
		Code    string `json:"code"`
		Name    string `json:"name"`
		Credits int    `json:"credits"`
	}

	Semester struct {
		ID          string    `json:"id"`
		SessionID   string    `json:"session_id"`
		SessionName string    `json:"session_name"`
		Name        string    `json:"name"`
		StartDate   time.Time `json:"start_date"`
		EndDate     time.Time `json:"end_date"`
		IsLocked    bool      `json:"is_locked"`
	}

	Enrollment struct {
		ID         string `json:"id"`
		StudentID  string `json:"student_id"`
		SubjectID  string `json:"subject_id"`
		SemesterID string `json:"semester_id"`
	}

	Grade struct {
		ID             string    `json:"id"`
		EnrollmentID   string    `json:"enrollment_id"`
		Marks          float64   `json:"marks"`
		GradeMappingID *string   `json:"grade_mapping_id"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	// EnrollmentRecord is an enrollment joined with everything needed to grade it.
	// Grade is nil until marks have been entered.
	EnrollmentRecord struct {
		Enrollment
		Student  Student
		Subject  Subject
		Semester Semester
		Grade    *Grade
	}

	GradeEntry struct {
		EnrollmentID string   `json:"enrollment_id" validate:"required"`
		Marks        *float64 `json:"marks" validate:"required,marks"`
	}

	CommitGrades struct {
		Grades []GradeEntry `json:"grades" validate:"required,min=1,dive"`
	}

	Simulation struct {
		Overrides map[string]float64 `json:"overrides" validate:"dive,gte=0,lte=4"` // {enrollmentID: grade point}
	}
)

func (s Student) Person() core.Person {
	return core.Person{ID: s.ID, Name: s.FullName, Email: s.Email}
}

// Marks returns the entered marks, or nil.
func (r EnrollmentRecord) Marks() *float64 {
	if r.Grade == nil {
		return nil
	}
	m := r.Grade.Marks
	return &m
}

type (
	StudentOverview struct {
		Transcript         grading.Transcript   `json:"transcript"`
		Standing           grading.Standing     `json:"standing"`
		AtRisk             bool                 `json:"at_risk"`
		Trend              []grading.TrendPoint `json:"trend"`
		Insights           []grading.Insight    `json:"insights"`
		Projection         grading.Projection   `json:"projection"`
		RemainingCredits   int                  `json:"remaining_credits"`
		StrongSubjects     int                  `json:"strong_subjects"`
		StrugglingSubjects int                  `json:"struggling_subjects"`
	}

	SimulatedSubject struct {
		EnrollmentID string  `json:"enrollment_id"`
		SubjectCode  string  `json:"subject_code"`
		SubjectName  string  `json:"subject_name"`
		SemesterName string  `json:"semester_name"`
		Credits      int     `json:"credits"`
		Actual       float64 `json:"actual_grade_point"`
		Simulated    float64 `json:"simulated_grade_point"`
		Label        string  `json:"label"`
	}

	SimulationResult struct {
		ActualGPA    float64            `json:"actual_gpa"`
		SimulatedGPA float64            `json:"simulated_gpa"`
		Subjects     []SimulatedSubject `json:"subjects"`
	}

	ReportRow struct {
		EnrollmentID  string   `json:"enrollment_id"`
		StudentID     string   `json:"student_id"`
		StudentName   string   `json:"student_name"`
		StudentNumber string   `json:"student_number,omitempty"`
		Marks         *float64 `json:"marks"`
		LetterGrade   string   `json:"letter_grade"`
		GradePoint    float64  `json:"grade_point"`
	}

	SubjectReport struct {
		Subject   Subject                   `json:"subject"`
		Semester  Semester                  `json:"semester"`
		Rows      []ReportRow               `json:"rows"`
		Analytics *grading.SubjectAnalytics `json:"analytics"`
	}

	AtRiskStudent struct {
		StudentID     string  `json:"student_id"`
		Name          string  `json:"name"`
		Email         string  `json:"email"`
		CGPA          float64 `json:"cgpa"`
		Standing      string  `json:"standing"`
		TotalCredits  int     `json:"total_credits"`
		EarnedCredits int     `json:"earned_credits"`
	}
)
