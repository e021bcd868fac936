// Package grading computes grades, GPA and CGPA from marks and a grading scale.
package grading

const (
	// MaxGradePoint is the top of the 4.0 scale; CGPA never exceeds it.
	MaxGradePoint = 4.0

	// MinPassingGradePoint is the lowest grade point that earns credits (D).
	MinPassingGradePoint = 1.0

	// UngradedLetter is shown for subjects whose marks are absent or unmapped.
	UngradedLetter = "-"
)

type (
	// GradeMapping converts a marks range into a letter grade and a grade point.
	GradeMapping struct {
		ID          string  `json:"id,omitempty"`
		LetterGrade string  `json:"letter_grade"`
		GradePoint  float64 `json:"grade_point"`
		MinMarks    float64 `json:"min_marks"`
		MaxMarks    float64 `json:"max_marks"`
	}

	SubjectGrade struct {
		SubjectCode string   `json:"subject_code"`
		SubjectName string   `json:"subject_name"`
		Credits     int      `json:"credits"`
		Marks       *float64 `json:"marks"` // nil while marks have not been entered
		LetterGrade string   `json:"letter_grade"`
		GradePoint  float64  `json:"grade_point"`
	}

	SemesterGPA struct {
		SemesterID    string         `json:"semester_id"`
		SemesterName  string         `json:"semester_name"`
		SessionName   string         `json:"session_name"`
		Subjects      []SubjectGrade `json:"subjects"`
		Pending       []SubjectGrade `json:"pending,omitempty"` // enrolled, no marks yet
		GPA           float64        `json:"gpa"`
		TotalCredits  int            `json:"total_credits"`
		EarnedCredits int            `json:"earned_credits"`
	}

	// Transcript is derived on every request from enrollment and grade rows.
	Transcript struct {
		StudentID     string        `json:"student_id"`
		StudentName   string        `json:"student_name"`
		Semesters     []SemesterGPA `json:"semesters"`
		CGPA          float64       `json:"cgpa"`
		TotalCredits  int           `json:"total_credits"`
		EarnedCredits int           `json:"earned_credits"`
	}
)

// Graded reports whether marks have been entered for the subject.
func (s SubjectGrade) Graded() bool {
	return s.Marks != nil
}

// Passed reports whether the subject earns its credits.
func (s SubjectGrade) Passed() bool {
	return s.GradePoint >= MinPassingGradePoint
}
