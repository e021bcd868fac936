package grading

import (
	"fmt"
	"math"
	"strings"
)

type InsightKind string

const (
	InsightSuccess InsightKind = "success"
	InsightWarning InsightKind = "warning"
	InsightInfo    InsightKind = "info"
)

const (
	trendDelta           = 0.2
	strugglingGradePoint = 2.0
	strongGradePoint     = 3.5
	minStrongSubjects    = 3
	maxFocusSubjects     = 3
)

type (
	Insight struct {
		Kind    InsightKind `json:"kind"`
		Message string      `json:"message"`
	}

	TrendPoint struct {
		SemesterName string  `json:"semester"`
		GPA          float64 `json:"gpa"`
		CGPA         float64 `json:"cgpa"`
	}
)

// Trend returns the semester GPA and the CGPA up to each semester,
// in chronological order.
func Trend(semesters []SemesterGPA) []TrendPoint {
	sorted := SortSemesterGPAs(semesters)
	points := make([]TrendPoint, len(sorted))
	for i, sem := range sorted {
		points[i] = TrendPoint{
			SemesterName: sem.SemesterName,
			GPA:          sem.GPA,
			CGPA:         CGPAThrough(sorted, i),
		}
	}
	return points
}

// StrugglingSubjects returns graded subjects with 0 < grade point < 2.0.
func StrugglingSubjects(semesters []SemesterGPA) []SubjectGrade {
	var subjects []SubjectGrade
	for _, s := range flatten(semesters) {
		if s.GradePoint > 0 && s.GradePoint < strugglingGradePoint {
			subjects = append(subjects, s)
		}
	}
	return subjects
}

// StrongSubjects returns subjects with a grade point of 3.5 or more.
func StrongSubjects(semesters []SemesterGPA) []SubjectGrade {
	var subjects []SubjectGrade
	for _, s := range flatten(semesters) {
		if s.GradePoint >= strongGradePoint {
			subjects = append(subjects, s)
		}
	}
	return subjects
}

// Insights builds the advice shown next to a student's transcript.
// semesters must be in chronological order.
func Insights(semesters []SemesterGPA, cgpa float64) []Insight {
	insights := make([]Insight, 0, 4)

	if IsAtRisk(cgpa) {
		insights = append(insights, Insight{
			Kind:    InsightWarning,
			Message: "Your CGPA is below 2.0. Consider meeting with an academic advisor to discuss improvement strategies.",
		})
	}

	if n := len(semesters); n > 1 {
		diff := semesters[n-1].GPA - semesters[n-2].GPA
		if diff > trendDelta {
			insights = append(insights, Insight{
				Kind:    InsightSuccess,
				Message: fmt.Sprintf("Great improvement! Your GPA increased by %.2f points this semester.", diff),
			})
		} else if diff < -trendDelta {
			insights = append(insights, Insight{
				Kind:    InsightWarning,
				Message: fmt.Sprintf("Your GPA decreased by %.2f points. Review your study strategies.", math.Abs(diff)),
			})
		}
	}

	if struggling := StrugglingSubjects(semesters); len(struggling) > 0 {
		if len(struggling) > maxFocusSubjects {
			struggling = struggling[:maxFocusSubjects]
		}
		codes := make([]string, len(struggling))
		for i, s := range struggling {
			codes[i] = s.SubjectCode
		}
		insights = append(insights, Insight{
			Kind:    InsightInfo,
			Message: "Focus on improving: " + strings.Join(codes, ", "),
		})
	}

	if strong := StrongSubjects(semesters); len(strong) >= minStrongSubjects {
		insights = append(insights, Insight{
			Kind:    InsightSuccess,
			Message: fmt.Sprintf("Strong performance in %d subjects with grade points above 3.5!", len(strong)),
		})
	}
	return insights
}
