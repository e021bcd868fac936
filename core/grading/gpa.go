package grading

import "math"

// CalculateGPA returns the credit-weighted mean grade point of subjects,
// rounded to 2 decimal places. Failing subjects count through their credits.
// An empty list or a zero credit total gives 0.
func CalculateGPA(subjects []SubjectGrade) float64 {
	return round2(weightedMean(subjects))
}

// CalculateCGPA recomputes the GPA over every subject of every semester,
// clamped to [0, MaxGradePoint].
func CalculateCGPA(semesters []SemesterGPA) float64 {
	return clamp(CalculateGPA(flatten(semesters)), 0, MaxGradePoint)
}

// CGPAThrough returns the CGPA of semesters[0..k]. Semesters must already be
// in chronological order. k past the end is treated as the last index.
func CGPAThrough(semesters []SemesterGPA, k int) float64 {
	if k < 0 || len(semesters) == 0 {
		return 0
	}
	if k >= len(semesters) {
		k = len(semesters) - 1
	}
	return CalculateCGPA(semesters[:k+1])
}

// CalculateEarnedCredits sums the credits of passed subjects.
func CalculateEarnedCredits(subjects []SubjectGrade) int {
	var earned int
	for _, s := range subjects {
		if s.Passed() {
			earned += s.Credits
		}
	}
	return earned
}

// TotalCredits sums attempted credits.
func TotalCredits(subjects []SubjectGrade) int {
	var total int
	for _, s := range subjects {
		total += s.Credits
	}
	return total
}

// BuildSemester summarises a semester. Subjects without marks are kept
// aside in Pending and do not weigh on the GPA until graded.
func BuildSemester(id, name, session string, subjects []SubjectGrade) SemesterGPA {
	sem := SemesterGPA{
		SemesterID:   id,
		SemesterName: name,
		SessionName:  session,
		Subjects:     make([]SubjectGrade, 0, len(subjects)),
	}
	for _, s := range subjects {
		if s.Graded() {
			sem.Subjects = append(sem.Subjects, s)
		} else {
			sem.Pending = append(sem.Pending, s)
		}
	}
	sem.GPA = CalculateGPA(sem.Subjects)
	sem.TotalCredits = TotalCredits(sem.Subjects)
	sem.EarnedCredits = CalculateEarnedCredits(sem.Subjects)
	return sem
}

// BuildTranscript orders semesters chronologically and computes the totals.
// The input slice is not modified.
func BuildTranscript(studentID, studentName string, semesters []SemesterGPA) Transcript {
	sorted := SortSemesterGPAs(semesters)
	all := flatten(sorted)
	return Transcript{
		StudentID:     studentID,
		StudentName:   studentName,
		Semesters:     sorted,
		CGPA:          CalculateCGPA(sorted),
		TotalCredits:  TotalCredits(all),
		EarnedCredits: CalculateEarnedCredits(all),
	}
}

func weightedMean(subjects []SubjectGrade) float64 {
	if len(subjects) == 0 {
		return 0
	}
	var points float64
	var credits int
	for _, s := range subjects {
		points += float64(s.Credits) * s.GradePoint
		credits += s.Credits
	}
	if credits == 0 {
		return 0
	}
	return points / float64(credits)
}

func flatten(semesters []SemesterGPA) []SubjectGrade {
	var n int
	for _, sem := range semesters {
		n += len(sem.Subjects)
	}
	all := make([]SubjectGrade, 0, n)
	for _, sem := range semesters {
		all = append(all, sem.Subjects...)
	}
	return all
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
