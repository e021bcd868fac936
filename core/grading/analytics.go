package grading

import (
	"math"
	"sort"
)

// PassMark is the minimum marks counted as a pass in subject analytics.
const PassMark = 40.0

var letterOrder = map[string]int{
	"A+": 0, "A": 1, "A-": 2,
	"B+": 3, "B": 4, "B-": 5,
	"C+": 6, "C": 7, "C-": 8,
	"D+": 9, "D": 10,
	"F": 11,
}

// marks histogram buckets: [lo, hi)
var markBuckets = []struct {
	label  string
	lo, hi float64
}{
	{"0-39", math.Inf(-1), 40},
	{"40-49", 40, 50},
	{"50-59", 50, 60},
	{"60-69", 60, 70},
	{"70-79", 70, 80},
	{"80-89", 80, 90},
	{"90-100", 90, math.Inf(1)},
}

type (
	LetterCount struct {
		Grade      string  `json:"grade"`
		Count      int     `json:"count"`
		Percentage float64 `json:"percentage"`
	}

	RangeCount struct {
		Range string `json:"range"`
		Count int    `json:"count"`
	}

	SubjectAnalytics struct {
		TotalStudents  int           `json:"total_students"`
		GradedStudents int           `json:"graded_students"`
		Passed         int           `json:"passed"`
		Failed         int           `json:"failed"`
		PassRate       float64       `json:"pass_rate"`
		Average        float64       `json:"average"`
		AvgGradePoint  float64       `json:"avg_grade_point"`
		Highest        float64       `json:"highest"`
		Lowest         float64       `json:"lowest"`
		Distribution   []LetterCount `json:"distribution"`
		Ranges         []RangeCount  `json:"ranges"`
	}
)

// AnalyzeSubject summarises the marks entered for a subject.
// enrolled is the number of enrolled students, graded or not.
// It returns nil when no marks have been entered.
func AnalyzeSubject(marks []float64, enrolled int, scale []GradeMapping) *SubjectAnalytics {
	if len(marks) == 0 {
		return nil
	}

	n := float64(len(marks))
	a := &SubjectAnalytics{
		TotalStudents:  enrolled,
		GradedStudents: len(marks),
		Highest:        math.Inf(-1),
		Lowest:         math.Inf(1),
	}

	var sumMarks, sumPoints float64
	letters := make(map[string]int)
	for _, m := range marks {
		if m >= PassMark {
			a.Passed++
		} else {
			a.Failed++
		}
		sumMarks += m
		a.Highest = math.Max(a.Highest, m)
		a.Lowest = math.Min(a.Lowest, m)

		letter := "F" // unmapped marks count as a fail
		if mapping, ok := ResolveGrade(m, scale); ok {
			sumPoints += mapping.GradePoint
			letter = mapping.LetterGrade
		}
		letters[letter]++
	}
	a.PassRate = float64(a.Passed) / n * 100
	a.Average = sumMarks / n
	a.AvgGradePoint = sumPoints / n
	a.Distribution = letterDistribution(letters, n)
	a.Ranges = rangeDistribution(marks)
	return a
}

func letterDistribution(letters map[string]int, n float64) []LetterCount {
	dist := make([]LetterCount, 0, len(letters))
	for grade, count := range letters {
		dist = append(dist, LetterCount{
			Grade:      grade,
			Count:      count,
			Percentage: round1(float64(count) / n * 100),
		})
	}
	sort.Slice(dist, func(i, j int) bool {
		oi, iKnown := letterOrder[dist[i].Grade]
		oj, jKnown := letterOrder[dist[j].Grade]
		switch {
		case iKnown && jKnown:
			return oi < oj
		case iKnown != jKnown:
			return iKnown
		default:
			return dist[i].Grade < dist[j].Grade
		}
	})
	return dist
}

func rangeDistribution(marks []float64) []RangeCount {
	ranges := make([]RangeCount, len(markBuckets))
	for i, b := range markBuckets {
		ranges[i].Range = b.label
	}
	for _, m := range marks {
		for i, b := range markBuckets {
			if m >= b.lo && m < b.hi {
				ranges[i].Count++
				break
			}
		}
	}
	return ranges
}
