package grading

import "sort"

// DefaultScale is the reference university scale used to seed new databases.
// Ranges are whole marks, so fractional marks such as 79.5 fall in a gap.
func DefaultScale() []GradeMapping {
	return []GradeMapping{
		{LetterGrade: "A+", GradePoint: 4.00, MinMarks: 80, MaxMarks: 100},
		{LetterGrade: "A", GradePoint: 3.75, MinMarks: 75, MaxMarks: 79},
		{LetterGrade: "A-", GradePoint: 3.50, MinMarks: 70, MaxMarks: 74},
		{LetterGrade: "B+", GradePoint: 3.25, MinMarks: 65, MaxMarks: 69},
		{LetterGrade: "B", GradePoint: 3.00, MinMarks: 60, MaxMarks: 64},
		{LetterGrade: "B-", GradePoint: 2.75, MinMarks: 55, MaxMarks: 59},
		{LetterGrade: "C+", GradePoint: 2.50, MinMarks: 50, MaxMarks: 54},
		{LetterGrade: "C", GradePoint: 2.25, MinMarks: 45, MaxMarks: 49},
		{LetterGrade: "D", GradePoint: 2.00, MinMarks: 40, MaxMarks: 44},
		{LetterGrade: "F", GradePoint: 0.00, MinMarks: 0, MaxMarks: 39},
	}
}

// ResolveGrade returns the mapping whose range contains marks.
// When ranges overlap the mapping with the highest MinMarks wins.
// The boolean is false when marks fall in a gap of the scale.
func ResolveGrade(marks float64, scale []GradeMapping) (GradeMapping, bool) {
	sorted := make([]GradeMapping, len(scale))
	copy(sorted, scale)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinMarks > sorted[j].MinMarks })

	for _, m := range sorted {
		if marks >= m.MinMarks && marks <= m.MaxMarks {
			return m, true
		}
	}
	return GradeMapping{}, false
}

// Grade builds a SubjectGrade from raw marks. A nil marks pointer or marks
// outside every range give an ungraded subject (letter "-", grade point 0).
func Grade(code, name string, credits int, marks *float64, scale []GradeMapping) SubjectGrade {
	sg := SubjectGrade{
		SubjectCode: code,
		SubjectName: name,
		Credits:     credits,
		LetterGrade: UngradedLetter,
	}
	if marks == nil {
		return sg
	}
	m := *marks
	sg.Marks = &m
	if mapping, ok := ResolveGrade(m, scale); ok {
		sg.LetterGrade = mapping.LetterGrade
		sg.GradePoint = mapping.GradePoint
	}
	return sg
}
