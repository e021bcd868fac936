package grading

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var yearRegex = regexp.MustCompile(`\d{4}`)

// Term ranks within a calendar year. Spring and Fall are legacy aliases.
const (
	TermUnknown = 0
	TermSummer  = 1
	TermWinter  = 2
)

// SemesterYear extracts the first run of 4 digits in name, or 0.
func SemesterYear(name string) int {
	match := yearRegex.FindString(name)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}

// SemesterTerm ranks the term a semester name starts with.
func SemesterTerm(name string) int {
	switch {
	case strings.HasPrefix(name, "Summer"), strings.HasPrefix(name, "Spring"):
		return TermSummer
	case strings.HasPrefix(name, "Winter"), strings.HasPrefix(name, "Fall"):
		return TermWinter
	default:
		return TermUnknown
	}
}

// CompareSemesters orders semester names by year, then by term.
// It returns a negative number when a comes first, 0 when they tie.
func CompareSemesters(a, b string) int {
	if ya, yb := SemesterYear(a), SemesterYear(b); ya != yb {
		return ya - yb
	}
	return SemesterTerm(a) - SemesterTerm(b)
}

// SortSemesters returns a chronologically sorted copy of names.
func SortSemesters(names []string) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.SliceStable(sorted, func(i, j int) bool { return CompareSemesters(sorted[i], sorted[j]) < 0 })
	return sorted
}

// SortSemesterGPAs returns a chronologically sorted copy of semesters.
// Semesters that compare equal keep their input order.
func SortSemesterGPAs(semesters []SemesterGPA) []SemesterGPA {
	sorted := make([]SemesterGPA, len(semesters))
	copy(sorted, semesters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareSemesters(sorted[i].SemesterName, sorted[j].SemesterName) < 0
	})
	return sorted
}

// NormalizeSemesterName renames legacy terms: Spring becomes Summer, Fall becomes Winter.
func NormalizeSemesterName(name string) string {
	switch {
	case strings.HasPrefix(name, "Spring"):
		return "Summer" + strings.TrimPrefix(name, "Spring")
	case strings.HasPrefix(name, "Fall"):
		return "Winter" + strings.TrimPrefix(name, "Fall")
	}
	return name
}
