package grading

// GradeOption is a selectable grade in the GPA simulator.
type GradeOption struct {
	Label      string  `json:"label"`
	GradePoint float64 `json:"grade_point"`
}

var gradeOptions = []GradeOption{
	{Label: "A+", GradePoint: 4.00},
	{Label: "A", GradePoint: 3.75},
	{Label: "A-", GradePoint: 3.50},
	{Label: "B+", GradePoint: 3.25},
	{Label: "B", GradePoint: 3.00},
	{Label: "B-", GradePoint: 2.75},
	{Label: "C+", GradePoint: 2.50},
	{Label: "C", GradePoint: 2.25},
	{Label: "D", GradePoint: 2.00},
	{Label: "F", GradePoint: 0.00},
}

func GradeOptions() []GradeOption {
	opts := make([]GradeOption, len(gradeOptions))
	copy(opts, gradeOptions)
	return opts
}

// GradeOptionLabel returns the label of the option worth gradePoint, or "F".
func GradeOptionLabel(gradePoint float64) string {
	for _, o := range gradeOptions {
		if o.GradePoint == gradePoint {
			return o.Label
		}
	}
	return "F"
}

// SimulatedSubject is a subject whose grade point may be overridden.
type SimulatedSubject struct {
	Key        string // enrollment the override applies to
	Credits    int
	GradePoint float64
}

// Simulate returns the unrounded credit-weighted mean grade point, using
// overrides[Key] in place of the actual grade point when present.
func Simulate(subjects []SimulatedSubject, overrides map[string]float64) float64 {
	sgs := make([]SubjectGrade, len(subjects))
	for i, s := range subjects {
		gp := s.GradePoint
		if o, ok := overrides[s.Key]; ok {
			gp = o
		}
		sgs[i] = SubjectGrade{Credits: s.Credits, GradePoint: gp}
	}
	return weightedMean(sgs)
}
