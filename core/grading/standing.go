package grading

// Severity is the display tone of an academic standing.
type Severity string

const (
	SeverityExcellent Severity = "excellent"
	SeverityGood      Severity = "good"
	SeverityAverage   Severity = "average"
	SeverityWarning   Severity = "warning"
	SeverityDanger    Severity = "danger"
)

// AtRiskThreshold is the CGPA under which a student is referred to an advisor.
const AtRiskThreshold = 2.0

type Standing struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

var standings = []struct {
	min      float64
	standing Standing
}{
	{3.70, Standing{Label: "Excellent", Severity: SeverityExcellent}},
	{3.30, Standing{Label: "Very Good", Severity: SeverityGood}},
	{2.70, Standing{Label: "Good", Severity: SeverityAverage}},
	{2.00, Standing{Label: "Satisfactory", Severity: SeverityWarning}},
}

// Classify maps a CGPA to its academic standing.
func Classify(cgpa float64) Standing {
	for _, s := range standings {
		if cgpa >= s.min {
			return s.standing
		}
	}
	return Standing{Label: "Needs Improvement", Severity: SeverityDanger}
}

func IsAtRisk(cgpa float64) bool {
	return cgpa < AtRiskThreshold
}
