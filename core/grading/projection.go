package grading

// Defaults used by the student dashboard projection.
const (
	DefaultTargetCGPA        = 3.0
	DefaultFutureCredits     = 18
	DefaultGraduationCredits = 120
)

// Projection describes what a student needs over the next futureCredits.
type Projection struct {
	CurrentCGPA    float64 `json:"current_cgpa"`
	CurrentCredits int     `json:"current_credits"`
	TargetCGPA     float64 `json:"target_cgpa"`
	FutureCredits  int     `json:"future_credits"`
	Required       float64 `json:"required_gpa"` // clamped to [0, 4]
	Unclamped      float64 `json:"unclamped_gpa"`
	Reachable      bool    `json:"reachable"`
	AlreadyMet     bool    `json:"already_met"`
}

// RequiredGPA solves
//
//	(currentCGPA*currentCredits + x*futureCredits) / (currentCredits+futureCredits) = targetCGPA
//
// for x and clamps it to [0, MaxGradePoint]. Use ProjectTarget to find out
// whether the target is reachable at all.
func RequiredGPA(currentCGPA float64, currentCredits int, targetCGPA float64, futureCredits int) float64 {
	return ProjectTarget(currentCGPA, currentCredits, targetCGPA, futureCredits).Required
}

// ProjectTarget is RequiredGPA keeping the unclamped solution around.
// Without future credits nothing can change, so the target is reachable
// only when it is already met.
func ProjectTarget(currentCGPA float64, currentCredits int, targetCGPA float64, futureCredits int) Projection {
	p := Projection{
		CurrentCGPA:    currentCGPA,
		CurrentCredits: currentCredits,
		TargetCGPA:     targetCGPA,
		FutureCredits:  futureCredits,
		AlreadyMet:     currentCGPA >= targetCGPA,
	}
	if futureCredits <= 0 {
		p.Reachable = p.AlreadyMet
		return p
	}

	cur, fut := float64(currentCredits), float64(futureCredits)
	p.Unclamped = (targetCGPA*(cur+fut) - currentCGPA*cur) / fut
	p.Required = clamp(p.Unclamped, 0, MaxGradePoint)
	p.Reachable = p.Unclamped <= MaxGradePoint
	return p
}
