package gradebook

import (
	"fmt"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

// subjectGrade grades one enrollment against the scale.
func subjectGrade(rec EnrollmentRecord, scale []grading.GradeMapping) grading.SubjectGrade {
	return grading.Grade(rec.Subject.Code, rec.Subject.Name, rec.Subject.Credits, rec.Marks(), scale)
}

// semesters groups records by semester, keeping the order in which semesters first appear.
// Subjects carrying no credits cannot be weighted and are skipped.
func (svc *Service) semesters(records []EnrollmentRecord, scale []grading.GradeMapping) []grading.SemesterGPA {
	type group struct {
		semester Semester
		subjects []grading.SubjectGrade
	}
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, rec := range records {
		if rec.Subject.Credits < 1 {
			svc.logger.Warn(
				fmt.Sprintf("skipping subject %s: invalid credits %d", rec.Subject.Code, rec.Subject.Credits),
				map[string]interface{}{"enrollment_id": rec.ID, "subject_id": rec.Subject.ID},
				rec.Student.Person(),
			)
			continue
		}
		g, ok := groups[rec.Semester.ID]
		if !ok {
			g = &group{semester: rec.Semester}
			groups[rec.Semester.ID] = g
			order = append(order, rec.Semester.ID)
		}
		g.subjects = append(g.subjects, subjectGrade(rec, scale))
	}

	sems := make([]grading.SemesterGPA, 0, len(order))
	for _, id := range order {
		g := groups[id]
		sems = append(sems, grading.BuildSemester(
			g.semester.ID,
			grading.NormalizeSemesterName(core.CleanString(g.semester.Name)),
			g.semester.SessionName,
			g.subjects,
		))
	}
	return sems
}

func (svc *Service) transcript(student Student, records []EnrollmentRecord, scale []grading.GradeMapping) grading.Transcript {
	return grading.BuildTranscript(student.ID, student.FullName, svc.semesters(records, scale))
}
