package inmemdb

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
)

var (
	seedSubjects = []gradebook.Subject{
		{Code: "0611-1101", Name: "Computer Fundamentals", Credits: 3},
		{Code: "0611-1102", Name: "Computer Fundamentals Sessional", Credits: 1},
		{Code: "0613-1103", Name: "Structured Programming", Credits: 3},
		{Code: "0541-1101", Name: "Differential and Integral Calculus", Credits: 3},
	}
	seedStudents = []gradebook.Student{
		{FullName: "Amina Njeri", Email: "amina@alama.test", StudentNumber: "S-0001"},
		{FullName: "Baraka Otieno", Email: "baraka@alama.test", StudentNumber: "S-0002"},
		{FullName: "Chausiku Wanjiru", Email: "chausiku@alama.test", StudentNumber: "S-0003"},
	}
	// marks per student per semester, aligned on seedSubjects
	seedMarks = [][][]float64{
		{{88, 92, 81, 77}, {90, 85, 79, 83}},
		{{62, 70, 58, 49}, {66, 71, 61, 55}},
		{{35, 44, 28, 41}, {38, 52, 30, 22}},
	}
)

// Seed fills an empty store with a small demo gradebook: two semesters of the same
// four subjects for three students, the second semester still open.
func Seed(ctx context.Context, repo *GradebookRepository) error {
	repo.SetGradeMappings(grading.DefaultScale())

	sems := make([]gradebook.Semester, 0, 2)
	for i, name := range []string{"Summer 2023", "Winter 2023"} {
		start := time.Date(2023, time.Month(1+6*i), 1, 0, 0, 0, 0, time.UTC)
		sem, err := repo.CreateSemester(gradebook.Semester{
			Name:        name,
			SessionName: "2023",
			StartDate:   start,
			EndDate:     start.AddDate(0, 6, -1),
			IsLocked:    i == 0,
		})
		if err != nil {
			return errors.Wrap(err, "seeding semesters")
		}
		sems = append(sems, sem)
	}

	subjects := make([]gradebook.Subject, 0, len(seedSubjects))
	for _, s := range seedSubjects {
		sub, err := repo.CreateSubject(s)
		if err != nil {
			return errors.Wrap(err, "seeding subjects")
		}
		subjects = append(subjects, sub)
	}

	grades := make([]gradebook.Grade, 0)
	for i, s := range seedStudents {
		st, err := repo.CreateStudent(s)
		if err != nil {
			return errors.Wrap(err, "seeding students")
		}
		for j, sem := range sems {
			for k, sub := range subjects {
				enr, err := repo.CreateEnrollment(gradebook.Enrollment{StudentID: st.ID, SubjectID: sub.ID, SemesterID: sem.ID})
				if err != nil {
					return errors.Wrap(err, fmt.Sprintf("seeding enrollment of %s", st.FullName))
				}
				grades = append(grades, gradebook.Grade{EnrollmentID: enr.ID, Marks: seedMarks[i][j][k]})
			}
		}
	}

	scale, _ := repo.ListGradeMappings(ctx)
	for i := range grades {
		if m, ok := grading.ResolveGrade(grades[i].Marks, scale); ok {
			id := m.ID
			grades[i].GradeMappingID = &id
		}
	}
	if _, err := repo.UpsertGrades(ctx, grades); err != nil {
		return errors.Wrap(err, "seeding grades")
	}
	return nil
}
