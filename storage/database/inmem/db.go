package inmemdb

import (
	"sync"

	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
)

type (
	// DB is a process-local gradebook store, for tests and the "memory" storage mode.
	DB struct {
		mutex       sync.RWMutex
		students    map[string]*gradebook.Student
		subjects    map[string]*gradebook.Subject
		semesters   map[string]*gradebook.Semester
		enrollments map[string]*enrollmentRow
		grades      map[string]*gradebook.Grade // {enrollmentID: grade}
		mappings    []grading.GradeMapping
	}

	enrollmentRow struct {
		gradebook.Enrollment
		seq int // insertion order
	}
)

func Open() *DB {
	return &DB{
		students:    make(map[string]*gradebook.Student),
		subjects:    make(map[string]*gradebook.Subject),
		semesters:   make(map[string]*gradebook.Semester),
		enrollments: make(map[string]*enrollmentRow),
		grades:      make(map[string]*gradebook.Grade),
	}
}
