package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/services/logger"
	"github.com/trezcool/alama/storage/database/inmem"
)

// DBEnvVar holds the DSN of a disposable postgres database for the sql tests.
const DBEnvVar = "ALAMA_TEST_DB"

func NewConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		AppName:         "Alama",
		TestMode:        true,
		WorkDir:         core.Getwd(),
		FrontendBaseURL: "http://localhost:3000",
		Storage:         "memory",
		AdvisorEmail:    "Advisor <advisor@alama.test>",
		Server: core.ServerConfig{
			Host:            "localhost",
			ShutdownTimeout: time.Second,
			DisableReqLogs:  true,
		},
		Grading: core.GradingConfig{
			TargetCGPA:        grading.DefaultTargetCGPA,
			FutureCredits:     grading.DefaultFutureCredits,
			GraduationCredits: grading.DefaultGraduationCredits,
		},
		Drafts: core.DraftsConfig{
			InMemory: true,
			Debounce: 20 * time.Millisecond,
			SavedTTL: 50 * time.Millisecond,
		},
	}
}

// NewLogger returns a silent logger that reports nothing.
func NewLogger(conf *core.Config) core.Logger {
	l := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	l.Enable(false)
	return l
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	core.InitValidators(validate, translator)
	gradebook.InitValidators(validate, translator)
	return validate
}

// NewGradebook returns an empty in-memory gradebook using the default grade scale.
func NewGradebook(t *testing.T) *inmemdb.GradebookRepository {
	t.Helper()
	repo := inmemdb.NewGradebookRepository(inmemdb.Open())
	repo.SetGradeMappings(grading.DefaultScale())
	return repo
}

func CreateStudent(t *testing.T, repo *inmemdb.GradebookRepository, name, email string) gradebook.Student {
	t.Helper()
	st, err := repo.CreateStudent(gradebook.Student{FullName: name, Email: email})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateSubject(t *testing.T, repo *inmemdb.GradebookRepository, code, name string, credits int) gradebook.Subject {
	t.Helper()
	sub, err := repo.CreateSubject(gradebook.Subject{Code: code, Name: name, Credits: credits})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func CreateSemester(t *testing.T, repo *inmemdb.GradebookRepository, name string, locked bool) gradebook.Semester {
	t.Helper()
	sem, err := repo.CreateSemester(gradebook.Semester{Name: name, SessionName: name, IsLocked: locked})
	if err != nil {
		t.Fatalf("CreateSemester() failed: %v", err)
	}
	return sem
}

func Enroll(t *testing.T, repo *inmemdb.GradebookRepository, st gradebook.Student, sub gradebook.Subject, sem gradebook.Semester) gradebook.Enrollment {
	t.Helper()
	enr, err := repo.CreateEnrollment(gradebook.Enrollment{StudentID: st.ID, SubjectID: sub.ID, SemesterID: sem.ID})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

// SetMarks stores marks straight into the repo, bypassing semester locks.
func SetMarks(t *testing.T, repo *inmemdb.GradebookRepository, enr gradebook.Enrollment, marks float64) {
	t.Helper()
	if _, err := repo.UpsertGrades(context.Background(), []gradebook.Grade{{EnrollmentID: enr.ID, Marks: marks}}); err != nil {
		t.Fatalf("SetMarks() failed: %v", err)
	}
}

// DSN returns the test database DSN, skipping the test when none is configured.
func DSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(DBEnvVar)
	if dsn == "" {
		t.Skipf("%s not set", DBEnvVar)
	}
	return dsn
}
