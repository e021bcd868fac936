package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
	emailsvc "github.com/trezcool/alama/services/email"
	testutil "github.com/trezcool/alama/tests"
)

type fixture struct {
	cli      *commandLine
	out      *bytes.Buffer
	good     gradebook.Student
	struggle gradebook.Student
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)
	repo := testutil.NewGradebook(t)

	sem := testutil.CreateSemester(t, repo, "Summer 2023", true)
	math := testutil.CreateSubject(t, repo, "MAT-101", "Calculus", 3)
	lab := testutil.CreateSubject(t, repo, "PHY-101L", "Physics Lab", 1)

	f := &fixture{out: new(bytes.Buffer)}
	f.good = testutil.CreateStudent(t, repo, "Amina Njeri", "amina@alama.test")
	f.struggle = testutil.CreateStudent(t, repo, "Baraka Otieno", "baraka@alama.test")
	testutil.SetMarks(t, repo, testutil.Enroll(t, repo, f.good, math, sem), 85)
	testutil.Enroll(t, repo, f.good, lab, sem)
	testutil.SetMarks(t, repo, testutil.Enroll(t, repo, f.struggle, math, sem), 30)

	f.cli = &commandLine{
		db:           new(sql.DB),
		gradebookSvc: gradebook.NewService(repo, testutil.NewValidator(), emailsvc.NewConsoleServiceMock(conf), logger, conf),
		out:          f.out,
	}
	return f
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_run(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "transcript: no student", args: []string{"transcript"}, wantErr: errHelp},
		{name: "transcript: unknown flag", args: []string{"transcript", "-lol"}, wantErr: errHelp},
		{name: "transcript: unknown student", args: []string{"transcript", "-student", "lol"}, wantErr: gradebook.ErrStudentNotFound},
		{name: "notify-at-risk: unknown flag", args: []string{"notify-at-risk", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := f.cli.run(args)
			if err != nil && tt.wantErr != nil {
				err = errors.Cause(err)
			}
			tt.check(t, err)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "attendance", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(args))
		})
	}

	t.Run("memory storage", func(t *testing.T) {
		cli := *f.cli
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_transcript(t *testing.T) {
	f := setup(t)

	t.Run("table on a terminal", func(t *testing.T) {
		isTerminalFunc = func() bool { return true }
		f.out.Reset()

		require.NoError(t, f.cli.run([]string{"admin", "transcript", "-student", f.good.ID}))
		out := f.out.String()
		assert.True(t, strings.HasPrefix(out, "Amina Njeri\n"), out)
		assert.Contains(t, out, "Summer 2023")
		assert.Contains(t, out, "MAT-101")
		assert.Contains(t, out, "pending")
		assert.Contains(t, out, "Excellent")
	})

	t.Run("json when piped", func(t *testing.T) {
		isTerminalFunc = func() bool { return false }
		f.out.Reset()

		require.NoError(t, f.cli.run([]string{"admin", "transcript", "-student", f.good.ID}))
		var tr grading.Transcript
		require.NoError(t, json.Unmarshal(f.out.Bytes(), &tr))
		assert.Equal(t, f.good.ID, tr.StudentID)
		assert.Equal(t, 4.0, tr.CGPA)
		require.Len(t, tr.Semesters, 1)
		assert.Len(t, tr.Semesters[0].Pending, 1)
	})

	t.Run("json on a terminal", func(t *testing.T) {
		isTerminalFunc = func() bool { return true }
		f.out.Reset()

		require.NoError(t, f.cli.run([]string{"admin", "transcript", "-student", f.struggle.ID, "-json"}))
		assert.True(t, json.Valid(f.out.Bytes()), f.out.String())
	})
}

func Test_commandLine_notifyAtRisk(t *testing.T) {
	f := setup(t)

	type extra struct {
		sent int
	}
	tests := []cliTest{
		{name: "dry run", args: []string{"notify-at-risk", "-dry-run"}, extra: extra{sent: 0}},
		{name: "notify", args: []string{"notify-at-risk"}, extra: extra{sent: 1}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			f.out.Reset()

			tt.check(t, f.cli.run(args))
			assert.Len(t, emailsvc.SentMessages, tt.extra.(extra).sent)
			assert.Contains(t, f.out.String(), "Baraka Otieno <baraka@alama.test>: CGPA 0.00")
			assert.NotContains(t, f.out.String(), "Amina")
		})
	}
}
