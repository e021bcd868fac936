package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/trezcool/alama/core/gradebook"
	"github.com/trezcool/alama/core/grading"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations require the postgres storage")
)

type commandLine struct {
	db           *sql.DB // nil with the memory storage
	gradebookSvc *gradebook.Service
	out          io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]          - run a goose command (up, down, status...)")
	fmt.Println("  transcript -student ID [-json]  - print a student's transcript")
	fmt.Println("  notify-at-risk [-dry-run]       - email the advisor the students at academic risk")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	transcriptCmd := flag.NewFlagSet("transcript", flag.ContinueOnError)
	transcriptStudent := transcriptCmd.String("student", "", "The student's ID.")
	transcriptJSON := transcriptCmd.Bool("json", false, "Print JSON even on a terminal.")

	notifyCmd := flag.NewFlagSet("notify-at-risk", flag.ContinueOnError)
	notifyDryRun := notifyCmd.Bool("dry-run", false, "List the students without sending the email.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Println("Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])
	case "transcript":
		if err := transcriptCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *transcriptStudent == "" {
			transcriptCmd.Usage()
			return errHelp
		}
		return cli.transcript(ctx, *transcriptStudent, *transcriptJSON || !isTerminalFunc())
	case "notify-at-risk":
		if err := notifyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.notifyAtRisk(ctx, *notifyDryRun)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) transcript(ctx context.Context, studentID string, asJSON bool) error {
	tr, err := cli.gradebookSvc.Transcript(ctx, studentID)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(tr)
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\n\n", tr.StudentName)
	for _, sem := range tr.Semesters {
		fmt.Fprintf(w, "%s\tGPA %.2f\t%d/%d credits\n", sem.SemesterName, sem.GPA, sem.EarnedCredits, sem.TotalCredits)
		for _, sub := range sem.Subjects {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%.2f\n", sub.SubjectCode, sub.SubjectName, sub.LetterGrade, sub.GradePoint)
		}
		for _, sub := range sem.Pending {
			fmt.Fprintf(w, "  %s\t%s\tpending\t\n", sub.SubjectCode, sub.SubjectName)
		}
	}
	standing := grading.Classify(tr.CGPA)
	fmt.Fprintf(w, "\nCGPA\t%.2f\t%s\t%d/%d credits\n", tr.CGPA, standing.Label, tr.EarnedCredits, tr.TotalCredits)
	return w.Flush()
}

func (cli *commandLine) notifyAtRisk(ctx context.Context, dryRun bool) error {
	students, err := cli.gradebookSvc.NotifyAtRisk(ctx, dryRun)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		fmt.Fprintln(cli.out, "no student at risk")
		return nil
	}
	for _, st := range students {
		fmt.Fprintf(cli.out, "%s <%s>: CGPA %.2f\n", st.Name, st.Email, st.CGPA)
	}
	if dryRun {
		fmt.Fprintf(cli.out, "%d student(s) at risk, nothing sent\n", len(students))
	} else {
		fmt.Fprintf(cli.out, "%d student(s) at risk, advisor notified\n", len(students))
	}
	return nil
}
