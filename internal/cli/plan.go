package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neu-planner/backend/internal/planner"
)

type PlanCmd struct {
	Interest  string   `help:"Free-text academic interest."`
	Major     string   `help:"Major name; its requirements pick the subjects."`
	Years     int      `help:"Plan length in years." default:"2"`
	Completed []string `help:"Completed course codes." sep:","`
	Term      string   `help:"Catalog term code."`
	JSON      bool     `name:"json" help:"Print the full result as JSON."`
}

func (c *PlanCmd) Run(ctx *Context) error {
	if strings.TrimSpace(c.Interest) == "" && strings.TrimSpace(c.Major) == "" {
		return errors.New("either --interest or --major is required")
	}

	runCtx, cancel := ctx.deadline()
	defer cancel()

	result, err := ctx.Runner.GeneratePlan(runCtx, planner.PlanRequest{
		Interest:         c.Interest,
		Major:            c.Major,
		Years:            c.Years,
		CompletedCourses: c.Completed,
		Term:             c.Term,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		return ctx.printJSON(result)
	}

	fmt.Fprintf(ctx.Out, "Plan for %s (%d years, term %s)\n", result.Interest, result.Years, result.TermCode)
	for _, sem := range result.Semesters {
		fmt.Fprintf(ctx.Out, "\nYear %d %s - %d credits\n", sem.Year, sem.Term, sem.Credits)
		for _, course := range sem.Courses {
			fmt.Fprintf(ctx.Out, "  %s\n", course)
		}
	}
	fmt.Fprintf(ctx.Out, "\nTotal credits: %d\n", result.TotalCredits)
	for _, w := range result.Validation.Warnings {
		fmt.Fprintf(ctx.Out, "Warning: %s\n", w)
	}
	for _, r := range result.Validation.Recommendations {
		fmt.Fprintf(ctx.Out, "Tip: %s\n", r)
	}
	for _, s := range result.Insights.Stages {
		if s.Reason != "" {
			fmt.Fprintf(ctx.Out, "Stage %s %s: %s\n", s.Stage, s.Status, s.Reason)
		}
	}
	return nil
}

type ValidateCmd struct {
	Semester string   `help:"Semester: fall, spring, summer1 or summer2." required:""`
	Year     int      `help:"Calendar year."`
	Term     string   `help:"Catalog term code."`
	Courses  []string `arg:"" help:"Course codes to check."`
}

func (c *ValidateCmd) Run(ctx *Context) error {
	runCtx, cancel := ctx.deadline()
	defer cancel()

	result, err := ctx.Runner.ValidateSchedule(runCtx, planner.ScheduleRequest{
		Courses:  c.Courses,
		Semester: c.Semester,
		Year:     c.Year,
		Term:     c.Term,
	})
	if err != nil {
		return err
	}

	verdict := "valid"
	if !result.Valid {
		verdict = "invalid"
	}
	fmt.Fprintf(ctx.Out, "Schedule is %s: %d credits in %s\n", verdict, result.TotalCredits, result.Semester)
	for _, e := range result.Errors {
		fmt.Fprintf(ctx.Out, "Error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(ctx.Out, "Warning: %s\n", w)
	}
	for _, s := range result.Suggestions {
		fmt.Fprintf(ctx.Out, "Suggestion: %s\n", s)
	}
	return nil
}
