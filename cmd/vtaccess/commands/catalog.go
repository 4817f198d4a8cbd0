package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"vtaccess/lib/course"
	"vtaccess/lib/semester"
	"vtaccess/lib/serviceutil"
	"vtaccess/lib/timetable"
	"vtaccess/lib/vterr"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	coursesTeacher  string
	coursesArea     string
	coursesOpen     bool
	coursesAll      bool
	crnOpen         bool
	prereqsAll      bool
	subjectsColumns int
)

func init() {
	coursesCmd.Flags().StringVar(&coursesTeacher, "teacher", "", "Only keep sections taught by this instructor, needs a course number.")
	coursesCmd.Flags().StringVar(&coursesArea, "area", "", "List the sections of a curriculum area (1-7, G01-G07) instead of a subject.")
	coursesCmd.Flags().BoolVar(&coursesOpen, "open", false, "Only list sections with open seats.")
	coursesCmd.Flags().BoolVar(&coursesAll, "all", false, "Keep every row, even repeated course codes.")
	crnCmd.Flags().BoolVar(&crnOpen, "open", false, "Only find the section if it has open seats.")
	prereqsCmd.Flags().BoolVar(&prereqsAll, "all", false, "List every section of each prerequisite instead of the first.")
	subjectsCmd.Flags().IntVar(&subjectsColumns, "columns", 8, "Subjects per row.")

	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(crnCmd)
	rootCmd.AddCommand(prereqsCmd)
}

func timetableClient() *timetable.Client {
	cfg, err := loadConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	opts, err := cfg.fetchOptions()
	if err != nil {
		serviceutil.Fatal("failed to set up fetching", err)
	}
	return timetable.NewClient(timetable.Options{Fetch: opts})
}

func parseTerm(arg string) semester.Code {
	term, err := semester.Parse(arg)
	if err != nil {
		serviceutil.Fatal("invalid semester", err)
	}
	return term
}

// suggest returns a "did you mean" hint when subject is not offered in
// term but a close subject is.
func suggest(ctx context.Context, client *timetable.Client, term semester.Code, subject string) string {
	if subject == "" {
		return ""
	}
	subjects, err := client.Subjects(ctx, term)
	if err != nil {
		slog.DebugContext(ctx, "failed to list subjects for a suggestion", "err", err)
		return ""
	}
	if slices.Contains(subjects, subject) {
		return ""
	}
	suggestion, ok := timetable.SuggestSubject(subject, subjects)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s is not offered in %s, did you mean %s?", subject, term.Name(), suggestion)
}

func explain(ctx context.Context, client *timetable.Client, term semester.Code, subject string, err error) error {
	if !errors.Is(err, vterr.ErrInvalidInput) && !errors.Is(err, vterr.ErrNotFound) {
		return err
	}
	hint := suggest(ctx, client, term, subject)
	if hint == "" {
		return err
	}
	return fmt.Errorf("%w (%s)", err, hint)
}

var subjectsCmd = &cobra.Command{
	Use:   "subjects <term>",
	Short: "Lists the subject codes offered in a semester.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := parseTerm(args[0])
		subjects, err := timetableClient().Subjects(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to list subjects", err)
		}
		if subjectsColumns < 1 {
			subjectsColumns = 1
		}

		t := newTable(cmd.OutOrStdout())
		t.SetTitle(fmt.Sprintf("%d subjects, %s", len(subjects), term.Name()))
		row := table.Row{}
		for _, subject := range subjects {
			row = append(row, subject)
			if len(row) == subjectsColumns {
				t.AppendRow(row)
				row = table.Row{}
			}
		}
		if len(row) > 0 {
			t.AppendRow(row)
		}
		t.Render()
	},
}

var coursesCmd = &cobra.Command{
	Use:   "courses <term> [subject] [number]",
	Short: "Searches the timetable of classes.",
	Args:  cobra.RangeArgs(1, 3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		term := parseTerm(args[0])
		client := timetableClient()

		subject, number := "", ""
		if len(args) > 1 {
			subject = strings.ToUpper(args[1])
		}
		if len(args) > 2 {
			number = args[2]
		}

		var courses []*course.Course
		var err error
		switch {
		case coursesArea != "":
			courses, err = client.AreaCourses(ctx, term, coursesArea, coursesAll, coursesOpen)
		case subject == "":
			serviceutil.Fatal("missing subject", errors.New("give a subject or --area"))
		case coursesTeacher != "":
			courses, err = client.CoursesByTeacher(ctx, term, subject, number, coursesTeacher, coursesOpen)
		case number != "":
			courses, err = client.Courses(ctx, term, subject, number, coursesOpen)
		default:
			courses, err = client.CoursesBySubject(ctx, term, subject, coursesAll, coursesOpen)
		}
		if err != nil {
			serviceutil.Fatal("failed to search the timetable", explain(ctx, client, term, subject, err))
		}
		if len(courses) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sections found.")
			hint := suggest(ctx, client, term, subject)
			if hint != "" {
				fmt.Fprintln(cmd.OutOrStdout(), hint)
			}
			return
		}
		renderCourses(cmd.OutOrStdout(), courses)
	},
}

var crnCmd = &cobra.Command{
	Use:   "crn <term> <crn>",
	Short: "Looks up one section by its CRN.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		term := parseTerm(args[0])
		section, err := timetableClient().CourseByCRN(cmd.Context(), term, args[1], crnOpen)
		if err != nil {
			serviceutil.Fatal("failed to look up crn", err)
		}
		renderCourses(cmd.OutOrStdout(), []*course.Course{section})
	},
}

var prereqsCmd = &cobra.Command{
	Use:   "prereqs <term> <subject> <number>",
	Short: "Lists the prerequisites of a course.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		term := parseTerm(args[0])
		client := timetableClient()
		subject := strings.ToUpper(args[1])

		prerequisites, err := client.PrerequisitesFor(ctx, term, subject, args[2], prereqsAll)
		if err != nil {
			serviceutil.Fatal("failed to resolve prerequisites", explain(ctx, client, term, subject, err))
		}
		if len(prerequisites) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s-%s has no prerequisites.\n", subject, args[2])
			return
		}
		renderCourses(cmd.OutOrStdout(), prerequisites)
	},
}
