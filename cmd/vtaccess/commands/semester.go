package commands

import (
	"fmt"
	"vtaccess/lib/semester"
	"vtaccess/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var semesterCount int

func init() {
	semesterCmd.Flags().IntVarP(&semesterCount, "count", "n", 1, "How many consecutive semesters to list.")
	rootCmd.AddCommand(semesterCmd)
}

// termArg parses args[i] as a semester code, defaulting to the
// current semester when it is missing.
func termArg(args []string, i int) (semester.Code, error) {
	if len(args) <= i {
		return semester.Current(), nil
	}
	return semester.Parse(args[i])
}

func resolveSemester(args []string) (semester.Code, error) {
	if len(args) == 0 {
		return semester.Current(), nil
	}
	switch args[0] {
	case "current":
		return semester.Current(), nil
	case "next", "prev":
		from, err := termArg(args, 1)
		if err != nil {
			return "", err
		}
		if args[0] == "next" {
			return from.Next(), nil
		}
		return from.Previous(), nil
	}
	return semester.Parse(args[0])
}

var semesterCmd = &cobra.Command{
	Use:   "semester [current | next [code] | prev [code] | <code>]",
	Short: "Prints semester codes and their names.",
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		start, err := resolveSemester(args)
		if err != nil {
			serviceutil.Fatal("invalid semester", err)
		}
		if semesterCount < 1 {
			serviceutil.Fatal("invalid count", fmt.Errorf("--count must be at least 1, got %d", semesterCount))
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Code", "Semester"})
		for _, code := range semester.Window(start, semesterCount) {
			t.AppendRow(table.Row{code.String(), code.Name()})
		}
		t.Render()
	},
}
