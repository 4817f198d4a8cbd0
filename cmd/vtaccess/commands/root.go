package commands

import (
	"context"
	"fmt"
	"os"
	"vtaccess/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "vtaccess",
	Short: "vtaccess reads the Virginia Tech timetable and your Hokie SPA schedule.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level and dump http traffic if resty_output is set.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vtaccess.json5", "The config file, searched for upward from the working directory.")
}

func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}
