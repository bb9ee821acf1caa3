// cmd/procedure-runner/main.go
//
// Entry point for the procedure-runner CLI. Every subcommand works on a
// project directory (the current one by default) holding .runner/ and the
// record file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/procedure-runner/internal/config"
)

// dateFlagLayout is how --date is written on the command line.
const dateFlagLayout = "2006-01-02"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	var projectDir string
	root := &cobra.Command{
		Use:   "procedure-runner",
		Short: "Register and execute recurring procedures on the authorization portal",
		Long: `procedure-runner works through a list of patients and, for every weekday
or day of the month assigned to them, checks the patient in without card and
executes the authorized procedure on the portal.

Examples:
  procedure-runner init
  procedure-runner run --records patients_data.json
  procedure-runner run --date 2026-10-18 --headful
  procedure-runner convert pacientes.csv --operator "Dra. Carol Silva"
  procedure-runner dates --date 2026-10-18
  procedure-runner watch`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "Project directory (defaults to the current directory)")

	project := func() (string, error) {
		if projectDir != "" {
			return projectDir, nil
		}
		return os.Getwd()
	}
	root.AddCommand(
		newInitCmd(project),
		newRunCmd(project),
		newConvertCmd(),
		newDatesCmd(),
		newWatchCmd(project),
		newConfigCmd(project),
	)
	return root
}

type projectFunc func() (string, error)

func newInitCmd(project projectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .runner directory and a default config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := project()
			if err != nil {
				return err
			}
			if err := config.InitRunnerDir(dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", filepath.Join(dir, config.RunnerDir))
			return nil
		},
	}
}

// parseRunDate turns --date into a clock pinned to that day. The time of day
// still follows the wall clock.
func parseRunDate(value string) (func() time.Time, error) {
	if value == "" {
		return time.Now, nil
	}
	day, err := time.ParseInLocation(dateFlagLayout, value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", value, err)
	}
	return func() time.Time {
		now := time.Now()
		return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.Local)
	}, nil
}
