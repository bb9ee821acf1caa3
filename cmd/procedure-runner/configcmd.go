package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/procedure-runner/internal/config"
)

func newConfigCmd(project projectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or update .runner/config.yaml",
	}
	load := func() (*config.Config, error) {
		dir, err := project()
		if err != nil {
			return nil, err
		}
		if err := config.InitRunnerDir(dir); err != nil {
			return nil, err
		}
		return config.NewConfig(dir)
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-operator <name>",
			Short: "Set the professional used for records without one",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				if err := cfg.SetDefaultOperator(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Default operator set to %q\n", cfg.DefaultOperator())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-url <url>",
			Short: "Set the portal login address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				if err := cfg.SetBaseURL(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Portal address set to %s\n", cfg.Project.Portal.BaseURL)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				p := cfg.Project
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "config:          %s\n", cfg.ProjectConfigPath())
				fmt.Fprintf(out, "portal:          %s\n", p.Portal.BaseURL)
				fmt.Fprintf(out, "records:         %s\n", cfg.RecordsPath())
				fmt.Fprintf(out, "headless:        %t\n", p.Browser.Headless)
				fmt.Fprintf(out, "timeout:         %s\n", p.Browser.Timeout)
				fmt.Fprintf(out, "retry attempts:  %d (delay %s)\n", p.Workflow.RetryAttempts, p.Workflow.RetryDelay)
				fmt.Fprintf(out, "probe:           %s\n", p.Workflow.JustificationProbe)
				fmt.Fprintf(out, "operator:        %s\n", cfg.DefaultOperator())
				fmt.Fprintf(out, "log level:       %s\n", p.LogLevel)
				credentials := "set"
				if cfg.Credentials.User == "" || cfg.Credentials.Password == "" || cfg.Credentials.Clinic == "" {
					credentials = "missing"
				}
				fmt.Fprintf(out, "credentials:     %s\n", credentials)
				return nil
			},
		},
	)
	return cmd
}
