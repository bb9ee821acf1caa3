package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/procedure-runner/internal/config"
	"github.com/kingrea/procedure-runner/internal/tui"
)

func newWatchCmd(project projectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow a running batch in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := project()
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig(dir)
			if err != nil {
				return err
			}
			layout := cfg.Layout()
			p := tea.NewProgram(
				tui.NewApp(layout.ProgressPath(), layout.FollowupsPath()),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			_, err = p.Run()
			return err
		},
	}
}
