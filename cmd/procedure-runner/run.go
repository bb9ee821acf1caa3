package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/procedure-runner/internal/config"
	"github.com/kingrea/procedure-runner/internal/driver"
	"github.com/kingrea/procedure-runner/internal/logbook"
	"github.com/kingrea/procedure-runner/internal/logging"
	"github.com/kingrea/procedure-runner/internal/records"
	"github.com/kingrea/procedure-runner/internal/workflow/engine"
	"github.com/kingrea/procedure-runner/internal/workflow/progress"
	"github.com/kingrea/procedure-runner/internal/workflow/runner"
)

type runOptions struct {
	records string
	date    string
	headful bool
	install bool
}

func newRunCmd(project projectFunc) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute every patient and slot of the record file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := project()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, dir, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.records, "records", "", "Record file (JSON or YAML); defaults to data.records_file")
	cmd.Flags().StringVar(&opts.date, "date", "", "Run as if today were this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.headful, "headful", false, "Show the browser window")
	cmd.Flags().BoolVar(&opts.install, "install-browser", false, "Install the Playwright driver and Chromium before starting")
	return cmd
}

func runBatch(ctx context.Context, projectDir string, opts runOptions, stdout, stderr io.Writer) error {
	clock, err := parseRunDate(opts.date)
	if err != nil {
		return err
	}
	if err := config.InitRunnerDir(projectDir); err != nil {
		return err
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return err
	}
	if opts.headful {
		cfg.Project.Browser.Headless = false
	}
	if err := cfg.ValidateForRun(); err != nil {
		return err
	}
	layout := cfg.Layout()

	logger, err := logging.New(layout.LogsDir(), logging.Options{Level: cfg.Project.LogLevel, Console: stderr})
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger

	journal, err := logbook.New(layout.FollowupsPath())
	if err != nil {
		return err
	}

	recordsPath := cfg.RecordsPath()
	if opts.records != "" {
		recordsPath = opts.records
	}
	list, err := records.NewFileRepository(recordsPath).All()
	if err != nil {
		return err
	}
	log.Info().Str("file", recordsPath).Int("records", len(list)).Msg("Loaded records")

	tracker := progress.NewTracker(
		progress.WithLogger(log),
		progress.WithSinks(
			progress.NewMarkdownSink(layout.LiveSummaryPath(), time.Local),
			progress.NewRepository(layout.ProgressPath()),
		),
	)
	log.Info().Str("run", tracker.RunID()).Str("summary", layout.LiveSummaryPath()).Msg("Live summary available")

	browser := cfg.Project.Browser
	launch := func(ctx context.Context) (runner.Session, error) {
		return driver.Launch(ctx, driver.Options{
			Headless:       browser.Headless,
			Timeout:        browser.Timeout,
			ScreenshotDir:  layout.ScreenshotsDir(),
			DumpDir:        layout.DumpsDir(),
			Logger:         log,
			InstallBrowser: opts.install,
		})
	}
	wf := cfg.Project.Workflow
	settings := engine.Settings{
		BaseURL: cfg.Project.Portal.BaseURL,
		Credentials: engine.Credentials{
			Clinic:   cfg.Credentials.Clinic,
			User:     cfg.Credentials.User,
			Password: cfg.Credentials.Password,
		},
		Timeout:                    browser.Timeout,
		JustificationProbe:         wf.JustificationProbe,
		ConfirmationTimeout:        wf.ConfirmationTimeout,
		JustificationCode:          wf.JustificationCode,
		BiometricJustificationCode: wf.BiometricJustificationCode,
		DefaultOperator:            cfg.DefaultOperator(),
		ScreenshotOnError:          browser.ScreenshotOnError,
		DumpOnError:                browser.DumpOnError,
	}
	executor := func(page driver.PageDriver) (runner.Executor, error) {
		e, err := engine.New(page, tracker, settings,
			engine.WithClock(clock),
			engine.WithLogger(log),
			engine.WithJournal(journal),
		)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	r, err := runner.New(launch, executor, tracker, runner.Settings{
		RetryAttempts: wf.RetryAttempts,
		RetryDelay:    wf.RetryDelay,
		UnitPause:     wf.UnitPause,
	},
		runner.WithClock(clock),
		runner.WithLogger(log),
		runner.WithJournal(journal),
	)
	if err != nil {
		return err
	}

	snap, err := r.Run(ctx, list)
	if err != nil {
		log.Error().Err(err).Msg("Batch could not start")
		return err
	}
	printSummary(stdout, snap)
	return nil
}

func printSummary(w io.Writer, snap progress.Snapshot) {
	fmt.Fprintf(w, "Total: %d  Completed: %d  Failed: %d  Skipped: %d  Remaining: %d\n",
		snap.Total, len(snap.Completed), len(snap.Failed), len(snap.Skipped), len(snap.Remaining))
	for _, o := range snap.Failed {
		fmt.Fprintf(w, "  failed  %s (%s): %s\n", o.Name, o.Slot, o.Reason)
	}
}
