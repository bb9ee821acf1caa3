// internal/workflow/workflow.go
//
// Defines the run directory structure and file constants.
// Everything a run produces is stored under .runner/ in the project directory.

package workflow

import (
	"os"
	"path/filepath"
)

// Directory names within .runner/
const (
	LogsDir        = "logs"
	StateDir       = "state"
	ScreenshotsDir = "screenshots"
	DumpsDir       = "dumps"
)

// File names for run artifacts
const (
	FileAutomationLog = "automation.log"
	FileErrorLog      = "errors.log"
	FileFollowups     = "followups.log"
	FileLiveSummary   = "live_summary.md"
	FileProgress      = "progress.json"
)

// Workflow manages the run directory structure
type Workflow struct {
	// Base path to .runner directory
	runnerDir string
}

// New creates a new Workflow manager
func New(runnerDir string) *Workflow {
	return &Workflow{runnerDir: runnerDir}
}

// Dir returns the base run directory path
func (w *Workflow) Dir() string {
	return w.runnerDir
}

// LogsDir returns the path to the logs directory (.runner/logs/)
func (w *Workflow) LogsDir() string {
	return filepath.Join(w.runnerDir, LogsDir)
}

// StateDir returns the path to the state directory (.runner/state/)
func (w *Workflow) StateDir() string {
	return filepath.Join(w.runnerDir, StateDir)
}

// ScreenshotsDir returns where failure screenshots are written
func (w *Workflow) ScreenshotsDir() string {
	return filepath.Join(w.runnerDir, ScreenshotsDir)
}

// DumpsDir returns where page dumps are written
func (w *Workflow) DumpsDir() string {
	return filepath.Join(w.runnerDir, DumpsDir)
}

// FollowupsPath returns the path to the manual follow-up journal
func (w *Workflow) FollowupsPath() string {
	return filepath.Join(w.LogsDir(), FileFollowups)
}

// LiveSummaryPath returns the path to live_summary.md
func (w *Workflow) LiveSummaryPath() string {
	return filepath.Join(w.LogsDir(), FileLiveSummary)
}

// ProgressPath returns the path to the persisted progress snapshot
func (w *Workflow) ProgressPath() string {
	return filepath.Join(w.StateDir(), FileProgress)
}

// Initialize creates the run directory structure
func (w *Workflow) Initialize() error {
	dirs := []string{
		w.Dir(),
		w.LogsDir(),
		w.StateDir(),
		w.ScreenshotsDir(),
		w.DumpsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// Reset removes the persisted state (for starting fresh)
func (w *Workflow) Reset() error {
	return os.RemoveAll(w.StateDir())
}
