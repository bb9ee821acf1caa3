// internal/config/config.go
//
// This package handles configuration and the .runner directory structure.
// Every project that uses procedure-runner gets a .runner/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/procedure-runner/internal/records"
	"github.com/kingrea/procedure-runner/internal/workflow"
)

const (
	// RunnerDir is the name of the directory we create in each project
	RunnerDir = ".runner"

	// MinJustificationProbe is the shortest probe that still tells the two
	// card registration branches apart.
	MinJustificationProbe = 5 * time.Second

	defaultTimeout             = 30 * time.Second
	defaultRetryAttempts       = 3
	defaultRetryDelay          = 5 * time.Second
	defaultUnitPause           = 2 * time.Second
	defaultConfirmationTimeout = 10 * time.Second
	defaultJustificationCode   = "100"
	defaultBiometricCode       = "200"
	defaultLogLevel            = "info"
)

// Environment variables read on top of config.yaml.
const (
	EnvClinic            = "CLINICA"
	EnvUser              = "USUARIO"
	EnvPassword          = "SENHA"
	EnvBaseURL           = "BASE_URL"
	EnvHeadless          = "HEADLESS"
	EnvTimeout           = "TIMEOUT"
	EnvRetryAttempts     = "RETRY_ATTEMPTS"
	EnvScreenshotOnError = "SCREENSHOT_ON_ERROR"
	EnvRecordsFile       = "PATIENT_DATA_FILE"
	EnvLogLevel          = "LOG_LEVEL"
)

const defaultProjectConfigYAML = `# procedure-runner project configuration
version: 1

portal:
  # Login page of the authorization portal. BASE_URL overrides it.
  base_url: ""

browser:
  headless: true
  timeout: 30s
  screenshot_on_error: true
  dump_on_error: false

workflow:
  retry_attempts: 3
  retry_delay: 5s
  unit_pause: 2s
  # Never below 5s: absence of the justification field after the full probe
  # is what identifies cross-coverage patients.
  justification_probe: 5s
  confirmation_timeout: 10s
  justification_code: "100"
  biometric_justification_code: "200"
  # Used when a record has no professional.
  default_operator: ""

data:
  records_file: patients_data.json

log_level: info

# Credentials are only read from the environment (or .env): CLINICA, USUARIO, SENHA.
`

// PortalConfig locates the remote application.
type PortalConfig struct {
	BaseURL string `yaml:"base_url"`
}

// BrowserConfig tunes the browser session.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	Timeout           time.Duration `yaml:"timeout"`
	ScreenshotOnError bool          `yaml:"screenshot_on_error"`
	DumpOnError       bool          `yaml:"dump_on_error"`
}

// WorkflowConfig captures per-unit execution preferences.
type WorkflowConfig struct {
	RetryAttempts              int           `yaml:"retry_attempts"`
	RetryDelay                 time.Duration `yaml:"retry_delay"`
	UnitPause                  time.Duration `yaml:"unit_pause"`
	JustificationProbe         time.Duration `yaml:"justification_probe"`
	ConfirmationTimeout        time.Duration `yaml:"confirmation_timeout"`
	JustificationCode          string        `yaml:"justification_code"`
	BiometricJustificationCode string        `yaml:"biometric_justification_code"`
	DefaultOperator            string        `yaml:"default_operator"`
}

// DataConfig points at the record file.
type DataConfig struct {
	RecordsFile string `yaml:"records_file"`
}

// ProjectConfig models .runner/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Portal   PortalConfig   `yaml:"portal"`
	Browser  BrowserConfig  `yaml:"browser"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Data     DataConfig     `yaml:"data"`
	LogLevel string         `yaml:"log_level"`
}

// Credentials authenticate against the portal. They never touch disk.
type Credentials struct {
	Clinic   string
	User     string
	Password string
}

// Config holds the runtime configuration for procedure-runner.
type Config struct {
	// ProjectDir is the directory where the user ran the binary from
	ProjectDir string

	// RunnerProjectDir is ProjectDir/.runner
	RunnerProjectDir string

	Project     ProjectConfig
	Credentials Credentials
}

// InitRunnerDir creates the .runner directory structure in the given project directory.
//
// Structure created:
// .runner/
// ├── config.yaml
// ├── logs/         <- automation.log, errors.log, followups.log, live_summary.md
// ├── state/        <- progress.json
// ├── screenshots/  <- failure screenshots
// └── dumps/        <- page dumps
func InitRunnerDir(projectDir string) error {
	runnerDir := filepath.Join(projectDir, RunnerDir)
	if err := workflow.New(runnerDir).Initialize(); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(runnerDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
// A .env file in projectDir is loaded first; variables already set in the
// process environment win.
func NewConfig(projectDir string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}
	cfg := &Config{
		ProjectDir:       projectDir,
		RunnerProjectDir: filepath.Join(projectDir, RunnerDir),
		Project:          defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Layout exposes the run directory structure.
func (c *Config) Layout() *workflow.Workflow {
	return workflow.New(c.RunnerProjectDir)
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return c.Layout().LogsDir()
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return c.Layout().StateDir()
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.RunnerProjectDir, "config.yaml")
}

// RecordsPath resolves the configured record file against the project.
func (c *Config) RecordsPath() string {
	return resolvePath(c.ProjectDir, c.Project.Data.RecordsFile)
}

// DefaultOperator returns the operator used for records without one.
func (c *Config) DefaultOperator() string {
	return c.Project.Workflow.DefaultOperator
}

// SetDefaultOperator updates the fallback operator and persists the value
// back to .runner/config.yaml.
func (c *Config) SetDefaultOperator(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config: operator name is required")
	}
	c.Project.Workflow.DefaultOperator = name
	return c.saveProjectConfig()
}

// SetBaseURL updates the portal address and persists it.
func (c *Config) SetBaseURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("config: base url is required")
	}
	c.Project.Portal.BaseURL = url
	return c.saveProjectConfig()
}

// ValidateForRun checks what only a live run needs: the portal address and
// the credentials.
func (c *Config) ValidateForRun() error {
	var missing []string
	if c.Project.Portal.BaseURL == "" {
		missing = append(missing, "portal.base_url ("+EnvBaseURL+")")
	}
	if c.Credentials.Clinic == "" {
		missing = append(missing, EnvClinic)
	}
	if c.Credentials.User == "" {
		missing = append(missing, EnvUser)
	}
	if c.Credentials.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) loadProjectConfig(lookup func(string) (string, bool)) error {
	path := c.ProjectConfigPath()
	parsed := defaultProjectConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed.applyDefaults()
	if err := parsed.applyEnv(lookup); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	c.Credentials = credentialsFromEnv(lookup)
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Browser: BrowserConfig{
			Headless:          true,
			Timeout:           defaultTimeout,
			ScreenshotOnError: true,
		},
		Workflow: WorkflowConfig{
			RetryAttempts:              defaultRetryAttempts,
			RetryDelay:                 defaultRetryDelay,
			UnitPause:                  defaultUnitPause,
			JustificationProbe:         MinJustificationProbe,
			ConfirmationTimeout:        defaultConfirmationTimeout,
			JustificationCode:          defaultJustificationCode,
			BiometricJustificationCode: defaultBiometricCode,
		},
		Data:     DataConfig{RecordsFile: records.DefaultFile},
		LogLevel: defaultLogLevel,
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Browser.Timeout == 0 {
		pc.Browser.Timeout = defaultTimeout
	}
	if pc.Workflow.RetryAttempts == 0 {
		pc.Workflow.RetryAttempts = defaultRetryAttempts
	}
	if pc.Workflow.JustificationProbe == 0 {
		pc.Workflow.JustificationProbe = MinJustificationProbe
	}
	if pc.Workflow.ConfirmationTimeout == 0 {
		pc.Workflow.ConfirmationTimeout = defaultConfirmationTimeout
	}
	if strings.TrimSpace(pc.Workflow.JustificationCode) == "" {
		pc.Workflow.JustificationCode = defaultJustificationCode
	}
	if strings.TrimSpace(pc.Workflow.BiometricJustificationCode) == "" {
		pc.Workflow.BiometricJustificationCode = defaultBiometricCode
	}
	if strings.TrimSpace(pc.Data.RecordsFile) == "" {
		pc.Data.RecordsFile = records.DefaultFile
	}
	if strings.TrimSpace(pc.LogLevel) == "" {
		pc.LogLevel = defaultLogLevel
	}
}

func (pc *ProjectConfig) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := nonEmpty(lookup, EnvBaseURL); ok {
		pc.Portal.BaseURL = v
	}
	if v, ok := nonEmpty(lookup, EnvHeadless); ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeadless, err)
		}
		pc.Browser.Headless = b
	}
	if v, ok := nonEmpty(lookup, EnvTimeout); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be milliseconds: %w", EnvTimeout, err)
		}
		pc.Browser.Timeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := nonEmpty(lookup, EnvRetryAttempts); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetryAttempts, err)
		}
		pc.Workflow.RetryAttempts = n
	}
	if v, ok := nonEmpty(lookup, EnvScreenshotOnError); ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvScreenshotOnError, err)
		}
		pc.Browser.ScreenshotOnError = b
	}
	if v, ok := nonEmpty(lookup, EnvRecordsFile); ok {
		pc.Data.RecordsFile = v
	}
	if v, ok := nonEmpty(lookup, EnvLogLevel); ok {
		pc.LogLevel = v
	}
	return nil
}

func (pc *ProjectConfig) normalize() {
	pc.Portal.BaseURL = strings.TrimSpace(pc.Portal.BaseURL)
	pc.Workflow.JustificationCode = strings.TrimSpace(pc.Workflow.JustificationCode)
	pc.Workflow.BiometricJustificationCode = strings.TrimSpace(pc.Workflow.BiometricJustificationCode)
	pc.Workflow.DefaultOperator = strings.TrimSpace(pc.Workflow.DefaultOperator)
	pc.Data.RecordsFile = strings.TrimSpace(pc.Data.RecordsFile)
	pc.LogLevel = strings.ToLower(strings.TrimSpace(pc.LogLevel))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Browser.Timeout < 0 {
		return fmt.Errorf("browser.timeout must be positive")
	}
	if pc.Workflow.RetryAttempts < 1 {
		return fmt.Errorf("workflow.retry_attempts must be >= 1")
	}
	if pc.Workflow.RetryDelay < 0 || pc.Workflow.UnitPause < 0 {
		return fmt.Errorf("workflow delays must not be negative")
	}
	if pc.Workflow.JustificationProbe < MinJustificationProbe {
		return fmt.Errorf("workflow.justification_probe must be >= %s", MinJustificationProbe)
	}
	if pc.Workflow.ConfirmationTimeout <= 0 {
		return fmt.Errorf("workflow.confirmation_timeout must be positive")
	}
	switch pc.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}

func credentialsFromEnv(lookup func(string) (string, bool)) Credentials {
	get := func(key string) string {
		v, _ := nonEmpty(lookup, key)
		return v
	}
	return Credentials{
		Clinic:   get(EnvClinic),
		User:     get(EnvUser),
		Password: get(EnvPassword),
	}
}

func nonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.RunnerProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure runner dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
