package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func newTestConfig(t *testing.T, configYAML string) *Config {
	t.Helper()
	projectDir := t.TempDir()
	runnerDir := filepath.Join(projectDir, ".runner")
	if err := os.MkdirAll(runnerDir, 0755); err != nil {
		t.Fatal(err)
	}
	if configYAML != "" {
		if err := os.WriteFile(filepath.Join(runnerDir, "config.yaml"), []byte(strings.TrimSpace(configYAML)), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return &Config{ProjectDir: projectDir, RunnerProjectDir: runnerDir, Project: defaultProjectConfig()}
}

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	c := newTestConfig(t, "")
	if err := c.loadProjectConfig(envMap(nil)); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	wf := c.Project.Workflow
	if wf.RetryAttempts != 3 || wf.RetryDelay != 5*time.Second || wf.JustificationProbe != 5*time.Second {
		t.Fatalf("unexpected workflow defaults %+v", wf)
	}
	if !c.Project.Browser.Headless || c.Project.Browser.Timeout != 30*time.Second {
		t.Fatalf("unexpected browser defaults %+v", c.Project.Browser)
	}
	if c.RecordsPath() != filepath.Join(c.ProjectDir, "patients_data.json") {
		t.Fatalf("unexpected records path %s", c.RecordsPath())
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	c := newTestConfig(t, `
version: 1
portal:
  base_url: https://portal.example/autorizador
browser:
  headless: false
  timeout: 45s
workflow:
  retry_attempts: 2
  justification_probe: 8s
  default_operator: " Dra Paula "
data:
  records_file: data/patients.yaml
log_level: DEBUG
`)
	if err := c.loadProjectConfig(envMap(nil)); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Portal.BaseURL != "https://portal.example/autorizador" {
		t.Fatalf("wrong base url: %s", c.Project.Portal.BaseURL)
	}
	if c.Project.Browser.Headless || c.Project.Browser.Timeout != 45*time.Second {
		t.Fatalf("browser section not applied: %+v", c.Project.Browser)
	}
	if c.Project.Workflow.RetryAttempts != 2 || c.Project.Workflow.JustificationProbe != 8*time.Second {
		t.Fatalf("workflow section not applied: %+v", c.Project.Workflow)
	}
	if c.Project.Workflow.UnitPause != 2*time.Second {
		t.Fatalf("unset keys must keep defaults, got %s", c.Project.Workflow.UnitPause)
	}
	if c.DefaultOperator() != "Dra Paula" || c.Project.LogLevel != "debug" {
		t.Fatalf("values not normalised: %q %q", c.DefaultOperator(), c.Project.LogLevel)
	}
	if !strings.HasPrefix(c.RecordsPath(), c.ProjectDir) {
		t.Fatalf("expected records path to be resolved, got %s", c.RecordsPath())
	}
}

func TestEnvironmentOverridesFileAndCarriesCredentials(t *testing.T) {
	c := newTestConfig(t, `
portal:
  base_url: https://file.example
browser:
  headless: true
`)
	env := envMap(map[string]string{
		EnvBaseURL:           "https://env.example",
		EnvHeadless:          "false",
		EnvTimeout:           "15000",
		EnvRetryAttempts:     "5",
		EnvScreenshotOnError: "false",
		EnvRecordsFile:       "/data/list.json",
		EnvClinic:            "123",
		EnvUser:              "clinic-user",
		EnvPassword:          "secret",
	})
	if err := c.loadProjectConfig(env); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	p := c.Project
	if p.Portal.BaseURL != "https://env.example" || p.Browser.Headless || p.Browser.Timeout != 15*time.Second {
		t.Fatalf("env overrides not applied: %+v", p)
	}
	if p.Workflow.RetryAttempts != 5 || p.Browser.ScreenshotOnError || c.RecordsPath() != "/data/list.json" {
		t.Fatalf("env overrides not applied: %+v", p)
	}
	if err := c.ValidateForRun(); err != nil {
		t.Fatalf("expected run configuration to be complete: %v", err)
	}
}

func TestValidateForRunListsMissingSettings(t *testing.T) {
	c := newTestConfig(t, "")
	if err := c.loadProjectConfig(envMap(map[string]string{EnvUser: "u"})); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	err := c.ValidateForRun()
	if err == nil {
		t.Fatalf("expected missing settings")
	}
	for _, want := range []string{"portal.base_url", EnvClinic, EnvPassword} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
	if strings.Contains(err.Error(), EnvUser) {
		t.Fatalf("error %q should not mention the provided user", err)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	cases := map[string]string{
		"short probe":   "workflow:\n  justification_probe: 2s\n",
		"no attempts":   "workflow:\n  retry_attempts: -1\n",
		"unknown level": "log_level: chatty\n",
	}
	for name, body := range cases {
		c := newTestConfig(t, body)
		if err := c.loadProjectConfig(envMap(nil)); err == nil {
			t.Fatalf("%s: expected validation error but got none", name)
		}
	}
	c := newTestConfig(t, "")
	if err := c.loadProjectConfig(envMap(map[string]string{EnvHeadless: "maybe"})); err == nil {
		t.Fatalf("expected invalid boolean to be rejected")
	}
}

func TestInitRunnerDirWritesDefaultConfigOnce(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitRunnerDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, dir := range []string{"logs", "state", "screenshots", "dumps"} {
		if _, err := os.Stat(filepath.Join(projectDir, RunnerDir, dir)); err != nil {
			t.Fatalf("missing %s: %v", dir, err)
		}
	}
	path := filepath.Join(projectDir, RunnerDir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nlog_level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitRunnerDir(projectDir); err != nil {
		t.Fatalf("second init: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "warn") {
		t.Fatalf("existing config was overwritten")
	}
}

func TestDefaultConfigYAMLLoads(t *testing.T) {
	c := newTestConfig(t, defaultProjectConfigYAML)
	if err := c.loadProjectConfig(envMap(nil)); err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
	if c.Project.Workflow.JustificationCode != "100" || c.Project.Workflow.BiometricJustificationCode != "200" {
		t.Fatalf("unexpected codes %+v", c.Project.Workflow)
	}
}

func TestSetDefaultOperatorPersists(t *testing.T) {
	c := newTestConfig(t, "")
	if err := c.loadProjectConfig(envMap(nil)); err != nil {
		t.Fatal(err)
	}
	if err := c.SetDefaultOperator("Dra Paula"); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	reloaded := &Config{ProjectDir: c.ProjectDir, RunnerProjectDir: c.RunnerProjectDir}
	if err := reloaded.loadProjectConfig(envMap(nil)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DefaultOperator() != "Dra Paula" || reloaded.Project.Workflow.RetryDelay != 5*time.Second {
		t.Fatalf("operator not persisted: %+v", reloaded.Project.Workflow)
	}
	if err := c.SetDefaultOperator("  "); err == nil {
		t.Fatalf("expected blank operator to be rejected")
	}
}
