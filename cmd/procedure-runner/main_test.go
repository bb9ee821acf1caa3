package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/procedure-runner/internal/config"
	"github.com/kingrea/procedure-runner/internal/records"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDatesOnSundayAcceptsWholeWeek(t *testing.T) {
	// Sunday 18/10/2026 catches up on the week of 12/10.
	out, err := execute(t, "dates", "--date", "2026-10-18")
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if !strings.Contains(out, "Week start: 12/10/2026") || !strings.Contains(out, "catch-up run") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if strings.Contains(out, "skip") {
		t.Fatalf("every weekday of the prior week is in October:\n%s", out)
	}
}

func TestDatesMarksFutureDays(t *testing.T) {
	out, err := execute(t, "dates", "--date", "2026-10-14")
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	for _, want := range []string{"monday", "12/10/2026", "friday", "future_date"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDatesRejectsBadDate(t *testing.T) {
	if _, err := execute(t, "dates", "--date", "14/10/2026"); err == nil {
		t.Fatalf("expected invalid date error")
	}
}

func TestConvertWritesSuffixedRecordFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "pacientes.csv")
	content := "Nome,Skip,Carteirinha,Nascimento,CPF,Nome da Mãe,Nome do Titular,Dias de atendimento\n" +
		"ana silva,false,0064000012345678,05/03/1990,123.456.789-01,Maria Souza,,\"segunda, quarta e sexta\"\n" +
		",,,,,,,\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out, err := execute(t, "convert", csvPath, "--operator", "Dra. Carol Silva")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := records.OutputName(filepath.Join(dir, records.DefaultFile), time.Now())
	if !strings.Contains(out, "Converted 1 records") {
		t.Fatalf("unexpected output %q", out)
	}
	list, err := records.NewFileRepository(want).All()
	if err != nil {
		t.Fatalf("read converted file: %v", err)
	}
	if len(list) != 1 || list[0].Name != "ANA SILVA" || list[0].Operator != "Dra. Carol Silva" {
		t.Fatalf("unexpected records %+v", list)
	}
	if got := strings.Join(list[0].Weekdays, ","); got != "monday,wednesday,friday" {
		t.Fatalf("unexpected weekdays %s", got)
	}
}

func TestInitAndSetOperator(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "-C", dir, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.RunnerDir, "config.yaml")); err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if _, err := execute(t, "-C", dir, "config", "set-operator", "Dra. Carol Silva"); err != nil {
		t.Fatalf("set-operator: %v", err)
	}
	out, err := execute(t, "-C", dir, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Dra. Carol Silva") {
		t.Fatalf("operator not persisted:\n%s", out)
	}
}

func TestRunRequiresCredentials(t *testing.T) {
	for _, key := range []string{config.EnvClinic, config.EnvUser, config.EnvPassword, config.EnvBaseURL} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	_, err := execute(t, "-C", dir, "run")
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected missing configuration error, got %v", err)
	}
}
