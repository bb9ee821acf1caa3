package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/procedure-runner/internal/fold"
	"github.com/kingrea/procedure-runner/internal/workflow/window"
)

// Spreadsheet column headers, folded.
const (
	columnName        = "nome"
	columnSkip        = "skip"
	columnCard        = "carteirinha"
	columnBirth       = "nascimento"
	columnCPF         = "cpf"
	columnMother      = "nome da mae"
	columnResponsible = "nome do titular"
	columnDays        = "dias de atendimento"
)

// ConvertCSV turns the clinic spreadsheet export into records. Rows without
// a name are dropped; ages are computed against now.
func ConvertCSV(r io.Reader, operator string, now time.Time) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("records: csv is empty")
		}
		return nil, fmt.Errorf("records: read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[fold.String(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := index[columnName]; !ok {
		return nil, fmt.Errorf("records: csv header missing %q column", columnName)
	}
	var out []Record
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("records: csv line %d: %w", line, err)
		}
		cell := func(column string) string {
			i, ok := index[column]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		name := cell(columnName)
		if name == "" {
			continue
		}
		rec := Record{
			Name:            strings.ToUpper(name),
			Skip:            strings.EqualFold(cell(columnSkip), "true"),
			Card:            cell(columnCard),
			BirthDate:       cell(columnBirth),
			CPF:             Digits(cell(columnCPF)),
			MotherName:      cell(columnMother),
			ResponsibleName: cell(columnResponsible),
			Operator:        strings.TrimSpace(operator),
			Weekdays:        ParseDays(cell(columnDays)),
		}
		if age, ok := AgeFromBirthDate(rec.BirthDate, now); ok {
			rec.Age = &age
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseDays splits a "segunda, quarta e sexta" style list into canonical
// weekday names, dropping anything unrecognised.
func ParseDays(list string) []string {
	if strings.TrimSpace(list) == "" {
		return []string{}
	}
	normalized := strings.ReplaceAll(fold.String(list), " e ", ",")
	normalized = strings.ReplaceAll(normalized, ";", ",")
	days := []string{}
	seen := map[string]struct{}{}
	for _, part := range strings.Split(normalized, ",") {
		day, ok := window.ParseWeekday(part)
		if !ok {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	return days
}

// OutputName inserts a _DD_MM suffix before the extension of name.
func OutputName(name string, now time.Time) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultFile
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".json"
	}
	return fmt.Sprintf("%s_%s%s", base, now.Format("02_01"), ext)
}
