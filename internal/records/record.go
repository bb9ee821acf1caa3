package records

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kingrea/procedure-runner/internal/workflow/window"
)

// BirthDateLayout is the layout of Record.BirthDate.
const BirthDateLayout = "02/01/2006"

// Record describes one patient and the slots they are attended on.
type Record struct {
	Name            string   `json:"nome" yaml:"nome"`
	Card            string   `json:"carteirinha" yaml:"carteirinha"`
	BirthDate       string   `json:"nascimento" yaml:"nascimento"`
	CPF             string   `json:"cpf" yaml:"cpf"`
	MotherName      string   `json:"nomeDaMae" yaml:"nomeDaMae"`
	ResponsibleName string   `json:"nomeDoTitular" yaml:"nomeDoTitular"`
	Age             *int     `json:"idade,omitempty" yaml:"idade,omitempty"`
	Skip            bool     `json:"skip" yaml:"skip"`
	Operator        string   `json:"professional" yaml:"professional"`
	Weekdays        []string `json:"weekdays" yaml:"weekdays"`
	MonthlyDays     []int    `json:"monthlyDays,omitempty" yaml:"monthlyDays,omitempty"`
}

// Normalized trims and canonicalises a record. The name is required. Birth
// dates written DD-MM-YYYY are rewritten DD/MM/YYYY.
func (r Record) Normalized() (Record, error) {
	r.Name = strings.ToUpper(strings.TrimSpace(r.Name))
	if r.Name == "" {
		return Record{}, errors.New("records: record missing nome")
	}
	r.Card = strings.TrimSpace(r.Card)
	r.BirthDate = strings.ReplaceAll(strings.TrimSpace(r.BirthDate), "-", "/")
	r.CPF = Digits(r.CPF)
	r.MotherName = strings.TrimSpace(r.MotherName)
	r.ResponsibleName = strings.TrimSpace(r.ResponsibleName)
	r.Operator = strings.TrimSpace(r.Operator)
	weekdays := make([]string, 0, len(r.Weekdays))
	seen := make(map[string]struct{}, len(r.Weekdays))
	for _, raw := range r.Weekdays {
		day := strings.TrimSpace(raw)
		if canonical, ok := window.ParseWeekday(day); ok {
			day = canonical
		}
		if day == "" {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		weekdays = append(weekdays, day)
	}
	r.Weekdays = weekdays
	days := make([]int, 0, len(r.MonthlyDays))
	seenDays := make(map[int]struct{}, len(r.MonthlyDays))
	for _, day := range r.MonthlyDays {
		if _, dup := seenDays[day]; dup {
			continue
		}
		seenDays[day] = struct{}{}
		days = append(days, day)
	}
	r.MonthlyDays = days
	return r, nil
}

// Slots lists weekday slots followed by day-of-month slots.
func (r Record) Slots() []string {
	slots := make([]string, 0, len(r.Weekdays)+len(r.MonthlyDays))
	slots = append(slots, r.Weekdays...)
	for _, day := range r.MonthlyDays {
		slots = append(slots, strconv.Itoa(day))
	}
	return slots
}

// AgeAt returns the explicit age when present, otherwise the age derived from
// the birth date on now.
func (r Record) AgeAt(now time.Time) (int, bool) {
	if r.Age != nil {
		return *r.Age, true
	}
	return AgeFromBirthDate(r.BirthDate, now)
}

// AgeFromBirthDate computes completed years between a DD/MM/YYYY birth date
// and now.
func AgeFromBirthDate(birth string, now time.Time) (int, bool) {
	born, err := time.Parse(BirthDateLayout, strings.TrimSpace(birth))
	if err != nil {
		return 0, false
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// Digits strips everything but decimal digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BirthParts splits the birth date into day, month and year strings.
func (r Record) BirthParts() (day, month, year string, err error) {
	parts := strings.Split(strings.TrimSpace(r.BirthDate), "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("records: birth date %q is not DD/MM/YYYY", r.BirthDate)
	}
	return parts[0], parts[1], parts[2], nil
}
