package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/procedure-runner/internal/fold"
	"github.com/kingrea/procedure-runner/internal/records"
)

// Field is the record attribute a validation question asks for.
type Field int

const (
	FieldUnknown Field = iota
	FieldMotherFirstName
	FieldMotherLastName
	FieldResponsibleFirstName
	FieldResponsibleLastName
	FieldCPFFirstThree
	FieldCPFMiddleThree
	FieldCPFLastTwo
	FieldAge
	FieldBirthDay
	FieldBirthMonth
	FieldBirthYear
)

var fieldNames = map[Field]string{
	FieldUnknown:              "unknown",
	FieldMotherFirstName:      "mother-first-name",
	FieldMotherLastName:       "mother-last-name",
	FieldResponsibleFirstName: "responsible-first-name",
	FieldResponsibleLastName:  "responsible-last-name",
	FieldCPFFirstThree:        "cpf-first-three",
	FieldCPFMiddleThree:       "cpf-middle-three",
	FieldCPFLastTwo:           "cpf-last-two",
	FieldAge:                  "age",
	FieldBirthDay:             "birth-day",
	FieldBirthMonth:           "birth-month",
	FieldBirthYear:            "birth-year",
}

func (f Field) String() string { return fieldNames[f] }

// questionRules is checked in order; the first rule whose fragments all
// appear in the folded question wins.
var questionRules = []struct {
	fragments []string
	field     Field
}{
	{[]string{"primeiro nome", "mae"}, FieldMotherFirstName},
	{[]string{"ultimo nome", "mae"}, FieldMotherLastName},
	{[]string{"primeiro nome", "titular"}, FieldResponsibleFirstName},
	{[]string{"ultimo nome", "titular"}, FieldResponsibleLastName},
	{[]string{"tres primeiros", "cpf"}, FieldCPFFirstThree},
	{[]string{"quarto, quinto e sexto", "cpf"}, FieldCPFMiddleThree},
	{[]string{"dois ultimos", "cpf"}, FieldCPFLastTwo},
	{[]string{"idade", "anos"}, FieldAge},
	{[]string{"dia de nascimento"}, FieldBirthDay},
	{[]string{"mes de nascimento"}, FieldBirthMonth},
	{[]string{"ano de nascimento"}, FieldBirthYear},
}

// ClassifyQuestion maps a question prompt to the field it asks for.
func ClassifyQuestion(question string) Field {
	for _, rule := range questionRules {
		if fold.Contains(question, rule.fragments...) {
			return rule.field
		}
	}
	return FieldUnknown
}

// Answer derives the answer for field from rec. Missing data yields "".
func Answer(field Field, rec records.Record, now time.Time) string {
	switch field {
	case FieldMotherFirstName:
		return firstWord(rec.MotherName)
	case FieldMotherLastName:
		return lastWord(rec.MotherName)
	case FieldResponsibleFirstName:
		return firstWord(rec.ResponsibleName)
	case FieldResponsibleLastName:
		return lastWord(rec.ResponsibleName)
	case FieldCPFFirstThree:
		return digitsRange(rec.CPF, 0, 3)
	case FieldCPFMiddleThree:
		return digitsRange(rec.CPF, 3, 6)
	case FieldCPFLastTwo:
		cpf := records.Digits(rec.CPF)
		if len(cpf) < 2 {
			return ""
		}
		return cpf[len(cpf)-2:]
	case FieldAge:
		if age, ok := rec.AgeAt(now); ok {
			return strconv.Itoa(age)
		}
		return ""
	case FieldBirthDay, FieldBirthMonth, FieldBirthYear:
		day, month, year, err := rec.BirthParts()
		if err != nil {
			return ""
		}
		switch field {
		case FieldBirthDay:
			return day
		case FieldBirthMonth:
			return month
		default:
			return year
		}
	default:
		return ""
	}
}

// AnswerQuestion classifies question and answers it from rec.
func AnswerQuestion(question string, rec records.Record, now time.Time) (string, Field) {
	field := ClassifyQuestion(question)
	return Answer(field, rec, now), field
}

func firstWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

func lastWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

func digitsRange(cpf string, from, to int) string {
	digits := records.Digits(cpf)
	if len(digits) < to {
		return ""
	}
	return digits[from:to]
}
