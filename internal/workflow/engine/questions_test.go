package engine

import (
	"testing"
	"time"

	"github.com/kingrea/procedure-runner/internal/records"
)

func TestAnswerQuestion(t *testing.T) {
	age := 41
	rec := records.Record{
		Name:            "ANA SILVA",
		BirthDate:       "05/03/1990",
		CPF:             "123.456.789-01",
		MotherName:      "Maria Aparecida Souza",
		ResponsibleName: "João Pedro Lima",
		Age:             &age,
	}
	now := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		question string
		field    Field
		want     string
	}{
		{"Qual o primeiro nome da mãe?", FieldMotherFirstName, "Maria"},
		{"Qual o ÚLTIMO NOME da Mae?", FieldMotherLastName, "Souza"},
		{"Qual o primeiro nome do titular?", FieldResponsibleFirstName, "João"},
		{"Qual o último nome do titular?", FieldResponsibleLastName, "Lima"},
		{"Informe os três primeiros dígitos do CPF", FieldCPFFirstThree, "123"},
		{"Informe o quarto, quinto e sexto dígitos do CPF", FieldCPFMiddleThree, "456"},
		{"Informe os dois últimos dígitos do CPF", FieldCPFLastTwo, "01"},
		{"Qual a sua idade em anos?", FieldAge, "41"},
		{"Qual o dia de nascimento?", FieldBirthDay, "05"},
		{"Qual o mês de nascimento?", FieldBirthMonth, "03"},
		{"Qual o ano de nascimento?", FieldBirthYear, "1990"},
		{"Qual o nome do seu cachorro?", FieldUnknown, ""},
	}
	for _, tc := range cases {
		got, field := AnswerQuestion(tc.question, rec, now)
		if field != tc.field || got != tc.want {
			t.Fatalf("%q: got (%q, %s), want (%q, %s)", tc.question, got, field, tc.want, tc.field)
		}
	}
}

func TestAnswerMissingDataIsEmpty(t *testing.T) {
	now := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	for field := FieldMotherFirstName; field <= FieldBirthYear; field++ {
		if got := Answer(field, records.Record{}, now); got != "" {
			t.Fatalf("%s: expected empty answer, got %q", field, got)
		}
	}
}

func TestAgeFallsBackToBirthDate(t *testing.T) {
	rec := records.Record{BirthDate: "13/10/1990"}
	got := Answer(FieldAge, rec, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC))
	if got != "35" {
		t.Fatalf("expected 35 the day before the birthday, got %q", got)
	}
}
