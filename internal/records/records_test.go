package records

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestFileRepositoryLoadsJSONInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.json")
	payload := `[
  {"nome": " ana silva ", "carteirinha": "0001", "nascimento": "10/03/2015", "cpf": "123.456.789-01",
   "nomeDaMae": "Maria Souza", "nomeDoTitular": "Joao Silva", "skip": false, "professional": "Dra Paula",
   "weekdays": ["segunda", "Monday", "quarta-feira"], "monthlyDays": [15, 15]},
  {"nome": "BRUNO", "skip": true, "weekdays": ["sexta"]}
]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	list, err := NewFileRepository(path).All()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	first := list[0]
	if first.Name != "ANA SILVA" || first.CPF != "12345678901" {
		t.Fatalf("record not normalised: %+v", first)
	}
	if want := []string{"monday", "wednesday", "15"}; !reflect.DeepEqual(first.Slots(), want) {
		t.Fatalf("slots = %v, want %v", first.Slots(), want)
	}
	if !list[1].Skip || list[1].Name != "BRUNO" {
		t.Fatalf("unexpected second record %+v", list[1])
	}
}

func TestParseAcceptsYAMLAndRejectsNamelessRecords(t *testing.T) {
	list, err := Parse([]byte("- nome: carla\n  idade: 7\n  nascimento: 05-02-2018\n  weekdays: [terca]\n"))
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if list[0].Age == nil || *list[0].Age != 7 || list[0].Weekdays[0] != "tuesday" || list[0].BirthDate != "05/02/2018" {
		t.Fatalf("unexpected record %+v", list[0])
	}
	if _, err := Parse([]byte(`[{"nome": "  "}]`)); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := Parse([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestAgeAt(t *testing.T) {
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	rec := Record{BirthDate: "11/06/2015"}
	if age, ok := rec.AgeAt(now); !ok || age != 9 {
		t.Fatalf("expected 9, got %d (%v)", age, ok)
	}
	rec.BirthDate = "10/06/2015"
	if age, _ := rec.AgeAt(now); age != 10 {
		t.Fatalf("expected 10 on birthday, got %d", age)
	}
	explicit := 4
	rec.Age = &explicit
	if age, _ := rec.AgeAt(now); age != 4 {
		t.Fatalf("explicit age should win, got %d", age)
	}
	if _, ok := (Record{BirthDate: "not a date"}).AgeAt(now); ok {
		t.Fatalf("expected unparseable birth date to report no age")
	}
}

func TestConvertCSV(t *testing.T) {
	csvText := "\ufeffNome,Skip,Carteirinha,Nascimento,CPF,Nome da Mãe,Nome do Titular,Dias de atendimento\n" +
		"ana silva,false,0001,10/03/2015,123.456.789-01,Maria,Joao,\"segunta, quarta e sexta\"\n" +
		",,,,,,,\n" +
		"bruno,TRUE,0002,01/01/2020,,Rita,Rita,Sábado\n"
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	list, err := ConvertCSV(strings.NewReader(csvText), "Dra Paula", now)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected blank row dropped, got %d records", len(list))
	}
	ana := list[0]
	if ana.Name != "ANA SILVA" || ana.CPF != "12345678901" || ana.Operator != "Dra Paula" || ana.Skip {
		t.Fatalf("unexpected record %+v", ana)
	}
	if want := []string{"monday", "wednesday", "friday"}; !reflect.DeepEqual(ana.Weekdays, want) {
		t.Fatalf("weekdays = %v, want %v", ana.Weekdays, want)
	}
	if ana.Age == nil || *ana.Age != 10 {
		t.Fatalf("expected computed age 10, got %v", ana.Age)
	}
	if !list[1].Skip || list[1].Weekdays[0] != "saturday" || list[1].MotherName != "Rita" {
		t.Fatalf("unexpected second record %+v", list[1])
	}
}

func TestConvertCSVRequiresNameColumn(t *testing.T) {
	if _, err := ConvertCSV(strings.NewReader("a,b\n1,2\n"), "", time.Now()); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestOutputNameAndSave(t *testing.T) {
	now := time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC)
	if got := OutputName("", now); got != "patients_data_03_06.json" {
		t.Fatalf("unexpected default name %s", got)
	}
	if got := OutputName("out/list.yaml", now); got != "out/list_03_06.yaml" {
		t.Fatalf("unexpected name %s", got)
	}
	path := filepath.Join(t.TempDir(), "nested", OutputName("", now))
	if err := Save(path, []Record{{Name: "ANA", Weekdays: []string{"monday"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	list, err := NewFileRepository(path).All()
	if err != nil || len(list) != 1 || list[0].Name != "ANA" {
		t.Fatalf("round trip failed: %v %+v", err, list)
	}
}
