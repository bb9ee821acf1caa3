package driver

import (
	"errors"
	"testing"
	"time"
)

func TestLocatorChaining(t *testing.T) {
	rows := Locator(`#Form\:guides\:guides_grid tr`)
	got := rows.Nth(3).Then("td").Nth(5).Then("a").Nth(1)
	want := Locator(`#Form\:guides\:guides_grid tr >> nth=3 >> td >> nth=5 >> a >> nth=1`)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEvaluateHTMLDispatchesOnKind(t *testing.T) {
	page := `<body><h4>Qual a sua idade?</h4>
<div id="Zoom_Professional:providers"><a class="link">Dra Paula</a></div></body>`
	res, err := EvaluateHTML(page, Query{Kind: QueryQuestions})
	if err != nil || len(res.Questions) != 1 {
		t.Fatalf("questions: %v %+v", err, res)
	}
	res, err = EvaluateHTML(page, Query{Kind: QueryOperator, Name: "DRA PAULA"})
	if err != nil || res.Operator != 0 {
		t.Fatalf("operator: %v %+v", err, res)
	}
	res, _ = EvaluateHTML(page, Query{Kind: QueryOperator, Name: "Dr. Carol"})
	if res.Operator != -1 {
		t.Fatalf("expected -1 for missing operator, got %d", res.Operator)
	}
	res, _ = EvaluateHTML(page, Query{Kind: QueryExecutionRow})
	if res.Row.Found {
		t.Fatalf("expected no execution row")
	}
	if _, err := EvaluateHTML(page, Query{Kind: QueryModalVisible}); err == nil {
		t.Fatalf("modal visibility needs a live page")
	}
}

func TestArtifactName(t *testing.T) {
	now := time.Date(2025, time.June, 2, 14, 5, 9, 0, time.UTC)
	if got := ArtifactName("error_0001 2/3", now); got != "error_0001_2_3_2025-06-02T14-05-09.000Z" {
		t.Fatalf("unexpected name %s", got)
	}
	if got := ArtifactName("///", now); got != "page_2025-06-02T14-05-09.000Z" {
		t.Fatalf("unexpected fallback name %s", got)
	}
}

func TestWrapKeepsNilAndPrefixesErrors(t *testing.T) {
	if wrap("click", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	err := wrap("click #x", errors.New("detached"))
	if err == nil || err.Error() != "driver: click #x: detached" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestQueryKindString(t *testing.T) {
	if QueryExecutionRow.String() != "execution-row" || QueryKind(42).String() != "query(42)" {
		t.Fatalf("unexpected names")
	}
}
