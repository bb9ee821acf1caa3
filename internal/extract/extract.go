package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	guidesRowsSelector = `[id="Form:guides:guides_grid"] tr`
	tooltipSelector    = `[id^="Form:guides:guides_grid:"][id$="content"]`
	operatorSelector   = `[id="Zoom_Professional:providers"] a.link`

	// ExecutionMarker is the status text of an authorization being consumed.
	ExecutionMarker = "Em Execução"

	statusCell = 4
	actionCell = 5
)

var (
	requestedPattern  = regexp.MustCompile(`Quant Solic:\s*(\d+)`)
	authorizedPattern = regexp.MustCompile(`Quant Aut:\s*(\d+)`)
	completedPattern  = regexp.MustCompile(`Quant Realiz:\s*(\d+)`)
)

// Quantities are the session counts shown in a guide's tooltip.
type Quantities struct {
	Requested  *int `json:"requested,omitempty"`
	Authorized *int `json:"authorized,omitempty"`
	Completed  *int `json:"completed,omitempty"`
}

// Known reports whether any count was read.
func (q Quantities) Known() bool {
	return q.Requested != nil || q.Authorized != nil || q.Completed != nil
}

func (q Quantities) String() string {
	return fmt.Sprintf("requested=%s authorized=%s completed=%s",
		formatCount(q.Requested), formatCount(q.Authorized), formatCount(q.Completed))
}

func formatCount(v *int) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(*v)
}

// ExecutionRow locates the guide row in execution. Row is the index of the
// row among every tr of the guides grid, header included.
type ExecutionRow struct {
	Found      bool
	Row        int
	Quantities Quantities
}

// Parse builds a document from page markup.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extract: parse page: %w", err)
	}
	return doc, nil
}

// FindExecutionRow returns the first grid row whose status cell carries the
// execution marker and whose action cell has a second link to click.
func FindExecutionRow(doc *goquery.Document) ExecutionRow {
	result := ExecutionRow{}
	doc.Find(guidesRowsSelector).EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() <= actionCell {
			return true
		}
		if !strings.Contains(cells.Eq(statusCell).Text(), ExecutionMarker) {
			return true
		}
		if cells.Eq(actionCell).Find("a").Length() < 2 {
			return true
		}
		result = ExecutionRow{
			Found:      true,
			Row:        i,
			Quantities: tooltipQuantities(doc, i-1),
		}
		return false
	})
	return result
}

// The grid header occupies row zero so tooltips are numbered from the first
// data row.
func tooltipQuantities(doc *goquery.Document, dataRow int) Quantities {
	marker := fmt.Sprintf(":%d:", dataRow)
	var q Quantities
	doc.Find(tooltipSelector).EachWithBreak(func(_ int, tip *goquery.Selection) bool {
		id, _ := tip.Attr("id")
		if !strings.Contains(id, marker) {
			return true
		}
		text := tip.Text()
		q.Requested = matchCount(requestedPattern, text)
		q.Authorized = matchCount(authorizedPattern, text)
		q.Completed = matchCount(completedPattern, text)
		return false
	})
	return q
}

func matchCount(pattern *regexp.Regexp, text string) *int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// Questions returns the trimmed text of every h4 on the page, in order.
func Questions(doc *goquery.Document) []string {
	var out []string
	doc.Find("h4").Each(func(_ int, h *goquery.Selection) {
		out = append(out, strings.TrimSpace(h.Text()))
	})
	return out
}

// OperatorIndex finds the operator link whose trimmed text equals name,
// ignoring case. The index counts links of the operator list.
func OperatorIndex(doc *goquery.Document, name string) (int, bool) {
	target := strings.TrimSpace(name)
	if target == "" {
		return -1, false
	}
	index := -1
	doc.Find(operatorSelector).EachWithBreak(func(i int, link *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(link.Text()), target) {
			index = i
			return false
		}
		return true
	})
	return index, index >= 0
}

// BodyText returns the text content of the page body.
func BodyText(doc *goquery.Document) string {
	return doc.Find("body").Text()
}
