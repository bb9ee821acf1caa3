package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/procedure-runner/internal/extract"
)

// DefaultTimeout bounds every page operation that has no explicit timeout.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when an operation gives up waiting on the page.
var ErrTimeout = errors.New("driver: timeout")

// Locator is a Playwright selector.
type Locator string

// Nth narrows the locator to its i-th match, counting from zero.
func (l Locator) Nth(i int) Locator {
	return Locator(fmt.Sprintf("%s >> nth=%d", l, i))
}

// Then chains a selector evaluated inside the current matches.
func (l Locator) Then(selector string) Locator {
	return Locator(fmt.Sprintf("%s >> %s", l, selector))
}

func (l Locator) String() string { return string(l) }

// QueryKind names the structured page reads Evaluate supports.
type QueryKind int

const (
	QueryBodyText QueryKind = iota
	QueryModalVisible
	QueryQuestions
	QueryExecutionRow
	QueryOperator
)

func (k QueryKind) String() string {
	switch k {
	case QueryBodyText:
		return "body-text"
	case QueryModalVisible:
		return "modal-visible"
	case QueryQuestions:
		return "questions"
	case QueryExecutionRow:
		return "execution-row"
	case QueryOperator:
		return "operator"
	default:
		return fmt.Sprintf("query(%d)", int(k))
	}
}

// Query describes a structured read. Target is used by QueryModalVisible,
// Name by QueryOperator.
type Query struct {
	Kind   QueryKind
	Target Locator
	Name   string
}

// Result carries the field matching the query kind.
type Result struct {
	Text      string
	Visible   bool
	Questions []string
	Row       extract.ExecutionRow
	// Operator is the index of the matching operator link, -1 when absent.
	Operator int
}

// PageDriver is the browser capability used by the workflow engine. Every
// call fails with an error instead of blocking past its timeout.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor reports false when loc is not visible within timeout.
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (bool, error)
	Click(ctx context.Context, loc Locator) error
	Fill(ctx context.Context, loc Locator, value string) error
	// Blur moves focus away from loc so the portal runs its field validation.
	Blur(ctx context.Context, loc Locator) error
	SelectOption(ctx context.Context, loc Locator, value string) error
	ReadText(ctx context.Context, loc Locator) (string, error)
	Evaluate(ctx context.Context, q Query) (Result, error)
	Screenshot(ctx context.Context, name string) (string, error)
}

// Dumper is implemented by drivers able to save the current page for
// offline inspection.
type Dumper interface {
	Dump(ctx context.Context, name string) (string, error)
}

// EvaluateHTML answers every markup based query from a page snapshot.
func EvaluateHTML(html string, q Query) (Result, error) {
	doc, err := extract.Parse(html)
	if err != nil {
		return Result{}, err
	}
	switch q.Kind {
	case QueryBodyText:
		return Result{Text: extract.BodyText(doc), Operator: -1}, nil
	case QueryQuestions:
		return Result{Questions: extract.Questions(doc), Operator: -1}, nil
	case QueryExecutionRow:
		return Result{Row: extract.FindExecutionRow(doc), Operator: -1}, nil
	case QueryOperator:
		index, _ := extract.OperatorIndex(doc, q.Name)
		return Result{Operator: index}, nil
	default:
		return Result{}, fmt.Errorf("driver: %s cannot be answered from markup", q.Kind)
	}
}
