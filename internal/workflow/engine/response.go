package engine

import (
	"regexp"

	"github.com/kingrea/procedure-runner/internal/fold"
)

// Response is a known portal message category.
type Response int

const (
	ResponseUnknown Response = iota
	// ResponseCardReleased follows a justified registration without card.
	ResponseCardReleased
	// ResponseCrossCoverageReleased is shown for patients covered by
	// another operator, who need no justification.
	ResponseCrossCoverageReleased
	// ResponseExecutionSucceeded confirms the procedure execution.
	ResponseExecutionSucceeded
)

func (r Response) String() string {
	switch r {
	case ResponseCardReleased:
		return "card-released"
	case ResponseCrossCoverageReleased:
		return "cross-coverage-released"
	case ResponseExecutionSucceeded:
		return "execution-succeeded"
	default:
		return "unknown"
	}
}

// Confirmation reports whether r closes the card registration dialog.
func (r Response) Confirmation() bool {
	return r == ResponseCardReleased || r == ResponseCrossCoverageReleased
}

const (
	phraseCardReleased  = "Registro sem cartão liberado. Justificativa enviada."
	phraseCrossCoverage = "Registro sem cartão liberado para beneficiário de intercambio. Não é necessário informar a justificativa."
	phraseSucceeded     = "realizado com sucesso"
)

var registrationPattern = regexp.MustCompile(`(\d{12})`)

// Classify maps page or dialog text to a response category. Matching ignores
// case, accents and line breaks; the cross-coverage phrase is checked first.
func Classify(text string) Response {
	switch {
	case fold.Contains(text, phraseCrossCoverage):
		return ResponseCrossCoverageReleased
	case fold.Contains(text, phraseCardReleased):
		return ResponseCardReleased
	case fold.Contains(text, phraseSucceeded):
		return ResponseExecutionSucceeded
	default:
		return ResponseUnknown
	}
}

// RegistrationNumber extracts the twelve digit execution number, if any.
func RegistrationNumber(message string) string {
	m := registrationPattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return m[1]
}
