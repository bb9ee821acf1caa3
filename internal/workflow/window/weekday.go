package window

import (
	"strings"

	"github.com/kingrea/procedure-runner/internal/fold"
)

// Canonical weekday names, Monday first.
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

var weekOrder = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// weekdayAliases is keyed by folded spelling. Portuguese forms include the
// "-feira" suffix variants and the common "segunta" typo found in the data.
var weekdayAliases = map[string]string{
	"monday":        Monday,
	"mon":           Monday,
	"segunda":       Monday,
	"segunda-feira": Monday,
	"segunda feira": Monday,
	"segunta":       Monday,
	"seg":           Monday,
	"tuesday":       Tuesday,
	"tue":           Tuesday,
	"terca":         Tuesday,
	"terca-feira":   Tuesday,
	"terca feira":   Tuesday,
	"ter":           Tuesday,
	"wednesday":     Wednesday,
	"wed":           Wednesday,
	"quarta":        Wednesday,
	"quarta-feira":  Wednesday,
	"quarta feira":  Wednesday,
	"qua":           Wednesday,
	"thursday":      Thursday,
	"thu":           Thursday,
	"quinta":        Thursday,
	"quinta-feira":  Thursday,
	"quinta feira":  Thursday,
	"qui":           Thursday,
	"friday":        Friday,
	"fri":           Friday,
	"sexta":         Friday,
	"sexta-feira":   Friday,
	"sexta feira":   Friday,
	"sex":           Friday,
	"saturday":      Saturday,
	"sat":           Saturday,
	"sabado":        Saturday,
	"sab":           Saturday,
	"sunday":        Sunday,
	"sun":           Sunday,
	"domingo":       Sunday,
	"dom":           Sunday,
}

// ParseWeekday maps an English or Portuguese weekday spelling to its
// canonical name. Case, accents and surrounding whitespace are ignored.
func ParseWeekday(name string) (string, bool) {
	key := strings.TrimSuffix(fold.String(name), ".")
	canonical, ok := weekdayAliases[key]
	return canonical, ok
}

// Weekdays returns the canonical names in week order.
func Weekdays() []string {
	out := make([]string, len(weekOrder))
	copy(out, weekOrder)
	return out
}
