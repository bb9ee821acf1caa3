package progress

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/kingrea/procedure-runner/internal/extract"
	"github.com/kingrea/procedure-runner/internal/workflow/window"
)

// MarkdownSink rewrites a human readable summary after every update.
type MarkdownSink struct {
	path     string
	location *time.Location
}

// NewMarkdownSink writes the summary to path, rendering times in loc (local
// time when nil).
func NewMarkdownSink(path string, loc *time.Location) *MarkdownSink {
	if loc == nil {
		loc = time.Local
	}
	return &MarkdownSink{path: path, location: loc}
}

// Path returns the summary file.
func (s *MarkdownSink) Path() string { return s.path }

// Persist renders snap and replaces the summary file.
func (s *MarkdownSink) Persist(snap Snapshot) error {
	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, snap, s.location); err != nil {
		return err
	}
	fmt.Fprintf(&buf, "\n---\n_File: %s_\n", s.path)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("progress: ensure summary dir: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("progress: write summary: %w", err)
	}
	return nil
}

type queueEntry struct {
	Name  string
	Skip  bool
	Slots string
}

// summaryTmpl is parsed once. RenderMarkdown clones it to bind the time
// location of each call.
var summaryTmpl = template.Must(template.New("summary").Funcs(summaryFuncs(time.Local)).Parse(summaryTemplate))

func summaryFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"stamp":    func(t time.Time) string { return t.In(loc).Format("02/01/2006 15:04:05") },
		"clock":    func(t time.Time) string { return t.In(loc).Format("15:04:05") },
		"elapsed":  formatElapsed,
		"seconds":  func(d time.Duration) int { return int(d.Round(time.Second) / time.Second) },
		"sessions": formatSessions,
		"total":    func() int { return TotalSteps },
	}
}

// RenderMarkdown writes the summary document for snap.
func RenderMarkdown(buf *bytes.Buffer, snap Snapshot, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	tmpl, err := summaryTmpl.Clone()
	if err != nil {
		return fmt.Errorf("progress: clone summary template: %w", err)
	}
	tmpl.Funcs(summaryFuncs(loc))
	data := struct {
		Snapshot
		Queue []queueEntry
	}{Snapshot: snap, Queue: groupQueue(snap.Remaining)}
	if err := tmpl.Execute(buf, data); err != nil {
		return fmt.Errorf("progress: render summary: %w", err)
	}
	return nil
}

func groupQueue(refs []UnitRef) []queueEntry {
	var order []string
	grouped := map[string]*queueEntry{}
	slots := map[string][]string{}
	for _, ref := range refs {
		key := fmt.Sprintf("%d", ref.RecordIndex)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
			grouped[key] = &queueEntry{Name: ref.Name, Skip: ref.Skip}
		}
		slots[key] = append(slots[key], ref.Slot)
	}
	out := make([]queueEntry, 0, len(order))
	for _, key := range order {
		entry := grouped[key]
		list := slots[key]
		sort.SliceStable(list, func(i, j int) bool { return slotRank(list[i]) < slotRank(list[j]) })
		entry.Slots = strings.Join(list, ", ")
		out = append(out, *entry)
	}
	return out
}

var weekRank = func() map[string]int {
	ranks := make(map[string]int)
	for i, day := range window.Weekdays() {
		ranks[day] = i
	}
	return ranks
}()

func slotRank(slot string) int {
	if r, ok := weekRank[slot]; ok {
		return r
	}
	var day int
	if _, err := fmt.Sscanf(slot, "%d", &day); err == nil {
		return 7 + day
	}
	return 100
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

func formatSessions(q *extract.Quantities) string {
	if q == nil || !q.Known() {
		return ""
	}
	n := func(v *int) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%d", *v)
	}
	out := fmt.Sprintf("Requested: %s | Authorized: %s | Completed: %s", n(q.Requested), n(q.Authorized), n(q.Completed))
	if q.Authorized != nil && q.Completed != nil {
		out += fmt.Sprintf(" | Remaining: %d", *q.Authorized-*q.Completed)
	}
	return out
}

const summaryTemplate = `# Automation Live Summary
Run: {{.RunID}}
Started: {{stamp .StartedAt}}
Last Updated: {{stamp .UpdatedAt}}
Elapsed Time: {{elapsed .Elapsed}}

## Current Status
{{with .Current -}}
🔄 **Currently Processing**: {{.Name}} - {{.Slot}}{{if .Skip}} (skip mode){{end}}{{if gt .Attempt 1}} (attempt {{.Attempt}}){{end}}
   Step {{.Step}}/{{total}}{{with .LastLabel}} - {{.}}{{end}}
   Started: {{clock .StartedAt}}
{{- with sessions .Quantities}}
   📊 **Authorization Status:** {{.}}
{{- end}}
{{- with .LastError}}
   ⚠️ Last error: {{.}}
{{- end}}
{{else if .Finished -}}
🏁 **Run finished**
{{else -}}
✅ **Idle - Waiting for next patient**
{{end}}
## Progress Overview
- Total Procedures: {{.Total}}
- Completed: {{len .Completed}} ✅
- Failed: {{len .Failed}} ❌
- Skipped: {{len .Skipped}} ⏭️
- Remaining: {{len .Remaining}} ⏳

## Completed Patients
{{range .Completed -}}
✅ **{{.Name}}** - {{.Slot}}
   • Steps: {{.Steps}}/{{total}}{{with .RegistrationNumber}} | Registration: {{.}}{{end}}{{with .RealizationDate}} | Realization: {{.}}{{end}} | Duration: {{seconds .Duration}}s
{{- with sessions .Quantities}}
   • 📊 Sessions: {{.}}
{{- end}}

{{else -}}
_None yet_
{{end}}
## Failed Patients
{{range .Failed -}}
❌ **{{.Name}}** - {{.Slot}} - Failed at Step {{.Steps}}{{with .LastLabel}}: {{.}}{{end}}
{{- with .Reason}}
   Error: {{.}}
{{- end}}
{{else -}}
_None yet_
{{end}}
## Skipped Patients
{{range .Skipped -}}
⏭️ **{{.Name}}** - {{.Slot}} - Reason: {{.Reason}}
{{else -}}
_None yet_
{{end}}
## Currently in Queue
{{range .Queue -}}
⏳ **{{.Name}}**{{if .Skip}} [SKIP]{{end}} - {{.Slots}}
{{else -}}
_Queue empty_
{{end -}}
`
