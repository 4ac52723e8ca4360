package analyze

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
)

// statusAliases collapse the decorated workflow names of the remote database
// onto canonical lowercase statuses.
var statusAliases = map[string]string{
	"Duplicate":  "duplicate",
	"1 Canceled": "canceled",
	"2 Notes":    "notes",
	"3 To Do":    "to do",
	"4 Doing":    "doing",
	"5 Paused":   "paused",
	"6 Done 🙌":   "done",
	"Canceled":   "canceled",
	"Notes":      "notes",
	"To Do":      "to do",
	"Doing":      "doing",
	"Paused":     "paused",
	"Done":       "done",
}

var knownStatuses = map[string]bool{
	"to do": true, "doing": true, "done": true, "canceled": true,
	"duplicate": true, "notes": true, "paused": true,
}

// NormalizeStatus maps a raw status label onto its canonical lowercase form.
func NormalizeStatus(raw string) string {
	if alias, ok := statusAliases[raw]; ok {
		return alias
	}
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return "unknown"
	}
	return status
}

// KnownStatus reports whether status is one of the canonical workflow states.
func KnownStatus(status string) bool {
	return knownStatuses[status]
}

// PriorityScore ranks a priority label best-first; unknown labels rank last.
func PriorityScore(raw string) int {
	if raw == "" {
		raw = "Note"
	}
	if score, ok := priorityScores[raw]; ok {
		return score
	}
	return 5
}

// priorityScores order priorities best-first; unknown priorities sort last.
var priorityScores = map[string]int{
	"Critical": 0, "Critical (48hrs)": 0,
	"High": 1, "High (1wk)": 1,
	"Medium": 2, "Medium (2wks)": 2,
	"Low": 3, "Low (>month)": 3,
	"Note": 4,
}

// taskView is a record plus the derived fields the digest sections share.
type taskView struct {
	store.TaskRecord
	status        string
	priorityScore int
	due           time.Time
	created       time.Time
	isProject     bool
}

// AnalyzerConfig carries the dependencies of an Analyzer.
type AnalyzerConfig struct {
	FilterTags           []string
	IncludeUncategorized bool
	Logger               *zap.Logger
}

// Analyzer produces the plain-text digest of the cached table.
type Analyzer struct {
	filterTags           []string
	includeUncategorized bool
	logger               *zap.Logger
}

// NewAnalyzer returns a ready analyzer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		filterTags:           cfg.FilterTags,
		includeUncategorized: cfg.IncludeUncategorized,
		logger:               logger,
	}
}

// ErrEmptyCache signals that there is nothing to analyze yet.
var ErrEmptyCache = errors.New("cache is empty")

// Digest renders the analysis text for the given cache snapshot.
func (a *Analyzer) Digest(records []store.TaskRecord, now time.Time) (string, error) {
	if len(records) == 0 {
		return "", ErrEmptyCache
	}

	views := a.views(records)
	if len(views) == 0 {
		return "", ErrEmptyCache
	}
	a.reportAvailability(records)

	var out strings.Builder
	banner(&out, "THIS WEEK'S WORKFLOW")
	a.weeklyFocus(&out, views, now)

	banner(&out, "Active Projects (Containers)")
	a.activeProjects(&out, views)

	banner(&out, "Task Statistics")
	a.summary(&out, views)

	banner(&out, "Backlog Analysis")
	a.overdue(&out, views, now)
	a.highPriority(&out, views)
	a.stagnant(&out, views)

	if a.includeUncategorized {
		banner(&out, "Unclassified / Other Tasks")
		a.uncategorized(&out, views)
	}

	return out.String(), nil
}

// views normalizes records and applies the tag filter.
func (a *Analyzer) views(records []store.TaskRecord) []taskView {
	views := make([]taskView, 0, len(records))
	for _, record := range records {
		if !a.matchesFilter(record) {
			continue
		}
		views = append(views, newView(record))
	}
	if len(a.filterTags) > 0 {
		a.logger.Info("filtered tasks by tags",
			zap.Strings("tags", a.filterTags),
			zap.Int("kept", len(views)),
			zap.Int("total", len(records)))
	}
	return views
}

func (a *Analyzer) matchesFilter(record store.TaskRecord) bool {
	if len(a.filterTags) == 0 {
		return true
	}
	tags := make(map[string]bool, len(record.Tags)+len(record.ParentTags))
	for _, tag := range record.Tags {
		tags[tag] = true
	}
	for _, tag := range record.ParentTags {
		tags[tag] = true
	}
	for _, wanted := range a.filterTags {
		if tags[wanted] {
			return true
		}
	}
	return false
}

func newView(record store.TaskRecord) taskView {
	return taskView{
		TaskRecord:    record,
		status:        NormalizeStatus(record.Status),
		priorityScore: PriorityScore(record.Priority),
		due:           record.DueAt(),
		created:       record.CreatedAt(),
		isProject:     len(record.ChildrenUIDs) > 0,
	}
}

func (a *Analyzer) reportAvailability(records []store.TaskRecord) {
	var hasStatus, hasPriority, hasDue bool
	for _, record := range records {
		hasStatus = hasStatus || record.Status != ""
		hasPriority = hasPriority || record.Priority != ""
		hasDue = hasDue || record.Due != ""
	}
	if !hasStatus {
		a.logger.Warn("status data is missing; workflow analysis will be generic")
	}
	if !hasPriority {
		a.logger.Warn("priority data is missing; treating all tasks as normal priority")
	}
	if !hasDue {
		a.logger.Warn("due date data is missing; overdue analysis will be empty")
	}
}

func (v taskView) active() bool {
	return v.status == "to do" || v.status == "doing"
}

func (a *Analyzer) weeklyFocus(out *strings.Builder, views []taskView, now time.Time) {
	nextWeek := now.AddDate(0, 0, 7)

	var actionable []taskView
	for _, view := range views {
		if view.active() && !view.isProject {
			actionable = append(actionable, view)
		}
	}

	var immediate, dueWeek, backlog []taskView
	inImmediate := map[string]bool{}
	for _, view := range actionable {
		if !view.due.IsZero() && (view.due.Before(now) || view.status == "doing") {
			immediate = append(immediate, view)
			inImmediate[view.UID] = true
		}
	}
	sort.SliceStable(immediate, func(i, j int) bool {
		if immediate[i].priorityScore != immediate[j].priorityScore {
			return immediate[i].priorityScore < immediate[j].priorityScore
		}
		return immediate[i].due.Before(immediate[j].due)
	})

	inDueWeek := map[string]bool{}
	for _, view := range actionable {
		if inImmediate[view.UID] || view.due.IsZero() {
			continue
		}
		if !view.due.Before(now) && !view.due.After(nextWeek) {
			dueWeek = append(dueWeek, view)
			inDueWeek[view.UID] = true
		}
	}
	sort.SliceStable(dueWeek, func(i, j int) bool {
		if !dueWeek[i].due.Equal(dueWeek[j].due) {
			return dueWeek[i].due.Before(dueWeek[j].due)
		}
		return dueWeek[i].priorityScore < dueWeek[j].priorityScore
	})

	for _, view := range actionable {
		if !inImmediate[view.UID] && !inDueWeek[view.UID] {
			backlog = append(backlog, view)
		}
	}
	sort.SliceStable(backlog, func(i, j int) bool {
		iDated, jDated := !backlog[i].due.IsZero(), !backlog[j].due.IsZero()
		if iDated != jDated {
			return iDated
		}
		if iDated && !backlog[i].due.Equal(backlog[j].due) {
			return backlog[i].due.Before(backlog[j].due)
		}
		if backlog[i].priorityScore != backlog[j].priorityScore {
			return backlog[i].priorityScore < backlog[j].priorityScore
		}
		return backlog[i].created.Before(backlog[j].created)
	})
	if len(backlog) > 15 {
		backlog = backlog[:15]
	}

	section(out, "1. IMMEDIATE ACTION (Overdue & Dated Active)")
	writeTaskTable(out, immediate, "No immediate overdue or dated active tasks.")

	section(out, fmt.Sprintf("2. DUE BY NEXT WEEK (By %s)", nextWeek.Format("2006-01-02")))
	writeTaskTable(out, dueWeek, "No additional tasks due by next week.")

	section(out, "3. HIGH PRIORITY BACKLOG (Undated Active & Future)")
	writeTaskTable(out, backlog, "No backlog items.")
}

func (a *Analyzer) activeProjects(out *strings.Builder, views []taskView) {
	var projects []taskView
	for _, view := range views {
		if view.isProject && view.active() {
			projects = append(projects, view)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].priorityScore < projects[j].priorityScore
	})
	if len(projects) == 0 {
		out.WriteString("No active major projects found.\n")
		return
	}
	out.WriteString("These are large containers/projects currently active:\n")
	writeTaskTable(out, projects, "")
}

func (a *Analyzer) summary(out *strings.Builder, views []taskView) {
	var done, doing, todo int
	for _, view := range views {
		switch view.status {
		case "done":
			done++
		case "doing":
			doing++
		case "to do":
			todo++
		}
	}
	fmt.Fprintf(out, "Total Database Items: %d\n", len(views))
	fmt.Fprintf(out, "├─ Completed: %d\n", done)
	fmt.Fprintf(out, "├─ In Progress: %d\n", doing)
	fmt.Fprintf(out, "└─ To Do: %d\n", todo)
}

func (a *Analyzer) overdue(out *strings.Builder, views []taskView, now time.Time) {
	var overdue []taskView
	for _, view := range views {
		if view.active() && !view.isProject && !view.due.IsZero() && view.due.Before(now) {
			overdue = append(overdue, view)
		}
	}
	if len(overdue) == 0 {
		return
	}
	section(out, fmt.Sprintf("Overdue Tasks (%d)", len(overdue)))
	writeTaskTable(out, overdue, "")
}

func (a *Analyzer) highPriority(out *strings.Builder, views []taskView) {
	var urgent []taskView
	for _, view := range views {
		if view.active() && !view.isProject && view.priorityScore <= 1 {
			urgent = append(urgent, view)
		}
	}
	if len(urgent) == 0 {
		return
	}
	section(out, "Critical/High Priority Actions (All)")
	writeTaskTable(out, urgent, "")
}

func (a *Analyzer) stagnant(out *strings.Builder, views []taskView) {
	var pending []taskView
	for _, view := range views {
		if view.active() && !view.isProject {
			pending = append(pending, view)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].created.Before(pending[j].created)
	})
	if len(pending) > 5 {
		pending = pending[:5]
	}
	section(out, "Oldest Stagnant Tasks")
	writeTaskTable(out, pending, "No pending tasks.")
}

func (a *Analyzer) uncategorized(out *strings.Builder, views []taskView) {
	var other []taskView
	for _, view := range views {
		if !knownStatuses[view.status] {
			other = append(other, view)
		}
	}
	if len(other) == 0 {
		out.WriteString("All items are properly classified into standard statuses.\n")
		return
	}
	out.WriteString("These items have a Status that is not recognized (or missing):\n")
	writeTaskTable(out, other, "")
	fmt.Fprintf(out, "\nTotal Unclassified Items: %d\n", len(other))
}

func banner(out *strings.Builder, title string) {
	fmt.Fprintf(out, "\n%s\n%s\n%s\n\n", strings.Repeat("=", 80), title, strings.Repeat("=", 80))
}

func section(out *strings.Builder, title string) {
	fmt.Fprintf(out, "\n%s\n%s\n%s\n", strings.Repeat("-", 40), title, strings.Repeat("-", 40))
}

const nameColumnWidth = 47

func writeTaskTable(out *strings.Builder, views []taskView, emptyMessage string) {
	if len(views) == 0 {
		if emptyMessage != "" {
			out.WriteString(emptyMessage + "\n")
		}
		return
	}

	table := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "NID\tName\tStatus\tPriority\tDue")
	for _, view := range views {
		due := "None"
		if view.Due != "" {
			due = view.Due
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
			view.DirName(), truncate(displayName(view)), view.status, view.Priority, due)
	}
	table.Flush()
}

func displayName(view taskView) string {
	if view.Name == "" {
		return "Untitled"
	}
	return view.Name
}

func truncate(value string) string {
	runes := []rune(value)
	if len(runes) <= nameColumnWidth {
		return value
	}
	return string(runes[:nameColumnWidth]) + "..."
}
