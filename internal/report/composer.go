package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tasklenslab/tasklens/internal/analyze"
	"github.com/tasklenslab/tasklens/internal/config"
	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
)

// readableExtensions lists attachment types whose text is inlined into reports.
var readableExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".json": true,
	".log": true, ".html": true, ".css": true, ".js": true,
}

// tabularExtensions are excluded from excerpts because they read badly as text.
var tabularExtensions = map[string]bool{
	".csv": true, ".xlsx": true, ".xls": true,
}

const attachmentExcerptLimit = 1000

// ComposerConfig carries the dependencies of a Composer.
type ComposerConfig struct {
	AttachmentDir string
	ReportsDir    string
	Options       config.ReportOptions
	Renderer      PDFRenderer
	Logger        *zap.Logger
}

// Composer turns the cached task table into a PDF status report.
type Composer struct {
	attachmentDir string
	reportsDir    string
	options       config.ReportOptions
	renderer      PDFRenderer
	logger        *zap.Logger
}

// PDFRenderer converts an HTML document to PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// NewComposer validates the configuration and returns a ready composer.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.ReportsDir == "" {
		return nil, fmt.Errorf("reports directory is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("pdf renderer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		attachmentDir: cfg.AttachmentDir,
		reportsDir:    cfg.ReportsDir,
		options:       cfg.Options,
		renderer:      cfg.Renderer,
		logger:        logger,
	}, nil
}

// task is a normalized record plus the group it renders under.
type task struct {
	store.TaskRecord
	status        string
	priorityScore int
	due           time.Time
	completed     time.Time
	parentName    string
}

// Compose builds the report for the given window and writes the PDF into the
// reports directory. It returns the output path.
func (c *Composer) Compose(ctx context.Context, records []store.TaskRecord, window Window) (string, error) {
	tasks, parents := c.prepare(records)
	if len(tasks) == 0 {
		return "", fmt.Errorf("no tasks available for reporting")
	}

	goals := c.selectGoals(tasks, parents, window.End)
	completed := c.selectCompleted(tasks, parents, window)
	inProgress := c.selectInProgress(tasks, parents)
	var uncategorized []task
	if c.options.IncludeUncategorized {
		uncategorized = c.selectUncategorized(tasks)
	}

	data := TemplateData{
		Title:         window.Title,
		PeriodStart:   window.Start.Format("2006-01-02"),
		PeriodEnd:     window.End.Format("2006-01-02"),
		GeneratedOn:   time.Now().Format("2006-01-02"),
		Author:        c.options.Author,
		Goals:         c.sections(goals),
		Completed:     c.sections(completed),
		InProgress:    c.sections(inProgress),
		Uncategorized: c.items(uncategorized),
		StatusChart:   statusBreakdownSVG(goals, completed, inProgress),
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}
	pdf, err := c.renderer.RenderPDF(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render report pdf: %w", err)
	}

	if err := os.MkdirAll(c.reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	outputPath := filepath.Join(c.reportsDir, window.FileName)
	if err := os.WriteFile(outputPath, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	c.logger.Info("report written",
		zap.String("path", outputPath),
		zap.Int("goals", len(goals)),
		zap.Int("completed", len(completed)),
		zap.Int("in_progress", len(inProgress)))
	return outputPath, nil
}

// prepare normalizes records, applies the tag filter, and builds the parent
// lookup structures.
func (c *Composer) prepare(records []store.TaskRecord) ([]task, map[string]bool) {
	nidToName := make(map[string]string, len(records))
	parents := make(map[string]bool)
	tasks := make([]task, 0, len(records))

	for _, record := range records {
		key := nidKey(record.NID)
		if key != "" {
			nidToName[key] = record.Name
			if len(record.ChildrenUIDs) > 0 {
				parents[key] = true
			}
		}
		if !c.matchesFilter(record) {
			continue
		}
		item := task{
			TaskRecord:    record,
			status:        analyze.NormalizeStatus(record.Status),
			priorityScore: analyze.PriorityScore(record.Priority),
			due:           record.DueAt(),
			completed:     record.CompletedAt(),
		}
		// Done tasks without an explicit completion date fall back to the
		// last edit time so period filtering stays predictable.
		if item.status == "done" && item.completed.IsZero() {
			item.completed = record.UpdatedAt()
		}
		tasks = append(tasks, item)
	}

	for i := range tasks {
		tasks[i].parentName = nidToName[nidKey(tasks[i].ParentNID)]
	}
	return tasks, parents
}

func (c *Composer) matchesFilter(record store.TaskRecord) bool {
	if len(c.options.FilterTags) == 0 {
		return true
	}
	for _, wanted := range c.options.FilterTags {
		for _, tag := range record.Tags {
			if tag == wanted {
				return true
			}
		}
	}
	return false
}

// selectGoals picks the To Do section. Long lists are trimmed to items that
// are due within two weeks or carry critical/high priority.
func (c *Composer) selectGoals(tasks []task, parents map[string]bool, end time.Time) []task {
	var todos []task
	for _, item := range tasks {
		if item.status == "to do" && !c.emptyContainer(item, parents) {
			todos = append(todos, item)
		}
	}

	if len(todos) > 15 {
		cutoff := end.AddDate(0, 0, 14)
		trimmed := todos[:0]
		for _, item := range todos {
			dueSoon := !item.due.IsZero() && !item.due.After(cutoff)
			if dueSoon || item.priorityScore <= 1 {
				trimmed = append(trimmed, item)
			}
		}
		todos = trimmed
	}

	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].parentName != todos[j].parentName {
			return todos[i].parentName < todos[j].parentName
		}
		if todos[i].priorityScore != todos[j].priorityScore {
			return todos[i].priorityScore < todos[j].priorityScore
		}
		return beforeWithZerosLast(todos[i].due, todos[j].due)
	})
	return todos
}

func (c *Composer) selectCompleted(tasks []task, parents map[string]bool, window Window) []task {
	var completed []task
	for _, item := range tasks {
		if item.status != "done" || item.completed.IsZero() {
			continue
		}
		if item.completed.Before(window.Start) || item.completed.After(window.End) {
			continue
		}
		if c.emptyContainer(item, parents) {
			continue
		}
		completed = append(completed, item)
	}
	sort.SliceStable(completed, func(i, j int) bool {
		if completed[i].parentName != completed[j].parentName {
			return completed[i].parentName < completed[j].parentName
		}
		return completed[i].completed.After(completed[j].completed)
	})
	return completed
}

func (c *Composer) selectInProgress(tasks []task, parents map[string]bool) []task {
	var doing []task
	for _, item := range tasks {
		if item.status != "doing" || c.emptyContainer(item, parents) {
			continue
		}
		if item.parentName == "" {
			item.parentName = "General / No Project"
		}
		doing = append(doing, item)
	}
	sort.SliceStable(doing, func(i, j int) bool {
		if doing[i].parentName != doing[j].parentName {
			return doing[i].parentName < doing[j].parentName
		}
		return doing[i].priorityScore < doing[j].priorityScore
	})
	return doing
}

func (c *Composer) selectUncategorized(tasks []task) []task {
	var other []task
	for _, item := range tasks {
		if !analyze.KnownStatus(item.status) {
			other = append(other, item)
		}
	}
	return other
}

// emptyContainer reports whether item is a parent task with no body of its
// own; such containers only add noise to the report.
func (c *Composer) emptyContainer(item task, parents map[string]bool) bool {
	key := nidKey(item.NID)
	if key == "" || !parents[key] {
		return false
	}
	if !c.options.IncludeBodyContent {
		return true
	}
	return strings.TrimSpace(item.BodyContent) == ""
}

// sections groups sorted tasks by parent name preserving order. Group
// headers render uppercased like the rest of the report chrome.
func (c *Composer) sections(tasks []task) []TemplateSection {
	var sections []TemplateSection
	for _, item := range tasks {
		group := strings.ToUpper(item.parentName)
		if len(sections) == 0 || sections[len(sections)-1].Group != group {
			sections = append(sections, TemplateSection{Group: group})
		}
		last := &sections[len(sections)-1]
		last.Tasks = append(last.Tasks, TemplateTask{
			Name: displayName(item),
			Body: c.taskBody(item),
		})
	}
	return sections
}

func (c *Composer) items(tasks []task) []TemplateTask {
	items := make([]TemplateTask, 0, len(tasks))
	for _, item := range tasks {
		items = append(items, TemplateTask{Name: displayName(item)})
	}
	return items
}

func (c *Composer) taskBody(item task) string {
	body := ""
	if c.options.IncludeBodyContent {
		body = strings.TrimSpace(item.BodyContent)
		if max := c.options.BodyContentMaxLines; max > 0 && body != "" {
			lines := strings.Split(body, "\n")
			if len(lines) > max {
				lines = append(lines[:max], "... (Truncated)")
				body = strings.Join(lines, "\n")
			}
		}
	}
	return strings.TrimSpace(body + c.attachmentExcerpts(item))
}

// attachmentExcerpts inlines the text of small readable attachments.
func (c *Composer) attachmentExcerpts(item task) string {
	if !c.options.IncludeAttachments || c.attachmentDir == "" || len(item.FilesAndMedia) == 0 {
		return ""
	}
	folder := filepath.Join(c.attachmentDir, item.DirName())
	if _, err := os.Stat(folder); err != nil {
		return ""
	}

	var out strings.Builder
	for _, name := range item.FilesAndMedia {
		ext := strings.ToLower(filepath.Ext(name))
		if tabularExtensions[ext] || !readableExtensions[ext] {
			continue
		}
		file, err := os.Open(filepath.Join(folder, filepath.Base(name)))
		if err != nil {
			continue
		}
		excerpt := make([]byte, attachmentExcerptLimit)
		read, _ := io.ReadFull(file, excerpt)
		file.Close()
		if read == 0 {
			continue
		}
		content := string(excerpt[:read])
		if read == attachmentExcerptLimit {
			content += "... [Truncated]"
		}
		fmt.Fprintf(&out, "\n\n--- Attachment: %s ---\n%s\n", name, content)
	}
	return out.String()
}

func displayName(item task) string {
	if item.Name == "" {
		return "Untitled"
	}
	return item.Name
}

func nidKey(nid *int64) string {
	if nid == nil {
		return ""
	}
	return fmt.Sprintf("%d", *nid)
}

func beforeWithZerosLast(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}
