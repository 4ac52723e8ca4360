package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/tasklenslab/tasklens/internal/config"
	"github.com/tasklenslab/tasklens/internal/notion"
	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
)

// The title property carries the standard name regardless of user renames.
const titleProperty = "Name"

// ContentAPI is the per-record content slice of the API client.
type ContentAPI interface {
	FetchBlockTree(ctx context.Context, blockID string) ([]notion.Block, error)
	ListComments(ctx context.Context, pageID string) ([]notion.Comment, error)
}

// AssemblerConfig carries the dependencies of an Assembler.
type AssemblerConfig struct {
	Client     ContentAPI
	Resolver   *Resolver
	Fetcher    *Fetcher
	Properties config.PropertyNames
	Logger     *zap.Logger
}

// Assembler combines extracted content, resolved relations, comments,
// attachments and flat properties into one normalized record per task.
type Assembler struct {
	client     ContentAPI
	resolver   *Resolver
	fetcher    *Fetcher
	properties config.PropertyNames
	logger     *zap.Logger
}

// NewAssembler validates the configuration and returns a ready assembler.
func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	if cfg.Client == nil {
		return nil, errors.New("content api is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("attachment fetcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		client:     cfg.Client,
		resolver:   cfg.Resolver,
		fetcher:    cfg.Fetcher,
		properties: cfg.Properties,
		logger:     logger,
	}, nil
}

// Assemble builds the task record for one fetched page, driving content
// extraction, comment listing, relation resolution and attachment downloads
// concurrently. Failures of any one part degrade that part to its zero value
// with a warning; assembly itself never fails.
func (a *Assembler) Assemble(ctx context.Context, page notion.Page) store.TaskRecord {
	props := a.properties

	record := store.TaskRecord{
		UID:         page.ID,
		NID:         uniqueIDNumber(page.Properties, props.NID),
		Name:        pageTitle(page.Properties),
		Status:      selectName(page.Properties, props.Status),
		Started:     dateStart(page.Properties, props.Started),
		Completed:   dateStart(page.Properties, props.Completed),
		Due:         dateStart(page.Properties, props.Due),
		Priority:    selectName(page.Properties, props.Priority),
		Created:     page.CreatedTime,
		UpdatedTime: page.LastEditedTime,
		Tags:        multiSelectNames(page.Properties, props.Tags),
		ParentTags:  parentTagNames(page.Properties, props.ParentTags),
	}

	record.ParentUID = firstRelationID(page.Properties, props.ParentItem)
	record.ChildrenUIDs = relationIDs(page.Properties, props.SubItem)
	fileRefs := fileReferences(page.Properties, props.FilesMedia)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		blocks, err := a.client.FetchBlockTree(ctx, page.ID)
		if err != nil {
			a.logger.Warn("content extraction failed, record keeps empty body",
				zap.String("uid", page.ID),
				zap.Error(err))
			return
		}
		record.BodyContent = strings.Join(notion.Flatten(blocks), "\n")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		comments, err := a.client.ListComments(ctx, page.ID)
		if err != nil {
			a.logger.Warn("comment listing failed, record keeps empty comments",
				zap.String("uid", page.ID),
				zap.Error(err))
			return
		}
		record.Comments = flattenComments(comments)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		record.ParentNID = a.resolver.ResolveNID(ctx, record.ParentUID)
		nids := make([]*int64, len(record.ChildrenUIDs))
		for i, childUID := range record.ChildrenUIDs {
			nids[i] = a.resolver.ResolveNID(ctx, childUID)
		}
		record.ChildrenNIDs = nids
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		record.FilesAndMedia = a.fetcher.Fetch(ctx, attachmentDirName(record.NID, page.ID), fileRefs)
	}()

	wg.Wait()
	return record
}

func attachmentDirName(nid *int64, uid string) string {
	if nid != nil {
		return strconv.FormatInt(*nid, 10)
	}
	return uid
}

func pageTitle(properties map[string]notion.Property) string {
	property, ok := properties[titleProperty]
	if !ok || len(property.Title) == 0 {
		return "Untitled"
	}
	var builder strings.Builder
	for _, run := range property.Title {
		builder.WriteString(run.PlainText)
	}
	if builder.Len() == 0 {
		return "Untitled"
	}
	return builder.String()
}

func selectName(properties map[string]notion.Property, name string) string {
	if property, ok := properties[name]; ok && property.Select != nil {
		return property.Select.Name
	}
	return ""
}

func dateStart(properties map[string]notion.Property, name string) string {
	if property, ok := properties[name]; ok && property.Date != nil {
		return property.Date.Start
	}
	return ""
}

func uniqueIDNumber(properties map[string]notion.Property, name string) *int64 {
	if property, ok := properties[name]; ok && property.UniqueID != nil {
		return property.UniqueID.Number
	}
	return nil
}

func firstRelationID(properties map[string]notion.Property, name string) string {
	if property, ok := properties[name]; ok && len(property.Relation) > 0 {
		return property.Relation[0].ID
	}
	return ""
}

func relationIDs(properties map[string]notion.Property, name string) []string {
	property, ok := properties[name]
	if !ok || len(property.Relation) == 0 {
		return nil
	}
	ids := make([]string, 0, len(property.Relation))
	for _, relation := range property.Relation {
		ids = append(ids, relation.ID)
	}
	return ids
}

func fileReferences(properties map[string]notion.Property, name string) []notion.FileRef {
	if property, ok := properties[name]; ok {
		return property.Files
	}
	return nil
}

func multiSelectNames(properties map[string]notion.Property, name string) []string {
	property, ok := properties[name]
	if !ok || len(property.MultiSelect) == 0 {
		return nil
	}
	names := make([]string, 0, len(property.MultiSelect))
	for _, option := range property.MultiSelect {
		names = append(names, option.Name)
	}
	return names
}

// parentTagNames handles both shapes the parent-tags column can take: a
// rollup of multi-select arrays over the parent relation, or a direct
// multi-select. Duplicates collapse keeping first appearance.
func parentTagNames(properties map[string]notion.Property, name string) []string {
	property, ok := properties[name]
	if !ok {
		return nil
	}

	var names []string
	switch property.Type {
	case "rollup":
		if property.Rollup == nil {
			return nil
		}
		for _, item := range property.Rollup.Array {
			if item.Type != "multi_select" {
				continue
			}
			for _, option := range item.MultiSelect {
				names = append(names, option.Name)
			}
		}
	case "multi_select":
		for _, option := range property.MultiSelect {
			names = append(names, option.Name)
		}
	default:
		return nil
	}

	seen := make(map[string]bool, len(names))
	unique := names[:0]
	for _, tag := range names {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		unique = append(unique, tag)
	}
	return unique
}

func flattenComments(comments []notion.Comment) string {
	var lines []string
	for _, comment := range comments {
		if len(comment.RichText) == 0 {
			continue
		}
		lines = append(lines, comment.RichText[0].PlainText)
	}
	return strings.Join(lines, "\n")
}
