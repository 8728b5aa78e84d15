package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/data"
)

type ExtractOptions struct {
	BooksCollection      string
	CategoriesCollection string
	CategoryField        string
}

// SplitCategories splits on ';' then ',' and returns the trimmed, non-empty names in first
// seen order without duplicates.
func SplitCategories(raw string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, group := range strings.Split(raw, ";") {
		for _, name := range splitTrim(group, ",") {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// CategoryID maps a category name to its document id. The name is path escaped so '/' can
// never split a document path, and distinct names always get distinct ids.
func CategoryID(name string) string {
	id := url.PathEscape(name)
	switch {
	case id == "." || id == "..":
		return strings.ReplaceAll(id, ".", "%2E")
	case strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"):
		// Firestore reserves ids of the form __.*__
		return "%5F" + id[1:]
	}
	return id
}

// ExtractCategories scans every book and writes one document per unique category name.
// Names are compared exactly after trimming, so "C", "C++" and "C#" stay three categories.
func ExtractCategories(ctx context.Context, datasvc data.IService, opts ExtractOptions) ([]model.Category, error) {
	byName := map[string]model.Category{}

	for doc, err := range datasvc.StreamAll(ctx, opts.BooksCollection) {
		if err != nil {
			return nil, fmt.Errorf("streaming %s: %w", opts.BooksCollection, err)
		}

		for _, name := range documentCategories(doc.Fields[opts.CategoryField]) {
			if _, ok := byName[name]; !ok {
				byName[name] = model.Category{ID: CategoryID(name), Name: name}
			}
		}
	}

	categories := make([]model.Category, 0, len(byName))
	for _, c := range byName {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })

	for start := 0; start < len(categories); start += data.MaxBatchWrites {
		end := min(start+data.MaxBatchWrites, len(categories))
		batch := make([]data.Document, 0, end-start)
		for _, c := range categories[start:end] {
			batch = append(batch, data.Document{ID: c.ID, Fields: map[string]any{"name": c.Name}})
		}
		if err := datasvc.CommitBatch(ctx, opts.CategoriesCollection, batch); err != nil {
			return nil, fmt.Errorf("writing categories: %w", err)
		}
	}

	return categories, nil
}

// documentCategories accepts a delimited string or a list whose items are first level segments.
func documentCategories(v any) []string {
	switch value := v.(type) {
	case string:
		return SplitCategories(value)
	case []string:
		return SplitCategories(strings.Join(value, ";"))
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return SplitCategories(strings.Join(parts, ";"))
	default:
		return nil
	}
}
