// Package catalog joins the test listings with the user's results.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/mocktest/internal/model"
)

// Action is what selecting a catalog entry does.
type Action int

const (
	// ActionStart opens the instructions for a test not yet taken.
	ActionStart Action = iota
	// ActionPreview opens the graded review of the latest result.
	ActionPreview
)

func (a Action) String() string {
	if a == ActionPreview {
		return "preview"
	}
	return "start"
}

// Entry is one test with its latest result, if any.
type Entry struct {
	Test   model.MockTest
	Result *model.ResultSummary
}

// Action returns ActionPreview when the test has a result.
func (e Entry) Action() Action {
	if e.Result != nil {
		return ActionPreview
	}
	return ActionStart
}

// Source provides the two listings the catalog joins.
type Source interface {
	ListTests(ctx context.Context, kind model.TestKind) ([]model.MockTest, error)
	ResultsSummary(ctx context.Context) ([]model.ResultSummary, error)
}

// Catalog loads test listings.
type Catalog struct {
	src Source
}

// New returns a catalog reading from src.
func New(src Source) *Catalog {
	return &Catalog{src: src}
}

// Load fetches the tests of kind and the results summary and joins them.
// Any fetch failure yields an empty catalog together with the error.
func (c *Catalog) Load(ctx context.Context, kind model.TestKind) ([]Entry, error) {
	tests, err := c.src.ListTests(ctx, kind)
	if err != nil {
		slog.Warn("failed to list tests", "kind", kind, "error", err)
		return nil, fmt.Errorf("list %s tests: %w", kind, err)
	}
	results, err := c.src.ResultsSummary(ctx)
	if err != nil {
		slog.Warn("failed to load results summary", "error", err)
		return nil, fmt.Errorf("load results: %w", err)
	}
	return Join(tests, results), nil
}

// Join pairs each test with its most recent result. results must be in the
// backend's newest-first order; when submitted_at is set on both rows the
// later one wins regardless of order.
func Join(tests []model.MockTest, results []model.ResultSummary) []Entry {
	latest := make(map[int64]*model.ResultSummary, len(results))
	for i := range results {
		r := &results[i]
		prev, ok := latest[r.MockTestID]
		if !ok {
			latest[r.MockTestID] = r
			continue
		}
		if !prev.SubmittedAt.IsZero() && !r.SubmittedAt.IsZero() && r.SubmittedAt.After(prev.SubmittedAt.Time) {
			latest[r.MockTestID] = r
		}
	}

	entries := make([]Entry, 0, len(tests))
	for _, t := range tests {
		e := Entry{Test: t}
		if r, ok := latest[t.ID]; ok {
			rc := *r
			e.Result = &rc
		}
		entries = append(entries, e)
	}
	return entries
}
