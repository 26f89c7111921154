package report

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	findings []Finding
	comments []Comment
	profiles []Profile

	findingCalls int
	countCalls   int
	commentCalls int
	profileCalls int

	commentErr error
	profileErr error
}

func (f *fakeSource) FindingsFiltered(ctx context.Context, filter Filter) ([]Finding, error) {
	f.findingCalls++
	var out []Finding
	for _, finding := range f.findings {
		if filter.Matches(finding) {
			out = append(out, finding)
		}
	}
	return out, nil
}

func (f *fakeSource) CountFindings(ctx context.Context) (int, error) {
	f.countCalls++
	return len(f.findings), nil
}

func (f *fakeSource) CommentsForFindings(ctx context.Context, findingIDs []string) ([]Comment, error) {
	f.commentCalls++
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	ids := make(map[string]struct{}, len(findingIDs))
	for _, id := range findingIDs {
		ids[id] = struct{}{}
	}
	var out []Comment
	for _, c := range f.comments {
		if _, ok := ids[c.FindingID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSource) ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Profile
	for _, p := range f.profiles {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func sampleSource() *fakeSource {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id, dept, status, priority string, offset int) Finding {
		return Finding{
			ID:         id,
			Number:     "F-" + id,
			Title:      "Finding " + id,
			Department: dept,
			Status:     status,
			Priority:   priority,
			CreatorID:  "u1",
			AssigneeID: "u2",
			CreatedAt:  base.Add(time.Duration(offset) * time.Hour),
		}
	}
	return &fakeSource{
		findings: []Finding{
			mk("a", "IT", StatusOpen, PriorityHigh, 0),
			mk("b", "IT", StatusInProgress, PriorityCritical, 2),
			mk("c", "IT", StatusClosed, PriorityLow, 1),
			mk("d", "Finance", StatusOpen, PriorityMedium, 3),
			mk("e", "HR", StatusOpen, PriorityLow, 4),
		},
		comments: []Comment{
			{ID: "c1", FindingID: "a", Kind: ActivityComment, Content: "first look", AuthorID: "u2", CreatedAt: base},
			{ID: "c2", FindingID: "a", Kind: ActivityComment, Content: "confirmed", AuthorID: "u3", CreatedAt: base.Add(time.Hour)},
			{ID: "c3", FindingID: "b", Kind: ActivityStatus, OldValue: StatusOpen, NewValue: StatusInProgress, AuthorID: "u1", CreatedAt: base},
		},
		profiles: []Profile{
			{ID: "u1", Name: "Amira Hassan", Department: "Audit"},
			{ID: "u2", Name: "Joao Silva", Department: "IT"},
			{ID: "u3", Name: "Mei Lin", Department: "IT"},
		},
	}
}

func TestCollectFilterScenario(t *testing.T) {
	source := sampleSource()
	agg := NewAggregator(source)

	got, err := agg.Collect(context.Background(), Filter{
		Statuses:    []string{StatusOpen, StatusInProgress},
		Departments: []string{"IT"},
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(got))
	}
	// Newest first.
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	for _, f := range got {
		if f.Department != "IT" {
			t.Errorf("finding %s escaped department filter", f.ID)
		}
		if f.Status != StatusOpen && f.Status != StatusInProgress {
			t.Errorf("finding %s escaped status filter", f.ID)
		}
	}
}

func TestCollectOrdersNewestFirst(t *testing.T) {
	// The fake returns rows in insertion order; Collect must sort them
	// itself rather than relying on the source.
	source := sampleSource()
	agg := NewAggregator(source)

	got, err := agg.Collect(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != len(source.findings) {
		t.Fatalf("expected %d findings, got %d", len(source.findings), len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("findings out of order at %d: %s before %s", i, got[i-1].ID, got[i].ID)
		}
	}
	if got[0].ID != "e" || got[len(got)-1].ID != "a" {
		t.Errorf("unexpected endpoints: first=%s last=%s", got[0].ID, got[len(got)-1].ID)
	}
}

func TestCollectSubsetProperty(t *testing.T) {
	source := sampleSource()
	agg := NewAggregator(source)

	filters := []Filter{
		{Statuses: []string{StatusOpen}},
		{Priorities: []string{PriorityLow, PriorityCritical}},
		{Departments: []string{"Finance", "HR"}},
		{Statuses: []string{StatusClosed}, Departments: []string{"IT"}},
	}
	all := make(map[string]struct{})
	for _, f := range source.findings {
		all[f.ID] = struct{}{}
	}
	for _, filter := range filters {
		got, err := agg.Collect(context.Background(), filter)
		if err != nil {
			t.Fatalf("Collect(%+v): %v", filter, err)
		}
		for _, f := range got {
			if _, ok := all[f.ID]; !ok {
				t.Errorf("finding %s not in unfiltered set", f.ID)
			}
			if !filter.Matches(f.Finding) {
				t.Errorf("finding %s violates filter %+v", f.ID, filter)
			}
		}
	}
}

func TestCollectBatchedLookups(t *testing.T) {
	source := sampleSource()
	agg := NewAggregator(source)

	if _, err := agg.Collect(context.Background(), Filter{}); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if source.commentCalls != 1 {
		t.Errorf("expected exactly 1 comment batch query, got %d", source.commentCalls)
	}
	if source.profileCalls != 1 {
		t.Errorf("expected exactly 1 profile batch query, got %d", source.profileCalls)
	}
}

func TestCollectEmptyStoreVsNoMatch(t *testing.T) {
	empty := &fakeSource{}
	agg := NewAggregator(empty)
	if _, err := agg.Collect(context.Background(), Filter{}); !errors.Is(err, ErrEmptyStore) {
		t.Errorf("empty store: expected ErrEmptyStore, got %v", err)
	}

	populated := sampleSource()
	agg = NewAggregator(populated)
	_, err := agg.Collect(context.Background(), Filter{Departments: []string{"Legal"}})
	if !errors.Is(err, ErrNoMatchingData) {
		t.Errorf("narrow filter: expected ErrNoMatchingData, got %v", err)
	}
	if populated.countCalls != 1 {
		t.Errorf("expected one probe query, got %d", populated.countCalls)
	}
}

func TestCollectEnrichment(t *testing.T) {
	source := sampleSource()
	agg := NewAggregator(source)

	got, err := agg.Collect(context.Background(), Filter{Statuses: []string{StatusOpen}, Departments: []string{"IT"}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(got))
	}
	f := got[0]
	if f.CreatorName() != "Amira Hassan" {
		t.Errorf("creator = %q", f.CreatorName())
	}
	if f.AssigneeName() != "Joao Silva" {
		t.Errorf("assignee = %q", f.AssigneeName())
	}
	if len(f.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(f.Comments))
	}
	if f.Comments[0].Content != "first look" {
		t.Errorf("comments out of chronological order")
	}
	if f.Comments[1].Author == nil || f.Comments[1].Author.Name != "Mei Lin" {
		t.Errorf("comment author not resolved")
	}
}

func TestCollectPartialEnrichmentFailure(t *testing.T) {
	source := sampleSource()
	source.profileErr = errors.New("directory offline")
	agg := NewAggregator(source)

	got, err := agg.Collect(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("profile failure must not abort the report: %v", err)
	}
	if len(got) != len(source.findings) {
		t.Fatalf("expected %d findings, got %d", len(source.findings), len(got))
	}
	if got[0].CreatorName() != "Unknown" {
		t.Errorf("expected defaulted creator, got %q", got[0].CreatorName())
	}

	source = sampleSource()
	source.commentErr = errors.New("activities offline")
	agg = NewAggregator(source)
	got, err = agg.Collect(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("comment failure must not abort the report: %v", err)
	}
	for _, f := range got {
		if len(f.Comments) != 0 {
			t.Errorf("expected empty threads after comment fetch failure")
		}
	}
}

func TestCollectDeduplicates(t *testing.T) {
	source := sampleSource()
	source.findings = append(source.findings, source.findings[0])
	agg := NewAggregator(source)

	got, err := agg.Collect(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	seen := make(map[string]int)
	for _, f := range got {
		seen[f.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("finding %s appears %d times", id, n)
		}
	}
}
