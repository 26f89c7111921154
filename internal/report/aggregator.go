package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/AitchEm-bot/audit-reports/internal/common"
)

// DataSource is the narrow query surface the aggregator needs from the
// backing store. Batched lookups accept an identifier set so round trips
// stay constant regardless of working-set size.
type DataSource interface {
	FindingsFiltered(ctx context.Context, filter Filter) ([]Finding, error)
	CountFindings(ctx context.Context) (int, error)
	CommentsForFindings(ctx context.Context, findingIDs []string) ([]Comment, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error)
}

// Aggregator resolves filter criteria into enriched, render-ready findings.
type Aggregator struct {
	source DataSource
}

// NewAggregator constructs an Aggregator over the given data source.
func NewAggregator(source DataSource) *Aggregator {
	return &Aggregator{source: source}
}

// Collect retrieves findings matching the filter, newest first, and enriches
// each with its comment thread and resolved profiles. Comment and profile
// batch failures are non-fatal: the report proceeds with defaulted authorship
// rather than aborting. A zero-row filtered result triggers one unfiltered
// probe so ErrEmptyStore and ErrNoMatchingData stay distinguishable.
func (a *Aggregator) Collect(ctx context.Context, filter Filter) ([]EnrichedFinding, error) {
	logger := common.Logger()
	if a == nil || a.source == nil {
		return nil, fmt.Errorf("aggregator: data source not configured")
	}

	findings, err := a.source.FindingsFiltered(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("aggregator: fetch findings: %w", err)
	}
	findings = dedupeFindings(findings)
	// Newest first is this component's contract, not the source's.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].CreatedAt.After(findings[j].CreatedAt)
	})
	if len(findings) == 0 {
		total, probeErr := a.source.CountFindings(ctx)
		if probeErr != nil {
			return nil, fmt.Errorf("aggregator: probe store: %w", probeErr)
		}
		if total == 0 {
			return nil, ErrEmptyStore
		}
		return nil, ErrNoMatchingData
	}

	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.ID)
	}

	comments, err := a.source.CommentsForFindings(ctx, ids)
	if err != nil {
		logger.Warn("aggregator: comment batch fetch failed, continuing without threads", "error", err, "findings", len(findings))
		comments = nil
	}

	profiles := a.fetchProfiles(ctx, findings, comments)
	return enrich(findings, comments, profiles), nil
}

// fetchProfiles gathers the union of creator, assignee, and comment-author
// ids and resolves them in a single batched lookup. Failure degrades to an
// empty map.
func (a *Aggregator) fetchProfiles(ctx context.Context, findings []Finding, comments []Comment) map[string]Profile {
	logger := common.Logger()
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, f := range findings {
		add(f.CreatorID)
		add(f.AssigneeID)
	}
	for _, c := range comments {
		add(c.AuthorID)
	}
	if len(ids) == 0 {
		return nil
	}

	profiles, err := a.source.ProfilesByIDs(ctx, ids)
	if err != nil {
		logger.Warn("aggregator: profile batch fetch failed, continuing with defaulted names", "error", err, "ids", len(ids))
		return nil
	}
	out := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out
}

func enrich(findings []Finding, comments []Comment, profiles map[string]Profile) []EnrichedFinding {
	threads := make(map[string][]Comment, len(findings))
	for _, c := range comments {
		threads[c.FindingID] = append(threads[c.FindingID], c)
	}

	lookup := func(id string) *Profile {
		if id == "" {
			return nil
		}
		if p, ok := profiles[id]; ok {
			copied := p
			return &copied
		}
		return nil
	}

	out := make([]EnrichedFinding, 0, len(findings))
	for _, f := range findings {
		enriched := EnrichedFinding{
			Finding:  f,
			Creator:  lookup(f.CreatorID),
			Assignee: lookup(f.AssigneeID),
		}
		for _, c := range threads[f.ID] {
			enriched.Comments = append(enriched.Comments, EnrichedComment{
				Comment: c,
				Author:  lookup(c.AuthorID),
			})
		}
		out = append(out, enriched)
	}
	return out
}

func dedupeFindings(findings []Finding) []Finding {
	seen := make(map[string]struct{}, len(findings))
	out := findings[:0]
	for _, f := range findings {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}
