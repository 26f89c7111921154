package narrative

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AitchEm-bot/audit-reports/internal/common"
	"github.com/AitchEm-bot/audit-reports/internal/report"
)

// Fixed placeholder strings substituted when narrative generation is skipped
// or degrades. They are deliberately self-describing so a reader of the
// finished report understands why no generated text is present.
const (
	PlaceholderNoResolvedFindings = "No resolved findings with closing comments were included in this report, so no executive summary was generated."
	PlaceholderNoClosingComment   = "No action plan available: this finding has not been closed with a resolution comment."
	PlaceholderUnavailable        = "Automated narrative generation was unavailable when this report was produced."
)

// planConcurrency bounds simultaneous inference invocations during batch
// plan generation. The backing model server is a single local process; more
// parallelism starves it rather than speeding anything up.
const planConcurrency = 3

// ThreadSource provides the discussion thread for a single finding.
type ThreadSource interface {
	FindingByID(ctx context.Context, id string) (*report.Finding, error)
	CommentsForFinding(ctx context.Context, findingID string) ([]report.Comment, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]report.Profile, error)
}

// Generator produces the three narrative artifacts of a report. Every entry
// point is independently tolerant of Client failure; only the closing-summary
// path surfaces errors, because its caller must render a structured failure.
type Generator struct {
	client Client
	source ThreadSource
}

// NewGenerator constructs a Generator. source may be nil when only summary
// and plan generation are needed.
func NewGenerator(client Client, source ThreadSource) *Generator {
	return &Generator{client: client, source: source}
}

// ExecutiveSummary produces a whole-report narrative. Findings without a
// closing comment carry no outcome to summarize; when none qualify the fixed
// placeholder is returned without invoking the model.
func (g *Generator) ExecutiveSummary(ctx context.Context, findings []report.EnrichedFinding) string {
	logger := common.Logger()
	resolved := make([]report.EnrichedFinding, 0, len(findings))
	for _, f := range findings {
		if strings.TrimSpace(f.ClosingComment) != "" {
			resolved = append(resolved, f)
		}
	}
	if len(resolved) == 0 {
		logger.Debug("narrative: no resolved findings, skipping summary generation")
		return PlaceholderNoResolvedFindings
	}
	text, err := g.client.Invoke(ctx, buildSummaryPrompt(resolved, findings))
	if err != nil {
		logger.Warn("narrative: executive summary degraded to placeholder", "error", err)
		return PlaceholderUnavailable
	}
	return strings.TrimSpace(text)
}

// ActionPlan produces a per-finding plan. A finding without a closing
// comment returns the fixed placeholder without invoking the model.
func (g *Generator) ActionPlan(ctx context.Context, finding report.EnrichedFinding) string {
	logger := common.Logger()
	if strings.TrimSpace(finding.ClosingComment) == "" {
		return PlaceholderNoClosingComment
	}
	text, err := g.client.Invoke(ctx, buildPlanPrompt(finding))
	if err != nil {
		logger.Warn("narrative: action plan degraded to placeholder", "finding", finding.ID, "error", err)
		return PlaceholderUnavailable
	}
	return strings.TrimSpace(text)
}

// GeneratePlans fans out over ActionPlan with bounded concurrency and
// returns one map entry per finding, degraded entries included. A failed or
// timed-out invocation never drops its finding from the result.
func (g *Generator) GeneratePlans(ctx context.Context, findings []report.EnrichedFinding) map[string]string {
	plans := make(map[string]string, len(findings))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, planConcurrency)

	for _, finding := range findings {
		wg.Add(1)
		go func(f report.EnrichedFinding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			plan := g.ActionPlan(ctx, f)
			mu.Lock()
			plans[f.ID] = plan
			mu.Unlock()
		}(finding)
	}
	wg.Wait()
	return plans
}

type threadEntry struct {
	Author  string
	When    time.Time
	Content string
}

// ClosingSummary reconstructs one finding's chronological discussion thread
// and returns a generated third-person summary plus the thread length. An
// empty thread fails with ErrNoDiscussionHistory before any process is
// spawned.
func (g *Generator) ClosingSummary(ctx context.Context, findingID string) (string, int, error) {
	finding, entries, err := g.loadThread(ctx, findingID)
	if err != nil {
		return "", 0, err
	}
	text, err := g.client.Invoke(ctx, buildThreadPrompt(*finding, entries))
	if err != nil {
		return "", len(entries), err
	}
	return strings.TrimSpace(text), len(entries), nil
}

// ClosingSummaryStream is the incremental variant of ClosingSummary. The
// returned channels follow Client.InvokeStreaming semantics; the consumer's
// context teardown kills the inference process.
func (g *Generator) ClosingSummaryStream(ctx context.Context, findingID string) (<-chan string, <-chan error, int, error) {
	finding, entries, err := g.loadThread(ctx, findingID)
	if err != nil {
		return nil, nil, 0, err
	}
	chunks, errc := g.client.InvokeStreaming(ctx, buildThreadPrompt(*finding, entries))
	return chunks, errc, len(entries), nil
}

func (g *Generator) loadThread(ctx context.Context, findingID string) (*report.Finding, []threadEntry, error) {
	logger := common.Logger()
	finding, err := g.source.FindingByID(ctx, findingID)
	if err != nil {
		return nil, nil, err
	}
	comments, err := g.source.CommentsForFinding(ctx, findingID)
	if err != nil {
		return nil, nil, err
	}

	var withContent []report.Comment
	for _, c := range comments {
		if strings.TrimSpace(c.Content) != "" {
			withContent = append(withContent, c)
		}
	}
	if len(withContent) == 0 {
		return nil, nil, ErrNoDiscussionHistory
	}

	names := g.authorNames(ctx, withContent)
	entries := make([]threadEntry, 0, len(withContent))
	for _, c := range withContent {
		author := names[c.AuthorID]
		if author == "" {
			author = "Unknown"
		}
		entries = append(entries, threadEntry{
			Author:  author,
			When:    c.CreatedAt,
			Content: strings.TrimSpace(c.Content),
		})
	}
	logger.Debug("narrative: thread reconstructed", "finding", findingID, "entries", len(entries))
	return finding, entries, nil
}

// authorNames resolves comment authorship in one batched lookup; failure
// degrades to defaulted names rather than aborting the summary.
func (g *Generator) authorNames(ctx context.Context, comments []report.Comment) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range comments {
		if c.AuthorID == "" {
			continue
		}
		if _, ok := seen[c.AuthorID]; ok {
			continue
		}
		seen[c.AuthorID] = struct{}{}
		ids = append(ids, c.AuthorID)
	}
	if len(ids) == 0 {
		return nil
	}
	profiles, err := g.source.ProfilesByIDs(ctx, ids)
	if err != nil {
		common.Logger().Warn("narrative: author lookup failed, using defaulted names", "error", err)
		return nil
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.Name
	}
	return names
}
