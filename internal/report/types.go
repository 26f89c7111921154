// Package report holds the domain model for audit findings and the
// aggregation pipeline that turns filter criteria into enriched,
// render-ready records.
package report

import (
	"sort"
	"strings"
	"time"
)

// Finding statuses. Unrecognized values are carried through and rendered
// verbatim rather than rejected.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Finding priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Activity kinds attached to a finding's discussion thread.
const (
	ActivityComment    = "comment"
	ActivityStatus     = "status_change"
	ActivityAssignment = "assignment_change"
	ActivityAttachment = "attachment"
)

// Finding is the unit of audit tracking.
type Finding struct {
	ID             string     `json:"id"`
	Number         string     `json:"number"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Department     string     `json:"department"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	ClosingComment string     `json:"closing_comment,omitempty"`
	CreatorID      string     `json:"creator_id"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Comment is a single activity entry belonging to exactly one finding.
// Insertion order is chronological order.
type Comment struct {
	ID        string    `json:"id"`
	FindingID string    `json:"finding_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is a directory entry referenced from findings and comments.
type Profile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// EnrichedComment is a comment with its author resolved.
type EnrichedComment struct {
	Comment
	Author *Profile `json:"author,omitempty"`
}

// EnrichedFinding is a request-scoped composite of a finding with resolved
// creator, assignee, and comment authorship. It is never persisted.
type EnrichedFinding struct {
	Finding
	Creator  *Profile          `json:"creator,omitempty"`
	Assignee *Profile          `json:"assignee,omitempty"`
	Comments []EnrichedComment `json:"comments,omitempty"`
}

// CreatorName returns the resolved creator display name or a default.
func (f EnrichedFinding) CreatorName() string {
	if f.Creator != nil && strings.TrimSpace(f.Creator.Name) != "" {
		return f.Creator.Name
	}
	return "Unknown"
}

// AssigneeName returns the resolved assignee display name, or "Unassigned"
// when no assignee is set, or a default when the profile lookup failed.
func (f EnrichedFinding) AssigneeName() string {
	if f.AssigneeID == "" {
		return "Unassigned"
	}
	if f.Assignee != nil && strings.TrimSpace(f.Assignee.Name) != "" {
		return f.Assignee.Name
	}
	return "Unknown"
}

// Filter describes the criteria used to select findings for a report.
// Empty slices and nil bounds mean "no constraint".
type Filter struct {
	Statuses    []string   `json:"statuses,omitempty"`
	Priorities  []string   `json:"priorities,omitempty"`
	Departments []string   `json:"departments,omitempty"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
}

// Matches reports whether a finding satisfies every supplied predicate.
func (f Filter) Matches(finding Finding) bool {
	if len(f.Statuses) > 0 && !containsFold(f.Statuses, finding.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsFold(f.Priorities, finding.Priority) {
		return false
	}
	if len(f.Departments) > 0 && !containsFold(f.Departments, finding.Department) {
		return false
	}
	if f.From != nil && finding.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && finding.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return len(f.Statuses) == 0 && len(f.Priorities) == 0 &&
		len(f.Departments) == 0 && f.From == nil && f.To == nil
}

// Describe renders a short human-readable echo of the active criteria for
// cover pages and filenames.
func (f Filter) Describe() string {
	var parts []string
	if len(f.Statuses) > 0 {
		parts = append(parts, "status: "+strings.Join(f.Statuses, ", "))
	}
	if len(f.Priorities) > 0 {
		parts = append(parts, "priority: "+strings.Join(f.Priorities, ", "))
	}
	if len(f.Departments) > 0 {
		parts = append(parts, "department: "+strings.Join(f.Departments, ", "))
	}
	if f.From != nil {
		parts = append(parts, "from "+f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		parts = append(parts, "to "+f.To.Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return "all findings"
	}
	return strings.Join(parts, "; ")
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

// Report output formats.
const (
	FormatSpreadsheet = "xlsx"
	FormatDocument    = "pdf"
)

// Grouping keys for the paginated document.
const (
	GroupNone       = "none"
	GroupDepartment = "department"
	GroupPriority   = "priority"
	GroupStatus     = "status"
)

// Options is the pure-input configuration for a render. It is never mutated
// during rendering.
type Options struct {
	Format  string `json:"format"`
	GroupBy string `json:"group_by"`
	Locale  string `json:"locale"`

	IncludeSummary  bool `json:"include_summary"`
	IncludePlans    bool `json:"include_plans"`
	IncludeComments bool `json:"include_comments"`
	IncludeMetrics  bool `json:"include_metrics"`

	IncludeDescription      bool `json:"include_description"`
	IncludeRiskLevel        bool `json:"include_risk_level"`
	IncludeManagementResp   bool `json:"include_management_response"`
	IncludeActionPlan       bool `json:"include_action_plan"`
	IncludeResponsibleParty bool `json:"include_responsible_party"`
	IncludeTargetDate       bool `json:"include_target_date"`
}

// DefaultOptions enables every optional section, matching the behaviour of a
// report requested with no explicit configuration.
func DefaultOptions() Options {
	return Options{
		Format:                  FormatDocument,
		GroupBy:                 GroupNone,
		IncludeSummary:          true,
		IncludePlans:            true,
		IncludeComments:         true,
		IncludeMetrics:          true,
		IncludeDescription:      true,
		IncludeRiskLevel:        true,
		IncludeManagementResp:   true,
		IncludeActionPlan:       true,
		IncludeResponsibleParty: true,
		IncludeTargetDate:       true,
	}
}

// Group is one partition of findings under a grouping key.
type Group struct {
	Key      string
	Findings []EnrichedFinding
}

// GroupFindings partitions findings by the configured grouping key. The
// identity partition is returned for GroupNone or an unknown key. Group order
// follows first appearance for departments and a fixed severity/lifecycle
// order for priority and status; keys outside the fixed order sort last,
// verbatim.
func GroupFindings(findings []EnrichedFinding, groupBy string) []Group {
	switch groupBy {
	case GroupDepartment, GroupPriority, GroupStatus:
	default:
		return []Group{{Key: "", Findings: findings}}
	}

	keyOf := func(f EnrichedFinding) string {
		switch groupBy {
		case GroupDepartment:
			return f.Department
		case GroupPriority:
			return f.Priority
		default:
			return f.Status
		}
	}

	index := make(map[string]int)
	var groups []Group
	for _, f := range findings {
		key := keyOf(f)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Findings = append(groups[i].Findings, f)
	}

	if groupBy == GroupPriority || groupBy == GroupStatus {
		rank := priorityRank
		if groupBy == GroupStatus {
			rank = statusRank
		}
		sort.SliceStable(groups, func(a, b int) bool {
			return rank(groups[a].Key) < rank(groups[b].Key)
		})
	}
	return groups
}

func priorityRank(p string) int {
	switch strings.ToLower(p) {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

func statusRank(s string) int {
	switch strings.ToLower(s) {
	case StatusOpen:
		return 0
	case StatusInProgress:
		return 1
	case StatusResolved:
		return 2
	case StatusClosed:
		return 3
	default:
		return 4
	}
}

// Tally counts findings by a projection, for metric sheets and summary pages.
func Tally(findings []EnrichedFinding, key func(EnrichedFinding) string) map[string]int {
	out := make(map[string]int)
	for _, f := range findings {
		out[key(f)]++
	}
	return out
}

// SortedKeys returns tally keys in deterministic order.
func SortedKeys(tally map[string]int) []string {
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
