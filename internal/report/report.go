// Package report assembles the final reconciliation report.
package report

import (
	"fmt"
	"sort"
	"strings"

	"timematch/internal/aggregate"
	"timematch/internal/match"
)

// Metadata is the report's run-level counters
type Metadata struct {
	RunID                  string         `json:"runId"`
	ProcessedDate          string         `json:"processedDate"`
	StartDate              string         `json:"startDate"`
	EndDate                string         `json:"endDate"`
	TotalInputEntries      int            `json:"totalInputEntries"`
	MatchedEntries         int            `json:"matchedEntries"`
	UnmatchedEntries       int            `json:"unmatchedEntries"`
	IgnoredEntries         int            `json:"ignoredEntries"`
	SkippedEntries         int            `json:"skippedEntries"`
	ProposedTimeEntries    int            `json:"proposedTimeEntries"`
	ConfidenceDistribution map[string]int `json:"confidenceDistribution"`
}

// RepositoryStatus records the load outcome per configured repository, so
// a failed load and a repository with zero relevant commits stay
// distinguishable in the output.
type RepositoryStatus struct {
	Path          string `json:"path"`
	CommitsLoaded int    `json:"commitsLoaded"`
	TicketsFound  int    `json:"ticketsFound"`
	Error         string `json:"error,omitempty"`
}

// ProjectSummary is the per-project rollup
type ProjectSummary struct {
	ProjectName   string `json:"projectName"`
	ProjectID     string `json:"projectId"`
	EntryCount    int    `json:"entryCount"`
	TotalDuration string `json:"totalDuration"` // PTxHyM, truncated
}

// SourceActivity is the snapshot of one member activity
type SourceActivity struct {
	ActivityTitle string `json:"activityTitle,omitempty"`
	Application   string `json:"application"`
	Duration      string `json:"duration"`
}

// ProposedEntry is one time entry proposal in the report
type ProposedEntry struct {
	StartDate        string           `json:"startDate"`
	EndDate          string           `json:"endDate"`
	Project          string           `json:"project"`
	ProjectName      string           `json:"projectName"`
	Title            string           `json:"title"`
	Notes            string           `json:"notes"`
	Confidence       string           `json:"confidence"`
	CommitShas       []string         `json:"commitShas,omitempty"`
	SourceActivities []SourceActivity `json:"sourceActivities,omitempty"`
}

// UnmatchedPattern is one row of the unmatched frequency summary
type UnmatchedPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
	Reason  string `json:"reason"`
}

// Report is the complete output document
type Report struct {
	Metadata         Metadata           `json:"metadata"`
	Repositories     []RepositoryStatus `json:"repositories"`
	ProjectMappings  []ProjectSummary   `json:"projectMappings"`
	ProposedEntries  []ProposedEntry    `json:"proposedEntries"`
	UnmatchedSummary []UnmatchedPattern `json:"unmatchedSummary"`
}

// BuildProjectSummaries rolls entries up per project, preserving the order
// in which projects first appear in the (time-sorted) entry list
func BuildProjectSummaries(entries []*aggregate.TimeEntry) []ProjectSummary {
	index := make(map[string]int)
	var summaries []ProjectSummary

	for _, e := range entries {
		i, ok := index[e.ProjectName]
		if !ok {
			i = len(summaries)
			index[e.ProjectName] = i
			summaries = append(summaries, ProjectSummary{
				ProjectName: e.ProjectName,
				ProjectID:   e.ProjectID,
			})
		}
		summaries[i].EntryCount++
	}

	totals := make(map[string]int)
	for _, e := range entries {
		totals[e.ProjectName] += e.DurationSeconds()
	}
	for i := range summaries {
		summaries[i].TotalDuration = aggregate.FormatDurationISO(totals[summaries[i].ProjectName])
	}

	return summaries
}

// unmatchedSummaryLimit caps the frequency summary to the most useful rows
const unmatchedSummaryLimit = 20

// SummarizeUnmatched counts unmatched activities by title (falling back to
// application) and returns the top rows by frequency, ties broken by first
// appearance, to guide future pattern configuration.
func SummarizeUnmatched(unmatched []*match.Activity) []UnmatchedPattern {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)

	for i, a := range unmatched {
		key := a.ActivityTitle
		if key == "" {
			key = a.Application
		}
		counts[key]++
		if _, ok := firstSeen[key]; !ok {
			firstSeen[key] = i
		}
	}

	patterns := make([]UnmatchedPattern, 0, len(counts))
	for key, count := range counts {
		patterns = append(patterns, UnmatchedPattern{
			Pattern: key,
			Count:   count,
			Reason:  "No matching pattern",
		})
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return firstSeen[patterns[i].Pattern] < firstSeen[patterns[j].Pattern]
	})

	if len(patterns) > unmatchedSummaryLimit {
		patterns = patterns[:unmatchedSummaryLimit]
	}

	return patterns
}

// HumanSummary renders the report as a plain-text summary for review
func HumanSummary(r *Report) string {
	var b strings.Builder

	b.WriteString("Timematch Report\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	meta := r.Metadata
	b.WriteString("Input Statistics:\n")
	b.WriteString(fmt.Sprintf("  Date range: %s to %s\n", meta.StartDate, meta.EndDate))
	b.WriteString(fmt.Sprintf("  Total entries: %d\n", meta.TotalInputEntries))
	b.WriteString(fmt.Sprintf("  Ignored: %d, Skipped: %d\n\n", meta.IgnoredEntries, meta.SkippedEntries))

	b.WriteString("Matching Results:\n")
	b.WriteString(fmt.Sprintf("  High confidence: %d entries\n", meta.ConfidenceDistribution[aggregate.ConfidenceHigh]))
	b.WriteString(fmt.Sprintf("  Medium confidence: %d entries\n", meta.ConfidenceDistribution[aggregate.ConfidenceMedium]))
	b.WriteString(fmt.Sprintf("  Low confidence: %d entries\n", meta.ConfidenceDistribution[aggregate.ConfidenceLow]))
	b.WriteString(fmt.Sprintf("  Unmatched: %d entries\n", meta.UnmatchedEntries))

	if meta.TotalInputEntries > 0 {
		rate := float64(meta.MatchedEntries) / float64(meta.TotalInputEntries) * 100
		b.WriteString(fmt.Sprintf("  Match rate: %.1f%%\n", rate))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Proposed Time Entries: %d\n\n", meta.ProposedTimeEntries))

	if len(r.Repositories) > 0 {
		b.WriteString("Repositories:\n")
		for _, repo := range r.Repositories {
			if repo.Error != "" {
				b.WriteString(fmt.Sprintf("  ✗ %s: %s\n", repo.Path, repo.Error))
			} else {
				b.WriteString(fmt.Sprintf("  ✓ %s: %d commits, %d tickets\n",
					repo.Path, repo.CommitsLoaded, repo.TicketsFound))
			}
		}
		b.WriteString("\n")
	}

	if len(r.ProjectMappings) > 0 {
		b.WriteString("Project Summary:\n")
		for _, p := range r.ProjectMappings {
			b.WriteString(fmt.Sprintf("  %s (%s): %d entries, %s\n",
				p.ProjectName, p.ProjectID, p.EntryCount, p.TotalDuration))
		}
		b.WriteString("\n")
	}

	if len(r.UnmatchedSummary) > 0 {
		b.WriteString("Top Unmatched Activities:\n")
		for _, u := range r.UnmatchedSummary {
			b.WriteString(fmt.Sprintf("  %4d  %s\n", u.Count, u.Pattern))
		}
	}

	return b.String()
}
