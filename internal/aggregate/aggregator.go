// Package aggregate clusters chronologically ordered matched activities
// into time entry proposals.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"timematch/internal/match"
)

// Categorical confidence levels for a time entry
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// TimeEntry is an aggregated time entry proposal. It is built once from a
// group of activities and mutated exactly once by commit enrichment.
type TimeEntry struct {
	StartDate   time.Time
	EndDate     time.Time
	ProjectID   string
	ProjectName string
	Title       string
	Notes       string
	Confidence  string

	SourceActivities []*match.Activity
	CommitShas       []string
}

// DurationSeconds returns the entry length in whole seconds
func (e *TimeEntry) DurationSeconds() int {
	return int(e.EndDate.Sub(e.StartDate).Seconds())
}

// DurationISO formats the entry duration as an ISO-8601 duration (PT2H30M),
// truncating sub-minute remainders
func (e *TimeEntry) DurationISO() string {
	return FormatDurationISO(e.DurationSeconds())
}

// FormatDurationISO renders seconds as PTxHyM with truncation, not rounding
func FormatDurationISO(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("PT%dH%dM", hours, minutes)
}

// mergeBaseGapMinutes is the gap below which same-project activities merge
// unconditionally
const mergeBaseGapMinutes = 5.0

// Aggregator groups matched activities into time entries
type Aggregator struct {
	MinDurationSeconds int
	MaxGapMinutes      int

	// Inclusive lower bounds for the categorical confidence buckets
	HighThreshold   float64
	MediumThreshold float64
}

// NewAggregator creates an aggregator with the given thresholds
func NewAggregator(minDurationSeconds, maxGapMinutes int) *Aggregator {
	return &Aggregator{
		MinDurationSeconds: minDurationSeconds,
		MaxGapMinutes:      maxGapMinutes,
		HighThreshold:      0.85,
		MediumThreshold:    0.6,
	}
}

// Aggregate clusters activities into time entry proposals. The input may
// arrive in ingestion-window order; correctness depends on one global
// chronological sort across the whole run, so the full set is re-sorted
// here before grouping.
func (g *Aggregator) Aggregate(activities []*match.Activity) []*TimeEntry {
	kept := make([]*match.Activity, 0, len(activities))
	for _, a := range activities {
		if a.DurationSeconds() >= g.MinDurationSeconds {
			kept = append(kept, a)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].StartDate.Before(kept[j].StartDate)
	})

	var entries []*TimeEntry
	var group []*match.Activity

	for _, activity := range kept {
		if len(group) == 0 {
			group = []*match.Activity{activity}
			continue
		}

		last := group[len(group)-1]
		if g.shouldMerge(last, activity) {
			group = append(group, activity)
		} else {
			entries = append(entries, g.createEntry(group))
			group = []*match.Activity{activity}
		}
	}

	if len(group) > 0 {
		entries = append(entries, g.createEntry(group))
	}

	return entries
}

// shouldMerge is the merge predicate: same project is a hard gate, a gap
// under five minutes merges unconditionally, and a gap under MaxGapMinutes
// merges only with the same ticket or the same application. The gap can be
// negative when activities overlap.
func (g *Aggregator) shouldMerge(last, current *match.Activity) bool {
	if last.ProjectID != current.ProjectID {
		return false
	}

	gapMinutes := current.StartDate.Sub(last.EndDate).Minutes()

	if gapMinutes < mergeBaseGapMinutes {
		return true
	}

	if gapMinutes < float64(g.MaxGapMinutes) {
		if last.Ticket != "" && current.Ticket != "" && last.Ticket == current.Ticket {
			return true
		}
		if last.Application == current.Application {
			return true
		}
	}

	return false
}

func (g *Aggregator) createEntry(group []*match.Activity) *TimeEntry {
	first := group[0]
	last := group[len(group)-1]

	sum := 0.0
	for _, a := range group {
		sum += a.Confidence
	}
	avg := sum / float64(len(group))

	level := ConfidenceLow
	switch {
	case avg >= g.HighThreshold:
		level = ConfidenceHigh
	case avg >= g.MediumThreshold:
		level = ConfidenceMedium
	}

	return &TimeEntry{
		StartDate:        first.StartDate,
		EndDate:          last.EndDate,
		ProjectID:        first.ProjectID,
		ProjectName:      first.ProjectName,
		Title:            createTitle(group),
		Notes:            createNotes(group),
		Confidence:       level,
		SourceActivities: group,
	}
}

// createTitle picks a descriptive title: the lexicographically smallest
// ticket (optionally with the first non-ticket title appended), else the
// most frequent activity title, else the application list.
func createTitle(group []*match.Activity) string {
	var ticket string
	for _, a := range group {
		if a.Ticket != "" && (ticket == "" || a.Ticket < ticket) {
			ticket = a.Ticket
		}
	}

	if ticket != "" {
		for _, a := range group {
			if a.ActivityTitle != "" && a.ActivityTitle != ticket {
				return ticket + ": " + a.ActivityTitle
			}
		}
		return ticket
	}

	// Most frequent title, ties broken by first-encountered order
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, a := range group {
		if a.ActivityTitle == "" {
			continue
		}
		counts[a.ActivityTitle]++
		if _, ok := firstSeen[a.ActivityTitle]; !ok {
			firstSeen[a.ActivityTitle] = i
		}
	}
	if len(counts) > 0 {
		best := ""
		for title, count := range counts {
			if best == "" ||
				count > counts[best] ||
				(count == counts[best] && firstSeen[title] < firstSeen[best]) {
				best = title
			}
		}
		return best
	}

	return "Work in " + strings.Join(uniqueApplications(group), ", ")
}

// createNotes lists the applications when more than one is present, and
// the match reason only when every member shares exactly one distinct
// reason. Multiple distinct reasons are omitted to avoid contradictory
// notes.
func createNotes(group []*match.Activity) string {
	var parts []string

	apps := uniqueApplications(group)
	if len(apps) > 1 {
		parts = append(parts, "Applications: "+strings.Join(apps, ", "))
	}

	reasons := make(map[string]struct{})
	for _, a := range group {
		if a.MatchReason != "" {
			reasons[a.MatchReason] = struct{}{}
		}
	}
	if len(reasons) == 1 {
		for reason := range reasons {
			parts = append(parts, "Match: "+reason)
		}
	}

	return strings.Join(parts, "\n")
}

func uniqueApplications(group []*match.Activity) []string {
	seen := make(map[string]struct{})
	var apps []string
	for _, a := range group {
		if _, ok := seen[a.Application]; !ok {
			seen[a.Application] = struct{}{}
			apps = append(apps, a.Application)
		}
	}
	sort.Strings(apps)
	return apps
}

// ConfidenceDistribution counts entries per categorical confidence level
func ConfidenceDistribution(entries []*TimeEntry) map[string]int {
	dist := make(map[string]int)
	for _, e := range entries {
		dist[e.Confidence]++
	}
	return dist
}
