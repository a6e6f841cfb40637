// Package match classifies raw activity records against the configured
// ignore, ticket and activity-pattern tables.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"timematch/internal/config"
	"timematch/internal/export"
	"timematch/internal/logging"
)

// Fixed confidence constants. Ticket references are near-unambiguous,
// free-text patterns are heuristic, and total absence of signal must stay
// visible in the output rather than being discarded.
const (
	TicketConfidence    = 0.95
	PatternConfidence   = 0.75
	UnmatchedConfidence = 0.2
)

// Activity is a raw record plus matching metadata. Created once by the
// Matcher and read-only afterward.
type Activity struct {
	ActivityTitle string
	Application   string
	Duration      string
	StartDate     time.Time
	EndDate       time.Time
	Path          string

	Ticket      string
	ProjectID   string
	ProjectName string
	Confidence  float64
	MatchReason string
}

// DurationSeconds returns the activity length in whole seconds
func (a *Activity) DurationSeconds() int {
	return int(a.EndDate.Sub(a.StartDate).Seconds())
}

// Matched reports whether the activity was assigned to a project
func (a *Activity) Matched() bool {
	return a.ProjectID != ""
}

// Disposition describes what happened to a record during matching
type Disposition int

const (
	// Kept means the record became an Activity (matched or unmatched)
	Kept Disposition = iota
	// Ignored means an ignore pattern dropped the record
	Ignored
	// Skipped means the record had unusable timestamps
	Skipped
)

type ticketPattern struct {
	prefix  string
	re      *regexp.Regexp
	mapping config.ProjectMapping
}

type activityPattern struct {
	literal string // lowercase substring when re is nil
	re      *regexp.Regexp
	cfg     config.ActivityPattern
}

// strategy tries to classify an activity and reports whether it succeeded
type strategy func(a *Activity) bool

// Matcher classifies raw records. All pattern tables are compiled once at
// construction and held as immutable state.
type Matcher struct {
	ticketPatterns   []ticketPattern
	activityPatterns []activityPattern
	ignorePatterns   []*regexp.Regexp
	strategies       []strategy
	logger           *logging.Logger
}

// NewMatcher compiles the configured pattern tables. Ticket prefixes are
// evaluated in the order they appear in the configuration file; with
// overlapping prefixes the earlier one wins.
func NewMatcher(cfg *config.Config, logger *logging.Logger) (*Matcher, error) {
	m := &Matcher{logger: logger}

	for _, prefix := range orderedPrefixes(cfg.ProjectMappings) {
		re, err := regexp.Compile("(?i)(" + regexp.QuoteMeta(prefix) + `\d+)`)
		if err != nil {
			return nil, fmt.Errorf("ticket prefix %q: %w", prefix, err)
		}
		m.ticketPatterns = append(m.ticketPatterns, ticketPattern{
			prefix:  prefix,
			re:      re,
			mapping: cfg.ProjectMappings.TicketPrefixes[prefix],
		})
	}

	for _, p := range cfg.ProjectMappings.ActivityPatterns {
		ap := activityPattern{cfg: p}
		if p.Regex {
			re, err := regexp.Compile("(?i)" + p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("activity pattern %q: %w", p.Pattern, err)
			}
			ap.re = re
		} else {
			ap.literal = strings.ToLower(p.Pattern)
		}
		m.activityPatterns = append(m.activityPatterns, ap)
	}

	for _, p := range cfg.ProjectMappings.IgnorePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		m.ignorePatterns = append(m.ignorePatterns, re)
	}

	// Ordered decision chain, short-circuit on first success. New
	// strategies can be appended without touching existing ones.
	m.strategies = []strategy{m.matchTicket, m.matchPattern}

	return m, nil
}

// orderedPrefixes returns the ticket prefixes in configuration-file order.
// Prefixes without a recorded position (configs built in code, or env-only
// overrides) follow in sorted order so evaluation stays deterministic.
func orderedPrefixes(pm config.ProjectMappingsConfig) []string {
	seen := make(map[string]bool, len(pm.TicketPrefixes))
	prefixes := make([]string, 0, len(pm.TicketPrefixes))

	for _, prefix := range pm.TicketPrefixOrder {
		if _, ok := pm.TicketPrefixes[prefix]; ok && !seen[prefix] {
			seen[prefix] = true
			prefixes = append(prefixes, prefix)
		}
	}

	var rest []string
	for prefix := range pm.TicketPrefixes {
		if !seen[prefix] {
			rest = append(rest, prefix)
		}
	}
	sort.Strings(rest)

	return append(prefixes, rest...)
}

// Match classifies one raw record. Ignored records and records with
// unusable timestamps return a nil Activity with the corresponding
// disposition; everything else is kept, with an empty ProjectID marking an
// unmatched activity.
func (m *Matcher) Match(raw export.Record) (*Activity, Disposition) {
	for _, re := range m.ignorePatterns {
		if raw.ActivityTitle != "" && re.MatchString(raw.ActivityTitle) {
			return nil, Ignored
		}
		if re.MatchString(raw.Application) {
			return nil, Ignored
		}
	}

	start, err := parseTimestamp(raw.StartDate)
	if err != nil {
		m.logger.Warn("Skipping activity with invalid startDate", map[string]interface{}{
			"startDate": raw.StartDate,
			"error":     err.Error(),
		})
		return nil, Skipped
	}
	end, err := parseTimestamp(raw.EndDate)
	if err != nil {
		m.logger.Warn("Skipping activity with invalid endDate", map[string]interface{}{
			"endDate": raw.EndDate,
			"error":   err.Error(),
		})
		return nil, Skipped
	}

	activity := &Activity{
		ActivityTitle: raw.ActivityTitle,
		Application:   raw.Application,
		Duration:      raw.Duration,
		StartDate:     start,
		EndDate:       end,
		Path:          raw.Path,
	}

	for _, try := range m.strategies {
		if try(activity) {
			return activity, Kept
		}
	}

	activity.Confidence = UnmatchedConfidence
	activity.MatchReason = "No pattern matched"
	return activity, Kept
}

// matchTicket searches the title for prefix+digits. The first prefix that
// matches wins; remaining prefixes are not scanned.
func (m *Matcher) matchTicket(a *Activity) bool {
	for _, tp := range m.ticketPatterns {
		match := tp.re.FindString(a.ActivityTitle)
		if match == "" {
			continue
		}
		a.Ticket = strings.ToUpper(match)
		a.ProjectID = tp.mapping.ProjectID
		a.ProjectName = tp.mapping.ProjectName
		a.Confidence = TicketConfidence
		a.MatchReason = "Exact ticket match: " + a.Ticket
		return true
	}
	return false
}

// matchPattern tests the lowercased title+application text against the
// configured patterns in order; the first match wins.
func (m *Matcher) matchPattern(a *Activity) bool {
	searchText := strings.ToLower(a.ActivityTitle + " " + a.Application)

	for _, ap := range m.activityPatterns {
		var hit bool
		if ap.re != nil {
			hit = ap.re.MatchString(searchText)
		} else {
			hit = strings.Contains(searchText, ap.literal)
		}
		if !hit {
			continue
		}

		a.ProjectID = ap.cfg.ProjectID
		a.ProjectName = ap.cfg.ProjectName
		a.Confidence = PatternConfidence
		description := ap.cfg.Description
		if description == "" {
			description = "activity pattern"
		}
		a.MatchReason = "Pattern match: " + description
		return true
	}
	return false
}

// timestampLayouts are the formats seen in Timing exports
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
