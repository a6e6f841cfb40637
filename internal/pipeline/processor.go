// Package pipeline orchestrates the reconciliation run: windowed
// ingestion, matching, aggregation, commit enrichment and report assembly.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"timematch/internal/aggregate"
	"timematch/internal/config"
	"timematch/internal/export"
	"timematch/internal/gitlog"
	"timematch/internal/logging"
	"timematch/internal/match"
	"timematch/internal/report"
)

// ingestWindowDays is the size of one ingestion window. Window boundaries
// are never aggregation boundaries: all matched activities are re-sorted
// globally before grouping.
const ingestWindowDays = 7

// Correlator finds commits related to a time entry interval
type Correlator interface {
	FindCommitsForActivity(start, end time.Time, ticket string, windowMinutes int) []gitlog.Commit
}

// Processor drives a full reconciliation run. Single-threaded and
// synchronous; re-running with identical inputs and configuration yields
// an identical report apart from the run id and timestamp.
type Processor struct {
	cfg        *config.Config
	logger     *logging.Logger
	matcher    *match.Matcher
	aggregator *aggregate.Aggregator

	correlators []Correlator
	repoStatus  []report.RepositoryStatus
}

// NewProcessor builds the matcher and aggregator from the configuration
func NewProcessor(cfg *config.Config, logger *logging.Logger) (*Processor, error) {
	matcher, err := match.NewMatcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	aggregator := aggregate.NewAggregator(
		cfg.Matching.MinDurationSeconds,
		cfg.Matching.MaxGapMinutes,
	)
	aggregator.HighThreshold = cfg.Matching.ConfidenceThresholds.High
	aggregator.MediumThreshold = cfg.Matching.ConfidenceThresholds.Medium

	return &Processor{
		cfg:        cfg,
		logger:     logger,
		matcher:    matcher,
		aggregator: aggregator,
	}, nil
}

// LoadRepositories loads commit history for every configured repository.
// A repository that fails to load contributes zero commits and a status
// entry; it never aborts the run.
func (p *Processor) LoadRepositories(ctx context.Context, start, end string) {
	for _, repoCfg := range p.cfg.GitRepos {
		analyzer := gitlog.NewAnalyzer(repoCfg.Path, repoCfg.TicketPrefixes, p.logger)

		status := report.RepositoryStatus{Path: repoCfg.Path}
		if err := analyzer.LoadCommits(ctx, start, end); err != nil {
			p.logger.Warn("Repository load failed, continuing without it", map[string]interface{}{
				"repo":  repoCfg.Path,
				"error": err.Error(),
			})
			status.Error = err.Error()
		} else {
			stats := analyzer.GetStats()
			status.CommitsLoaded = stats.TotalCommits
			status.TicketsFound = stats.TicketsFound
			p.correlators = append(p.correlators, analyzer)
		}
		p.repoStatus = append(p.repoStatus, status)
	}
}

// AddCorrelator registers an additional commit correlator
func (p *Processor) AddCorrelator(c Correlator) {
	p.correlators = append(p.correlators, c)
}

// Run processes the export for [start, end] and returns the report. Empty
// bounds are derived from the export's own date range.
func (p *Processor) Run(ctx context.Context, reader *export.Reader, start, end string) (*report.Report, error) {
	if start == "" || end == "" {
		detectedStart, detectedEnd, err := reader.DateRange()
		if err != nil {
			return nil, err
		}
		if start == "" {
			start = detectedStart
		}
		if end == "" {
			end = detectedEnd
		}
		p.logger.Info("Detected date range from export", map[string]interface{}{
			"start": start,
			"end":   end,
		})
	}

	p.LoadRepositories(ctx, start, end)

	windows, err := export.WindowRanges(start, end, ingestWindowDays)
	if err != nil {
		return nil, err
	}

	var activities []*match.Activity
	total, ignored, skipped := 0, 0, 0

	for _, w := range windows {
		records, err := reader.Window(w.Start, w.End)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("Processing window", map[string]interface{}{
			"start":   w.Start,
			"end":     w.End,
			"records": len(records),
		})

		for _, rec := range records {
			total++
			activity, disposition := p.matcher.Match(rec)
			switch disposition {
			case match.Ignored:
				ignored++
			case match.Skipped:
				skipped++
			default:
				activities = append(activities, activity)
			}
		}
	}

	var matched, unmatched []*match.Activity
	for _, a := range activities {
		if a.Matched() {
			matched = append(matched, a)
		} else {
			unmatched = append(unmatched, a)
		}
	}

	entries := p.aggregator.Aggregate(matched)
	p.enrichWithCommits(entries)

	return p.buildReport(entries, matched, unmatched, total, ignored, skipped, start, end), nil
}

// enrichWithCommits appends correlated commit ids and notes to each entry.
// The preferred ticket is the first member activity carrying one. Results
// from all repositories are concatenated; a commit reachable through two
// configured repository paths is listed twice.
func (p *Processor) enrichWithCommits(entries []*aggregate.TimeEntry) {
	if len(p.correlators) == 0 || !p.cfg.Output.IncludeCommitShas {
		return
	}

	windowMinutes := p.cfg.Matching.CommitTimeWindowMinutes

	for _, entry := range entries {
		ticket := ""
		for _, a := range entry.SourceActivities {
			if a.Ticket != "" {
				ticket = a.Ticket
				break
			}
		}

		var allCommits []gitlog.Commit
		for _, correlator := range p.correlators {
			commits := correlator.FindCommitsForActivity(
				entry.StartDate, entry.EndDate, ticket, windowMinutes)
			allCommits = append(allCommits, commits...)
		}

		if len(allCommits) == 0 {
			continue
		}

		for _, c := range allCommits {
			entry.CommitShas = append(entry.CommitShas, c.SHA)
		}

		commitNotes := gitlog.FormatCommitNotes(allCommits)
		if entry.Notes != "" {
			entry.Notes = entry.Notes + "\n" + commitNotes
		} else {
			entry.Notes = commitNotes
		}
	}
}

func (p *Processor) buildReport(
	entries []*aggregate.TimeEntry,
	matched, unmatched []*match.Activity,
	total, ignored, skipped int,
	start, end string,
) *report.Report {
	proposed := make([]report.ProposedEntry, 0, len(entries))
	for _, e := range entries {
		pe := report.ProposedEntry{
			StartDate:   e.StartDate.Format(time.RFC3339),
			EndDate:     e.EndDate.Format(time.RFC3339),
			Project:     e.ProjectID,
			ProjectName: e.ProjectName,
			Title:       e.Title,
			Notes:       e.Notes,
			Confidence:  e.Confidence,
		}
		if p.cfg.Output.IncludeCommitShas {
			pe.CommitShas = e.CommitShas
		}
		if p.cfg.Output.IncludeSourceActivities {
			for _, a := range e.SourceActivities {
				pe.SourceActivities = append(pe.SourceActivities, report.SourceActivity{
					ActivityTitle: a.ActivityTitle,
					Application:   a.Application,
					Duration:      a.Duration,
				})
			}
		}
		proposed = append(proposed, pe)
	}

	var summaries []report.ProjectSummary
	if p.cfg.Output.GroupByProject {
		summaries = report.BuildProjectSummaries(entries)
	}

	return &report.Report{
		Metadata: report.Metadata{
			RunID:                  uuid.NewString(),
			ProcessedDate:          time.Now().Format(time.RFC3339),
			StartDate:              start,
			EndDate:                end,
			TotalInputEntries:      total,
			MatchedEntries:         len(matched),
			UnmatchedEntries:       len(unmatched),
			IgnoredEntries:         ignored,
			SkippedEntries:         skipped,
			ProposedTimeEntries:    len(entries),
			ConfidenceDistribution: aggregate.ConfidenceDistribution(entries),
		},
		Repositories:     p.repoStatus,
		ProjectMappings:  summaries,
		ProposedEntries:  proposed,
		UnmatchedSummary: report.SummarizeUnmatched(unmatched),
	}
}
