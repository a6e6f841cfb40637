// Package gitlog loads version-control history per repository and finds
// commits temporally or logically related to a time entry.
package gitlog

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"timematch/internal/errors"
	"timematch/internal/logging"
)

// DefaultQueryTimeout bounds a single git invocation
const DefaultQueryTimeout = 30 * time.Second

// Commit represents one parsed git commit
type Commit struct {
	SHA       string    `json:"sha"` // short id, 8 chars
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"` // subject line only
	Author    string    `json:"author"`
	Tickets   []string  `json:"tickets,omitempty"` // sorted, deduplicated
}

// Analyzer loads and indexes commits for one repository. Commits are
// loaded once per run for the query date range and indexed by calendar
// date and by ticket.
type Analyzer struct {
	repoPath       string
	ticketPrefixes []string
	ticketRes      []*regexp.Regexp
	queryTimeout   time.Duration
	logger         *logging.Logger

	commits  []Commit
	byDate   map[string][]Commit
	byTicket map[string][]Commit
}

// NewAnalyzer creates an analyzer for one repository. A leading ~ in the
// path is expanded against the user's home directory, since configured
// repository paths are commonly written that way. Ticket prefix regexes
// are compiled once and held as immutable state.
func NewAnalyzer(repoPath string, ticketPrefixes []string, logger *logging.Logger) *Analyzer {
	res := make([]*regexp.Regexp, 0, len(ticketPrefixes))
	for _, prefix := range ticketPrefixes {
		res = append(res, regexp.MustCompile("(?i)("+regexp.QuoteMeta(prefix)+`\d+)`))
	}

	return &Analyzer{
		repoPath:       expandHome(repoPath),
		ticketPrefixes: ticketPrefixes,
		ticketRes:      res,
		queryTimeout:   DefaultQueryTimeout,
		logger:         logger,
		byDate:         make(map[string][]Commit),
		byTicket:       make(map[string][]Commit),
	}
}

// Path returns the repository path with any leading ~ already expanded
func (a *Analyzer) Path() string {
	return a.repoPath
}

// expandHome resolves a leading ~ against the user's home directory. Paths
// without one, and paths like ~user that name another account, are
// returned unchanged.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// LoadCommits retrieves history across all branches for the date range and
// builds the date and ticket indexes. start and end are ISO date strings.
func (a *Analyzer) LoadCommits(ctx context.Context, start, end string) error {
	if _, err := os.Stat(a.repoPath); err != nil {
		return errors.New(
			errors.RepoUnavailable,
			"Git repository not found",
			err,
		).WithDetails(map[string]interface{}{
			"path": a.repoPath,
		})
	}

	lines, err := a.executeGitLines(ctx,
		"log",
		"--all",
		"--since="+start,
		"--until="+end,
		"--format=%H|%aI|%s|%an",
	)
	if err != nil {
		return err
	}

	for _, line := range lines {
		commit, ok := a.parseCommitLine(line)
		if !ok {
			continue
		}
		a.index(commit)
	}

	a.logger.Info("Loaded commits", map[string]interface{}{
		"repo":    a.repoPath,
		"commits": len(a.commits),
		"tickets": len(a.byTicket),
	})

	return nil
}

// parseCommitLine parses one pipe-delimited git log line. Malformed lines
// are skipped with a warning so a single bad line never fails the load.
func (a *Analyzer) parseCommitLine(line string) (Commit, bool) {
	parts := strings.SplitN(line, "|", 4)
	if len(parts) != 4 {
		a.logger.Warn("Skipping malformed git log line", map[string]interface{}{
			"line": line,
		})
		return Commit{}, false
	}

	sha, timestampStr, message, author := parts[0], parts[1], parts[2], parts[3]

	timestamp, err := time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		a.logger.Warn("Skipping commit with unparsable timestamp", map[string]interface{}{
			"sha":       sha,
			"timestamp": timestampStr,
		})
		return Commit{}, false
	}

	if len(sha) > 8 {
		sha = sha[:8]
	}

	return Commit{
		SHA:       sha,
		Timestamp: timestamp,
		Message:   message,
		Author:    author,
		Tickets:   a.extractTickets(message),
	}, true
}

func (a *Analyzer) index(commit Commit) {
	a.commits = append(a.commits, commit)

	dateKey := commit.Timestamp.Format("2006-01-02")
	a.byDate[dateKey] = append(a.byDate[dateKey], commit)

	for _, ticket := range commit.Tickets {
		a.byTicket[ticket] = append(a.byTicket[ticket], commit)
	}
}

// extractTickets finds every prefix+digits reference in the text. A commit
// message may reference several distinct tickets; the result is a sorted
// set.
func (a *Analyzer) extractTickets(text string) []string {
	seen := make(map[string]struct{})
	for _, re := range a.ticketRes {
		for _, m := range re.FindAllString(text, -1) {
			seen[strings.ToUpper(m)] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	tickets := make([]string, 0, len(seen))
	for t := range seen {
		tickets = append(tickets, t)
	}
	sort.Strings(tickets)
	return tickets
}

// FindCommitsForActivity returns commits correlated with the entry
// interval, expanded by windowMinutes on both ends. A ticket reference in
// a commit message is strong relatedness evidence regardless of precise
// timing, so ticket-indexed commits short-circuit the time-only fallback.
func (a *Analyzer) FindCommitsForActivity(start, end time.Time, ticket string, windowMinutes int) []Commit {
	searchStart := start.Add(-time.Duration(windowMinutes) * time.Minute)
	searchEnd := end.Add(time.Duration(windowMinutes) * time.Minute)

	if ticket != "" {
		if candidates, ok := a.byTicket[ticket]; ok {
			var matched []Commit
			for _, c := range candidates {
				if inWindow(c.Timestamp, searchStart, searchEnd) {
					matched = append(matched, c)
				}
			}
			if len(matched) > 0 {
				return matched
			}
		}
	}

	var matched []Commit
	startKey := start.Format("2006-01-02")
	for _, c := range a.byDate[startKey] {
		if inWindow(c.Timestamp, searchStart, searchEnd) {
			matched = append(matched, c)
		}
	}

	// Entries spanning midnight also need the end date's bucket
	endKey := end.Format("2006-01-02")
	if endKey != startKey {
		for _, c := range a.byDate[endKey] {
			if inWindow(c.Timestamp, searchStart, searchEnd) {
				matched = append(matched, c)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	return matched
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// Stats summarizes the loaded commits
type Stats struct {
	TotalCommits int    `json:"totalCommits"`
	FirstCommit  string `json:"firstCommit,omitempty"` // date of oldest commit
	LastCommit   string `json:"lastCommit,omitempty"`  // date of newest commit
	TicketsFound int    `json:"ticketsFound"`
	Authors      int    `json:"authors"`
}

// GetStats returns statistics about the loaded commits
func (a *Analyzer) GetStats() Stats {
	stats := Stats{
		TotalCommits: len(a.commits),
		TicketsFound: len(a.byTicket),
	}

	authors := make(map[string]struct{})
	for _, c := range a.commits {
		authors[c.Author] = struct{}{}
		date := c.Timestamp.Format("2006-01-02")
		if stats.FirstCommit == "" || date < stats.FirstCommit {
			stats.FirstCommit = date
		}
		if date > stats.LastCommit {
			stats.LastCommit = date
		}
	}
	stats.Authors = len(authors)

	return stats
}

// CommitsByTicket returns the ticket index
func (a *Analyzer) CommitsByTicket() map[string][]Commit {
	return a.byTicket
}

// FormatCommitNotes renders commits as a notes line like
// "Commits: abc12345, def67890"
func FormatCommitNotes(commits []Commit) string {
	if len(commits) == 0 {
		return ""
	}
	shas := make([]string, 0, len(commits))
	for _, c := range commits {
		shas = append(shas, c.SHA)
	}
	return "Commits: " + strings.Join(shas, ", ")
}

// executeGitLines runs a git command in the repository with a timeout and
// returns its output split into non-empty lines
func (a *Analyzer) executeGitLines(ctx context.Context, args ...string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.repoPath

	a.logger.Debug("Executing git command", map[string]interface{}{
		"repo": a.repoPath,
		"args": args,
	})

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.Timeout, "Git command timed out", err)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, errors.New(
				errors.RepoUnavailable,
				"Git command failed",
				err,
			).WithDetails(map[string]interface{}{
				"repo":   a.repoPath,
				"args":   args,
				"stderr": string(exitErr.Stderr),
			})
		}
		return nil, errors.New(errors.InternalError, "Failed to execute git command", err)
	}

	raw := strings.Split(strings.TrimSpace(string(output)), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	return lines, nil
}
