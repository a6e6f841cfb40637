package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"timematch/internal/gitlog"
)

var (
	commitsStart    string
	commitsEnd      string
	commitsPrefixes []string
	commitsFormat   string
)

var commitsCmd = &cobra.Command{
	Use:   "commits REPO_PATH",
	Short: "Inspect a repository's commits for a date range",
	Long: `Load a repository's history for a date range and show commit
statistics and per-ticket commit counts.

Ticket prefixes default to the repository's entry in the configuration
when the path matches a configured gitRepo.

Examples:
  timematch commits ~/src/backend --start 2025-08-01 --end 2025-08-31
  timematch commits ~/src/backend --start 2025-08-01 --end 2025-08-31 --prefix CH2- --prefix FALL-`,
	Args: cobra.ExactArgs(1),
	Run:  runCommits,
}

func init() {
	commitsCmd.Flags().StringVar(&commitsStart, "start", "", "Start date (YYYY-MM-DD, required)")
	commitsCmd.Flags().StringVar(&commitsEnd, "end", "", "End date (YYYY-MM-DD, required)")
	commitsCmd.Flags().StringArrayVar(&commitsPrefixes, "prefix", nil, "Ticket prefix to extract (repeatable)")
	commitsCmd.Flags().StringVar(&commitsFormat, "format", "json", "Output format (json, yaml, human)")
	_ = commitsCmd.MarkFlagRequired("start")
	_ = commitsCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(commitsCmd)
}

// CommitsResponseCLI contains repository commit statistics for CLI output
type CommitsResponseCLI struct {
	Path      string             `json:"path"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	Stats     gitlog.Stats       `json:"stats"`
	ByTicket  []TicketCommitsCLI `json:"byTicket"`
}

type TicketCommitsCLI struct {
	Ticket  string          `json:"ticket"`
	Count   int             `json:"count"`
	Commits []gitlog.Commit `json:"commits"`
}

func runCommits(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	repoPath := args[0]

	prefixes := commitsPrefixes
	if len(prefixes) == 0 {
		for _, repo := range cfg.GitRepos {
			if repo.Path == repoPath {
				prefixes = repo.TicketPrefixes
				break
			}
		}
	}
	if len(prefixes) == 0 {
		fmt.Fprintln(os.Stderr, "No ticket prefixes: pass --prefix or configure the repository in gitRepos")
		os.Exit(1)
	}

	analyzer := gitlog.NewAnalyzer(repoPath, prefixes, logger)
	if err := analyzer.LoadCommits(context.Background(), commitsStart, commitsEnd); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading commits: %v\n", err)
		os.Exit(1)
	}

	resp := &CommitsResponseCLI{
		Path:      repoPath,
		StartDate: commitsStart,
		EndDate:   commitsEnd,
		Stats:     analyzer.GetStats(),
	}

	byTicket := analyzer.CommitsByTicket()
	tickets := make([]string, 0, len(byTicket))
	for ticket := range byTicket {
		tickets = append(tickets, ticket)
	}
	sort.Strings(tickets)
	for _, ticket := range tickets {
		resp.ByTicket = append(resp.ByTicket, TicketCommitsCLI{
			Ticket:  ticket,
			Count:   len(byTicket[ticket]),
			Commits: byTicket[ticket],
		})
	}

	output, err := FormatResponse(resp, OutputFormat(commitsFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

func formatCommitsHuman(resp *CommitsResponseCLI) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Repository: %s\n", resp.Path))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Date range: %s to %s\n", resp.StartDate, resp.EndDate))
	b.WriteString(fmt.Sprintf("Commits: %d (%d authors)\n", resp.Stats.TotalCommits, resp.Stats.Authors))
	b.WriteString(fmt.Sprintf("Tickets found: %d\n\n", resp.Stats.TicketsFound))

	if len(resp.ByTicket) > 0 {
		b.WriteString("Commits by ticket:\n")
		for _, t := range resp.ByTicket {
			b.WriteString(fmt.Sprintf("  %s: %d commits\n", t.Ticket, t.Count))
		}
	}

	return b.String()
}
