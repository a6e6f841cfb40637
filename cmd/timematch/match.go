package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"timematch/internal/export"
	"timematch/internal/pipeline"
	"timematch/internal/report"
)

var (
	matchInput  string
	matchOutput string
	matchStart  string
	matchEnd    string
	matchFormat string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match activities to projects and propose time entries",
	Long: `Process a Timing activity export, match activities to projects via
ticket and pattern rules, cluster them into time entry proposals and
correlate them with git commits.

The export is read in bounded date windows; .zst and .gz exports are
decompressed transparently. When --start/--end are omitted the range is
detected from the export itself.

Examples:
  timematch match --input export.json
  timematch match --input export.json.zst --start 2025-08-01 --end 2025-08-31
  timematch match --input export.json --output matches.json
  timematch match --input export.json --format=human`,
	Run: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchInput, "input", "", "Timing JSON export file (required)")
	matchCmd.Flags().StringVar(&matchOutput, "output", "", "Write the JSON report to this file instead of stdout")
	matchCmd.Flags().StringVar(&matchStart, "start", "", "Start date (YYYY-MM-DD)")
	matchCmd.Flags().StringVar(&matchEnd, "end", "", "End date (YYYY-MM-DD)")
	matchCmd.Flags().StringVar(&matchFormat, "format", "json", "Output format (json, yaml, human)")
	_ = matchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	processor, err := pipeline.NewProcessor(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building matcher: %v\n", err)
		os.Exit(1)
	}

	reader := export.NewReader(matchInput, logger)
	result, err := processor.Run(context.Background(), reader, matchStart, matchEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error processing export: %v\n", err)
		os.Exit(1)
	}

	if matchOutput != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling report: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(matchOutput, append(data, '\n'), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
		// The file holds the report; the terminal gets the summary
		fmt.Fprint(os.Stderr, report.HumanSummary(result))
		fmt.Fprintf(os.Stderr, "Results saved to: %s\n", matchOutput)
	} else {
		output, err := FormatResponse(result, OutputFormat(matchFormat))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(output)
	}

	logger.Debug("Match run completed", map[string]interface{}{
		"entries":  result.Metadata.ProposedTimeEntries,
		"duration": time.Since(start).Milliseconds(),
	})
}
