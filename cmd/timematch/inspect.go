package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"timematch/internal/export"
)

var (
	inspectInput  string
	inspectStart  string
	inspectEnd    string
	inspectWindow string
	inspectFormat string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show statistics about an activity export",
	Long: `Show the entry count, detected date range and per-window entry counts
of a Timing export without running the matcher.

Examples:
  timematch inspect --input export.json
  timematch inspect --input export.json.gz --window=day
  timematch inspect --input export.json --start 2025-08-01 --end 2025-08-31`,
	Run: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectInput, "input", "", "Timing JSON export file (required)")
	inspectCmd.Flags().StringVar(&inspectStart, "start", "", "Start date (YYYY-MM-DD)")
	inspectCmd.Flags().StringVar(&inspectEnd, "end", "", "End date (YYYY-MM-DD)")
	inspectCmd.Flags().StringVar(&inspectWindow, "window", "week", "Window size (week, day)")
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "json", "Output format (json, yaml, human)")
	_ = inspectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(inspectCmd)
}

// InspectResponseCLI contains export statistics for CLI output
type InspectResponseCLI struct {
	Path         string             `json:"path"`
	TotalEntries int                `json:"totalEntries"`
	StartDate    string             `json:"startDate"`
	EndDate      string             `json:"endDate"`
	Windows      []InspectWindowCLI `json:"windows"`
}

type InspectWindowCLI struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Entries int    `json:"entries"`
}

func runInspect(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	reader := export.NewReader(inspectInput, logger)

	total, err := reader.Count()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading export: %v\n", err)
		os.Exit(1)
	}

	start, end := inspectStart, inspectEnd
	if start == "" || end == "" {
		detectedStart, detectedEnd, err := reader.DateRange()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error detecting date range: %v\n", err)
			os.Exit(1)
		}
		if start == "" {
			start = detectedStart
		}
		if end == "" {
			end = detectedEnd
		}
	}

	days := 7
	if inspectWindow == "day" {
		days = 1
	}

	windows, err := export.WindowRanges(start, end, days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing windows: %v\n", err)
		os.Exit(1)
	}

	resp := &InspectResponseCLI{
		Path:         inspectInput,
		TotalEntries: total,
		StartDate:    start,
		EndDate:      end,
	}
	for _, w := range windows {
		records, err := reader.Window(w.Start, w.End)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading window: %v\n", err)
			os.Exit(1)
		}
		resp.Windows = append(resp.Windows, InspectWindowCLI{
			Start:   w.Start,
			End:     w.End,
			Entries: len(records),
		})
	}

	output, err := FormatResponse(resp, OutputFormat(inspectFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

func formatInspectHuman(resp *InspectResponseCLI) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Export: %s\n", resp.Path))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Total entries: %d\n", resp.TotalEntries))
	b.WriteString(fmt.Sprintf("Date range: %s to %s\n\n", resp.StartDate, resp.EndDate))

	b.WriteString("Windows:\n")
	for _, w := range resp.Windows {
		b.WriteString(fmt.Sprintf("  %s to %s: %d entries\n", w.Start, w.End, w.Entries))
	}

	return b.String()
}
