package main

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"timematch/internal/gitlog"
	"timematch/internal/report"
)

func TestFormatResponseJSON(t *testing.T) {
	resp := &InspectResponseCLI{
		Path:         "export.json",
		TotalEntries: 3,
		StartDate:    "2025-08-01",
		EndDate:      "2025-08-16",
	}

	out, err := FormatResponse(resp, FormatJSON)
	if err != nil {
		t.Fatalf("FormatResponse() error: %v", err)
	}

	var decoded InspectResponseCLI
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TotalEntries != 3 || decoded.Path != "export.json" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestFormatResponseYAML(t *testing.T) {
	resp := &CommitsResponseCLI{
		Path:      "/repos/checkout",
		StartDate: "2025-08-01",
		EndDate:   "2025-08-16",
	}

	out, err := FormatResponse(resp, FormatYAML)
	if err != nil {
		t.Fatalf("FormatResponse() error: %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded["path"] != "/repos/checkout" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestFormatResponseHumanReport(t *testing.T) {
	r := &report.Report{
		Metadata: report.Metadata{
			StartDate:         "2025-08-01",
			EndDate:           "2025-08-16",
			TotalInputEntries: 10,
		},
	}

	out, err := FormatResponse(r, FormatHuman)
	if err != nil {
		t.Fatalf("FormatResponse() error: %v", err)
	}
	if !strings.Contains(out, "Timematch Report") {
		t.Errorf("human output missing header:\n%s", out)
	}
}

func TestFormatResponseHumanInspect(t *testing.T) {
	resp := &InspectResponseCLI{
		Path:         "export.json",
		TotalEntries: 5,
		StartDate:    "2025-08-01",
		EndDate:      "2025-08-08",
		Windows: []InspectWindowCLI{
			{Start: "2025-08-01", End: "2025-08-08", Entries: 5},
		},
	}

	out, err := FormatResponse(resp, FormatHuman)
	if err != nil {
		t.Fatalf("FormatResponse() error: %v", err)
	}
	if !strings.Contains(out, "Total entries: 5") {
		t.Errorf("missing entry count:\n%s", out)
	}
	if !strings.Contains(out, "2025-08-01 to 2025-08-08: 5 entries") {
		t.Errorf("missing window line:\n%s", out)
	}
}

func TestFormatResponseHumanCommits(t *testing.T) {
	resp := &CommitsResponseCLI{
		Path:      "/repos/checkout",
		StartDate: "2025-08-01",
		EndDate:   "2025-08-16",
		Stats:     gitlog.Stats{TotalCommits: 12, TicketsFound: 3, Authors: 2},
		ByTicket: []TicketCommitsCLI{
			{Ticket: "CH2-42", Count: 4},
		},
	}

	out, err := FormatResponse(resp, FormatHuman)
	if err != nil {
		t.Fatalf("FormatResponse() error: %v", err)
	}
	if !strings.Contains(out, "Commits: 12 (2 authors)") {
		t.Errorf("missing stats line:\n%s", out)
	}
	if !strings.Contains(out, "CH2-42: 4 commits") {
		t.Errorf("missing ticket line:\n%s", out)
	}
}

func TestFormatResponseUnsupported(t *testing.T) {
	if _, err := FormatResponse(&report.Report{}, OutputFormat("xml")); err == nil {
		t.Error("FormatResponse() did not fail for an unsupported format")
	}
}
