package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Matching.MinDurationSeconds != 30 {
		t.Errorf("MinDurationSeconds = %d, want 30", cfg.Matching.MinDurationSeconds)
	}
	if cfg.Matching.MaxGapMinutes != 15 {
		t.Errorf("MaxGapMinutes = %d, want 15", cfg.Matching.MaxGapMinutes)
	}
	if cfg.Matching.CommitTimeWindowMinutes != 15 {
		t.Errorf("CommitTimeWindowMinutes = %d, want 15", cfg.Matching.CommitTimeWindowMinutes)
	}
	if cfg.Matching.ConfidenceThresholds.High != 0.85 || cfg.Matching.ConfidenceThresholds.Medium != 0.6 {
		t.Errorf("thresholds = %+v", cfg.Matching.ConfidenceThresholds)
	}
	if !cfg.Output.IncludeCommitShas || !cfg.Output.IncludeSourceActivities {
		t.Errorf("output defaults = %+v", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "projectMappings": {
    "ticketPrefixes": {
      "CH2-": {"projectId": "proj-1", "projectName": "Checkout"}
    },
    "activityPatterns": [
      {"pattern": "standup", "projectId": "proj-2", "projectName": "Meetings"}
    ],
    "ignorePatterns": ["Spotify"]
  },
  "matching": {
    "minDurationSeconds": 60,
    "maxGapMinutes": 20
  },
  "gitRepos": [
    {"path": "/repos/checkout", "ticketPrefixes": ["CH2-"]}
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Matching.MinDurationSeconds != 60 {
		t.Errorf("MinDurationSeconds = %d, want 60", cfg.Matching.MinDurationSeconds)
	}
	if cfg.Matching.MaxGapMinutes != 20 {
		t.Errorf("MaxGapMinutes = %d, want 20", cfg.Matching.MaxGapMinutes)
	}
	// Fields absent from the file take defaults
	if cfg.Matching.CommitTimeWindowMinutes != 15 {
		t.Errorf("CommitTimeWindowMinutes = %d, want default 15", cfg.Matching.CommitTimeWindowMinutes)
	}
	if cfg.Matching.ConfidenceThresholds.High != 0.85 {
		t.Errorf("High = %v, want default 0.85", cfg.Matching.ConfidenceThresholds.High)
	}

	mapping, ok := cfg.ProjectMappings.TicketPrefixes["CH2-"]
	if !ok {
		t.Fatal("ticket prefix CH2- not loaded")
	}
	if mapping.ProjectID != "proj-1" || mapping.ProjectName != "Checkout" {
		t.Errorf("mapping = %+v", mapping)
	}
	if len(cfg.ProjectMappings.ActivityPatterns) != 1 || cfg.ProjectMappings.ActivityPatterns[0].Pattern != "standup" {
		t.Errorf("activityPatterns = %+v", cfg.ProjectMappings.ActivityPatterns)
	}
	if len(cfg.GitRepos) != 1 || cfg.GitRepos[0].Path != "/repos/checkout" {
		t.Errorf("gitRepos = %+v", cfg.GitRepos)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config failed validation: %v", err)
	}
}

func TestLoadPreservesTicketPrefixOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "projectMappings": {
    "ticketPrefixes": {
      "ZZ-": {"projectId": "p-z", "projectName": "Zulu"},
      "AA-": {"projectId": "p-a", "projectName": "Alpha"},
      "MM-": {"projectId": "p-m", "projectName": "Mike"}
    }
  }
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// The map loses key order; the recorded order must match the file
	want := []string{"ZZ-", "AA-", "MM-"}
	got := cfg.ProjectMappings.TicketPrefixOrder
	if len(got) != len(want) {
		t.Fatalf("TicketPrefixOrder = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TicketPrefixOrder[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load() did not fail for an explicitly named missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() did not fail for invalid JSON")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectMappings.TicketPrefixes["CH2-"] = ProjectMapping{}
	cfg.ProjectMappings.ActivityPatterns = []ActivityPattern{
		{Pattern: "[unclosed", Regex: true, ProjectID: "p", ProjectName: "P"},
	}
	cfg.ProjectMappings.IgnorePatterns = []string{"[also-unclosed"}
	cfg.Matching.MaxGapMinutes = 0
	cfg.Matching.ConfidenceThresholds = ConfidenceThresholds{High: 0.5, Medium: 0.6, Low: 0.3}
	cfg.GitRepos = []GitRepoConfig{{}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}

	wantFields := []string{
		"projectMappings.ticketPrefixes.CH2-.projectId",
		"projectMappings.ticketPrefixes.CH2-.projectName",
		"projectMappings.activityPatterns[0].pattern",
		"projectMappings.ignorePatterns[0]",
		"matching.maxGapMinutes",
		"matching.confidenceThresholds",
		"gitRepos[0].path",
	}
	for _, field := range wantFields {
		found := false
		for _, v := range errs {
			if v.Field == field {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing validation error for field %s in:\n%v", field, err)
		}
	}

	if !strings.Contains(err.Error(), "maxGapMinutes") {
		t.Errorf("combined message missing field name: %s", err.Error())
	}
}

func TestValidateCaseInsensitiveRegex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectMappings.ActivityPatterns = []ActivityPattern{
		{Pattern: `jira|confluence`, Regex: true, ProjectID: "p", ProjectName: "P"},
	}
	cfg.ProjectMappings.IgnorePatterns = []string{`^Spotify$`}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}
