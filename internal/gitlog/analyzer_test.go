package gitlog

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"timematch/internal/errors"
	"timematch/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})
}

func newLoadedAnalyzer(t *testing.T, lines []string) *Analyzer {
	t.Helper()
	a := NewAnalyzer("/tmp/repo", []string{"CH2-", "FALL-"}, testLogger())
	for _, line := range lines {
		commit, ok := a.parseCommitLine(line)
		if !ok {
			t.Fatalf("parseCommitLine(%q) rejected valid line", line)
		}
		a.index(commit)
	}
	return a
}

func TestParseCommitLine(t *testing.T) {
	a := NewAnalyzer("/tmp/repo", []string{"CH2-"}, testLogger())

	commit, ok := a.parseCommitLine(
		"abcdef1234567890|2025-08-17T10:30:00+02:00|CH2-13130: fix the widget|Jane Dev")
	if !ok {
		t.Fatal("parseCommitLine rejected a valid line")
	}

	if commit.SHA != "abcdef12" {
		t.Errorf("SHA = %q, want abcdef12", commit.SHA)
	}
	if commit.Message != "CH2-13130: fix the widget" {
		t.Errorf("Message = %q", commit.Message)
	}
	if commit.Author != "Jane Dev" {
		t.Errorf("Author = %q, want Jane Dev", commit.Author)
	}
	if len(commit.Tickets) != 1 || commit.Tickets[0] != "CH2-13130" {
		t.Errorf("Tickets = %v, want [CH2-13130]", commit.Tickets)
	}
}

func TestParseCommitLineMalformed(t *testing.T) {
	a := NewAnalyzer("/tmp/repo", []string{"CH2-"}, testLogger())

	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "abc|2025-08-17T10:30:00Z|message"},
		{"bad timestamp", "abc|yesterday|message|author"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := a.parseCommitLine(tt.line); ok {
				t.Errorf("parseCommitLine(%q) accepted a malformed line", tt.line)
			}
		})
	}
}

func TestParseCommitLineMessageWithPipes(t *testing.T) {
	a := NewAnalyzer("/tmp/repo", []string{"CH2-"}, testLogger())

	// Only the first three separators are structural; extra pipes in the
	// subject bleed into the author segment
	commit, ok := a.parseCommitLine("abcdef1234|2025-08-17T10:30:00Z|msg a|b|Jane Dev")
	if !ok {
		t.Fatal("parseCommitLine rejected line")
	}
	if commit.Message != "msg a" {
		t.Errorf("Message = %q", commit.Message)
	}
	if commit.Author != "b|Jane Dev" {
		t.Errorf("Author = %q", commit.Author)
	}
}

func TestExtractTickets(t *testing.T) {
	a := NewAnalyzer("/tmp/repo", []string{"CH2-", "FALL-"}, testLogger())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "CH2-13130: fix", []string{"CH2-13130"}},
		{"multiple distinct", "CH2-1 relates to FALL-2 and CH2-3", []string{"CH2-1", "CH2-3", "FALL-2"}},
		{"case insensitive uppercased", "ch2-42 done", []string{"CH2-42"}},
		{"duplicate collapsed", "CH2-7 CH2-7", []string{"CH2-7"}},
		{"none", "no references here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.extractTickets(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("extractTickets(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("extractTickets(%q)[%d] = %q, want %q", tt.text, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFindCommitsForActivityTicketPriority(t *testing.T) {
	a := newLoadedAnalyzer(t, []string{
		// Ticket commit well outside the entry interval but inside the
		// expanded window thanks to the ticket index spanning dates
		"aaaa111122223333|2025-08-17T08:10:00Z|CH2-1: start work|Jane",
		// Time-correlated commit without the ticket
		"bbbb111122223333|2025-08-17T09:30:00Z|unrelated tweak|Jane",
	})

	entryStart := time.Date(2025, 8, 17, 9, 0, 0, 0, time.UTC)
	entryEnd := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)

	// Ticket-matched commits exist, so the time-only commit is excluded
	got := a.FindCommitsForActivity(entryStart.Add(-45*time.Minute), entryEnd, "CH2-1", 15)
	if len(got) != 1 || got[0].SHA != "aaaa1111" {
		t.Fatalf("FindCommitsForActivity = %v, want only the ticket commit", got)
	}
}

func TestFindCommitsForActivityTicketOutsideWindowFallsBack(t *testing.T) {
	a := newLoadedAnalyzer(t, []string{
		"aaaa111122223333|2025-08-17T06:00:00Z|CH2-1: early work|Jane",
		"bbbb111122223333|2025-08-17T09:30:00Z|unrelated tweak|Jane",
	})

	entryStart := time.Date(2025, 8, 17, 9, 0, 0, 0, time.UTC)
	entryEnd := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)

	// The ticket's only commit is outside the expanded window, so the
	// time fallback applies
	got := a.FindCommitsForActivity(entryStart, entryEnd, "CH2-1", 15)
	if len(got) != 1 || got[0].SHA != "bbbb1111" {
		t.Fatalf("FindCommitsForActivity = %v, want the time-window commit", got)
	}
}

func TestFindCommitsForActivityTimeWindow(t *testing.T) {
	a := newLoadedAnalyzer(t, []string{
		"aaaa111122223333|2025-08-17T08:50:00Z|before, inside window|Jane",
		"bbbb111122223333|2025-08-17T09:30:00Z|inside interval|Jane",
		"cccc111122223333|2025-08-17T10:20:00Z|after, outside window|Jane",
	})

	entryStart := time.Date(2025, 8, 17, 9, 0, 0, 0, time.UTC)
	entryEnd := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)

	got := a.FindCommitsForActivity(entryStart, entryEnd, "", 15)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	// Ascending by timestamp
	if got[0].SHA != "aaaa1111" || got[1].SHA != "bbbb1111" {
		t.Errorf("order = %s, %s", got[0].SHA, got[1].SHA)
	}
}

func TestFindCommitsForActivitySpanningMidnight(t *testing.T) {
	a := newLoadedAnalyzer(t, []string{
		"aaaa111122223333|2025-08-17T23:50:00Z|late night|Jane",
		"bbbb111122223333|2025-08-18T00:10:00Z|past midnight|Jane",
	})

	entryStart := time.Date(2025, 8, 17, 23, 30, 0, 0, time.UTC)
	entryEnd := time.Date(2025, 8, 18, 0, 30, 0, 0, time.UTC)

	// Both the start-date and end-date buckets must be searched
	got := a.FindCommitsForActivity(entryStart, entryEnd, "", 15)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	if got[0].SHA != "aaaa1111" || got[1].SHA != "bbbb1111" {
		t.Errorf("order = %s, %s", got[0].SHA, got[1].SHA)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/jane")

	tests := []struct {
		in   string
		want string
	}{
		{"~/src/backend", "/home/jane/src/backend"},
		{"~", "/home/jane"},
		{"/abs/path", "/abs/path"},
		{"relative/path", "relative/path"},
		{"~other/src", "~other/src"},
	}

	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewAnalyzerExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	a := NewAnalyzer("~/src/backend", []string{"CH2-"}, testLogger())
	if want := filepath.Join(home, "src", "backend"); a.Path() != want {
		t.Errorf("Path() = %q, want %q", a.Path(), want)
	}
}

func TestLoadCommitsTildePath(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	home := t.TempDir()
	t.Setenv("HOME", home)

	repo := filepath.Join(home, "src", "backend")
	if err := os.MkdirAll(repo, 0755); err != nil {
		t.Fatalf("creating repo dir: %v", err)
	}
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	git("init")
	git("-c", "user.name=Jane Dev", "-c", "user.email=jane@example.com",
		"commit", "--allow-empty", "-m", "CH2-1: initial work")

	a := NewAnalyzer("~/src/backend", []string{"CH2-"}, testLogger())
	if err := a.LoadCommits(context.Background(), "2000-01-01", "2100-01-01"); err != nil {
		t.Fatalf("LoadCommits() error: %v", err)
	}

	stats := a.GetStats()
	if stats.TotalCommits != 1 {
		t.Errorf("TotalCommits = %d, want 1", stats.TotalCommits)
	}
	if stats.TicketsFound != 1 {
		t.Errorf("TicketsFound = %d, want 1", stats.TicketsFound)
	}
}

func TestLoadCommitsMissingRepo(t *testing.T) {
	a := NewAnalyzer(filepath.Join(t.TempDir(), "does-not-exist"), []string{"CH2-"}, testLogger())

	err := a.LoadCommits(context.Background(), "2025-08-01", "2025-08-31")
	if err == nil {
		t.Fatal("LoadCommits did not fail for a missing path")
	}
	coded, ok := err.(*errors.CodedError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.CodedError", err)
	}
	if coded.Code != errors.RepoUnavailable {
		t.Errorf("Code = %q, want %q", coded.Code, errors.RepoUnavailable)
	}
}

func TestGetStats(t *testing.T) {
	a := newLoadedAnalyzer(t, []string{
		"aaaa111122223333|2025-08-17T08:10:00Z|CH2-1: work|Jane",
		"bbbb111122223333|2025-08-19T09:30:00Z|FALL-2: triage|John",
		"cccc111122223333|2025-08-18T09:30:00Z|no ticket|Jane",
	})

	stats := a.GetStats()
	if stats.TotalCommits != 3 {
		t.Errorf("TotalCommits = %d, want 3", stats.TotalCommits)
	}
	if stats.TicketsFound != 2 {
		t.Errorf("TicketsFound = %d, want 2", stats.TicketsFound)
	}
	if stats.Authors != 2 {
		t.Errorf("Authors = %d, want 2", stats.Authors)
	}
	if stats.FirstCommit != "2025-08-17" || stats.LastCommit != "2025-08-19" {
		t.Errorf("range = %s..%s", stats.FirstCommit, stats.LastCommit)
	}
}

func TestFormatCommitNotes(t *testing.T) {
	tests := []struct {
		name    string
		commits []Commit
		want    string
	}{
		{"empty", nil, ""},
		{"single", []Commit{{SHA: "abc12345"}}, "Commits: abc12345"},
		{"multiple", []Commit{{SHA: "abc12345"}, {SHA: "def67890"}}, "Commits: abc12345, def67890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCommitNotes(tt.commits); got != tt.want {
				t.Errorf("FormatCommitNotes() = %q, want %q", got, tt.want)
			}
		})
	}
}
