package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the config file looked up when --config is not given
const DefaultConfigFile = "timematch-config.json"

// Config represents the complete timematch configuration
type Config struct {
	ProjectMappings ProjectMappingsConfig `json:"projectMappings" mapstructure:"projectMappings"`
	Matching        MatchingConfig        `json:"matching" mapstructure:"matching"`
	GitRepos        []GitRepoConfig       `json:"gitRepos" mapstructure:"gitRepos"`
	Output          OutputConfig          `json:"output" mapstructure:"output"`
	Logging         LoggingConfig         `json:"logging" mapstructure:"logging"`
}

// ProjectMappingsConfig contains the matching tables: ticket prefixes,
// ordered activity patterns and ignore patterns
type ProjectMappingsConfig struct {
	TicketPrefixes   map[string]ProjectMapping `json:"ticketPrefixes" mapstructure:"ticketPrefixes"`
	ActivityPatterns []ActivityPattern         `json:"activityPatterns" mapstructure:"activityPatterns"`
	IgnorePatterns   []string                  `json:"ignorePatterns" mapstructure:"ignorePatterns"`

	// TicketPrefixOrder records the ticketPrefixes key order as written in
	// the config file. Go maps and viper's decode both lose JSON key order,
	// so Load recovers it with a token-level pass over the raw file.
	TicketPrefixOrder []string `json:"-" mapstructure:"-"`
}

// ProjectMapping maps a ticket prefix to a project
type ProjectMapping struct {
	ProjectID   string `json:"projectId" mapstructure:"projectId"`
	ProjectName string `json:"projectName" mapstructure:"projectName"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// ActivityPattern maps a title/application pattern to a project.
// Pattern is a lowercase substring unless Regex is set.
type ActivityPattern struct {
	Pattern     string `json:"pattern" mapstructure:"pattern"`
	Regex       bool   `json:"regex" mapstructure:"regex"`
	ProjectID   string `json:"projectId" mapstructure:"projectId"`
	ProjectName string `json:"projectName" mapstructure:"projectName"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// MatchingConfig contains matching thresholds
type MatchingConfig struct {
	MinDurationSeconds      int                  `json:"minDurationSeconds" mapstructure:"minDurationSeconds"`
	MaxGapMinutes           int                  `json:"maxGapMinutes" mapstructure:"maxGapMinutes"`
	CommitTimeWindowMinutes int                  `json:"commitTimeWindowMinutes" mapstructure:"commitTimeWindowMinutes"`
	ConfidenceThresholds    ConfidenceThresholds `json:"confidenceThresholds" mapstructure:"confidenceThresholds"`
}

// ConfidenceThresholds contains the inclusive lower bounds for the
// categorical confidence levels
type ConfidenceThresholds struct {
	High   float64 `json:"high" mapstructure:"high"`
	Medium float64 `json:"medium" mapstructure:"medium"`
	Low    float64 `json:"low" mapstructure:"low"`
}

// GitRepoConfig contains one repository to correlate commits from
type GitRepoConfig struct {
	Path           string   `json:"path" mapstructure:"path"`
	TicketPrefixes []string `json:"ticketPrefixes" mapstructure:"ticketPrefixes"`
	Description    string   `json:"description,omitempty" mapstructure:"description"`
}

// OutputConfig contains report output flags
type OutputConfig struct {
	IncludeSourceActivities bool `json:"includeSourceActivities" mapstructure:"includeSourceActivities"`
	IncludeCommitShas       bool `json:"includeCommitShas" mapstructure:"includeCommitShas"`
	GroupByProject          bool `json:"groupByProject" mapstructure:"groupByProject"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ProjectMappings: ProjectMappingsConfig{
			TicketPrefixes:   map[string]ProjectMapping{},
			ActivityPatterns: []ActivityPattern{},
			IgnorePatterns:   []string{},
		},
		Matching: MatchingConfig{
			MinDurationSeconds:      30,
			MaxGapMinutes:           15,
			CommitTimeWindowMinutes: 15,
			ConfidenceThresholds: ConfidenceThresholds{
				High:   0.85,
				Medium: 0.6,
				Low:    0.3,
			},
		},
		GitRepos: []GitRepoConfig{},
		Output: OutputConfig{
			IncludeSourceActivities: true,
			IncludeCommitShas:       true,
			GroupByProject:          true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from the given path, or from
// timematch-config.json in the working directory when path is empty.
// Environment variables prefixed with TIMEMATCH_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("matching.minDurationSeconds", 30)
	v.SetDefault("matching.maxGapMinutes", 15)
	v.SetDefault("matching.commitTimeWindowMinutes", 15)
	v.SetDefault("matching.confidenceThresholds.high", 0.85)
	v.SetDefault("matching.confidenceThresholds.medium", 0.6)
	v.SetDefault("matching.confidenceThresholds.low", 0.3)
	v.SetDefault("output.includeSourceActivities", true)
	v.SetDefault("output.includeCommitShas", true)
	v.SetDefault("output.groupByProject", true)
	v.SetDefault("logging.format", "human")
	v.SetDefault("logging.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, ".json"))
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TIMEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if used := v.ConfigFileUsed(); used != "" {
		order, err := ticketPrefixOrder(used)
		if err != nil {
			return nil, err
		}
		cfg.ProjectMappings.TicketPrefixOrder = order
	}

	return &cfg, nil
}

// ticketPrefixOrder reads the ticketPrefixes object keys from the raw
// config file in the order they were written
func ticketPrefixOrder(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		ProjectMappings struct {
			TicketPrefixes json.RawMessage `json:"ticketPrefixes"`
		} `json:"projectMappings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		// Non-JSON config format; no file order to recover
		return nil, nil
	}
	raw := doc.ProjectMappings.TicketPrefixes
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in ticketPrefixes", keyTok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// ValidationError describes one invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// ValidationErrors collects every problem found during validation so the
// user can fix the whole file in one pass
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "\n")
}

// Validate checks the configuration and returns the complete list of
// problems, not just the first one. Returns nil when the config is valid.
func (c *Config) Validate() error {
	var errs ValidationErrors

	for prefix, mapping := range c.ProjectMappings.TicketPrefixes {
		field := "projectMappings.ticketPrefixes." + prefix
		if prefix == "" {
			errs = append(errs, ValidationError{field, "prefix must not be empty"})
		}
		if mapping.ProjectID == "" {
			errs = append(errs, ValidationError{field + ".projectId", "projectId is required"})
		}
		if mapping.ProjectName == "" {
			errs = append(errs, ValidationError{field + ".projectName", "projectName is required"})
		}
	}

	for i, p := range c.ProjectMappings.ActivityPatterns {
		field := fmt.Sprintf("projectMappings.activityPatterns[%d]", i)
		if p.Pattern == "" {
			errs = append(errs, ValidationError{field + ".pattern", "pattern is required"})
		}
		if p.ProjectID == "" {
			errs = append(errs, ValidationError{field + ".projectId", "projectId is required"})
		}
		if p.ProjectName == "" {
			errs = append(errs, ValidationError{field + ".projectName", "projectName is required"})
		}
		if p.Regex {
			if _, err := regexp.Compile("(?i)" + p.Pattern); err != nil {
				errs = append(errs, ValidationError{field + ".pattern", "invalid regex: " + err.Error()})
			}
		}
	}

	for i, p := range c.ProjectMappings.IgnorePatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			errs = append(errs, ValidationError{
				fmt.Sprintf("projectMappings.ignorePatterns[%d]", i),
				"invalid regex: " + err.Error(),
			})
		}
	}

	if c.Matching.MinDurationSeconds < 0 {
		errs = append(errs, ValidationError{"matching.minDurationSeconds", "must be >= 0"})
	}
	if c.Matching.MaxGapMinutes <= 0 {
		errs = append(errs, ValidationError{"matching.maxGapMinutes", "must be > 0"})
	}
	if c.Matching.CommitTimeWindowMinutes < 0 {
		errs = append(errs, ValidationError{"matching.commitTimeWindowMinutes", "must be >= 0"})
	}

	t := c.Matching.ConfidenceThresholds
	if t.Low < 0 || t.High > 1 || t.Low > t.Medium || t.Medium > t.High {
		errs = append(errs, ValidationError{
			"matching.confidenceThresholds",
			"thresholds must satisfy 0 <= low <= medium <= high <= 1",
		})
	}

	for i, repo := range c.GitRepos {
		if repo.Path == "" {
			errs = append(errs, ValidationError{
				fmt.Sprintf("gitRepos[%d].path", i),
				"path is required",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
