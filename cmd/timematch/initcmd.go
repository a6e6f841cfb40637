package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timematch/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a template configuration file",
	Long: `Write a template ` + config.DefaultConfigFile + ` with example ticket
prefixes, activity patterns and thresholds to edit.`,
	Run: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
	rootCmd.AddCommand(initCmd)
}

const configTemplate = `{
  "projectMappings": {
    "ticketPrefixes": {
      "CH2-": {
        "projectId": "proj-123",
        "projectName": "Example Backend",
        "description": "Backend tickets"
      }
    },
    "activityPatterns": [
      {
        "pattern": "standup",
        "regex": false,
        "projectId": "proj-meetings",
        "projectName": "Meetings",
        "description": "Daily standup"
      }
    ],
    "ignorePatterns": [
      "(?:^|\\s)Spotify(?:$|\\s)",
      "Private Browsing"
    ]
  },
  "matching": {
    "minDurationSeconds": 30,
    "maxGapMinutes": 15,
    "commitTimeWindowMinutes": 15,
    "confidenceThresholds": {
      "high": 0.85,
      "medium": 0.6,
      "low": 0.3
    }
  },
  "gitRepos": [
    {
      "path": "~/src/backend",
      "ticketPrefixes": ["CH2-"],
      "description": "Backend repository"
    }
  ],
  "output": {
    "includeSourceActivities": true,
    "includeCommitShas": true,
    "groupByProject": true
  },
  "logging": {
    "format": "human",
    "level": "info"
  }
}
`

func runInit(cmd *cobra.Command, args []string) {
	path := configFlag
	if path == "" {
		path = config.DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Fprintf(os.Stderr, "Configuration file already exists: %s (use --force to overwrite)\n", path)
		os.Exit(1)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote template configuration to %s\n", path)
}
