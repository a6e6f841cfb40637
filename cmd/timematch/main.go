package main

import (
	"os"

	"github.com/joho/godotenv"

	"timematch/internal/logging"
)

func main() {
	// Optional .env for TIMEMATCH_* overrides; absence is not an error
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		logger := logging.NewLogger(logging.Config{
			Format: logging.HumanFormat,
			Level:  logging.InfoLevel,
		})
		logger.Error("Command execution failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}
