package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates the configuration file is missing or malformed
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ExportUnreadable indicates the activity export file cannot be opened or parsed
	ExportUnreadable ErrorCode = "EXPORT_UNREADABLE"
	// RepoUnavailable indicates a configured git repository path is missing or not a repository
	RepoUnavailable ErrorCode = "REPO_UNAVAILABLE"
	// Timeout indicates a git invocation timed out
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests editing the configuration file
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// CodedError represents a timematch error with code, message, and suggestions
type CodedError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new CodedError
func New(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *CodedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CodedError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *CodedError) WithDetails(details interface{}) *CodedError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "timematch init",
			Safe:        true,
			Description: "Write a template configuration file to edit",
		},
	},
	ExportUnreadable: {
		{
			Type:        RunCommand,
			Command:     "timematch inspect --input <file>",
			Safe:        true,
			Description: "Check the export file's structure and date range",
		},
	},
	RepoUnavailable: {
		{
			Type:        EditConfig,
			Description: "Check the gitRepos paths in the configuration file",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
