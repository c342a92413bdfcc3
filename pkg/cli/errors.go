package cli

import "fmt"

// ConfigError marks a failure caused by the loaded configuration rather
// than by the command itself, so the root handler can point the operator
// at the offending field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// NewConfigError builds a ConfigError. field may be empty when the problem
// is not tied to a single setting.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// CommandError wraps a command failure with the subcommand's name.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewCommandError wraps err as a CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}
