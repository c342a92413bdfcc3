// Portcullis is a per-identity call-admission service.
//
// It tracks daily usage per user and group against a prioritized rule set
// (exemptions, time-period windows, per-user and per-group overrides, a
// global default), detects request-rate abuse with automatic temporary
// blocks, and archives usage records for analytics.
//
// Usage:
//
//	# Start the server with default configuration
//	portcullis run
//
//	# Start with a custom configuration file
//	portcullis run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	portcullis validate --config /path/to/config.yaml
//
//	# Manage rules against the shared store
//	portcullis limit set-user alice 50
//	portcullis limit exempt-add root
//
//	# Query the usage archive
//	portcullis usage analytics --days 7
//
//	# Show version information
//	portcullis version
package main

func main() {
	Execute()
}
