/*
Package cli provides command-line utilities shared by the portcullis
command: output formatters and typed command errors.

Output Formatting:

The cli package supports text, JSON, and CSV output for displaying
command results:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

CSV output is row-oriented; commands build their rows explicitly:

	f := &cli.CSVFormatter{Headers: []string{"user_id", "count"}}
	err := f.FormatRows(os.Stdout, rows)

Errors:

ConfigError and CommandError carry enough context for the root command to
print a useful one-line failure without a stack trace.
*/
package cli
