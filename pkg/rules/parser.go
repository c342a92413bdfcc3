package rules

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ParseOverrides parses a text-line override format, one "id:limit" entry
// per line. Blank lines and lines starting with '#' are skipped. Each line
// is validated independently: malformed lines are collected and reported,
// never failing the whole load.
func ParseOverrides(data string) (entries []LimitOverride, malformed []string) {
	scanner := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseOverrideLine(line)
		if err != nil {
			malformed = append(malformed, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}

		// Last write wins for duplicate ids.
		if i := findOverride(entries, entry.ID); i >= 0 {
			entries[i] = entry
			continue
		}
		entries = append(entries, entry)
	}
	return entries, malformed
}

// LoadOverridesFile reads and parses an override file. Malformed lines are
// logged and skipped.
func LoadOverridesFile(path string) ([]LimitOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides file %q: %w", path, err)
	}

	entries, malformed := ParseOverrides(string(data))
	if len(malformed) > 0 {
		logger := slog.Default().With("component", "rules")
		for _, m := range malformed {
			logger.Warn("skipping malformed override", "file", path, "detail", m)
		}
	}
	return entries, nil
}

func parseOverrideLine(line string) (LimitOverride, error) {
	id, rawLimit, found := strings.Cut(line, ":")
	if !found {
		return LimitOverride{}, fmt.Errorf("missing ':' separator in %q", line)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return LimitOverride{}, fmt.Errorf("empty id in %q", line)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(rawLimit))
	if err != nil {
		return LimitOverride{}, fmt.Errorf("limit is not an integer in %q", line)
	}
	if limit < 0 {
		return LimitOverride{}, fmt.Errorf("negative limit in %q", line)
	}

	return LimitOverride{ID: id, Limit: limit}, nil
}
