package rules

import (
	"os"
	"path/filepath"
	"testing"
)

// ============================================================================
// Override File Parsing Tests
// ============================================================================

func TestParseOverrides(t *testing.T) {
	input := `# per-user daily limits
alice:10
bob:5

charlie:0
`
	overrides, malformed := ParseOverrides(input)
	if len(malformed) != 0 {
		t.Fatalf("unexpected malformed lines: %v", malformed)
	}
	want := []LimitOverride{{ID: "alice", Limit: 10}, {ID: "bob", Limit: 5}, {ID: "charlie", Limit: 0}}
	if len(overrides) != len(want) {
		t.Fatalf("got %d overrides, want %d", len(overrides), len(want))
	}
	for i, o := range overrides {
		if o != want[i] {
			t.Errorf("override[%d] = %+v, want %+v", i, o, want[i])
		}
	}
}

func TestParseOverrides_MalformedLines(t *testing.T) {
	input := `alice:10
no-separator-here
bob:notanumber
:5
carol:-3
dave:7
`
	overrides, malformed := ParseOverrides(input)

	// Good lines survive bad neighbors.
	if len(overrides) != 2 || overrides[0].ID != "alice" || overrides[1].ID != "dave" {
		t.Errorf("overrides = %+v, want alice and dave only", overrides)
	}
	if len(malformed) != 4 {
		t.Errorf("malformed = %v, want 4 entries", malformed)
	}
}

func TestParseOverrides_LastWriteWins(t *testing.T) {
	overrides, _ := ParseOverrides("alice:10\nalice:3\n")
	if len(overrides) != 1 || overrides[0].Limit != 3 {
		t.Errorf("overrides = %+v, want single alice:3", overrides)
	}
}

func TestLoadOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.conf")
	if err := os.WriteFile(path, []byte("alice:10\nbroken line\nbob:2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	overrides, err := LoadOverridesFile(path)
	if err != nil {
		t.Fatalf("LoadOverridesFile: %v", err)
	}
	if len(overrides) != 2 {
		t.Errorf("got %d overrides, want 2 (malformed line skipped)", len(overrides))
	}

	if _, err := LoadOverridesFile(filepath.Join(t.TempDir(), "missing.conf")); err == nil {
		t.Error("missing file should return an error")
	}
}
