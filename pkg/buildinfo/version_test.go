package buildinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = old[0], old[1], old[2] })

	Version, Commit, Date = "v1.2.3", "abc123", "2026-01-01"
	if got, want := String(), "v1.2.3 (abc123, built 2026-01-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := Template(); !strings.Contains(got, "version v1.2.3") || !strings.Contains(got, "{{.Name}}") {
		t.Errorf("Template() = %q", got)
	}
}
