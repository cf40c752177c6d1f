// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapscale/internal/cli/output"
)

// SampleCSV is the sample lineage table in the default column layout.
const SampleCSV = `id,value,override,lineage
0,1,,
1,0.5,0.25,0
2,0.2,,0|1
3,0.1,,0
4,0.1,0.18,0|1|2
5,0.05,,0|1|2|4
6,0.01,,0|1|2|4|5
`

// SetupTestProject creates a temporary project holding nodes.csv and a
// leapscale.yaml that points at it. Extra config lines are appended to the
// config file.
func SetupTestProject(t *testing.T, extraConfig ...string) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "nodes.csv"), []byte(SampleCSV), 0o600); err != nil {
		t.Fatalf("failed to create nodes.csv: %v", err)
	}

	cfg := "input: nodes.csv\n" + strings.Join(extraConfig, "\n")
	if err := os.WriteFile(filepath.Join(tmpDir, "leapscale.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to create leapscale.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, mode, isTTY),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the captured primary output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the captured diagnostic output.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
