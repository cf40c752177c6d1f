// Package output renders command results for terminals, pipes and machines.
package output

import "strings"

// Mode selects how results are rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"     // text on a TTY, markdown otherwise
	ModeText     Mode = "text"     // styled terminal output
	ModeMarkdown Mode = "markdown" // agent and docs friendly
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
	ModeYAML     Mode = "yaml"
)

// ParseMode normalizes a mode string. Unknown values fall back to auto.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeText, ModeMarkdown, ModeJSON, ModeCSV, ModeYAML:
		return m
	case "md":
		return ModeMarkdown
	case "yml":
		return ModeYAML
	default:
		return ModeAuto
	}
}

// Structured reports whether m is a machine-readable mode.
func (m Mode) Structured() bool {
	return m == ModeJSON || m == ModeCSV || m == ModeYAML
}
