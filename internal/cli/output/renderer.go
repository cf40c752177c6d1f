package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Renderer writes command output in the configured mode.
type Renderer struct {
	w       io.Writer
	errW    io.Writer
	mode    Mode
	isTTY   bool
	styles  *Styles
	printer *message.Printer
}

// NewRenderer creates a renderer, detecting whether w is a terminal.
func NewRenderer(w, errW io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(w, errW, mode, isTerminal(w))
}

// NewRendererWithTTY creates a renderer with explicit TTY detection.
func NewRendererWithTTY(w, errW io.Writer, mode Mode, isTTY bool) *Renderer {
	if errW == nil {
		errW = io.Discard
	}
	return &Renderer{
		w:       w,
		errW:    errW,
		mode:    ParseMode(string(mode)),
		isTTY:   isTTY,
		styles:  NewStyles(w, isTTY),
		printer: message.NewPrinter(language.English),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// Mode returns the configured mode.
func (r *Renderer) Mode() Mode { return r.mode }

// EffectiveMode resolves auto to text on a TTY and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether the output is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the primary output writer.
func (r *Renderer) Writer() io.Writer { return r.w }

// ErrWriter returns the diagnostic writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errW }

// Styles returns the text styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

// Printf writes formatted text to the output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}

// Header writes a heading: styled in text mode, "#" prefixed otherwise.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeText {
		style := r.styles.Header
		if level > 1 {
			style = r.styles.Header2
		}
		r.Println(style.Render(text))
		r.Println("")
		return
	}
	r.Println(FormatHeader(level, text))
	r.Println("")
}

// Success writes a success status line to the diagnostic writer.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Success.Render("✓ "+msg))
}

// Warning writes a warning line to the diagnostic writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Warning.Render("! "+msg))
}

// Muted writes a de-emphasized line to the diagnostic writer.
func (r *Renderer) Muted(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Muted.Render(msg))
}

// StatusLine writes "label: value" to the diagnostic writer.
func (r *Renderer) StatusLine(label, value string) {
	_, _ = fmt.Fprintf(r.errW, "%s %s\n", r.styles.Bold.Render(label+":"), value)
}

// Count formats n with thousands separators.
func (r *Renderer) Count(n int) string {
	return r.printer.Sprintf("%d", n)
}

// Sprintf formats with the renderer's locale-aware printer.
func (r *Renderer) Sprintf(format string, a ...any) string {
	return r.printer.Sprintf(format, a...)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Structured writes v as JSON or YAML depending on the effective mode.
// It returns false when the mode is not JSON or YAML.
func (r *Renderer) Structured(v any) (bool, error) {
	switch r.EffectiveMode() {
	case ModeJSON:
		return true, r.JSON(v)
	case ModeYAML:
		return true, r.YAML(v)
	}
	return false, nil
}
