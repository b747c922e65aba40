// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildrender

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/bureau/lib/buildop"
	"github.com/bureau-foundation/bureau/lib/outputgroup"
)

// Renderer prints build operation activity to a terminal. It implements
// both [buildop.Listener] (for the transient in-flight spinner) and
// [outputgroup.Downstream] (for grouped batches and passthrough events) —
// a driver wires the same Renderer into both the Executor and the
// GroupingPipeline so the spinner line is cleared before any grouped block
// prints over it.
//
// Renderer is safe for concurrent use.
type Renderer struct {
	out io.Writer
	lip *lipgloss.Renderer
	tty bool

	headerStyle  lipgloss.Style
	levelStyles  map[outputgroup.Level]lipgloss.Style
	spinnerStyle lipgloss.Style

	mu          sync.Mutex
	spinnerLine string
}

// New returns a Renderer writing to out. Color is auto-detected from out's
// color profile and degrades to plain text when out is not a terminal
// (matching behavior expected when output is redirected to a file or
// piped to another process).
func New(out io.Writer) *Renderer {
	lip := lipgloss.NewRenderer(out)
	profile := termenv.NewOutput(out).ColorProfile()
	lip.SetColorProfile(profile)
	tty := isTerminalWriter(out)

	return &Renderer{
		out: out,
		lip: lip,
		tty: tty,

		headerStyle: lip.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		levelStyles: map[outputgroup.Level]lipgloss.Style{
			outputgroup.LevelError:     lip.NewStyle().Foreground(lipgloss.Color("196")),
			outputgroup.LevelWarn:      lip.NewStyle().Foreground(lipgloss.Color("208")),
			outputgroup.LevelLifecycle: lip.NewStyle().Foreground(lipgloss.Color("114")),
			outputgroup.LevelInfo:      lip.NewStyle().Foreground(lipgloss.Color("252")),
			outputgroup.LevelDebug:     lip.NewStyle().Foreground(lipgloss.Color("245")),
			outputgroup.LevelQuiet:     lip.NewStyle().Foreground(lipgloss.Color("252")),
		},
		spinnerStyle: lip.NewStyle().Foreground(lipgloss.Color("75")),
	}
}

func isTerminalWriter(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// Started implements [buildop.Listener]. Operations with no progress
// display name produce no spinner — most operations in a build are not
// worth a transient status line.
func (r *Renderer) Started(descriptor buildop.Descriptor, event buildop.StartEvent) {
	if descriptor.ProgressDisplayName == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.showSpinnerLocked(descriptor.ProgressDisplayName)
}

// Finished implements [buildop.Listener].
func (r *Renderer) Finished(descriptor buildop.Descriptor, event buildop.FinishEvent) {
	if descriptor.ProgressDisplayName == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSpinnerLocked()
}

// Forward implements [outputgroup.Downstream].
func (r *Renderer) Forward(event outputgroup.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSpinnerLocked()
	if text, ok := r.renderEventLocked(event); ok {
		fmt.Fprintln(r.out, text)
	}
}

// Batch implements [outputgroup.Downstream]. The first event in a group's
// batch is always the synthetic header line the pipeline prepends; it is
// rendered bold regardless of level.
func (r *Renderer) Batch(events []outputgroup.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSpinnerLocked()

	for i, event := range events {
		if i == 0 {
			if header, ok := event.(outputgroup.LogEvent); ok {
				fmt.Fprintln(r.out, r.headerStyle.Render(header.Message))
				continue
			}
		}
		if text, ok := r.renderEventLocked(event); ok {
			fmt.Fprintln(r.out, text)
		}
	}
}

func (r *Renderer) showSpinnerLocked(text string) {
	r.clearSpinnerLocked()
	if !r.tty {
		return
	}
	styled := r.spinnerStyle.Render("▸ " + text)
	fmt.Fprint(r.out, "\r", styled)
	r.spinnerLine = styled
}

func (r *Renderer) clearSpinnerLocked() {
	if r.spinnerLine == "" {
		return
	}
	width := ansi.StringWidth(r.spinnerLine)
	fmt.Fprint(r.out, "\r", strings.Repeat(" ", width), "\r")
	r.spinnerLine = ""
}

// renderEventLocked renders a single renderable event to styled text.
// Progress bookkeeping events (start/progress/complete) carry no visible
// text of their own — their content is represented by the group's header
// and trailer lines — so they report ok=false.
func (r *Renderer) renderEventLocked(event outputgroup.Event) (string, bool) {
	switch e := event.(type) {
	case outputgroup.LogEvent:
		return r.renderLogLocked(e), true
	case outputgroup.StyledTextOutputEvent:
		var text strings.Builder
		for _, span := range e.Spans {
			text.WriteString(span.Text)
		}
		return r.levelStyle(e.Level).Render(text.String()), true
	default:
		return "", false
	}
}

// highlightPrefix tags a LogEvent's Category to request syntax
// highlighting of its message as source code before styling, e.g. for a
// task that echoes the shell command it's about to run.
const highlightPrefix = "highlight:"

func (r *Renderer) renderLogLocked(event outputgroup.LogEvent) string {
	if lexer, ok := strings.CutPrefix(event.Category, highlightPrefix); ok && r.lip.ColorProfile() != termenv.Ascii {
		if highlighted, err := highlight(event.Message, lexer); err == nil {
			return highlighted
		}
	}
	return r.levelStyle(event.Level).Render(event.Message)
}

func (r *Renderer) levelStyle(level outputgroup.Level) lipgloss.Style {
	if style, ok := r.levelStyles[level]; ok {
		return style
	}
	return r.levelStyles[outputgroup.LevelInfo]
}

// highlight renders source as language-highlighted terminal text via
// chroma. The formatter is always "terminal256"; renderLogLocked only
// calls it when the renderer's detected color profile is not plain ASCII,
// so output to a non-terminal stays plain text.
func highlight(source, lexer string) (string, error) {
	var buffer bytes.Buffer
	if err := quick.Highlight(&buffer, source, lexer, "terminal256", "monokai"); err != nil {
		return "", err
	}
	return strings.TrimRight(buffer.String(), "\n"), nil
}
