package feedback

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	defaultWidth = 80
	minWidth     = 30
	indent       = "  "
)

// RenderOptions controls terminal output.
type RenderOptions struct {
	// Width is the terminal width in cells. Zero means 80.
	Width int
	// Color enables ANSI styling of the score and headings.
	Color bool
}

type section struct {
	title  string
	bullet string
	items  []string
}

func (v View) sections() []section {
	return []section{
		{"✅ What You Did Well:", "✓", v.Strengths},
		{"❌ Areas That Need Work:", "✗", v.Weaknesses},
		{"💡 How to Improve:", "→", v.Improvements},
	}
}

// Render writes the feedback card for v to w.
func Render(w io.Writer, v View, opts RenderOptions) error {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}

	heading := func(s string) string { return s }
	scoreStyle := func(s string) string { return s }
	if opts.Color {
		h := lipgloss.NewStyle().Bold(true)
		sc := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(v.Color.Hex()))
		heading = func(s string) string { return h.Render(s) }
		scoreStyle = func(s string) string { return sc.Render(s) }
	}

	var b strings.Builder
	b.WriteString(heading("📊 Interview Feedback") + "\n\n")

	if v.Question != "" {
		b.WriteString(heading("Question:") + "\n")
		writeWrapped(&b, v.Question, indent, width)
		b.WriteString("\n")
	}

	b.WriteString(scoreStyle(fmt.Sprintf("Score: %d/%d  %s", v.Score, v.MaxScore, v.Label)) + "\n\n")

	if v.Transcript != "" {
		b.WriteString(heading("Your Response:") + "\n")
		writeWrapped(&b, v.Transcript, indent, width)
		b.WriteString("\n")
	}

	for _, s := range v.sections() {
		b.WriteString(heading(s.title) + "\n")
		if len(s.items) == 0 {
			b.WriteString(indent + "(none)\n")
		}
		for _, item := range s.items {
			writeWrapped(&b, s.bullet+" "+item, indent, width)
		}
		b.WriteString("\n")
	}

	b.WriteString(heading("📝 Overall Feedback:") + "\n")
	writeWrapped(&b, v.Overall, indent, width)

	_, err := io.WriteString(w, b.String())
	return err
}

// writeWrapped wraps s to width cells, prefixing every line with prefix.
func writeWrapped(b *strings.Builder, s, prefix string, width int) {
	avail := width - runewidth.StringWidth(prefix)
	for _, line := range strings.Split(runewidth.Wrap(s, avail), "\n") {
		b.WriteString(prefix + line + "\n")
	}
}
