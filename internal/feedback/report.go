package feedback

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// Markdown renders v as a Markdown document.
func Markdown(v View) string {
	var b strings.Builder
	b.WriteString("# Interview Feedback\n\n")
	if v.Question != "" {
		fmt.Fprintf(&b, "**Question:** %s\n\n", v.Question)
	}
	fmt.Fprintf(&b, "**Score:** %d/%d (%s)\n\n", v.Score, v.MaxScore, v.Label)
	if v.Transcript != "" {
		b.WriteString("## Your Response\n\n")
		b.WriteString("> " + strings.ReplaceAll(v.Transcript, "\n", "\n> ") + "\n\n")
	}
	for _, s := range []struct {
		title string
		items []string
	}{
		{"What You Did Well", v.Strengths},
		{"Areas That Need Work", v.Weaknesses},
		{"How to Improve", v.Improvements},
	} {
		fmt.Fprintf(&b, "## %s\n\n", s.title)
		if len(s.items) == 0 {
			b.WriteString("_None._\n\n")
			continue
		}
		for _, item := range s.items {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("## Overall Feedback\n\n")
	b.WriteString(v.Overall + "\n")
	return b.String()
}

// HTML renders v as a standalone HTML page.
func HTML(v View) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(v)), &body); err != nil {
		return nil, fmt.Errorf("converting feedback report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Interview Feedback</title>\n")
	fmt.Fprintf(&page, "<style>h1{color:%s}</style>\n", v.Color.Hex())
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
