package materialize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// AuditMarkdown summarizes the audit, the suggestions and the rewritten copy.
func AuditMarkdown(in Input) string {
	var sb strings.Builder
	sb.WriteString("# Site audit\n\n")
	if in.Report != nil {
		fmt.Fprintf(&sb, "Audited URL: %s\n\n", mdEscape(in.Report.URL))
		sb.WriteString("## Scores\n\n| Category | Score |\n| --- | --- |\n")
		fmt.Fprintf(&sb, "| Performance | %s |\n", scoreText(in.Report.Scores.Performance))
		fmt.Fprintf(&sb, "| Accessibility | %s |\n", scoreText(in.Report.Scores.Accessibility))
		fmt.Fprintf(&sb, "| Usability | %s |\n\n", scoreText(in.Report.Scores.Usability))

		sb.WriteString("## Issues\n\n")
		for _, issue := range in.Report.Issues {
			fmt.Fprintf(&sb, "- **%s** (%s, %s): %s\n", mdEscape(issue.ID), issue.Category, issue.Severity, mdEscape(issue.Summary))
		}
		sb.WriteString("\n")
		if len(in.Report.Warnings) > 0 {
			sb.WriteString("## Warnings\n\n")
			for _, w := range in.Report.Warnings {
				fmt.Fprintf(&sb, "- %s\n", mdEscape(w))
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("Generated from supplied content; no audit was run.\n\n")
	}

	if len(in.Analysis.Suggestions) > 0 {
		sb.WriteString("## Suggestions\n\n")
		for _, s := range in.Analysis.Suggestions {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", s.Priority, s.Area, mdEscape(s.Action))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Copy\n\n")
	fmt.Fprintf(&sb, "%s\n\n", mdEscape(in.CopyPlan.Summary))
	for _, b := range in.CopyPlan.Blocks {
		fmt.Fprintf(&sb, "### %s\n\n", mdEscape(b.Path))
		fmt.Fprintf(&sb, "- Before: %s\n- After (%s): %s\n\n", mdEscape(b.OriginalText), b.Tone, mdEscape(b.ImprovedText))
	}

	fmt.Fprintf(&sb, "## Style\n\nLayout: %s\n\n", in.Style.LayoutParadigm)
	if len(in.Style.Components) > 0 {
		fmt.Fprintf(&sb, "Components: %s\n", strings.Join(in.Style.Components, ", "))
	}
	return sb.String()
}

// AuditHTML renders the markdown summary as a standalone page.
func AuditHTML(md string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("materialize: render audit markdown: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>Site audit</title>\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	sb.WriteString("<style>body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;line-height:1.6}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:.25rem .75rem}</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

func scoreText(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *v)
}

// mdEscape flattens s onto one line and escapes table pipes and angle brackets.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;").Replace(strings.TrimSpace(s))
}
