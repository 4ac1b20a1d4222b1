package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"uxforge/internal/domain"
	"uxforge/internal/materialize"
	"uxforge/internal/synthesis"
)

const (
	maxStaticNodes = 12
	maxStaticText  = 280
)

var (
	reNoise   = regexp.MustCompile(`(?is)<(script|style|noscript|svg|template)\b.*?</(script|style|noscript|svg|template)>`)
	reBlock   = regexp.MustCompile(`(?is)<(h[1-6]|p|li|button)\b[^>]*>(.*?)</(?:h[1-6]|p|li|button)>`)
	reTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	reSpace   = regexp.MustCompile(`\s+`)
	reSlugBad = regexp.MustCompile(`[^a-z0-9]+`)
	reCTA     = regexp.MustCompile(`(?i)\b(contact|sign up|get started|book|buy|subscribe|try)\b`)

	titleCaser = cases.Title(language.English)
	upperCaser = cases.Upper(language.English)
)

// Static is an offline synthesizer. It derives the hierarchy, copy and style
// from the prompt payloads without calling a model.
type Static struct{}

func NewStatic() *Static { return &Static{} }

func (s *Static) Complete(_ context.Context, p synthesis.Prompt) (string, error) {
	switch in := p.Payload.(type) {
	case synthesis.HierarchyInput:
		return encode(staticHierarchy(in))
	case synthesis.CopyInput:
		return encode(staticCopy(in))
	case synthesis.StyleInput:
		return encode(staticStyle(in))
	default:
		return "", fmt.Errorf("llm: static synthesizer cannot handle task %q", p.Task)
	}
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("llm: static encode: %w", err)
	}
	return string(b), nil
}

type textBlock struct {
	tag  string
	text string
}

// extractBlocks reads headings and paragraphs from HTML, or lines from plain
// text and markdown when no markup is found.
func extractBlocks(source string) []textBlock {
	var blocks []textBlock
	if strings.Contains(source, "<") {
		cleaned := reNoise.ReplaceAllString(source, " ")
		for _, m := range reBlock.FindAllStringSubmatch(cleaned, -1) {
			text := cleanText(reTag.ReplaceAllString(m[2], " "))
			if text == "" {
				continue
			}
			blocks = append(blocks, textBlock{tag: strings.ToLower(m[1]), text: text})
		}
		if len(blocks) > 0 {
			return blocks
		}
	}
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tag := "p"
		if level := len(line) - len(strings.TrimLeft(line, "#")); level > 0 && level <= 6 {
			tag = fmt.Sprintf("h%d", level)
			line = strings.TrimSpace(line[level:])
		} else {
			line = strings.TrimLeft(line, "-* ")
		}
		if text := cleanText(line); text != "" {
			blocks = append(blocks, textBlock{tag: tag, text: text})
		}
	}
	return blocks
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

func slug(s string) string {
	s = strings.Trim(reSlugBad.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > 32 {
		s = strings.TrimRight(s[:32], "-")
	}
	return s
}

func staticHierarchy(in synthesis.HierarchyInput) domain.ContentHierarchy {
	blocks := extractBlocks(in.DOMHTML)
	if len(blocks) > maxStaticNodes {
		blocks = blocks[:maxStaticNodes]
	}
	h := domain.ContentHierarchy{URL: in.URL, Nodes: []domain.ContentNode{}}
	seen := map[string]int{}
	section := "content"
	for i, b := range blocks {
		var path string
		switch {
		case i == 0:
			path = "hero.headline"
		case i == 1:
			path = "hero.body"
		case reCTA.MatchString(b.text) && len(b.text) < 80:
			path = "cta"
		case strings.HasPrefix(b.tag, "h"):
			if sl := slug(b.text); sl != "" {
				section = sl
			}
			path = "section." + section + ".heading"
		default:
			path = "section." + section
		}
		h.Nodes = append(h.Nodes, domain.ContentNode{
			ID:   fmt.Sprintf("n%d", i+1),
			Tag:  b.tag,
			Text: b.text,
			Path: uniquePath(seen, path),
		})
	}
	return h
}

// uniquePath suffixes repeated paths with -2, -3 and so on.
func uniquePath(seen map[string]int, path string) string {
	seen[path]++
	n := seen[path]
	if n == 1 {
		return path
	}
	candidate := fmt.Sprintf("%s-%d", path, n)
	for seen[candidate] > 0 {
		n++
		seen[path] = n
		candidate = fmt.Sprintf("%s-%d", path, n)
	}
	seen[candidate]++
	return candidate
}

func flatten(nodes []domain.ContentNode) []domain.ContentNode {
	var out []domain.ContentNode
	for _, n := range nodes {
		out = append(out, n)
		out = append(out, flatten(n.Children)...)
	}
	return out
}

func staticCopy(in synthesis.CopyInput) domain.CopyPlan {
	tone := in.Tone
	if tone == "" {
		tone = domain.DefaultTone
	}
	plan := domain.CopyPlan{Blocks: []domain.CopyBlock{}}
	seen := map[string]int{}
	for _, n := range flatten(in.Hierarchy.Nodes) {
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		path := n.Path
		if path == "" {
			path = n.Tag
		}
		plan.Blocks = append(plan.Blocks, domain.CopyBlock{
			Path:         uniquePath(seen, path),
			OriginalText: n.Text,
			ImprovedText: rewrite(n, tone),
			Tone:         tone,
		})
	}
	plan.Summary = fmt.Sprintf("Rewrote %d sections in a %s tone", len(plan.Blocks), tone)
	return plan
}

// rewrite tightens a node's text for the given tone.
func rewrite(n domain.ContentNode, tone domain.Tone) string {
	text := clip(cleanText(n.Text), maxStaticText)
	heading := strings.HasPrefix(n.Tag, "h") || strings.HasSuffix(n.Path, "headline") || strings.HasSuffix(n.Path, "heading")
	if heading {
		text = strings.TrimRight(text, ".:")
		if tone == domain.ToneBold {
			return upperCaser.String(text)
		}
		return titleCaser.String(text)
	}
	text = capitalize(text)
	if text == "" {
		return text
	}
	if n.Path == "cta" && (tone == domain.ToneFriendly || tone == domain.ToneBold) {
		return strings.TrimRight(text, ".!") + "!"
	}
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		text += "."
	}
	return text
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// clip shortens s to at most n bytes on a word boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

func staticStyle(in synthesis.StyleInput) domain.StyleSystem {
	layout := domain.LayoutModern
	best := 0.0
	for _, c := range in.Criteria {
		key := strings.ToLower(c.Key + " " + c.Description)
		var candidate domain.LayoutParadigm
		switch {
		case strings.Contains(key, "minimal"):
			candidate = domain.LayoutMinimal
		case strings.Contains(key, "bold"), strings.Contains(key, "impact"):
			candidate = domain.LayoutBold
		case strings.Contains(key, "classic"), strings.Contains(key, "traditional"):
			candidate = domain.LayoutClassic
		default:
			continue
		}
		if c.Weight > best {
			best, layout = c.Weight, candidate
		}
	}
	components := append([]string{}, domain.DefaultComponents...)
	components = append(components, "ContentSection")
	return domain.StyleSystem{
		LayoutParadigm: layout,
		DesignTokens:   synthesis.DefaultTokens(),
		Components:     components,
	}
}

// StaticAgent writes the templated page through the toolbox.
type StaticAgent struct{}

func (StaticAgent) RunTask(ctx context.Context, task materialize.AgentTask, tools materialize.Toolbox) (string, error) {
	page, err := materialize.RenderPage(task.CopyPlan, task.Style, task.SiteMap)
	if err != nil {
		return "", err
	}
	args := map[string]string{"path": task.TargetPath, "content": page}
	if _, err := tools.Invoke(ctx, materialize.ToolWriteFile, args); err != nil {
		return "", fmt.Errorf("llm: static agent: %w", err)
	}
	return fmt.Sprintf("wrote %s with %d copy blocks", task.TargetPath, len(task.CopyPlan.Blocks)), nil
}
