package materialize

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"uxforge/internal/domain"
)

//go:embed templates
var templateFS embed.FS

var projectTemplates = template.Must(
	template.New("project").
		Delims("[[", "]]").
		Funcs(template.FuncMap{"json": jsonLiteral}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

const (
	projectName = "uxforge-generated"
	siteTitle   = "Generated Site"

	defaultHeadline = "A Better UX"
	defaultHeroBody = "Generated from your audit with sensible defaults."
	defaultCTAText  = "Ready to get started?"
	defaultCTALabel = "Get started"
	maxFeatures     = 3
)

var defaultFeatures = []featureCopy{
	{ID: "feature-1", Title: "Responsive", Body: "Fast, accessible, and responsive by default."},
	{ID: "feature-2", Title: "Clear", Body: "Clear visual hierarchy with Tailwind."},
	{ID: "feature-3", Title: "Extensible", Body: "Easy to extend with components."},
}

// componentOrder is the vertical order of sections on the home page. Only
// components with a template are rendered.
var componentOrder = []string{"Navbar", "Hero", "FeatureGrid", "ContentSection", "CTASection", "Footer"}

var titleCaser = cases.Title(language.English)

type cssVar struct {
	Name  string
	Value string
}

type navLink struct {
	Href  string `json:"href"`
	Label string `json:"label"`
}

type heroCopy struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

type featureCopy struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sectionCopy struct {
	ID      string `json:"id"`
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type ctaCopy struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

type pageCopy struct {
	Brand    string        `json:"brand"`
	Links    []navLink     `json:"links"`
	Hero     heroCopy      `json:"hero"`
	Features []featureCopy `json:"features"`
	Sections []sectionCopy `json:"sections"`
	CTA      ctaCopy       `json:"cta"`
}

// File is one generated project file.
type File struct {
	Path    string
	Content string
}

// RenderProject returns every file of the scaffold, in write order.
func RenderProject(in Input) ([]File, error) {
	var files []File
	add := func(dst, tmpl string, data any) error {
		content, err := execute(tmpl, data)
		if err != nil {
			return err
		}
		files = append(files, File{Path: dst, Content: content})
		return nil
	}

	static := []struct{ dst, tmpl string }{
		{"package.json", "package.json.tmpl"},
		{"next.config.js", "next.config.js.tmpl"},
		{"tsconfig.json", "tsconfig.json.tmpl"},
		{"tailwind.config.js", "tailwind.config.js.tmpl"},
		{"postcss.config.js", "postcss.config.js.tmpl"},
		{"next-env.d.ts", "next-env.d.ts.tmpl"},
		{".eslintrc.json", "eslintrc.json.tmpl"},
	}
	for _, s := range static {
		if err := add(s.dst, s.tmpl, map[string]string{"Name": projectName}); err != nil {
			return nil, err
		}
	}
	if err := add("app/globals.css", "globals.css.tmpl", map[string]any{"Vars": cssVars(in.Style.DesignTokens)}); err != nil {
		return nil, err
	}
	if err := add("app/layout.tsx", "layout.tsx.tmpl", map[string]string{"Title": siteTitle}); err != nil {
		return nil, err
	}

	components, _ := pageLayout(in.CopyPlan, in.Style, in.Analysis.Plan.SiteMap)
	for _, name := range components {
		body, err := templateFS.ReadFile("templates/components/" + name + ".tsx")
		if err != nil {
			return nil, fmt.Errorf("materialize: component %s: %w", name, err)
		}
		files = append(files, File{Path: "components/" + name + ".tsx", Content: string(body)})
	}
	page, err := RenderPage(in.CopyPlan, in.Style, in.Analysis.Plan.SiteMap)
	if err != nil {
		return nil, err
	}
	files = append(files, File{Path: "app/page.tsx", Content: page})

	for _, p := range in.Analysis.Plan.SiteMap {
		route := strings.Trim(p.Path, "/")
		if route == "" || strings.ContainsAny(route, ".\\") {
			continue
		}
		data := map[string]string{
			"Title": p.Title,
			"Body":  fmt.Sprintf("%s page. Replace this placeholder with real content.", p.Title),
		}
		if err := add(path.Join("app", route, "page.tsx"), "subpage.tsx.tmpl", data); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// RenderPage builds app/page.tsx from the copy plan. The first block becomes
// the hero headline, the second its body, a block whose path mentions "cta"
// feeds the call to action, up to three more become features and the rest
// are rendered as content sections.
func RenderPage(plan domain.CopyPlan, style domain.StyleSystem, siteMap []domain.SitePage) (string, error) {
	components, pc := pageLayout(plan, style, siteMap)
	has := make(map[string]bool, len(components))
	for _, c := range components {
		has[c] = true
	}
	encoded, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("materialize: encode page copy: %w", err)
	}
	return execute("page.tsx.tmpl", map[string]any{
		"Imports":  components,
		"Has":      has,
		"CopyJSON": string(encoded),
	})
}

func buildCopy(plan domain.CopyPlan, siteMap []domain.SitePage, withFeatures bool) pageCopy {
	pc := pageCopy{
		Brand:    siteTitle,
		Hero:     heroCopy{Headline: defaultHeadline, Body: defaultHeroBody},
		CTA:      ctaCopy{Text: defaultCTAText, Label: defaultCTALabel, Href: "/contact"},
		Features: []featureCopy{},
		Sections: []sectionCopy{},
	}
	for _, p := range siteMap {
		pc.Links = append(pc.Links, navLink{Href: p.Path, Label: p.Title})
	}
	if len(pc.Links) == 0 {
		pc.Links = []navLink{{Href: "/", Label: "Home"}}
	}

	blocks := make([]domain.CopyBlock, 0, len(plan.Blocks))
	for _, b := range plan.Blocks {
		if strings.TrimSpace(b.ImprovedText) == "" {
			continue
		}
		if strings.Contains(strings.ToLower(b.Path), "cta") && pc.CTA.Text == defaultCTAText {
			pc.CTA.Text = b.ImprovedText
			continue
		}
		blocks = append(blocks, b)
	}
	if len(blocks) > 0 {
		pc.Hero.Headline = blocks[0].ImprovedText
		blocks = blocks[1:]
	}
	if len(blocks) > 0 {
		pc.Hero.Body = blocks[0].ImprovedText
		blocks = blocks[1:]
	}
	if withFeatures {
		for len(blocks) > 0 && len(pc.Features) < maxFeatures {
			b := blocks[0]
			blocks = blocks[1:]
			pc.Features = append(pc.Features, featureCopy{
				ID:    fmt.Sprintf("feature-%d", len(pc.Features)+1),
				Title: humanize(b.Path),
				Body:  b.ImprovedText,
			})
		}
		if len(pc.Features) == 0 {
			pc.Features = append(pc.Features, defaultFeatures...)
		}
	}
	for i, b := range blocks {
		pc.Sections = append(pc.Sections, sectionCopy{
			ID:      fmt.Sprintf("section-%d", i+1),
			Heading: humanize(b.Path),
			Body:    b.ImprovedText,
		})
	}
	return pc
}

// pageLayout decides which components the home page uses and the copy they
// receive. ContentSection is added whenever blocks are left over.
func pageLayout(plan domain.CopyPlan, style domain.StyleSystem, siteMap []domain.SitePage) ([]string, pageCopy) {
	components := pageComponents(style)
	withFeatures := false
	withSections := false
	for _, c := range components {
		withFeatures = withFeatures || c == "FeatureGrid"
		withSections = withSections || c == "ContentSection"
	}
	pc := buildCopy(plan, siteMap, withFeatures)
	if len(pc.Sections) > 0 && !withSections {
		components = pageComponents(domain.StyleSystem{Components: append(components, "ContentSection")})
	}
	return components, pc
}

// pageComponents returns the templated components requested by the style
// system, in page order. Hero is always present.
func pageComponents(style domain.StyleSystem) []string {
	requested := map[string]bool{"Hero": true}
	for _, c := range style.Components {
		requested[strings.TrimSpace(c)] = true
	}
	out := make([]string, 0, len(componentOrder))
	for _, c := range componentOrder {
		if requested[c] {
			out = append(out, c)
		}
	}
	return out
}

// humanize turns a copy path such as "features.fast_setup" into "Fast Setup".
func humanize(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.LastIndexAny(p, "./>#"); i >= 0 && i < len(p)-1 {
		p = p[i+1:]
	}
	p = strings.NewReplacer("-", " ", "_", " ").Replace(p)
	return titleCaser.String(strings.TrimSpace(p))
}

func cssVars(tokens map[string]string) []cssVar {
	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make([]cssVar, 0, len(keys))
	for _, k := range keys {
		name := "--" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "_", "-")
		value := sanitizeCSSValue(tokens[k])
		if name == "--" || value == "" {
			continue
		}
		vars = append(vars, cssVar{Name: name, Value: value})
	}
	return vars
}

// sanitizeCSSValue drops characters that could terminate the declaration.
func sanitizeCSSValue(v string) string {
	v = strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '\n', '\r':
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(v)
}

func jsonLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := projectTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("materialize: render %s: %w", name, err)
	}
	return buf.String(), nil
}
