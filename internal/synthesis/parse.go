package synthesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"uxforge/internal/domain"
)

const defaultSummary = "Modernized copy"

// SchemaError reports model output that does not match the expected shape.
type SchemaError struct {
	Target string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("synthesis: %s: %s", e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrSynthesisSchema, e.Err}
	}
	return []error{domain.ErrSynthesisSchema}
}

func schemaErr(target, reason string, err error) error {
	return &SchemaError{Target: target, Reason: reason, Err: err}
}

type rawCopyBlock struct {
	Path         *string `json:"path"`
	OriginalText *string `json:"original_text"`
	ImprovedText *string `json:"improved_text"`
	Tone         string  `json:"tone"`
}

type rawCopyPlan struct {
	Summary string          `json:"summary"`
	Blocks  *[]rawCopyBlock `json:"blocks"`
}

// ParseCopyPlan decodes a copy plan and fills the tone of any block that
// omitted it with defaultTone.
func ParseCopyPlan(raw string, defaultTone domain.Tone) (domain.CopyPlan, error) {
	const target = "copy_plan"
	var decoded rawCopyPlan
	if err := decodeFragment(raw, &decoded); err != nil {
		return domain.CopyPlan{}, schemaErr(target, "invalid json", err)
	}
	if decoded.Blocks == nil {
		return domain.CopyPlan{}, schemaErr(target, "missing blocks", nil)
	}
	if defaultTone == "" {
		defaultTone = domain.DefaultTone
	}
	plan := domain.CopyPlan{
		Summary: strings.TrimSpace(decoded.Summary),
		Blocks:  make([]domain.CopyBlock, 0, len(*decoded.Blocks)),
	}
	if plan.Summary == "" {
		plan.Summary = defaultSummary
	}
	for i, b := range *decoded.Blocks {
		if b.Path == nil || b.OriginalText == nil || b.ImprovedText == nil {
			return domain.CopyPlan{}, schemaErr(target, fmt.Sprintf("block %d is missing path, original_text or improved_text", i), nil)
		}
		tone, ok := domain.ParseTone(b.Tone)
		if !ok {
			return domain.CopyPlan{}, schemaErr(target, fmt.Sprintf("block %d has unsupported tone %q", i, b.Tone), nil)
		}
		if tone == "" {
			tone = defaultTone
		}
		plan.Blocks = append(plan.Blocks, domain.CopyBlock{
			Path:         *b.Path,
			OriginalText: *b.OriginalText,
			ImprovedText: *b.ImprovedText,
			Tone:         tone,
		})
	}
	return plan, nil
}

type rawStyleSystem struct {
	LayoutParadigm string             `json:"layout_paradigm"`
	DesignTokens   *map[string]any    `json:"design_tokens"`
	Components     *[]json.RawMessage `json:"components"`
}

// ParseStyleSystem decodes a style proposal. Design tokens are required;
// layout and components fall back to their defaults when omitted.
func ParseStyleSystem(raw string) (domain.StyleSystem, error) {
	const target = "style_system"
	var decoded rawStyleSystem
	if err := decodeFragment(raw, &decoded); err != nil {
		return domain.StyleSystem{}, schemaErr(target, "invalid json", err)
	}
	style := domain.StyleSystem{LayoutParadigm: domain.LayoutModern}
	if p := strings.ToLower(strings.TrimSpace(decoded.LayoutParadigm)); p != "" {
		style.LayoutParadigm = domain.LayoutParadigm(p)
		if !style.LayoutParadigm.Valid() {
			return domain.StyleSystem{}, schemaErr(target, fmt.Sprintf("unsupported layout_paradigm %q", decoded.LayoutParadigm), nil)
		}
	}
	if decoded.DesignTokens == nil {
		return domain.StyleSystem{}, schemaErr(target, "missing design_tokens", nil)
	}
	style.DesignTokens = make(map[string]string, len(*decoded.DesignTokens))
	for key, value := range *decoded.DesignTokens {
		switch v := value.(type) {
		case string:
			style.DesignTokens[key] = v
		case float64, bool:
			style.DesignTokens[key] = fmt.Sprint(v)
		default:
			return domain.StyleSystem{}, schemaErr(target, fmt.Sprintf("design token %q must be a scalar", key), nil)
		}
	}
	if decoded.Components == nil {
		style.Components = append([]string(nil), domain.DefaultComponents...)
		return style, nil
	}
	for i, rawName := range *decoded.Components {
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			return domain.StyleSystem{}, schemaErr(target, fmt.Sprintf("component %d must be a string", i), err)
		}
		if name = strings.TrimSpace(name); name != "" {
			style.Components = append(style.Components, name)
		}
	}
	return style, nil
}

// ParseHierarchy decodes an extracted content hierarchy.
func ParseHierarchy(raw string) (domain.ContentHierarchy, error) {
	const target = "hierarchy"
	var decoded struct {
		URL   *string               `json:"url"`
		Nodes *[]domain.ContentNode `json:"nodes"`
	}
	if err := decodeFragment(raw, &decoded); err != nil {
		return domain.ContentHierarchy{}, schemaErr(target, "invalid json", err)
	}
	if decoded.Nodes == nil {
		return domain.ContentHierarchy{}, schemaErr(target, "missing nodes", nil)
	}
	out := domain.ContentHierarchy{Nodes: *decoded.Nodes}
	if decoded.URL != nil {
		out.URL = *decoded.URL
	}
	return out, nil
}

func decodeFragment(raw string, dst any) error {
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return errors.New("empty payload")
	}
	if !strings.HasPrefix(cleaned, "{") {
		return errors.New("payload is not a json object")
	}
	return json.Unmarshal([]byte(cleaned), dst)
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
