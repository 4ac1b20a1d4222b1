package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"uxforge/internal/domain"
)

// Task names the synthesis step a prompt belongs to.
type Task string

const (
	TaskHierarchy Task = "extract_hierarchy"
	TaskCopy      Task = "copywriter"
	TaskStyle     Task = "style_system"
)

// Prompt is a single structured completion request. Payload carries the typed
// inputs the text was built from so offline synthesizers can work without
// parsing the prose.
type Prompt struct {
	Task    Task
	System  string
	User    string
	Payload any
}

// ContentSynthesizer turns a prompt into raw model text.
type ContentSynthesizer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

type HierarchyInput struct {
	URL     string
	DOMHTML string
}

type CopyInput struct {
	Hierarchy domain.ContentHierarchy
	Tone      domain.Tone
}

type StyleInput struct {
	Criteria []domain.EvaluationCriterion
}

const jsonOnly = "Respond with a single JSON object and nothing else. Do not wrap it in markdown."

const hierarchySystem = `You extract a concise hierarchical content map from an HTML document.
Only include salient sections (hero, features, cta, footer and similar).
Return JSON matching:
{"url": string|null,
 "nodes": [{"id": string, "tag": string, "text": string, "path": string,
            "children": [ ...same shape... ]}]}
` + jsonOnly

const copySystem = `You improve website copy, preserving meaning while modernizing tone and clarity.
Tone is one of neutral, friendly, professional, bold.
Return JSON matching:
{"summary": string,
 "blocks": [{"path": string, "original_text": string, "improved_text": string, "tone": string}]}
` + jsonOnly

const styleSystem = `You propose a modern style system for a website given weighted evaluation criteria.
Return JSON matching:
{"layout_paradigm": "modern"|"classic"|"minimal"|"bold",
 "design_tokens": {"color_primary": string, "color_secondary": string, "font_sans": string},
 "components": [string]}
` + jsonOnly

func hierarchyPrompt(url, dom string) Prompt {
	user := fmt.Sprintf("url: %s\n\ndom_html:\n%s", url, dom)
	return Prompt{
		Task:    TaskHierarchy,
		System:  hierarchySystem,
		User:    user,
		Payload: HierarchyInput{URL: url, DOMHTML: dom},
	}
}

func copyPrompt(h domain.ContentHierarchy, tone domain.Tone) (Prompt, error) {
	encoded, err := json.Marshal(h)
	if err != nil {
		return Prompt{}, fmt.Errorf("synthesis: encode hierarchy: %w", err)
	}
	return Prompt{
		Task:    TaskCopy,
		System:  copySystem,
		User:    fmt.Sprintf("tone: %s\n\nhierarchy_json:\n%s", tone, encoded),
		Payload: CopyInput{Hierarchy: h, Tone: tone},
	}, nil
}

func stylePrompt(criteria []domain.EvaluationCriterion) (Prompt, error) {
	encoded, err := json.Marshal(criteria)
	if err != nil {
		return Prompt{}, fmt.Errorf("synthesis: encode criteria: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("criteria_json:\n")
	sb.Write(encoded)
	return Prompt{
		Task:    TaskStyle,
		System:  styleSystem,
		User:    sb.String(),
		Payload: StyleInput{Criteria: criteria},
	}, nil
}
