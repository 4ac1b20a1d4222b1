package synthesis

import _ "embed"

// StyleGuide is the textual checklist handed to the page-editing agent.
//
//go:embed styleguide.md
var StyleGuide string
