package renderer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dpshade/prompt-catalog/internal/models"
)

// placeholderPattern matches {{name}} with optional whitespace inside the
// braces. Anything that does not match passes through untouched.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Substitute replaces every {{name}} occurrence in text with the
// corresponding value. Unresolved placeholders are left verbatim. Pure
// function; malformed placeholder syntax is passed through unchanged.
func Substitute(text string, values map[string]string) string {
	if text == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if value, ok := values[name]; ok {
			return value
		}
		return match
	})
}

// ExtractPlaceholders returns the sorted, de-duplicated placeholder names
// found in text.
func ExtractPlaceholders(text string) []string {
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TokenEstimate gives a rough size estimate for a rendered prompt using the
// ~4 characters per token heuristic. For sizing only, not billing.
func TokenEstimate(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Renderer renders a template's text blocks with variable substitution
type Renderer struct {
	template *models.Template
}

// NewRenderer creates a new renderer for a template
func NewRenderer(t *models.Template) *Renderer {
	return &Renderer{template: t}
}

// resolveValues merges caller-supplied values over the template's declared
// defaults. Caller values win; variables the caller omits fall back to their
// declared default; everything else stays unresolved.
func (r *Renderer) resolveValues(values map[string]string) map[string]string {
	resolved := r.template.VariableDefaults()
	for name, value := range values {
		resolved[name] = value
	}
	return resolved
}

// RenderSystem renders the system block
func (r *Renderer) RenderSystem(values map[string]string) string {
	return Substitute(r.template.System, r.resolveValues(values))
}

// RenderUser renders the user block
func (r *Renderer) RenderUser(values map[string]string) string {
	return Substitute(r.template.User, r.resolveValues(values))
}

// RenderTools renders the tools block
func (r *Renderer) RenderTools(values map[string]string) string {
	return Substitute(r.template.Tools, r.resolveValues(values))
}

// RenderText renders the combined preview in the form shown to users:
// a [SYSTEM] section followed by a [USER] section.
func (r *Renderer) RenderText(values map[string]string) string {
	return fmt.Sprintf("[SYSTEM]\n%s\n\n[USER]\n%s",
		r.RenderSystem(values), r.RenderUser(values))
}

// Message represents a chat message for LLM APIs
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RenderJSON renders the template as a JSON message array for LLM APIs.
// Empty blocks are omitted from the array.
func (r *Renderer) RenderJSON(values map[string]string) (string, error) {
	var messages []Message
	if system := r.RenderSystem(values); system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	if user := r.RenderUser(values); user != "" {
		messages = append(messages, Message{Role: "user", Content: user})
	}

	jsonBytes, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	return string(jsonBytes), nil
}

// UndeclaredPlaceholders lists placeholder names referenced in the
// template's text blocks that are missing from its variables. Tolerated by
// the store; reported so authors can fix the declaration.
func UndeclaredPlaceholders(t *models.Template) []string {
	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		declared[v.Name] = true
	}

	seen := make(map[string]bool)
	var missing []string
	for _, block := range []string{t.System, t.User, t.Tools} {
		for _, name := range ExtractPlaceholders(block) {
			if !declared[name] && !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
