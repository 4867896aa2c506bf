package llm

import "strings"

// ExtractJSON pulls a JSON object out of a model reply, tolerating
// markdown code fences and surrounding prose. Returns "" when no JSON
// object can be found.
func ExtractJSON(text string) string {
	// Fenced block with explicit language
	if start := strings.Index(text, "```json"); start != -1 {
		body := text[start+len("```json"):]
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end])
		}
	}

	// Fenced block without language
	if start := strings.Index(text, "```"); start != -1 {
		body := text[start+3:]
		if end := strings.Index(body, "```"); end != -1 {
			candidate := strings.TrimSpace(body[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Bare object: first { to last }
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return ""
}
