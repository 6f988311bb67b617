package provider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// parseTranslatedContent extracts expected translated strings from a
// model reply. Models wrap the array in markdown fences or objects
// often enough that the parser tries, in order: a fenced code block,
// the raw text as a JSON array, known wrapper object keys, and for
// single-item batches the raw text itself.
func parseTranslatedContent(content string, expected int) ([]string, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("empty translation response")
	}

	candidates := []string{text}
	if match := codeBlockPattern.FindStringSubmatch(text); match != nil {
		candidates = []string{strings.TrimSpace(match[1]), text}
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}

		switch v := parsed.(type) {
		case []any:
			if items, ok := stringItems(v, expected); ok {
				return items, nil
			}
		case map[string]any:
			for _, key := range []string{"translations", "result", "data"} {
				value, ok := v[key]
				if !ok {
					continue
				}
				if list, ok := value.([]any); ok {
					if items, ok := stringItems(list, expected); ok {
						return items, nil
					}
				}
				if s, ok := value.(string); ok && expected == 1 {
					return []string{s}, nil
				}
			}
		case string:
			if expected == 1 {
				return []string{v}, nil
			}
		}
	}

	if expected == 1 {
		return []string{text}, nil
	}
	return nil, fmt.Errorf("translation response length does not match input (want %d)", expected)
}

func stringItems(list []any, expected int) ([]string, bool) {
	if len(list) != expected {
		return nil, false
	}
	items := make([]string, len(list))
	for i, item := range list {
		switch t := item.(type) {
		case string:
			items[i] = t
		default:
			items[i] = fmt.Sprint(t)
		}
	}
	return items, true
}
