package config

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// AutoSourceLang is the sentinel requesting source detection.
const AutoSourceLang = "auto"

// DetectSourceLang guesses the dominant language of the given texts
// and returns its ISO 639-1 code. Detection votes per text so a few
// foreign fragments cannot flip the result. Returns "" when nothing
// usable was detected.
func DetectSourceLang(texts []string) string {
	votes := make(map[string]int)
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		code := whatlanggo.DetectLang(text).Iso6391()
		if code == "" {
			continue
		}
		votes[code]++
	}

	best := ""
	bestCount := 0
	for code, count := range votes {
		if count > bestCount {
			best = code
			bestCount = count
		}
	}
	return best
}

// NormalizeLang canonicalizes a user-supplied language code or name
// via BCP 47 parsing. Unparseable input is returned unchanged; the
// provider prompt still carries it verbatim.
func NormalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || lang == AutoSourceLang {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}
