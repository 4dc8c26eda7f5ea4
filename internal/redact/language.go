package redact

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// LanguageInfo is an advisory hint about the document's language,
// reported alongside identification results. The ruleset itself is not
// switched on it; callers may use it to warn when a mostly-English
// document runs under the Chinese-centric default rules.
type LanguageInfo struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DetectLanguage samples up to the first few kilobytes of text.
func DetectLanguage(text string) LanguageInfo {
	const sampleLimit = 4096

	sample := strings.TrimSpace(text)
	if sample == "" {
		return LanguageInfo{Code: "und", Name: "Unknown"}
	}
	if len(sample) > sampleLimit {
		cut := sampleLimit
		for cut > 0 && !utf8.RuneStart(sample[cut]) {
			cut--
		}
		sample = sample[:cut]
	}

	info := whatlanggo.Detect(sample)
	code := info.Lang.Iso6391()
	if code == "" {
		code = "und"
	}
	return LanguageInfo{
		Code:       code,
		Name:       info.Lang.String(),
		Confidence: info.Confidence,
	}
}
