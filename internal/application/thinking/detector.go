// Package thinking finds model reasoning traces and turns them into ordered,
// classified steps.
//
// Vendors expose reasoning through two incompatible channels: inline tags in
// the generated text, or a dedicated field in each streamed chunk. Every
// function here is stateless and safe for concurrent use.
package thinking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/doeshing/notegen/internal/domain"
)

// TagVariants lists the recognised tag names in precedence order.
var TagVariants = []string{"thinking", "think", "reasoning", "thought"}

// StreamFields lists the recognised side-channel field names in precedence order.
var StreamFields = []string{
	"reasoning_content",
	"reasoning",
	"thinking",
	"thinking_content",
	"thought",
}

const deltaEnvelope = "choices.0.delta."

var (
	tagPatterns   = compileTagPatterns(TagVariants)
	excessNewline = regexp.MustCompile(`\n{3,}`)
)

func compileTagPatterns(tags []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(tags))
	for i, tag := range tags {
		patterns[i] = regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	}
	return patterns
}

// DetectFromText scans text for the first tag variant wrapping enough content.
// CleanContent is the input minus that block, with blank-line runs collapsed
// and surrounding whitespace trimmed.
func DetectFromText(text string) domain.ThinkingDetection {
	none := domain.ThinkingDetection{CleanContent: text, Format: domain.FormatNone}
	if text == "" {
		return none
	}
	scan := truncate(text, domain.MaxThinkingInputLength)

	for _, pattern := range tagPatterns {
		loc := pattern.FindStringSubmatchIndex(scan)
		if loc == nil {
			continue
		}
		inner := scan[loc[2]:loc[3]]
		if utf8.RuneCountInString(inner) < domain.MinThinkingLength {
			continue
		}
		clean := text[:loc[0]] + text[loc[1]:]
		return domain.ThinkingDetection{
			HasThinkingChain: true,
			ThinkingContent:  strings.TrimSpace(inner),
			CleanContent:     cleanup(clean),
			Format:           domain.FormatXMLTag,
		}
	}
	return none
}

// DetectFromStreamChunk returns the first non-empty side-channel field of a
// raw JSON chunk, checking each name flat and then under choices[0].delta.
func DetectFromStreamChunk(chunk []byte) (string, bool) {
	if len(chunk) == 0 || !gjson.ValidBytes(chunk) {
		return "", false
	}
	for _, field := range StreamFields {
		if v, ok := stringField(chunk, field); ok {
			return v, true
		}
		if v, ok := stringField(chunk, deltaEnvelope+field); ok {
			return v, true
		}
	}
	return "", false
}

// Detect checks the stream channel first and falls back to tag scanning.
// A side-channel value shorter than MinThinkingLength is treated as absent.
func Detect(text string, chunk []byte) domain.ThinkingDetection {
	if content, ok := DetectFromStreamChunk(chunk); ok && utf8.RuneCountInString(content) >= domain.MinThinkingLength {
		return domain.ThinkingDetection{
			HasThinkingChain: true,
			ThinkingContent:  content,
			CleanContent:     text,
			Format:           domain.FormatJSONField,
		}
	}
	return DetectFromText(text)
}

func stringField(chunk []byte, path string) (string, bool) {
	res := gjson.GetBytes(chunk, path)
	if res.Type != gjson.String || res.Str == "" {
		return "", false
	}
	return res.Str, true
}

func cleanup(s string) string {
	return strings.TrimSpace(excessNewline.ReplaceAllString(s, "\n\n"))
}

// truncate cuts s to at most max runes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
