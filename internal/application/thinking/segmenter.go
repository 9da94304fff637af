package thinking

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/doeshing/notegen/internal/domain"
)

const (
	// mergeTarget is the length a chunk of merged sentences must exceed before
	// it is emitted.
	mergeTarget = 200
	// maxStepLength is the longest step kept without further splitting.
	maxStepLength = 500
	stepInterval  = 100 * time.Millisecond
)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

const sentenceTerminators = "。！？；.!?"

// cjkTerminators end sentences that are joined without a space.
const cjkTerminators = "。！？；，：…"

// ParseSteps splits isolated thinking text into ordered, classified steps.
// Timestamps are synthetic: base plus 100ms per step.
func ParseSteps(text string, base time.Time) []domain.ThinkingChainStep {
	chunks := splitChunks(text)
	steps := make([]domain.ThinkingChainStep, 0, len(chunks))
	for i, chunk := range chunks {
		steps = append(steps, domain.ThinkingChainStep{
			ID:        fmt.Sprintf("step-%d", i+1),
			Content:   chunk,
			Timestamp: base.Add(time.Duration(i) * stepInterval),
			Type:      ClassifyStep(chunk),
		})
	}
	return steps
}

func splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	parts := nonEmpty(blankLine.Split(text, -1))
	if len(parts) < 2 {
		parts = nonEmpty(strings.Split(text, "\n"))
	}
	if len(parts) < 2 {
		parts = mergeSentences(splitSentences(text))
	}

	var out []string
	for _, part := range parts {
		out = append(out, bound(part)...)
	}
	return out
}

// bound re-splits a chunk until every piece fits maxStepLength.
func bound(chunk string) []string {
	if runeLen(chunk) <= maxStepLength {
		return []string{chunk}
	}
	pieces := nonEmpty(strings.Split(chunk, "\n"))
	if len(pieces) < 2 {
		pieces = mergeSentences(splitSentences(chunk))
	}
	if len(pieces) < 2 {
		return hardSplit(chunk, maxStepLength)
	}
	var out []string
	for _, piece := range pieces {
		out = append(out, bound(piece)...)
	}
	return out
}

// splitSentences cuts after each run of terminators, keeping the punctuation.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
		inTerm    bool
	)
	for i, r := range text {
		isTerm := strings.ContainsRune(sentenceTerminators, r)
		if inTerm && !isTerm {
			sentences = append(sentences, text[start:i])
			start = i
		}
		inTerm = isTerm
	}
	sentences = append(sentences, text[start:])
	return nonEmpty(sentences)
}

func mergeSentences(sentences []string) []string {
	var (
		out []string
		buf strings.Builder
	)
	for _, s := range sentences {
		if buf.Len() > 0 && !endsCJK(buf.String()) {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
		if runeLen(buf.String()) > mergeTarget {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

func endsCJK(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune(cjkTerminators, r) || unicode.Is(unicode.Han, r)
}

func hardSplit(s string, size int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[:n])); piece != "" {
			out = append(out, piece)
		}
		runes = runes[n:]
	}
	return out
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
