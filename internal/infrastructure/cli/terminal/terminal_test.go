package terminal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/notegen/internal/domain"
)

func TestStreamWriter_PrintsSuffixOfCumulativeText(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)

	assert.False(t, w.Started())
	w.Write("Hel")
	w.Write("Hello")
	w.Write("Hello")
	w.Write("Hello, world")
	w.Done()

	assert.True(t, w.Started())
	assert.Equal(t, "Hello, world\n", buf.String())
}

func TestStreamWriter_RestartsOnDivergingText(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamWriter(&buf)

	w.Write("abc")
	w.Write("xyz")
	w.Done()

	assert.Equal(t, "abc\nxyz\n", buf.String())
}

func TestRenderer_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.ThinkingChain(&domain.ThinkingChainContent{
		Steps: []domain.ThinkingChainStep{
			{ID: "step-1", Content: "look at the prompt", Timestamp: base, Type: domain.StepAnalysis},
			{ID: "step-2", Content: "so the answer is 4", Timestamp: base, Type: domain.StepConclusion},
		},
		Summary:        "Analysis → Conclusion",
		TotalSteps:     2,
		DetectedFormat: domain.FormatXMLTag,
	})
	require.NoError(t, r.Content("# Title\n"))

	out := buf.String()
	assert.Contains(t, out, "Thinking (2 steps, xml_tag)")
	assert.Contains(t, out, " 1. analysis   look at the prompt")
	assert.Contains(t, out, " 2. conclusion so the answer is 4")
	assert.Contains(t, out, "Summary: Analysis → Conclusion")
	assert.True(t, strings.HasSuffix(out, "# Title\n"))
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderer_NilChainPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, false).ThinkingChain(nil)
	assert.Empty(t, buf.String())
}

func TestRenderer_MarkdownWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, true).Content("**bold** text"))
	assert.Contains(t, buf.String(), "bold")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestRenderer_GenerationError(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.Error(&domain.GenerationError{
		Kind:        domain.ErrorNetwork,
		UserMessage: "The AI service could not be reached.",
		Recovery:    []domain.RecoveryAction{{Kind: domain.RecoveryRetry, Label: "Retry"}},
	})
	r.Error(errors.New("plain failure"))

	out := buf.String()
	assert.Contains(t, out, "Error: The AI service could not be reached. [NETWORK]")
	assert.Contains(t, out, "  - Retry")
	assert.Contains(t, out, "Error: plain failure")
}

func TestRenderer_Usage(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.Usage(nil)
	r.Usage(&domain.TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8, Estimated: true})
	assert.Equal(t, "tokens: prompt 3, completion 5, total 8 (estimated)\n", buf.String())
}

func TestPrompter_ReadsFromNonTerminal(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  sk-secret  \nYes\nnope"), &out)

	secret, err := p.Secret("API key: ")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", secret)

	ok, err := p.Confirm("Clear history?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm("Again?")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Confirm("EOF?")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "API key: Clear history? [y/N]: ")
}

func TestSpinner_DisabledOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf)
	s.Start("waiting")
	s.Stop()
	s.Stop()
	assert.Empty(t, buf.String())
}
