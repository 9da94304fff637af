package terminal

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/doeshing/notegen/internal/domain"
)

// Renderer prints generated notes, thinking chains and errors.
type Renderer struct {
	out      io.Writer
	markdown bool
	width    int

	title   *color.Color
	muted   *color.Color
	summary *color.Color
	failure *color.Color
	steps   map[domain.StepType]*color.Color
}

// NewRenderer creates a Renderer. Colors are used only on a terminal.
// With markdown set, note content is rendered through glamour.
func NewRenderer(out io.Writer, markdown bool) *Renderer {
	r := &Renderer{
		out:      out,
		markdown: markdown,
		width:    Width(out),
		title:    color.New(color.Bold),
		muted:    color.New(color.FgHiBlack),
		summary:  color.New(color.FgCyan),
		failure:  color.New(color.FgRed, color.Bold),
		steps: map[domain.StepType]*color.Color{
			domain.StepThinking:   color.New(color.FgHiBlack),
			domain.StepAnalysis:   color.New(color.FgBlue),
			domain.StepReasoning:  color.New(color.FgMagenta),
			domain.StepConclusion: color.New(color.FgGreen),
		},
	}
	if !IsTerminal(out) {
		r.disableColor()
	}
	return r
}

func (r *Renderer) disableColor() {
	for _, c := range []*color.Color{r.title, r.muted, r.summary, r.failure} {
		c.DisableColor()
	}
	for _, c := range r.steps {
		c.DisableColor()
	}
}

// Content prints the note body.
func (r *Renderer) Content(content string) error {
	if !r.markdown {
		_, err := fmt.Fprintln(r.out, strings.TrimRight(content, "\n"))
		return err
	}
	style := glamour.WithAutoStyle()
	if !IsTerminal(r.out) {
		style = glamour.WithStandardStyle("notty")
	}
	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(r.width))
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	rendered, err := tr.Render(content)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = fmt.Fprint(r.out, rendered)
	return err
}

// ThinkingChain prints the segmented reasoning. A nil chain prints nothing.
func (r *Renderer) ThinkingChain(chain *domain.ThinkingChainContent) {
	if chain == nil || len(chain.Steps) == 0 {
		return
	}
	fmt.Fprintf(r.out, "%s %s\n",
		r.title.Sprint("Thinking"),
		r.muted.Sprintf("(%d steps, %s)", chain.TotalSteps, chain.DetectedFormat))
	for i, step := range chain.Steps {
		label := r.stepColor(step.Type).Sprintf("%2d. %-10s", i+1, step.Type)
		fmt.Fprintf(r.out, "%s %s\n", label, step.Content)
	}
	if chain.Summary != "" {
		fmt.Fprintf(r.out, "%s %s\n", r.summary.Sprint("Summary:"), chain.Summary)
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) stepColor(t domain.StepType) *color.Color {
	if c, ok := r.steps[t]; ok {
		return c
	}
	return r.muted
}

// Error prints err. Generation errors show the user message and the
// recovery options instead of the technical cause.
func (r *Renderer) Error(err error) {
	var gerr *domain.GenerationError
	if !errors.As(err, &gerr) {
		fmt.Fprintf(r.out, "%s %v\n", r.failure.Sprint("Error:"), err)
		return
	}
	fmt.Fprintf(r.out, "%s %s %s\n", r.failure.Sprint("Error:"), gerr.UserMessage, r.muted.Sprintf("[%s]", gerr.Kind))
	for _, action := range gerr.Recovery {
		fmt.Fprintf(r.out, "  - %s\n", action.Label)
	}
}

// Usage prints token usage, marking estimates.
func (r *Renderer) Usage(usage *domain.TokenUsage) {
	if usage == nil {
		return
	}
	suffix := ""
	if usage.Estimated {
		suffix = " (estimated)"
	}
	fmt.Fprintln(r.out, r.muted.Sprintf("tokens: prompt %d, completion %d, total %d%s",
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, suffix))
}
