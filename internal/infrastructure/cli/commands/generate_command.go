package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/infrastructure/cli/terminal"
)

type generateFlags struct {
	noteID       string
	model        string
	temperature  float64
	maxTokens    int
	noStream     bool
	render       bool
	showThinking bool
	usage        bool
	timeout      time.Duration
}

// NewGenerateCommand creates the generate command
func NewGenerateCommand(container *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate [prompt]",
		Aliases: []string{"gen"},
		Short:   "Generate note content with the active configuration",
		Long: "Generate note content with the active provider and model.\n" +
			"The prompt is read from the arguments, or from stdin when none are given.",
	}
	BindGenerate(cmd, container)
	return cmd
}

// BindGenerate installs the generate flags and handler on cmd.
func BindGenerate(cmd *cobra.Command, container *app.Container) {
	flags := &generateFlags{}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		prompt, err := readPrompt(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		return runGenerate(cmd, container, prompt, *flags)
	}

	cmd.Flags().StringVar(&flags.noteID, "note", "", "Note id recorded in history")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model override for this request")
	cmd.Flags().Float64VarP(&flags.temperature, "temperature", "t", domain.DefaultTemperature, "Sampling temperature override")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", domain.DefaultMaxTokens, "Completion token limit override")
	cmd.Flags().BoolVar(&flags.noStream, "no-stream", false, "Wait for the full response instead of streaming")
	cmd.Flags().BoolVarP(&flags.render, "render", "r", false, "Render the note as markdown")
	cmd.Flags().BoolVar(&flags.showThinking, "thinking", false, "Show the thinking chain (default from settings)")
	cmd.Flags().BoolVar(&flags.usage, "usage", false, "Print token usage and the history id")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Override the request timeout")
}

func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && in != nil && !terminal.IsTerminal(in) {
		raw, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(raw))
	}
	if prompt == "" {
		return "", errors.New(ErrPromptRequired)
	}
	return prompt, nil
}

// runGenerate streams one generation and prints the stored result.
func runGenerate(cmd *cobra.Command, container *app.Container, prompt string, flags generateFlags) error {
	svc := container.GenerationService
	if svc == nil {
		return errors.New(ErrGenerationUnavailable)
	}

	ctx := cmd.Context()
	timeout := flags.timeout
	if timeout <= 0 {
		timeout = container.Config.GetRequestTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	renderer := terminal.NewRenderer(out, flags.render)
	stream := terminal.NewStreamWriter(out)
	spinner := terminal.NewSpinner(errOut)

	settings := svc.Settings()
	opts := domain.GenerateOptions{
		NoteID: flags.noteID,
		Prompt: prompt,
		Model:  flags.model,
	}
	if cmd.Flags().Changed("temperature") {
		opts.Temperature = &flags.temperature
	}
	if cmd.Flags().Changed("max-tokens") {
		opts.MaxTokens = &flags.maxTokens
	}
	if flags.noStream {
		off := false
		opts.Stream = &off
	}
	live := settings.ResolveStream(opts.Stream) && !flags.render

	var (
		mu      sync.Mutex
		content string
		genErr  error
	)
	opts.Callbacks = domain.Callbacks{
		OnStream: func(text string, _ []byte) {
			if live {
				spinner.Stop()
				stream.Write(text)
			}
		},
		OnComplete: func(c string) {
			mu.Lock()
			content = c
			mu.Unlock()
		},
		OnError: func(err error) {
			mu.Lock()
			genErr = err
			mu.Unlock()
		},
	}

	spinner.Start("Generating...")
	id, err := svc.GenerateNote(ctx, opts)
	spinner.Stop()
	stream.Done()

	mu.Lock()
	defer mu.Unlock()
	if err == nil {
		err = genErr
	}
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("generation %s: %w", id, ctx.Err())
	}
	if err != nil {
		terminal.NewRenderer(errOut, false).Error(err)
		return fmt.Errorf("%w: %w", ErrReported, err)
	}

	rec, herr := container.HistoryStore.Get(ctx, id)
	if herr != nil {
		// the record could not be read back; fall back to the raw text
		rec = domain.HistoryRecord{ID: id, GeneratedContent: content}
	}

	showThinking := settings.Thinking.ShowByDefault
	if cmd.Flags().Changed("thinking") {
		showThinking = flags.showThinking
	}
	if showThinking {
		renderer.ThinkingChain(rec.ThinkingChain)
	}
	if !stream.Started() {
		if err := renderer.Content(rec.GeneratedContent); err != nil {
			return err
		}
	}
	if flags.usage {
		usage := terminal.NewRenderer(errOut, false)
		usage.Usage(rec.TokenUsage)
		fmt.Fprintf(errOut, "history id: %s (%s)\n", rec.ID, rec.Duration.Round(time.Millisecond))
	}
	return nil
}
