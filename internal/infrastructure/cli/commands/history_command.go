package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/infrastructure/cli/helpers"
	"github.com/doeshing/notegen/internal/infrastructure/cli/terminal"
	"github.com/doeshing/notegen/internal/infrastructure/history"
	"github.com/doeshing/notegen/internal/ports"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect generation history",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistorySearchCommand(container),
		newHistoryShowCommand(container),
		newHistoryClearCommand(container),
		newHistoryExportCommand(container),
		newHistoryStatsCommand(container),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var (
		query  domain.HistoryQuery
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStatus(status)
			if err != nil {
				return err
			}
			query.Status = parsed
			return listHistoryEntries(cmd.Context(), cmd.OutOrStdout(), container, query)
		},
	}

	cmd.Flags().IntVar(&query.Limit, "limit", DefaultHistoryLimit, "Max entries to show")
	cmd.Flags().StringVar(&query.NoteID, "note", "", "Only entries for this note id")
	cmd.Flags().StringVar(&status, "status", "", "Only entries with this status (success|error|cancelled)")
	return cmd
}

// newHistorySearchCommand creates the 'history search' subcommand
func newHistorySearchCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search prompts and generated content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := domain.HistoryQuery{Search: strings.Join(args, " "), Limit: limit}
			return listHistoryEntries(cmd.Context(), cmd.OutOrStdout(), container, query)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultSearchLimit, "Limit search results")
	return cmd
}

// newHistoryShowCommand creates the 'history show' subcommand
func newHistoryShowCommand(container *app.Container) *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry with its thinking chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryEntry(cmd.Context(), cmd.OutOrStdout(), container, args[0], render)
		},
	}

	cmd.Flags().BoolVarP(&render, "render", "r", false, "Render the content as markdown")
	return cmd
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(container *app.Container) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := terminal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Confirm("Delete all history?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), MsgClearCancelled)
					return nil
				}
			}
			return clearHistory(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(container *app.Container) *cobra.Command {
	var (
		format string
		query  domain.HistoryQuery
	)

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export history as JSONL or YAML (stdout when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return exportHistory(cmd.Context(), cmd.OutOrStdout(), container, query, format, path)
		},
	}

	cmd.Flags().StringVar(&format, "format", history.FormatJSONL, "Output format (jsonl|yaml)")
	cmd.Flags().StringVar(&query.NoteID, "note", "", "Only entries for this note id")
	return cmd
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rate and most used models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryStats(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

func historyStore(container *app.Container) (ports.HistoryStore, error) {
	if container.HistoryStore == nil {
		return nil, errors.New(ErrHistoryStoreUnavailable)
	}
	return container.HistoryStore, nil
}

func parseStatus(input string) (domain.HistoryStatus, error) {
	switch status := domain.HistoryStatus(strings.ToLower(strings.TrimSpace(input))); status {
	case "", domain.StatusSuccess, domain.StatusError, domain.StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("invalid status %q (success|error|cancelled)", input)
	}
}

// listHistoryEntries prints one line per matching entry
func listHistoryEntries(ctx context.Context, out io.Writer, container *app.Container, query domain.HistoryQuery) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}

	records, err := store.List(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(out, "%s | %s | %s/%s | %-9s | %s\n",
			rec.CreatedAt.Local().Format(TimestampFormat),
			rec.ID,
			rec.Provider,
			rec.Model,
			helpers.StatusLabel(rec.Status),
			helpers.Preview(rec.Prompt, PreviewLength))
	}
	return nil
}

// showHistoryEntry prints a single record in full
func showHistoryEntry(ctx context.Context, out io.Writer, container *app.Container, id string, render bool) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("history entry %s: %w", id, err)
	}

	fmt.Fprintf(out, "ID:       %s\n", rec.ID)
	if rec.NoteID != "" {
		fmt.Fprintf(out, "Note:     %s\n", rec.NoteID)
	}
	fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Local().Format(TimestampFormat))
	fmt.Fprintf(out, "Model:    %s / %s (temperature %g, max tokens %d, stream %t)\n",
		rec.Provider, rec.Model, rec.Temperature, rec.MaxTokens, rec.Stream)
	fmt.Fprintf(out, "Status:   %s in %s\n", helpers.StatusLabel(rec.Status), helpers.FormatDuration(rec.Duration))
	if rec.ErrorKind != "" {
		fmt.Fprintf(out, "Error:    %s: %s\n", rec.ErrorKind, rec.ErrorMessage)
	}
	fmt.Fprintf(out, "Prompt:   %s\n\n", rec.Prompt)

	renderer := terminal.NewRenderer(out, render)
	renderer.ThinkingChain(rec.ThinkingChain)
	if rec.GeneratedContent != "" {
		if err := renderer.Content(rec.GeneratedContent); err != nil {
			return err
		}
	}
	renderer.Usage(rec.TokenUsage)
	return nil
}

// clearHistory deletes every record
func clearHistory(ctx context.Context, out io.Writer, container *app.Container) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintln(out, MsgHistoryCleared)
	return nil
}

// exportHistory writes records to path, or to out when path is empty or "-"
func exportHistory(ctx context.Context, out io.Writer, container *app.Container, query domain.HistoryQuery, format, path string) (err error) {
	store, err := historyStore(container)
	if err != nil {
		return err
	}

	w := out
	if path != "" && path != "-" {
		f, ferr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.SecureFilePermissions)
		if ferr != nil {
			return fmt.Errorf("failed to create %s: %w", path, ferr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	n, err := history.Export(ctx, store, query, format, w)
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	if w != out {
		fmt.Fprintf(out, "Exported %d entries to %s\n", n, path)
	}
	return nil
}

// showHistoryStats displays success rate and the most used models
func showHistoryStats(ctx context.Context, out io.Writer, container *app.Container) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}
	records, err := store.List(ctx, domain.HistoryQuery{})
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	stats := helpers.CalculateHistoryStats(records, TopModelsLimit)
	fmt.Fprintf(out, "Entries:        %d\n", stats.Total)
	fmt.Fprintf(out, "Success rate:   %.1f%%\n", stats.SuccessRate())
	fmt.Fprintf(out, "Errors:         %d\n", stats.ByStatus[domain.StatusError])
	fmt.Fprintf(out, "Cancelled:      %d\n", stats.ByStatus[domain.StatusCancelled])
	fmt.Fprintf(out, "With thinking:  %d\n", stats.WithThinking)
	fmt.Fprintf(out, "Total tokens:   %d\n", stats.TotalTokens)
	fmt.Fprintf(out, "Avg duration:   %s\n", helpers.FormatDuration(stats.AvgDuration))
	fmt.Fprintln(out, "Top models:")
	for _, m := range stats.TopModels {
		fmt.Fprintf(out, "  %3d  %s/%s\n", m.Count, m.Provider, m.Model)
	}
	return nil
}
