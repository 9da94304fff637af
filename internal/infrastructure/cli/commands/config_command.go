package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/notegen/internal/app"
	configapp "github.com/doeshing/notegen/internal/application/config"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/infrastructure/cli/helpers"
	"github.com/doeshing/notegen/internal/infrastructure/cli/terminal"
	configinfra "github.com/doeshing/notegen/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration and manage the active provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}

	configCmd.AddCommand(
		newConfigShowCommand(container),
		newConfigGetCommand(container),
		newConfigPathCommand(container),
		newConfigValidateCommand(container),
		newConfigDiffCommand(container),
		newConfigApplyCommand(container),
		newConfigTestCommand(container),
		newConfigAICommand(container),
	)
	return configCmd
}

func newConfigShowCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configuration file and the active AI settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

func newConfigGetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value (e.g. log.level)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getConfigurationValue(cmd.Context(), cmd.OutOrStdout(), container, args[0])
		},
	}
}

func newConfigPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConfigLoader == nil {
				return errors.New(ErrConfigLoaderUnavailable)
			}
			fmt.Fprintln(cmd.OutOrStdout(), container.ConfigLoader.Path())
			return nil
		},
	}
}

func newConfigValidateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(cmd.Context(), container)
			if err != nil {
				return err
			}
			if err := configapp.Validate(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

func newConfigDiffCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show differences from the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigurationDiff(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

func newConfigApplyCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <provider> [model]",
		Short: "Make a provider and model the active configuration",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := helpers.ParseProviderID(container.Registry, args[0])
			if err != nil {
				return err
			}
			model := ""
			if len(args) == 2 {
				model = args[1]
			}
			return applyConfiguration(cmd.Context(), cmd.OutOrStdout(), container, provider, model)
		},
	}
}

func newConfigTestCommand(container *app.Container) *cobra.Command {
	var (
		key       string
		promptKey bool
	)
	cmd := &cobra.Command{
		Use:   "test <provider> [model]",
		Short: "Send a short test request without changing the active configuration",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := helpers.ParseProviderID(container.Registry, args[0])
			if err != nil {
				return err
			}
			model := ""
			if len(args) == 2 {
				model = args[1]
			}
			if promptKey {
				key, err = terminal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Secret("API key: ")
				if err != nil {
					return err
				}
			}
			return testConfiguration(cmd.Context(), cmd.OutOrStdout(), container, provider, model, key)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key to test and store")
	cmd.Flags().BoolVar(&promptKey, "prompt-key", false, "Read the API key interactively")
	return cmd
}

type aiFlags struct {
	temperature   float64
	maxTokens     int
	stream        bool
	thinking      bool
	showByDefault bool
}

func newConfigAICommand(container *app.Container) *cobra.Command {
	var flags aiFlags
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Show or change generation defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateAISettings(cmd, container, flags)
		},
	}
	cmd.Flags().Float64Var(&flags.temperature, "temperature", domain.DefaultTemperature, "Default sampling temperature")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", domain.DefaultMaxTokens, "Default completion token limit")
	cmd.Flags().BoolVar(&flags.stream, "stream", true, "Stream responses by default")
	cmd.Flags().BoolVar(&flags.thinking, "thinking", true, "Extract thinking chains")
	cmd.Flags().BoolVar(&flags.showByDefault, "show-thinking", true, "Show thinking chains by default")
	return cmd
}

func loadConfiguration(ctx context.Context, container *app.Container) (domain.Config, error) {
	if container.ConfigLoader == nil {
		return domain.Config{}, errors.New(ErrConfigLoaderUnavailable)
	}
	cfg, err := container.ConfigLoader.Load(ctx)
	if err != nil {
		return domain.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// showConfiguration prints the YAML config followed by the AI settings
func showConfiguration(ctx context.Context, out io.Writer, container *app.Container) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprintf(out, "# %s\n%s", container.ConfigLoader.Path(), data)

	if container.GenerationService == nil {
		return nil
	}
	settings, err := json.MarshalIndent(container.GenerationService.Settings(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n# ai_settings\n%s\n", settings)
	return nil
}

// getConfigurationValue prints one value addressed by a dotted key path
func getConfigurationValue(ctx context.Context, out io.Writer, container *app.Container, keyPath string) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}
	generic, err := helpers.ConfigToMap(cfg)
	if err != nil {
		return err
	}
	value, ok := helpers.TraverseNestedMap(generic, strings.Split(keyPath, "."))
	if !ok {
		return fmt.Errorf("key %s not found", keyPath)
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Fprint(out, string(data))
	return nil
}

// showConfigurationDiff shows the difference between current and default configuration
func showConfigurationDiff(ctx context.Context, out io.Writer, container *app.Container) error {
	currentConfig, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}

	diff := cmp.Diff(configinfra.ResolvedDefaults(), currentConfig)
	if diff == "" {
		fmt.Fprintln(out, MsgNoDifferencesFromDefault)
		return nil
	}
	fmt.Fprintln(out, diff)
	return nil
}

func applyConfiguration(ctx context.Context, out io.Writer, container *app.Container, provider domain.ProviderID, model string) error {
	svc := container.GenerationService
	if svc == nil {
		return errors.New(ErrGenerationUnavailable)
	}
	if err := svc.ApplyConfiguration(ctx, provider, model); err != nil {
		return err
	}
	fmt.Fprintf(out, "Active configuration: %s / %s\n", svc.CurrentProvider(), svc.CurrentModel())
	if !svc.SupportsThinking(svc.CurrentProvider(), svc.CurrentModel()) {
		fmt.Fprintln(out, "Note: this model is not expected to produce a thinking chain.")
	}
	return nil
}

func testConfiguration(ctx context.Context, out io.Writer, container *app.Container, provider domain.ProviderID, model, key string) error {
	svc := container.GenerationService
	if svc == nil {
		return errors.New(ErrGenerationUnavailable)
	}
	result, err := svc.TestConfiguration(ctx, provider, model, key)
	if err == nil && !result.Success {
		err = errors.New(result.Message)
	}
	status := "OK"
	if err != nil {
		status = "FAIL"
	}
	fmt.Fprintf(out, "[%s] %s / %s - %s (%s)\n",
		status, result.Provider, result.Model, result.Message, helpers.FormatDuration(result.Duration))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReported, err)
	}
	return nil
}

func updateAISettings(cmd *cobra.Command, container *app.Container, flags aiFlags) error {
	svc := container.GenerationService
	if svc == nil {
		return errors.New(ErrGenerationUnavailable)
	}
	changed := cmd.Flags().Changed
	if changed("temperature") || changed("max-tokens") || changed("stream") || changed("thinking") || changed("show-thinking") {
		err := svc.UpdateSettings(cmd.Context(), func(s *domain.AISettings) {
			if changed("temperature") {
				s.Temperature = flags.temperature
			}
			if changed("max-tokens") {
				s.MaxTokens = flags.maxTokens
			}
			if changed("stream") {
				s.Stream = flags.stream
			}
			if changed("thinking") {
				s.Thinking.Enabled = flags.thinking
			}
			if changed("show-thinking") {
				s.Thinking.ShowByDefault = flags.showByDefault
			}
		})
		if err != nil {
			return err
		}
	}

	s := svc.Settings()
	out := cmd.OutOrStdout()
	if s.ActiveConfig.IsZero() {
		fmt.Fprintln(out, MsgNoActiveConfig)
	} else {
		fmt.Fprintf(out, "active:        %s / %s\n", s.ActiveConfig.Provider, s.ActiveConfig.Model)
	}
	fmt.Fprintf(out, "temperature:   %g\n", s.Temperature)
	fmt.Fprintf(out, "max tokens:    %d\n", s.MaxTokens)
	fmt.Fprintf(out, "stream:        %t\n", s.Stream)
	fmt.Fprintf(out, "thinking:      %t (shown by default: %t)\n", s.Thinking.Enabled, s.Thinking.ShowByDefault)
	return nil
}
