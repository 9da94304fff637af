// Package cli assembles the notegen command tree.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/infrastructure/cli/commands"
	"github.com/doeshing/notegen/internal/infrastructure/cli/terminal"
)

// Options holds CLI-level configuration.
type Options struct {
	// ConfigPath overrides the config file; empty uses NOTEGEN_CONFIG or the default.
	ConfigPath string
	Verbose    bool
}

// ParseOptions reads the global flags ahead of cobra, since the container
// must exist before the command tree is built. Unknown flags are ignored.
func ParseOptions(args []string) Options {
	var opts Options
	fs := pflag.NewFlagSet("notegen", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	bindGlobalFlags(fs, &opts)
	_ = fs.Parse(args)
	return opts
}

func bindGlobalFlags(fs *pflag.FlagSet, opts *Options) {
	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Config file (default $NOTEGEN_CONFIG or ~/.notegen/config.yaml)")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Debug logging on stderr")
}

// NewRootCmd wires the cobra root command. The container is closed when
// the command finishes.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, app.Options{ConfigPath: opts.ConfigPath, Verbose: opts.Verbose})
	if err != nil {
		return nil, err
	}

	root := NewCommandTree(container)
	// registered so cobra accepts them; the values were consumed by ParseOptions
	bindGlobalFlags(root.PersistentFlags(), &opts)
	cobra.OnFinalize(func() {
		if err := container.Close(); err != nil {
			container.Logger.Error("failed to close stores", err, nil)
		}
	})
	return root, nil
}

// NewCommandTree builds every command around an existing container.
func NewCommandTree(container *app.Container) *cobra.Command {
	root := &cobra.Command{
		Use:   "notegen [prompt]",
		Short: "notegen - AI note generation with thinking-chain capture",
		Long: "notegen generates note content through OpenAI, DeepSeek, Qwen, Anthropic or a local Ollama,\n" +
			"separating the model's reasoning from the answer and recording every attempt.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// a bare prompt is shorthand for `notegen generate`
	commands.BindGenerate(root, container)
	generate := root.RunE
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && terminal.IsTerminal(cmd.InOrStdin()) {
			return cmd.Help()
		}
		return generate(cmd, args)
	}

	root.AddCommand(
		commands.NewGenerateCommand(container),
		commands.NewConfigCommand(container),
		commands.NewKeyCommand(container),
		commands.NewHistoryCommand(container),
		commands.NewProvidersCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewServeCommand(container),
		commands.NewVersionCommand(),
	)
	return root
}

// IsReported reports whether err was already printed by a command.
func IsReported(err error) bool {
	return errors.Is(err, commands.ErrReported)
}
