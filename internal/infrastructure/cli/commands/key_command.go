package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/application/credentials"
	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/infrastructure/cli/helpers"
	"github.com/doeshing/notegen/internal/infrastructure/cli/terminal"
)

// NewKeyCommand creates the key command with all subcommands
func NewKeyCommand(container *app.Container) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage encrypted provider API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showKeyStatus(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
	keyCmd.AddCommand(
		newKeySetCommand(container),
		newKeyClearCommand(container),
		newKeyStatusCommand(container),
	)
	return keyCmd
}

func newKeySetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key (prompted without echo when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := helpers.ParseProviderID(container.Registry, args[0])
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 2 {
				key = args[1]
			} else {
				key, err = terminal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Secret(fmt.Sprintf("%s API key: ", provider))
				if err != nil {
					return err
				}
			}
			return setAPIKey(cmd.Context(), cmd.OutOrStdout(), container, provider, key)
		},
	}
}

func newKeyClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <provider>",
		Short: "Delete a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := helpers.ParseProviderID(container.Registry, args[0])
			if err != nil {
				return err
			}
			if container.Credentials == nil {
				return errors.New(ErrCredentialsUnavailable)
			}
			if err := container.Credentials.ClearAPIKey(cmd.Context(), provider); err != nil {
				return fmt.Errorf("failed to clear %s key: %w", provider, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s API key\n", provider)
			return nil
		},
	}
}

func newKeyStatusCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which providers have a key configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showKeyStatus(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

func setAPIKey(ctx context.Context, out io.Writer, container *app.Container, provider domain.ProviderID, key string) error {
	if container.Credentials == nil {
		return errors.New(ErrCredentialsUnavailable)
	}
	if !container.Credentials.ValidateAPIKey(provider, key) {
		return fmt.Errorf("%w for %s", domain.ErrInvalidAPIKey, provider)
	}
	if err := container.Credentials.SetAPIKey(ctx, provider, key); err != nil {
		return fmt.Errorf("failed to store %s key: %w", provider, err)
	}
	fmt.Fprintf(out, "Stored %s API key %s\n", provider, credentials.Mask(key))
	return nil
}

// showKeyStatus lists every provider with its masked key
func showKeyStatus(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Credentials == nil {
		return errors.New(ErrCredentialsUnavailable)
	}
	statuses, err := container.Credentials.Status(ctx, container.Registry.ProviderIDs())
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	for _, st := range statuses {
		switch {
		case !container.Registry.RequiresAPIKey(st.Provider) && !st.Configured:
			fmt.Fprintf(out, "%-10s not required\n", st.Provider)
		case !st.Configured:
			fmt.Fprintf(out, "%-10s not configured\n", st.Provider)
		default:
			validity := "valid format"
			if !st.Valid {
				validity = "unexpected format"
			}
			fmt.Fprintf(out, "%-10s %s (%s, updated %s)\n",
				st.Provider, st.Masked, validity, st.UpdatedAt.Local().Format(TimestampFormat))
		}
	}
	return nil
}
