package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/domain"
)

// NewProvidersCommand creates the providers command
func NewProvidersCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers and their default models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProviders(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// listProviders prints one line per provider; the active one is starred
func listProviders(ctx context.Context, out io.Writer, container *app.Container) error {
	var active domain.ProviderID
	if container.GenerationService != nil {
		active = container.GenerationService.CurrentProvider()
	}

	for _, id := range container.Registry.ProviderIDs() {
		marker := " "
		if id == active {
			marker = "*"
		}
		model := container.Registry.DefaultModel(id)
		key := "no key needed"
		if container.Registry.RequiresAPIKey(id) {
			key = "key missing"
			if container.Credentials != nil {
				if _, err := container.Credentials.GetAPIKey(ctx, id); err == nil {
					key = "key stored"
				}
			}
		}
		thinking := ""
		if domain.SupportsThinking(id, model) {
			thinking = ", thinking"
		}
		fmt.Fprintf(out, "%s %-10s %-28s %s%s\n", marker, id, model, key, thinking)
	}
	return nil
}
