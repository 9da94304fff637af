package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/doeshing/notegen/internal/app"
	"github.com/doeshing/notegen/internal/infrastructure/mcpserver"
	"github.com/doeshing/notegen/internal/version"
)

// NewServeCommand creates the serve command
func NewServeCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve generation and history tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.GenerationService == nil {
				return errors.New(ErrGenerationUnavailable)
			}
			container.Logger.Info("mcp server starting", map[string]interface{}{"version": version.Version})
			s := mcpserver.New(version.Version, container.GenerationService, container.HistoryStore)
			return mcpserver.Serve(s)
		},
	}
}
