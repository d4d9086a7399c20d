package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akriventsev/memrepo"
)

// NewVersionCommand создает команду version
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta := memrepo.GetMetadata()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s\n", meta.Name, meta.Version, meta.Description)
			return err
		},
	}
}
