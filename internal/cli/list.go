package cli

import (
	"github.com/spf13/cobra"

	"github.com/akriventsev/memrepo/framework/adapters/repository"
	"github.com/akriventsev/memrepo/internal/fixture"
)

// NewListCommand создает команду list
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entities of the selected kind",
		Long: `List all entities of --kind in data set order.

Output is a YAML document in the fixture format, so it can be fed back
with --fixture.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, rootOpts)
		},
	}
}

func runList(cmd *cobra.Command, opts *RootOptions) (err error) {
	a, err := newApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(cmd.Context()); err == nil {
			err = closeErr
		}
	}()

	repo, err := a.open(repository.Kind(opts.Kind))
	if err != nil {
		return annotate("list", err)
	}
	entities, err := repo.All(cmd.Context())
	if err != nil {
		return annotate("list", err)
	}
	return fixture.Encode(cmd.OutOrStdout(), entities)
}
