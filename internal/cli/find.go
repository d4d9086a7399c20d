package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/akriventsev/memrepo/framework/adapters/repository"
	"github.com/akriventsev/memrepo/framework/core"
	"github.com/akriventsev/memrepo/internal/fixture"
)

// NewFindCommand создает команду find
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <id>",
		Short: "Find an entity of the selected kind by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, rootOpts, args[0])
		},
	}
}

func runFind(cmd *cobra.Command, opts *RootOptions, rawID string) (err error) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return core.InvalidArgument("id", fmt.Sprintf("%q is not an integer", rawID))
	}

	a, err := newApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(cmd.Context()); err == nil {
			err = closeErr
		}
	}()

	kind := repository.Kind(opts.Kind)
	repo, err := a.open(kind)
	if err != nil {
		return annotate("find", err)
	}
	found, err := repo.FindByID(cmd.Context(), id)
	if err != nil {
		return annotate("find", err)
	}
	entity, ok := found.Get()
	if !ok {
		return core.Errorf(core.CodeNotFound, "%s %d not found", kind, id)
	}
	return fixture.Encode(cmd.OutOrStdout(), []repository.Storeable[int]{entity})
}
