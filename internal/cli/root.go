// Package cli команды memrepo: просмотр и изменение набора данных через репозитории.
package cli

import (
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/akriventsev/memrepo/framework/adapters/repository"
	"github.com/akriventsev/memrepo/framework/core"
)

// RootOptions глобальные флаги всех команд
type RootOptions struct {
	Fixture string
	Kind    string
	Trace   bool
}

// Envs переменные окружения memrepo
type Envs struct {
	LogLevel    slog.Level `env:"MEMREPO_LOG_LEVEL"    envDefault:"INFO"`
	MaxEntities int        `env:"MEMREPO_MAX_ENTITIES"`
	Trace       bool       `env:"MEMREPO_TRACE"`
}

// readEnvs читает переменные окружения
func readEnvs() (Envs, error) {
	var out Envs
	if err := env.Parse(&out); err != nil {
		return Envs{}, core.Wrap(err, core.CodeInvalidConfig, "reading environment variables")
	}
	if out.MaxEntities < 0 {
		return Envs{}, core.Errorf(core.CodeInvalidConfig, "MEMREPO_MAX_ENTITIES must not be negative, got %d", out.MaxEntities)
	}
	return out, nil
}

// NewRootCommand создает корневую команду memrepo
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "memrepo",
		Short:        "Typed in-memory repositories over a shared data context",
		Long:         "Inspect and modify a fixture data set through kind-filtered repositories.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.Fixture, "fixture", "f", "", "YAML fixture file (default: built-in data set)")
	cmd.PersistentFlags().StringVarP(&opts.Kind, "kind", "k", string(repository.AnyKind), "entity kind (user|car|*)")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "print repository spans to stderr")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
