package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xraph/warden/engine"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the warden schema",
	Long:  "Apply every pending schema migration of the configured store. Running it again is a no-op.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd.Context(), conf, cmd.OutOrStdout())
	},
}

func runMigrate(ctx context.Context, s settings, out io.Writer) error {
	return s.withEngine(ctx, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Store().Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "migrated %s store\n", s.Store)
		return nil
	})
}
