package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCommand(a *app) *cobra.Command {
	var createTable bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or validate the store schema",
		Long: `Validate that the configured store is ready to use.

For postgres the table and index are created if missing. For dynamodb the
table schema and the DateIndex index are validated; pass --create-table to
create the table first, for example against a local DynamoDB.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			b, err := a.open(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer b.close(ctx)

			if createTable {
				if b.dynamo == nil {
					return fmt.Errorf("--create-table is only supported by the dynamodb store, not %s", a.cfg.Store)
				}

				if err := b.dynamo.CreateTable(ctx); err != nil {
					return err
				}

				a.logger.Info("DynamoDB table ready", "table", a.cfg.DynamoDB.Table)
			}

			if err := b.schema(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s store is ready\n", a.cfg.Store)

			return nil
		},
	}

	cmd.Flags().BoolVar(&createTable, "create-table", false, "create the DynamoDB table and DateIndex if they do not exist")

	return cmd
}
