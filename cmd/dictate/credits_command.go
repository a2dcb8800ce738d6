package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCreditsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Show the locally persisted validation credit count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, closer, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%d validations remaining\n", ledger.Remaining())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <count>",
		Short: "Overwrite the local credit count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("count must be a non-negative integer, got %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, closer, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := ledger.Overwrite(cmd.Context(), n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d validations remaining\n", ledger.Remaining())
			return nil
		},
	})
	return cmd
}
