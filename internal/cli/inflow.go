package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"financeiro/internal/core"
	"financeiro/internal/inflows"
)

func (a *app) inflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inflow",
		Aliases: []string{"entrada", "entradas"},
		Short:   "Manage inflows (entradas financeiras)",
	}
	cmd.AddCommand(
		a.inflowAddCommand(),
		a.inflowListCommand(),
		a.inflowUpdateCommand(),
		a.inflowRemoveCommand(),
	)
	return cmd
}

func (a *app) inflowAddCommand() *cobra.Command {
	var date, amount, category string
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Record an inflow",
		Example: `  financeiro inflow add --date 2024-03-05 --amount 320,50 --category debito`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				draft core.InflowDraft
				err   error
			)
			draft.Date = core.DateOf(a.now())
			if date != "" {
				if draft.Date, err = parseDateFlag("date", date); err != nil {
					return err
				}
			}
			if draft.Amount, err = parseAmountFlag(amount); err != nil {
				return err
			}
			if draft.Category, err = parseCategoryFlag(category); err != nil {
				return err
			}

			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			i, err := store.AddInflow(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return a.printInflows(cmd.OutOrStdout(), []core.Inflow{i})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "inflow date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (required)")
	cmd.Flags().StringVar(&category, "category", "", "Voucher, Debit, Credit, Pix or Cash (required)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func (a *app) inflowListCommand() *cobra.Command {
	var month, category string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List inflows, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			is := store.LoadInflows(cmd.Context())
			if month != "" {
				ym, err := parsePeriodFlag("month", month)
				if err != nil {
					return err
				}
				is = inflows.FilterByMonth(is, ym)
			}
			f, err := inflows.ParseCategoryFilter(category)
			if err != nil {
				return core.Invalid("category", err)
			}
			return a.printInflows(cmd.OutOrStdout(), inflows.SortForDisplay(inflows.FilterByCategory(is, f)))
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "only inflows in YYYY-MM")
	cmd.Flags().StringVar(&category, "category", "all", "all or one category")
	return cmd
}

func (a *app) inflowUpdateCommand() *cobra.Command {
	var date, amount, category string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of an inflow; omitted flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.InflowPatch
			flags := cmd.Flags()
			if flags.Changed("date") {
				d, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				patch.Date = &d
			}
			if flags.Changed("amount") {
				m, err := parseAmountFlag(amount)
				if err != nil {
					return err
				}
				patch.Amount = &m
			}
			if flags.Changed("category") {
				c, err := parseCategoryFlag(category)
				if err != nil {
					return err
				}
				patch.Category = &c
			}

			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			i, err := store.UpdateInflow(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.printInflows(cmd.OutOrStdout(), []core.Inflow{i})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "inflow date YYYY-MM-DD")
	cmd.Flags().StringVar(&amount, "amount", "", "amount")
	cmd.Flags().StringVar(&category, "category", "", "category")
	return cmd
}

func (a *app) inflowRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove an inflow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := store.RemoveInflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("inflow %s: %w", args[0], core.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed inflow %s\n", args[0])
			return nil
		},
	}
}
