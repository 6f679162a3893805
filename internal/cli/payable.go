package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"financeiro/internal/core"
	"financeiro/internal/payables"
)

// standingOverdue extends the status filter; overdue is derived from the
// due date, never stored.
const standingOverdue = "overdue"

func (a *app) payableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payable",
		Aliases: []string{"conta", "contas"},
		Short:   "Manage payables (contas a pagar)",
	}
	cmd.AddCommand(
		a.payableAddCommand(),
		a.payableListCommand(),
		a.payableUpdateCommand(),
		a.payableToggleCommand(),
		a.payableRemoveCommand(),
	)
	return cmd
}

func (a *app) payableAddCommand() *cobra.Command {
	var company, amount, due, note, status string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a payable",
		Example: `  financeiro payable add --company "Fornecedor X" --amount "1.250,00" --due 2024-03-20
  financeiro payable add --company Aluguel --amount 3000 --due 2024-04-05 --note abril --status pago`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft := core.PayableDraft{Company: company, Note: note}
			var err error
			if draft.Amount, err = parseAmountFlag(amount); err != nil {
				return err
			}
			if draft.DueDate, err = parseDateFlag("due", due); err != nil {
				return err
			}
			if status != "" {
				if draft.Status, err = parseStatusFlag(status); err != nil {
					return err
				}
			}

			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			p, err := store.AddPayable(cmd.Context(), draft)
			if err != nil {
				return err
			}
			return a.printPayables(cmd.OutOrStdout(), []core.Payable{p})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company or creditor (required)")
	cmd.Flags().StringVar(&amount, "amount", "", `amount, e.g. 1250.00, "1.250,00" or "R$ 99,90" (required)`)
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&note, "note", "", "free text note")
	cmd.Flags().StringVar(&status, "status", "", "due or paid (default due)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func (a *app) payableListCommand() *cobra.Command {
	var month, status string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List payables ordered by due date",
		Example: `  financeiro payable list --month 2024-03
  financeiro payable list --status overdue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			ps := store.LoadPayables(cmd.Context())

			if month != "" {
				ym, err := parsePeriodFlag("month", month)
				if err != nil {
					return err
				}
				ps = payables.FilterByMonth(ps, ym)
			}
			if strings.EqualFold(status, standingOverdue) {
				ps = payables.OverdueOn(ps, core.DateOf(a.now()))
			} else {
				f, err := payables.ParseStatusFilter(status)
				if err != nil {
					return core.Invalid("status", err)
				}
				ps = payables.FilterByStatus(ps, f)
			}
			return a.printPayables(cmd.OutOrStdout(), payables.SortForDisplay(ps))
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "only payables due in YYYY-MM")
	cmd.Flags().StringVar(&status, "status", "all", "all, due, paid or overdue")
	return cmd
}

func (a *app) payableUpdateCommand() *cobra.Command {
	var company, amount, due, note, status string
	cmd := &cobra.Command{
		Use:     "update ID",
		Short:   "Change fields of a payable; omitted flags keep their value",
		Example: `  financeiro payable update 0190a1b2-... --amount 99,90 --note "segunda via"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.PayablePatch
			flags := cmd.Flags()
			if flags.Changed("company") {
				patch.Company = &company
			}
			if flags.Changed("amount") {
				m, err := parseAmountFlag(amount)
				if err != nil {
					return err
				}
				patch.Amount = &m
			}
			if flags.Changed("due") {
				d, err := parseDateFlag("due", due)
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			if flags.Changed("note") {
				patch.Note = &note
			}
			if flags.Changed("status") {
				st, err := parseStatusFlag(status)
				if err != nil {
					return err
				}
				patch.Status = &st
			}

			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			p, err := store.UpdatePayable(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.printPayables(cmd.OutOrStdout(), []core.Payable{p})
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company or creditor")
	cmd.Flags().StringVar(&amount, "amount", "", "amount")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVar(&note, "note", "", "note")
	cmd.Flags().StringVar(&status, "status", "", "due or paid")
	return cmd
}

func (a *app) payableToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a payable between due and paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			p, err := store.TogglePayableStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printPayables(cmd.OutOrStdout(), []core.Payable{p})
		},
	}
}

func (a *app) payableRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove a payable",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := store.RemovePayable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("payable %s: %w", args[0], core.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed payable %s\n", args[0])
			return nil
		},
	}
}
