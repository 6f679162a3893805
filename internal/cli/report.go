package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"financeiro/internal/core"
	"financeiro/internal/report"
)

const maxEvolutionMonths = 36

func (a *app) reportCommand() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"relatorio"},
		Short:   "Monthly report: payables, inflows by category and balance",
		Example: `  financeiro report --period 2024-03
  financeiro report --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ym, err := a.periodOrCurrent("period", period)
			if err != nil {
				return err
			}
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			r := report.Monthly(store.ExportAll(cmd.Context()), ym)
			a.metrics.ObserveReport("monthly")
			return a.printReport(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "month YYYY-MM (default current month)")
	return cmd
}

func (a *app) dashboardCommand() *cobra.Command {
	var period, asOf string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Month summary card with overdue payables and the last 7 days of inflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ym, err := a.periodOrCurrent("period", period)
			if err != nil {
				return err
			}
			day := core.DateOf(a.now())
			if asOf != "" {
				if day, err = parseDateFlag("asOf", asOf); err != nil {
					return err
				}
			}
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			d := report.BuildDashboard(store.ExportAll(cmd.Context()), ym, day)
			a.metrics.ObserveReport("dashboard")
			return a.printDashboard(cmd.OutOrStdout(), d)
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "month YYYY-MM (default current month)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference day for overdue and recent totals (default today)")
	return cmd
}

func (a *app) evolutionCommand() *cobra.Command {
	var (
		months int
		end    string
	)
	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Per-month inflows, payables and balance, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if months < 1 || months > maxEvolutionMonths {
				return core.Invalid("months", fmt.Errorf("%d: must be between 1 and %d", months, maxEvolutionMonths))
			}
			ym, err := a.periodOrCurrent("end", end)
			if err != nil {
				return err
			}
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			points := report.Evolution(store.ExportAll(cmd.Context()), months, ym)
			a.metrics.ObserveReport("evolution")
			return a.printEvolution(cmd.OutOrStdout(), points)
		},
	}
	cmd.Flags().IntVar(&months, "months", 6, "number of months")
	cmd.Flags().StringVar(&end, "end", "", "last month YYYY-MM (default current month)")
	return cmd
}
