package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"financeiro/internal/core"
	"financeiro/internal/payables"
	"financeiro/internal/report"
)

func parseAmountFlag(s string) (core.Money, error) {
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, core.Invalid("amount", err)
	}
	return m, nil
}

func parseDateFlag(field, s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.Invalid(field, err)
	}
	return d, nil
}

func parsePeriodFlag(field, s string) (core.YearMonth, error) {
	ym, err := core.ParseYearMonth(s)
	if err != nil {
		return core.YearMonth{}, core.Invalid(field, err)
	}
	return ym, nil
}

func parseStatusFlag(s string) (core.Status, error) {
	st, err := core.ParseStatus(s)
	if err != nil {
		return "", core.Invalid("status", err)
	}
	return st, nil
}

func parseCategoryFlag(s string) (core.Category, error) {
	c, err := core.ParseCategory(s)
	if err != nil {
		return "", core.Invalid("category", err)
	}
	return c, nil
}

// periodOrCurrent parses s, defaulting to the current month.
func (a *app) periodOrCurrent(field, s string) (core.YearMonth, error) {
	if s == "" {
		return core.DateOf(a.now()).Period(), nil
	}
	return parsePeriodFlag(field, s)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func (a *app) printPayables(w io.Writer, ps []core.Payable) error {
	if a.jsonOut {
		return a.printJSON(w, ps)
	}
	today := core.DateOf(a.now())
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDUE\tCOMPANY\tAMOUNT\tSTATUS\tNOTE")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.DueDate, p.Company, p.Amount, payables.Classify(p, today), p.Note)
	}
	return tw.Flush()
}

func (a *app) printInflows(w io.Writer, is []core.Inflow) error {
	if a.jsonOut {
		return a.printJSON(w, is)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT")
	for _, i := range is {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", i.ID, i.Date, i.Category, i.Amount)
	}
	return tw.Flush()
}

func (a *app) printReport(w io.Writer, r report.Report) error {
	if a.jsonOut {
		return a.printJSON(w, r)
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "Period\t%s\n", r.Period)
	fmt.Fprintf(tw, "Payables\t%d (%d paid, %d due)\t%s\n",
		r.PayablesSummary.Count, r.PayablesSummary.PaidCount, r.PayablesSummary.DueCount, r.PayablesSummary.TotalAmount)
	fmt.Fprintf(tw, "Inflows\t%d\t%s\n", r.InflowsSummary.Count, r.InflowsSummary.TotalAmount)
	for _, c := range core.Categories {
		if b, ok := r.InflowsSummary.ByCategory[c]; ok {
			fmt.Fprintf(tw, "  %s\t%d\t%s\n", c, b.Count, b.Amount)
		}
	}
	fmt.Fprintf(tw, "Balance\t\t%s\n", r.Balance)
	return tw.Flush()
}

func (a *app) printDashboard(w io.Writer, d report.Dashboard) error {
	if a.jsonOut {
		return a.printJSON(w, d)
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "Period\t%s (as of %s)\n", d.Period, d.AsOf)
	fmt.Fprintf(tw, "Month inflows\t%s\n", d.MonthInflows)
	fmt.Fprintf(tw, "Month paid\t%s\n", d.MonthPaid)
	fmt.Fprintf(tw, "Month due\t%s\n", d.MonthDue)
	fmt.Fprintf(tw, "Month overdue\t%d\n", d.MonthOverdue)
	fmt.Fprintf(tw, "Cash balance\t%s\n", d.CashBalance)
	fmt.Fprintf(tw, "Daily average\t%s\n", d.Inflows.DailyAverage)
	fmt.Fprintf(tw, "All payables\t%d (%d overdue)\t%s due\n", d.Payables.Total, d.Payables.CountOverdue, d.Payables.AmountDue)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.UpcomingDue) > 0 {
		fmt.Fprintln(w, "\nUpcoming due")
		tw = newTable(w)
		for _, p := range d.UpcomingDue {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.DueDate, p.Company, p.Amount, payables.Classify(p, d.AsOf))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nLast 7 days")
	tw = newTable(w)
	for _, day := range d.LastSevenDays {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", day.Date, day.Count, day.Amount)
	}
	return tw.Flush()
}

func (a *app) printEvolution(w io.Writer, points []report.MonthPoint) error {
	if a.jsonOut {
		return a.printJSON(w, points)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "MONTH\tINFLOWS\tPAYABLES\tBALANCE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Month, p.Inflows, p.Payables, p.Balance)
	}
	return tw.Flush()
}
