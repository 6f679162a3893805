// Package report combines the payables and inflows aggregators into period
// reports. All functions are read-only over the snapshot they receive.
package report

import (
	"financeiro/internal/core"
	"financeiro/internal/inflows"
	"financeiro/internal/payables"
)

type (
	PayablesSummary struct {
		Count       int        `json:"count"`
		TotalAmount core.Money `json:"totalAmount"`
		PaidCount   int        `json:"paidCount"`
		DueCount    int        `json:"dueCount"`
	}

	InflowsSummary struct {
		Count       int                              `json:"count"`
		TotalAmount core.Money                       `json:"totalAmount"`
		ByCategory  map[core.Category]inflows.Bucket `json:"byCategory"`
	}

	Details struct {
		Payables []core.Payable `json:"payables"`
		Inflows  []core.Inflow  `json:"inflows"`
	}

	// Report is the monthly report. Balance is inflows minus all payables
	// due in the month, paid or not.
	Report struct {
		Period          core.YearMonth  `json:"period"`
		PayablesSummary PayablesSummary `json:"payablesSummary"`
		InflowsSummary  InflowsSummary  `json:"inflowsSummary"`
		Balance         core.Money      `json:"balance"`
		Details         Details         `json:"details"`
	}

	// Dashboard is the month card plus the all-time payables overview.
	// CashBalance counts only payables already paid.
	Dashboard struct {
		Period        core.YearMonth     `json:"period"`
		AsOf          core.Date          `json:"asOf"`
		Payables      payables.Summary   `json:"payables"`
		Inflows       inflows.Summary    `json:"inflows"`
		MonthInflows  core.Money         `json:"monthInflows"`
		MonthPaid     core.Money         `json:"monthPaid"`
		MonthDue      core.Money         `json:"monthDue"`
		MonthOverdue  int                `json:"monthOverdue"`
		CashBalance   core.Money         `json:"cashBalance"`
		AverageInflow float64            `json:"averageInflow"`
		LastSevenDays []inflows.DayTotal `json:"lastSevenDays"`
		RecentInflows []core.Inflow      `json:"recentInflows"`
		UpcomingDue   []core.Payable     `json:"upcomingDue"`
	}

	MonthPoint struct {
		Month    string     `json:"month"`
		Inflows  core.Money `json:"inflows"`
		Payables core.Money `json:"payables"`
		Balance  core.Money `json:"balance"`
	}
)

const recentLimit = 5

// Monthly builds the report for ym. A month without records yields zero
// counts and totals.
func Monthly(snap core.Snapshot, ym core.YearMonth) Report {
	ps := payables.FilterByMonth(snap.Payables, ym)
	is := inflows.FilterByMonth(snap.Inflows, ym)

	r := Report{
		Period: ym,
		PayablesSummary: PayablesSummary{
			Count:       len(ps),
			TotalAmount: payables.Total(ps),
			PaidCount:   len(payables.FilterByStatus(ps, payables.OnlyPaid)),
			DueCount:    len(payables.FilterByStatus(ps, payables.OnlyDue)),
		},
		InflowsSummary: InflowsSummary{
			Count:       len(is),
			TotalAmount: inflows.Total(is),
			ByCategory:  inflows.GroupByCategory(is),
		},
		Details: Details{
			Payables: payables.SortForDisplay(ps),
			Inflows:  inflows.SortForDisplay(is),
		},
	}
	r.Balance = r.InflowsSummary.TotalAmount.Sub(r.PayablesSummary.TotalAmount)
	return r
}

// BuildDashboard summarizes ym as seen on asOf.
func BuildDashboard(snap core.Snapshot, ym core.YearMonth, asOf core.Date) Dashboard {
	monthPayables := payables.FilterByMonth(snap.Payables, ym)
	month := payables.Summarize(monthPayables, asOf)
	in := inflows.Summarize(snap.Inflows, ym)
	upcoming := payables.SortForDisplay(payables.FilterByStatus(snap.Payables, payables.OnlyDue))

	d := Dashboard{
		Period:        ym,
		AsOf:          asOf,
		Payables:      payables.Summarize(snap.Payables, asOf),
		Inflows:       in,
		MonthInflows:  in.MonthTotal,
		MonthPaid:     month.AmountPaid,
		MonthDue:      month.AmountDue,
		MonthOverdue:  month.CountOverdue,
		AverageInflow: inflows.Mean(inflows.FilterByMonth(snap.Inflows, ym)),
		LastSevenDays: inflows.LastNDays(snap.Inflows, 7, asOf),
		RecentInflows: head(inflows.SortForDisplay(snap.Inflows), recentLimit),
		UpcomingDue:   head(upcoming, recentLimit),
	}
	d.CashBalance = d.MonthInflows.Sub(d.MonthPaid)
	return d
}

// Evolution returns exact per-month inflow and payable sums for the n
// months ending at end, oldest first.
func Evolution(snap core.Snapshot, n int, end core.YearMonth) []MonthPoint {
	if n <= 0 {
		return []MonthPoint{}
	}
	byMonth := inflows.GroupByMonth(snap.Inflows)
	points := make([]MonthPoint, n)
	ym := end
	for k := n - 1; k >= 0; k-- {
		owed := payables.Total(payables.FilterByMonth(snap.Payables, ym))
		in := byMonth[ym.String()]
		points[k] = MonthPoint{
			Month:    ym.String(),
			Inflows:  in,
			Payables: owed,
			Balance:  in.Sub(owed),
		}
		ym = ym.Prev()
	}
	return points
}

func head[T any](xs []T, n int) []T {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
