// Package inflows filters, groups and computes trends over inflows.
package inflows

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"financeiro/internal/core"
)

// CategoryFilter selects inflows by category; All keeps everything.
type CategoryFilter string

const All CategoryFilter = "all"

func ParseCategoryFilter(s string) (CategoryFilter, error) {
	if s == "" || strings.EqualFold(s, string(All)) {
		return All, nil
	}
	c, err := core.ParseCategory(s)
	if err != nil {
		return "", fmt.Errorf("category filter %q: %w", s, err)
	}
	return CategoryFilter(c), nil
}

// Only builds a filter for a single category.
func Only(c core.Category) CategoryFilter { return CategoryFilter(c) }

type (
	Bucket struct {
		Count  int        `json:"count"`
		Amount core.Money `json:"amount"`
	}

	DayTotal struct {
		Date   core.Date  `json:"date"`
		Amount core.Money `json:"amount"`
		Count  int        `json:"count"`
	}

	// Summary is the inflow card of the dashboard for one month.
	Summary struct {
		Count        int        `json:"count"`
		Total        core.Money `json:"total"`
		MonthCount   int        `json:"monthCount"`
		MonthTotal   core.Money `json:"monthTotal"`
		DailyAverage core.Money `json:"dailyAverage"`
		DailyStdDev  float64    `json:"dailyStdDev"`
	}
)

func FilterByCategory(is []core.Inflow, f CategoryFilter) []core.Inflow {
	if f == All || f == "" {
		return append(make([]core.Inflow, 0, len(is)), is...)
	}
	return filter(is, func(i core.Inflow) bool { return i.Category == core.Category(f) })
}

func FilterByMonth(is []core.Inflow, ym core.YearMonth) []core.Inflow {
	return filter(is, func(i core.Inflow) bool { return ym.Contains(i.Date) })
}

// GroupByCategory buckets amounts and counts per category. Categories
// without inflows are absent.
func GroupByCategory(is []core.Inflow) map[core.Category]Bucket {
	out := make(map[core.Category]Bucket)
	for _, i := range is {
		b := out[i.Category]
		b.Count++
		b.Amount = b.Amount.Add(i.Amount)
		out[i.Category] = b
	}
	return out
}

// GroupByMonth sums amounts per "YYYY-MM" across the whole history.
func GroupByMonth(is []core.Inflow) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, i := range is {
		key := i.Date.Period().String()
		out[key] = out[key].Add(i.Amount)
	}
	return out
}

// LastNDays returns one entry per day for the n days ending at asOf,
// oldest first. Days without inflows are zero.
func LastNDays(is []core.Inflow, n int, asOf core.Date) []DayTotal {
	if n <= 0 {
		return []DayTotal{}
	}
	start := asOf.AddDays(-(n - 1))
	days := make([]DayTotal, n)
	index := make(map[core.Date]int, n)
	for k := range days {
		d := start.AddDays(k)
		days[k].Date = d
		index[d] = k
	}
	for _, i := range is {
		if k, ok := index[i.Date]; ok {
			days[k].Amount = days[k].Amount.Add(i.Amount)
			days[k].Count++
		}
	}
	return days
}

// Total sums the amounts of is.
func Total(is []core.Inflow) core.Money {
	var sum core.Money
	for _, i := range is {
		sum = sum.Add(i.Amount)
	}
	return sum
}

// Summarize reports overall and per-month totals for ym. The daily average
// divides the month total by the number of days in the month; the standard
// deviation is taken over per-day totals.
func Summarize(is []core.Inflow, ym core.YearMonth) Summary {
	month := FilterByMonth(is, ym)
	s := Summary{
		Count:      len(is),
		Total:      Total(is),
		MonthCount: len(month),
		MonthTotal: Total(month),
	}

	days := ym.Days()
	s.DailyAverage = core.Cents(roundDiv(s.MonthTotal.Cents, int64(days)))

	perDay := make([]float64, days)
	for _, i := range month {
		perDay[i.Date.Day()-1] += i.Amount.Float64()
	}
	if len(month) > 0 {
		s.DailyStdDev = stat.PopStdDev(perDay, nil)
	}
	return s
}

// Mean returns the mean inflow amount, zero for no inflows.
func Mean(is []core.Inflow) float64 {
	if len(is) == 0 {
		return 0
	}
	xs := make([]float64, len(is))
	for k, i := range is {
		xs[k] = i.Amount.Float64()
	}
	return stat.Mean(xs, nil)
}

// SortForDisplay orders by date descending, keeping insertion order for
// equal dates.
func SortForDisplay(is []core.Inflow) []core.Inflow {
	out := append(make([]core.Inflow, 0, len(is)), is...)
	slices.SortStableFunc(out, func(a, b core.Inflow) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out
}

func filter(is []core.Inflow, keep func(core.Inflow) bool) []core.Inflow {
	out := make([]core.Inflow, 0, len(is))
	for _, i := range is {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

func roundDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q, r := a/b, a%b
	if 2*r >= b {
		q++
	}
	return q
}
