// Package payables filters, classifies and summarizes payables. Every
// function reads its input and returns fresh slices; inputs are never
// modified.
package payables

import (
	"fmt"
	"slices"
	"strings"

	"financeiro/internal/core"
)

// Standing is the display state of a payable on a given day.
type Standing string

const (
	Paid    Standing = "paid"
	Due     Standing = "due"
	Overdue Standing = "overdue"
)

// StatusFilter selects payables by stored status.
type StatusFilter string

const (
	All      StatusFilter = "all"
	OnlyDue  StatusFilter = StatusFilter(core.StatusDue)
	OnlyPaid StatusFilter = StatusFilter(core.StatusPaid)
)

// ParseStatusFilter accepts "all", an empty string (all) or any label
// core.ParseStatus understands.
func ParseStatusFilter(s string) (StatusFilter, error) {
	if s == "" || strings.EqualFold(s, string(All)) {
		return All, nil
	}
	st, err := core.ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("status filter %q: %w", s, err)
	}
	return StatusFilter(st), nil
}

// Summary holds counts and sums grouped by Standing. AmountDue covers both
// due and overdue payables.
type Summary struct {
	Total        int        `json:"total"`
	CountDue     int        `json:"countDue"`
	CountPaid    int        `json:"countPaid"`
	CountOverdue int        `json:"countOverdue"`
	AmountDue    core.Money `json:"amountDue"`
	AmountPaid   core.Money `json:"amountPaid"`
}

func FilterByStatus(ps []core.Payable, f StatusFilter) []core.Payable {
	if f == All || f == "" {
		return append(make([]core.Payable, 0, len(ps)), ps...)
	}
	return filter(ps, func(p core.Payable) bool { return p.Status == core.Status(f) })
}

// FilterByMonth keeps payables due in ym.
func FilterByMonth(ps []core.Payable, ym core.YearMonth) []core.Payable {
	return filter(ps, func(p core.Payable) bool { return ym.Contains(p.DueDate) })
}

// Classify reports paid, overdue when the due date is before asOf, or due.
func Classify(p core.Payable, asOf core.Date) Standing {
	switch {
	case p.Status == core.StatusPaid:
		return Paid
	case p.DueDate.Before(asOf):
		return Overdue
	default:
		return Due
	}
}

// OverdueOn returns the payables that are overdue on asOf.
func OverdueOn(ps []core.Payable, asOf core.Date) []core.Payable {
	return filter(ps, func(p core.Payable) bool { return Classify(p, asOf) == Overdue })
}

func Summarize(ps []core.Payable, asOf core.Date) Summary {
	s := Summary{Total: len(ps)}
	for _, p := range ps {
		switch Classify(p, asOf) {
		case Paid:
			s.CountPaid++
			s.AmountPaid = s.AmountPaid.Add(p.Amount)
		case Overdue:
			s.CountOverdue++
			s.AmountDue = s.AmountDue.Add(p.Amount)
		default:
			s.CountDue++
			s.AmountDue = s.AmountDue.Add(p.Amount)
		}
	}
	return s
}

// Total sums the amounts of ps.
func Total(ps []core.Payable) core.Money {
	var sum core.Money
	for _, p := range ps {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// SortForDisplay orders by due date ascending, keeping insertion order for
// equal dates.
func SortForDisplay(ps []core.Payable) []core.Payable {
	out := append(make([]core.Payable, 0, len(ps)), ps...)
	slices.SortStableFunc(out, func(a, b core.Payable) int {
		return a.DueDate.Compare(b.DueDate.Time)
	})
	return out
}

func filter(ps []core.Payable, keep func(core.Payable) bool) []core.Payable {
	out := make([]core.Payable, 0, len(ps))
	for _, p := range ps {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
