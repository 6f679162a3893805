package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/export"
)

const maxEvolutionMonths = 36

var errBodyTooLarge = errors.New("request body too large")

// ReportParams are the resolved query parameters of a report request.
type ReportParams struct {
	Period core.YearMonth
	AsOf   core.Date
	Months int
}

// Values encodes the resolved parameters for cache keys.
func (p ReportParams) Values() url.Values {
	v := url.Values{}
	v.Set("period", p.Period.String())
	if !p.AsOf.IsZero() {
		v.Set("asOf", p.AsOf.String())
	}
	if p.Months > 0 {
		v.Set("months", strconv.Itoa(p.Months))
	}
	return v
}

// ParsePeriod reads key as "YYYY-MM", defaulting to the month of now.
func ParsePeriod(query url.Values, key string, now time.Time) (core.YearMonth, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.DateOf(now).Period(), nil
	}
	ym, err := core.ParseYearMonth(v)
	if err != nil {
		return core.YearMonth{}, core.Invalid(key, err)
	}
	return ym, nil
}

// ParseAsOf reads "asOf" as "YYYY-MM-DD", defaulting to today.
func ParseAsOf(query url.Values, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(query.Get("asOf"))
	if v == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid("asOf", err)
	}
	return d, nil
}

// ParseMonths reads "months" in 1..36, defaulting to 6.
func ParseMonths(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return 6, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxEvolutionMonths {
		return 0, core.Invalid("months", fmt.Errorf("%q: must be between 1 and %d", v, maxEvolutionMonths))
	}
	return n, nil
}

// readSnapshot reads at most limit bytes and decodes them as an export
// document whose records pass the same checks as an import. The raw body is
// returned for cache keys.
func readSnapshot(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, core.Snapshot, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.Snapshot{}, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return nil, core.Snapshot{}, fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return body, core.Snapshot{Payables: []core.Payable{}, Inflows: []core.Inflow{}}, nil
	}
	set, err := export.ParseJSON(body)
	if err != nil {
		return nil, core.Snapshot{}, err
	}
	if err := set.Validate(); err != nil {
		return nil, core.Snapshot{}, err
	}
	return body, set.Snapshot(), nil
}
