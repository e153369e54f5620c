package aggregate

import (
	"sort"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
)

// LotSummaries rolls records up per lot. CycleTime sums the durations of the
// lot's process records; HasErrors is set by any Fail or Open record;
// ReleaseDate is the latest record date.
func LotSummaries(records []domain.Record) map[string]domain.LotSummary {
	type acc struct {
		pass, total int
		cycle       float64
		errors      bool
		latest      time.Time
		deptOrder   []string
		deptCount   map[string]int
	}

	accs := make(map[string]*acc)
	for _, r := range records {
		a, ok := accs[r.Lot]
		if !ok {
			a = &acc{latest: r.Date, deptCount: make(map[string]int)}
			accs[r.Lot] = a
		}
		a.total++
		if r.Status.IsPass() {
			a.pass++
		}
		if r.Status.IsDefect() {
			a.errors = true
		}
		if r.Domain == domain.DomainProcess && r.DurationHours != nil {
			a.cycle += *r.DurationHours
		}
		if r.Date.After(a.latest) {
			a.latest = r.Date
		}
		if r.Department != "" {
			if a.deptCount[r.Department] == 0 {
				a.deptOrder = append(a.deptOrder, r.Department)
			}
			a.deptCount[r.Department]++
		}
	}

	out := make(map[string]domain.LotSummary, len(accs))
	for lot, a := range accs {
		dept, best := "", 0
		for _, d := range a.deptOrder {
			if a.deptCount[d] > best {
				dept, best = d, a.deptCount[d]
			}
		}
		out[lot] = domain.LotSummary{
			RFTRate:     Ratio(a.pass, a.total),
			CycleTime:   a.cycle,
			HasErrors:   a.errors,
			ReleaseDate: a.latest.Format(domain.DateLayout),
			Department:  dept,
		}
	}
	return out
}

// LotQuality counts lots with and without errors. Change is the difference
// in error-free share between the last two release months.
func LotQuality(lots map[string]domain.LotSummary) domain.LotQuality {
	var q domain.LotQuality
	monthly := make(map[string]*RateSummary)
	for _, lot := range lots {
		if lot.HasErrors {
			q.Fail++
		} else {
			q.Pass++
		}
		if len(lot.ReleaseDate) < len(domain.MonthLayout) {
			continue
		}
		m := lot.ReleaseDate[:len(domain.MonthLayout)]
		s, ok := monthly[m]
		if !ok {
			s = &RateSummary{}
			monthly[m] = s
		}
		s.Total++
		if !lot.HasErrors {
			s.Pass++
		}
	}
	q.Percentage = Ratio(q.Pass, q.Pass+q.Fail)

	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)
	if n := len(months); n >= 2 {
		last, prev := monthly[months[n-1]], monthly[months[n-2]]
		q.Change = Ratio(last.Pass, last.Total) - Ratio(prev.Pass, prev.Total)
	}
	return q
}
