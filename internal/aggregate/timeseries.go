package aggregate

import (
	"strings"

	"github.com/vburojevic/qcdash/internal/domain"
)

// Correlation pairs the monthly internal and external pass rates. Months
// present in only one domain are left out.
func Correlation(records []domain.Record) []domain.CorrelationPoint {
	internal := groupByMonth(ByDomain(records, domain.DomainInternal))
	external := groupByMonth(ByDomain(records, domain.DomainExternal))

	var points []domain.CorrelationPoint
	for _, m := range Months(records) {
		in, okIn := internal[m]
		ex, okEx := external[m]
		if !okIn || !okEx {
			continue
		}
		points = append(points, domain.CorrelationPoint{
			Month:       m,
			InternalRFT: PassRate(in).Rate,
			ExternalRFT: PassRate(ex).Rate,
		})
	}
	return points
}

// ProcessTimeline reports the monthly record pass rate next to the share of
// lots released that month without errors.
func ProcessTimeline(records []domain.Record, lots map[string]domain.LotSummary) []domain.TimelinePoint {
	byMonth := groupByMonth(records)

	released := make(map[string]RateSummary)
	for _, lot := range lots {
		if len(lot.ReleaseDate) < len(domain.MonthLayout) {
			continue
		}
		m := lot.ReleaseDate[:len(domain.MonthLayout)]
		s := released[m]
		if lot.HasErrors {
			s.Fail++
		} else {
			s.Pass++
		}
		s.Total++
		released[m] = s
	}

	months := Months(records)
	points := make([]domain.TimelinePoint, 0, len(months))
	for _, m := range months {
		lotTally := released[m]
		points = append(points, domain.TimelinePoint{
			Month:     m,
			RecordRFT: PassRate(byMonth[m]).Rate,
			LotRFT:    Ratio(lotTally.Pass, lotTally.Total),
		})
	}
	return points
}

// ReviewTimes returns, for every stage whose name mentions "review", the
// average duration per month. Series are aligned on the months of the
// input; a month without data for the stage is 0.
func ReviewTimes(records []domain.Record) map[string][]float64 {
	months := Months(records)
	pos := make(map[string]int, len(months))
	for i, m := range months {
		pos[m] = i
	}

	samples := make(map[string][][]float64)
	for _, r := range records {
		if r.DurationHours == nil || !strings.Contains(strings.ToLower(r.Stage), "review") {
			continue
		}
		series, ok := samples[r.Stage]
		if !ok {
			series = make([][]float64, len(months))
			samples[r.Stage] = series
		}
		i := pos[r.Month()]
		series[i] = append(series[i], *r.DurationHours)
	}

	out := make(map[string][]float64, len(samples))
	for stage, series := range samples {
		avg := make([]float64, len(series))
		for i, s := range series {
			avg[i] = mean(s)
		}
		out[stage] = avg
	}
	return out
}

// FormErrors counts failed internal records per form, sorted descending.
// Percentage is the share of all given records; Trend compares the last two
// months of the input.
func FormErrors(records []domain.Record) []domain.FormError {
	var failed []domain.Record
	for _, r := range records {
		if r.Form != "" && r.Status.IsDefect() {
			failed = append(failed, r)
		}
	}

	months := Months(records)
	var last, prev map[string]int
	if len(months) >= 2 {
		last = formCounts(failed, months[len(months)-1])
		prev = formCounts(failed, months[len(months)-2])
	}

	entries := Pareto(failed, func(r domain.Record) string { return r.Form })
	out := make([]domain.FormError, len(entries))
	for i, e := range entries {
		trend := domain.TrendFlat
		if last != nil {
			switch {
			case last[e.Type] > prev[e.Type]:
				trend = domain.TrendUp
			case last[e.Type] < prev[e.Type]:
				trend = domain.TrendDown
			}
		}
		out[i] = domain.FormError{
			Name:       e.Type,
			Errors:     e.Count,
			Percentage: Ratio(e.Count, len(records)),
			Trend:      trend,
		}
	}
	return out
}

func formCounts(records []domain.Record, month string) map[string]int {
	out := make(map[string]int)
	for _, r := range records {
		if r.Month() == month {
			out[r.Form]++
		}
	}
	return out
}
