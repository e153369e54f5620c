// Package aggregate reduces validated records into the metrics of the
// analytics document. Every function is pure: it reads its input slice and
// allocates its own accumulators, so concurrent calls never interfere.
package aggregate

import (
	"sort"

	"github.com/vburojevic/qcdash/internal/domain"
)

// RateSummary is a pass/fail tally
type RateSummary struct {
	Pass  int     `json:"pass"`
	Fail  int     `json:"fail"`
	Total int     `json:"total"`
	Rate  float64 `json:"rate"`
}

// PassRate counts Pass and Closed records as passes and everything else as
// failures. Rate is 0 for an empty input.
func PassRate(records []domain.Record) RateSummary {
	var s RateSummary
	for _, r := range records {
		if r.Status.IsPass() {
			s.Pass++
		} else {
			s.Fail++
		}
	}
	s.Total = s.Pass + s.Fail
	s.Rate = Ratio(s.Pass, s.Total)
	return s
}

// Ratio returns num/den, or 0 when den is 0
func Ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// RFTPerformance splits a tally into the Pass/Fail shares of the overview
func RFTPerformance(s RateSummary) []domain.NamedShare {
	return []domain.NamedShare{
		{Name: string(domain.StatusPass), Value: s.Pass, Percentage: s.Rate},
		{Name: string(domain.StatusFail), Value: s.Fail, Percentage: Ratio(s.Fail, s.Total)},
	}
}

// ByDomain returns the records of domain d, preserving input order
func ByDomain(records []domain.Record, d domain.Domain) []domain.Record {
	var out []domain.Record
	for _, r := range records {
		if r.Domain == d {
			out = append(out, r)
		}
	}
	return out
}

// Months returns the distinct month keys of records in ascending order
func Months(records []domain.Record) []string {
	seen := make(map[string]struct{})
	var months []string
	for _, r := range records {
		m := r.Month()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// groupByMonth buckets records by month key, preserving input order per bucket
func groupByMonth(records []domain.Record) map[string][]domain.Record {
	out := make(map[string][]domain.Record)
	for _, r := range records {
		m := r.Month()
		out[m] = append(out[m], r)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
