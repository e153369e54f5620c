package aggregate

import (
	"sort"

	"github.com/vburojevic/qcdash/internal/domain"
)

// KeyFunc extracts the grouping key of a record. An empty key excludes the
// record from the grouping.
type KeyFunc func(domain.Record) string

// ErrorTypeKey groups by errorType
func ErrorTypeKey(r domain.Record) string { return r.ErrorType }

// IssueTypeKey groups by issueType
func IssueTypeKey(r domain.Record) string { return r.IssueType }

// IssueKey groups by errorType, falling back to issueType
func IssueKey(r domain.Record) string {
	if r.ErrorType != "" {
		return r.ErrorType
	}
	return r.IssueType
}

// Pareto counts records per key, sorts descending by count and adds the
// running cumulative count. Equal counts keep first-seen order.
func Pareto(records []domain.Record, key KeyFunc) []domain.ParetoEntry {
	counts := countByKey(records, key)

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Value > counts[j].Value
	})

	entries := make([]domain.ParetoEntry, len(counts))
	cumulative := 0
	for i, c := range counts {
		cumulative += c.Value
		entries[i] = domain.ParetoEntry{Type: c.Name, Count: c.Value, Cumulative: cumulative}
	}
	return entries
}

// ErrorTypePareto is the Pareto of internal error types
func ErrorTypePareto(records []domain.Record) []domain.ParetoEntry {
	return Pareto(records, ErrorTypeKey)
}

// IssueCategories lists issue types by descending count
func IssueCategories(records []domain.Record) []domain.NamedCount {
	return paretoCounts(Pareto(records, IssueTypeKey))
}

// IssueDistribution merges error and issue types across all domains
func IssueDistribution(records []domain.Record) []domain.NamedCount {
	return paretoCounts(Pareto(records, IssueKey))
}

func paretoCounts(entries []domain.ParetoEntry) []domain.NamedCount {
	out := make([]domain.NamedCount, len(entries))
	for i, e := range entries {
		out[i] = domain.NamedCount{Name: e.Type, Value: e.Count}
	}
	return out
}

// countByKey returns per-key counts in first-seen order
func countByKey(records []domain.Record, key KeyFunc) []domain.NamedCount {
	index := make(map[string]int)
	var counts []domain.NamedCount
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(counts)
			index[k] = i
			counts = append(counts, domain.NamedCount{Name: k})
		}
		counts[i].Value++
	}
	return counts
}
