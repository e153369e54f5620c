package aggregate

import "github.com/vburojevic/qcdash/internal/domain"

// DepartmentPerformance tallies records per department in first-seen order.
// Records without a department are skipped, so no group is ever empty.
func DepartmentPerformance(records []domain.Record) []domain.DepartmentStat {
	index := make(map[string]int)
	var stats []domain.DepartmentStat

	for _, r := range records {
		if r.Department == "" {
			continue
		}
		i, ok := index[r.Department]
		if !ok {
			i = len(stats)
			index[r.Department] = i
			stats = append(stats, domain.DepartmentStat{Department: r.Department})
		}
		if r.Status.IsPass() {
			stats[i].Pass++
		} else {
			stats[i].Fail++
		}
	}

	for i := range stats {
		stats[i].RFTRate = Ratio(stats[i].Pass, stats[i].Pass+stats[i].Fail)
	}
	return stats
}
