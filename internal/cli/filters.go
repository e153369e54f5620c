package cli

import (
	"fmt"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/filter"
)

// RecordFilterFlags restricts which raw records reach aggregation. They
// have no effect when a source serves an aggregated document.
type RecordFilterFlags struct {
	Where      []string `short:"w" help:"Record filter, ANDed when repeated. Operators: =, !=, ~, !~, >=, <=, ^, $ (e.g. department=Production, durationHours>=2, date>=2025-01-01)"`
	Domain     []string `help:"Keep only these domains: Internal, External, Process (can be repeated)"`
	Department []string `help:"Keep only these departments (can be repeated)"`
	Lot        string   `help:"Keep only lots with this prefix"`
	Since      string   `help:"Keep records dated on or after this date"`
	Until      string   `help:"Keep records dated on or before this date"`
	Defects    bool     `help:"Keep only failed or open records"`
}

// buildFilters compiles the flags into one filter. It returns nil when no
// flag is set.
func (f *RecordFilterFlags) buildFilters() (filter.Filter, error) {
	chain := filter.NewChain()

	if len(f.Where) > 0 {
		wf, err := filter.NewWhereFilter(f.Where)
		if err != nil {
			return nil, err
		}
		chain.Add(wf)
	}

	if len(f.Domain) > 0 {
		domains := make([]domain.Domain, 0, len(f.Domain))
		for _, s := range f.Domain {
			d, ok := domain.ParseDomain(s)
			if !ok {
				return nil, fmt.Errorf("unknown domain %q", s)
			}
			domains = append(domains, d)
		}
		chain.Add(filter.NewDomainFilter(domains...))
	}

	if len(f.Department) > 0 {
		chain.Add(filter.NewDepartmentFilter(f.Department))
	}
	if f.Lot != "" {
		chain.Add(filter.NewLotFilter(f.Lot))
	}

	if f.Since != "" || f.Until != "" {
		since, err := parseBound(f.Since)
		if err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
		until, err := parseBound(f.Until)
		if err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
		if !since.IsZero() && !until.IsZero() && until.Before(since) {
			return nil, fmt.Errorf("--until %s is before --since %s", f.Until, f.Since)
		}
		chain.Add(filter.NewDateRangeFilter(since, until))
	}

	if f.Defects {
		chain.Add(filter.NewDefectFilter())
	}

	if chain.Len() == 0 {
		return nil, nil
	}
	return chain, nil
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}
