package filter

import (
	"strings"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
)

// DomainFilter keeps records of the listed domains
type DomainFilter struct {
	domains []domain.Domain
}

// NewDomainFilter creates a domain filter
func NewDomainFilter(domains ...domain.Domain) *DomainFilter {
	return &DomainFilter{domains: domains}
}

// Match returns true if the record domain is in the list
func (f *DomainFilter) Match(r *domain.Record) bool {
	if len(f.domains) == 0 {
		return true
	}
	for _, d := range f.domains {
		if r.Domain == d {
			return true
		}
	}
	return false
}

// DepartmentFilter keeps records of the listed departments (case-insensitive)
type DepartmentFilter struct {
	departments []string
}

// NewDepartmentFilter creates a department filter
func NewDepartmentFilter(departments []string) *DepartmentFilter {
	return &DepartmentFilter{departments: departments}
}

// Match returns true if the record department is in the list
func (f *DepartmentFilter) Match(r *domain.Record) bool {
	if len(f.departments) == 0 {
		return true
	}
	for _, d := range f.departments {
		if strings.EqualFold(r.Department, d) {
			return true
		}
	}
	return false
}

// LotFilter keeps records whose lot starts with a prefix
type LotFilter struct {
	prefix string
}

// NewLotFilter creates a lot prefix filter
func NewLotFilter(prefix string) *LotFilter {
	return &LotFilter{prefix: prefix}
}

// Match returns true if the record lot starts with the prefix
func (f *LotFilter) Match(r *domain.Record) bool {
	return strings.HasPrefix(r.Lot, f.prefix)
}

// DateRangeFilter keeps records dated within [since, until]. A zero bound is
// open.
type DateRangeFilter struct {
	since time.Time
	until time.Time
}

// NewDateRangeFilter creates a date range filter
func NewDateRangeFilter(since, until time.Time) *DateRangeFilter {
	return &DateRangeFilter{since: since, until: until}
}

// Match returns true if the record date falls inside the range
func (f *DateRangeFilter) Match(r *domain.Record) bool {
	if !f.since.IsZero() && r.Date.Before(f.since) {
		return false
	}
	if !f.until.IsZero() && r.Date.After(f.until) {
		return false
	}
	return true
}
