package filter

import (
	"github.com/vburojevic/qcdash/internal/domain"
)

// StatusFilter keeps records with one of the listed statuses
type StatusFilter struct {
	statuses []domain.Status
}

// NewStatusFilter creates a status filter
func NewStatusFilter(statuses ...domain.Status) *StatusFilter {
	return &StatusFilter{statuses: statuses}
}

// NewDefectFilter keeps only Fail and Open records
func NewDefectFilter() *StatusFilter {
	return NewStatusFilter(domain.StatusFail, domain.StatusOpen)
}

// Match returns true if the record status is in the list
func (f *StatusFilter) Match(r *domain.Record) bool {
	if len(f.statuses) == 0 {
		return true
	}
	for _, s := range f.statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}
