package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/qcdash/internal/domain"
)

func record(d domain.Domain, dept, lot, date string, status domain.Status) *domain.Record {
	t, _ := time.Parse(domain.DateLayout, date)
	return &domain.Record{ID: "r", Domain: d, Department: dept, Lot: lot, Date: t, Status: status}
}

func TestBuildFilters(t *testing.T) {
	production := record(domain.DomainInternal, "Production", "B1001", "2025-01-05", domain.StatusFail)
	quality := record(domain.DomainInternal, "Quality", "C2001", "2025-03-01", domain.StatusPass)
	complaint := record(domain.DomainExternal, "", "B1002", "2025-02-10", domain.StatusOpen)

	tests := []struct {
		name  string
		flags RecordFilterFlags
		want  []bool // production, quality, complaint
	}{
		{"where", RecordFilterFlags{Where: []string{"department=Production"}}, []bool{true, false, false}},
		{"domain", RecordFilterFlags{Domain: []string{"external"}}, []bool{false, false, true}},
		{"department", RecordFilterFlags{Department: []string{"quality"}}, []bool{false, true, false}},
		{"lot prefix", RecordFilterFlags{Lot: "B"}, []bool{true, false, true}},
		{"since", RecordFilterFlags{Since: "2025-02-01"}, []bool{false, true, true}},
		{"until", RecordFilterFlags{Until: "2025-02-01"}, []bool{true, false, false}},
		{"defects", RecordFilterFlags{Defects: true}, []bool{true, false, true}},
		{"combined", RecordFilterFlags{Lot: "B", Defects: true, Since: "2025-02-01"}, []bool{false, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.flags.buildFilters()
			require.NoError(t, err)
			require.NotNil(t, f)

			got := []bool{f.Match(production), f.Match(quality), f.Match(complaint)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFilters_None(t *testing.T) {
	f, err := (&RecordFilterFlags{}).buildFilters()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBuildFilters_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		flags RecordFilterFlags
	}{
		{"where without operator", RecordFilterFlags{Where: []string{"department"}}},
		{"unknown domain", RecordFilterFlags{Domain: []string{"Sales"}}},
		{"bad since", RecordFilterFlags{Since: "yesterday-ish"}},
		{"reversed range", RecordFilterFlags{Since: "2025-03-01", Until: "2025-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.buildFilters()
			assert.Error(t, err)
		})
	}
}
