package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

func rec(id, outcome string) CycleRecord {
	return CycleRecord{CycleID: id, Outcome: outcome}
}

func ids(records []CycleRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.CycleID
	}
	return out
}

func TestNewHistory(t *testing.T) {
	t.Run("uses default size for zero", func(t *testing.T) {
		h := NewHistory(0)
		for i := 0; i < 150; i++ {
			h.Push(rec(fmt.Sprint(i), OutcomeOK))
		}
		assert.Equal(t, 100, h.Count())
	})

	t.Run("uses default size for negative", func(t *testing.T) {
		h := NewHistory(-5)
		require.NotNil(t, h)
		assert.Equal(t, 0, h.Count())
		assert.Empty(t, h.All())
	})
}

func TestHistoryPush(t *testing.T) {
	t.Run("keeps insertion order before wrapping", func(t *testing.T) {
		h := NewHistory(5)
		h.Push(rec("1", OutcomeOK))
		h.Push(rec("2", OutcomeDegraded))

		assert.Equal(t, []string{"1", "2"}, ids(h.All()))
	})

	t.Run("wraps around when full", func(t *testing.T) {
		h := NewHistory(3)
		for _, id := range []string{"1", "2", "3", "4", "5"} {
			h.Push(rec(id, OutcomeOK))
		}

		assert.Equal(t, 3, h.Count())
		assert.Equal(t, []string{"3", "4", "5"}, ids(h.All()))
	})
}

func TestHistoryLast(t *testing.T) {
	h := NewHistory(3)
	for _, id := range []string{"1", "2", "3", "4"} {
		h.Push(rec(id, OutcomeOK))
	}

	assert.Equal(t, []string{"3", "4"}, ids(h.Last(2)))
	assert.Equal(t, []string{"2", "3", "4"}, ids(h.Last(10)))
	assert.Empty(t, h.Last(0))
}

func TestHistoryCountByOutcome(t *testing.T) {
	h := NewHistory(10)
	h.Push(rec("1", OutcomeOK))
	h.Push(rec("2", OutcomeDegraded))
	h.Push(rec("3", OutcomeDegraded))
	h.Push(rec("4", OutcomeSuperseded))

	assert.Equal(t, map[string]int{
		OutcomeOK:         1,
		OutcomeDegraded:   2,
		OutcomeSuperseded: 1,
	}, h.CountByOutcome())
}

func TestHistoryConcurrent(t *testing.T) {
	h := NewHistory(50)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.Push(rec(fmt.Sprintf("%d-%d", i, j), OutcomeOK))
				_ = h.CountByOutcome()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, h.Count())
}

func TestWithHistory_SharedAcrossPipelines(t *testing.T) {
	h := NewHistory(10)
	r := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		return aggregatedResult(&domain.AnalyticsDocument{}), nil
	})

	for i := 0; i < 2; i++ {
		p := New(r, transform.New(), nil, WithHistory(h))
		_, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Same(t, h, p.History())
		p.Close()
	}

	records := h.All()
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].CycleID, records[1].CycleID)
	assert.Equal(t, source.CompleteDataFile, records[1].Source)
}
