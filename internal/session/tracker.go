// Package session groups consecutive load cycles of equal health into
// spans, so a watch can report when data degrades or recovers.
package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vburojevic/qcdash/internal/domain"
)

// Tracker monitors completed load cycles for health changes
type Tracker struct {
	mu            sync.Mutex
	clock         clock.Clock
	currentSpan   int
	currentHealth domain.Health
	spanStart     time.Time
	cycleCount    int
	failedSources int
	initialized   bool
}

// SpanChange contains events emitted when health changes
type SpanChange struct {
	EndSpan   *domain.HealthSpanEnd
	StartSpan *domain.HealthSpanStart
}

// NewTracker creates a new span tracker. A nil clock uses wall time.
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{clock: clk}
}

// CheckState processes a published state and returns a SpanChange if its
// health differs from the current span. Loading states are ignored.
func (t *Tracker) CheckState(s domain.LoadState) *SpanChange {
	if s.IsLoading {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	health := domain.HealthOf(s)
	now := t.clock.Now()

	// First cycle - open the first span
	if !t.initialized {
		t.initialized = true
		t.currentSpan = 1
		t.currentHealth = health
		t.spanStart = now
		t.cycleCount = 1
		t.failedSources = s.FileStatus.Failed()

		return &SpanChange{
			StartSpan: domain.NewHealthSpanStart(t.currentSpan, health, "", s.CycleID, s.Source, now),
		}
	}

	if health != t.currentHealth {
		end := domain.NewHealthSpanEnd(t.currentSpan, t.currentHealth, t.summary(now))
		previous := t.currentHealth

		t.currentSpan++
		t.currentHealth = health
		t.spanStart = now
		t.cycleCount = 1
		t.failedSources = s.FileStatus.Failed()

		return &SpanChange{
			EndSpan:   end,
			StartSpan: domain.NewHealthSpanStart(t.currentSpan, health, previous, s.CycleID, s.Source, now),
		}
	}

	// Same span - just increment counts
	t.cycleCount++
	t.failedSources += s.FileStatus.Failed()
	return nil
}

func (t *Tracker) summary(now time.Time) domain.HealthSummary {
	return domain.HealthSummary{
		Cycles:          t.cycleCount,
		FailedSources:   t.failedSources,
		DurationSeconds: int(now.Sub(t.spanStart).Seconds()),
	}
}

// CurrentSpan returns the current span number
func (t *Tracker) CurrentSpan() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentSpan
}

// GetFinalSummary returns the end event of the current span (for watch
// shutdown), or nil when no cycle completed
func (t *Tracker) GetFinalSummary() *domain.HealthSpanEnd {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return nil
	}
	return domain.NewHealthSpanEnd(t.currentSpan, t.currentHealth, t.summary(t.clock.Now()))
}

// Stats returns current span statistics
func (t *Tracker) Stats() (span, cycles int, health domain.Health) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentSpan, t.cycleCount, t.currentHealth
}
