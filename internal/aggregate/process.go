package aggregate

import (
	"sort"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
)

// CycleTimeBreakdown averages durationHours per stage. Stages keep the order
// in which they first appear so the declared process sequence survives.
// Stages without any duration are omitted.
func CycleTimeBreakdown(records []domain.Record) []domain.StageTime {
	index := make(map[string]int)
	var stages []string
	var samples [][]float64

	for _, r := range records {
		if r.Stage == "" || r.DurationHours == nil {
			continue
		}
		i, ok := index[r.Stage]
		if !ok {
			i = len(stages)
			index[r.Stage] = i
			stages = append(stages, r.Stage)
			samples = append(samples, nil)
		}
		samples[i] = append(samples[i], *r.DurationHours)
	}

	out := make([]domain.StageTime, len(stages))
	for i, s := range stages {
		out[i] = domain.StageTime{Step: s, Time: mean(samples[i])}
	}
	return out
}

// WaitingTimes averages the idle hours between consecutive stages of a lot.
// The gap runs from the end of one stage (date plus duration) to the start
// of the next; overlaps count as zero. Pairs keep first-seen order.
func WaitingTimes(records []domain.Record) []domain.WaitingTime {
	byLot := make(map[string][]domain.Record)
	var lots []string
	for _, r := range records {
		if r.Stage == "" {
			continue
		}
		if _, ok := byLot[r.Lot]; !ok {
			lots = append(lots, r.Lot)
		}
		byLot[r.Lot] = append(byLot[r.Lot], r)
	}

	type pair struct{ from, to string }
	index := make(map[pair]int)
	var pairs []pair
	var samples [][]float64

	for _, lot := range lots {
		steps := byLot[lot]
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].Date.Before(steps[j].Date) })

		for k := 1; k < len(steps); k++ {
			a, b := steps[k-1], steps[k]
			if a.Stage == b.Stage {
				continue
			}
			end := a.Date
			if a.DurationHours != nil {
				end = end.Add(time.Duration(*a.DurationHours * float64(time.Hour)))
			}
			gap := b.Date.Sub(end).Hours()
			if gap < 0 {
				gap = 0
			}

			p := pair{a.Stage, b.Stage}
			i, ok := index[p]
			if !ok {
				i = len(pairs)
				index[p] = i
				pairs = append(pairs, p)
				samples = append(samples, nil)
			}
			samples[i] = append(samples[i], gap)
		}
	}

	out := make([]domain.WaitingTime, len(pairs))
	for i, p := range pairs {
		out[i] = domain.WaitingTime{From: p.from, To: p.to, Time: mean(samples[i])}
	}
	return out
}
