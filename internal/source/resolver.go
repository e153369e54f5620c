// Package source resolves the pipeline input from a prioritized list of
// sources, retrying each with backoff before falling through to the next.
package source

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/qcdash/internal/domain"
)

// FallbackSource is the Result.Source of a degraded resolution
const FallbackSource = "fallback"

// AttemptHook observes every fetch attempt. err is nil on success.
type AttemptHook func(d Descriptor, attempt int, err error)

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the resolver logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock used for backoff waits
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithRetry sets the attempt budget per descriptor and the backoff schedule
func WithRetry(maxAttempts int, b Backoff) Option {
	return func(r *Resolver) {
		if maxAttempts > 0 {
			r.maxAttempts = maxAttempts
		}
		r.backoff = b
	}
}

// WithFallback sets the document returned when every descriptor fails
func WithFallback(doc *domain.AnalyticsDocument) Option {
	return func(r *Resolver) { r.fallback = doc }
}

// WithAttemptHook registers an attempt observer
func WithAttemptHook(h AttemptHook) Option {
	return func(r *Resolver) { r.hook = h }
}

// Resolver walks descriptors in priority order
type Resolver struct {
	fetcher     Fetcher
	logger      *zap.Logger
	clock       clock.Clock
	maxAttempts int
	backoff     Backoff
	fallback    *domain.AnalyticsDocument
	hook        AttemptHook
}

// NewResolver creates a resolver using fetcher for every descriptor
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		logger:      zap.NewNop(),
		clock:       clock.New(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HasFallback reports whether a fallback document is configured
func (r *Resolver) HasFallback() bool { return r.fallback != nil }

// Result is the outcome of one resolution cycle
type Result struct {
	Payload  *Payload
	Statuses domain.FileStatuses
	Degraded bool
	Source   string
}

// Resolve returns the first resolvable payload. An aggregated descriptor
// that succeeds ends the walk. Consecutive raw descriptors form a group:
// every member is attempted and any success ends the walk with their
// batches concatenated in domain order. When everything fails the fallback
// document is returned with Degraded set; without a fallback the error
// wraps ErrAllSourcesFailed and every per-source failure.
//
// Per-source errors never escape except through that final error. Context
// cancellation stops the walk and returns ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, descriptors []Descriptor) (*Result, error) {
	res := &Result{Statuses: domain.FileStatuses{}}
	var failures []error

	for i := 0; i < len(descriptors); {
		d := descriptors[i]

		if d.Aggregated {
			p, err := r.attempt(ctx, d, res)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if err == nil {
				res.Payload = p
				res.Source = d.Name
				return res, nil
			}
			failures = append(failures, err)
			i++
			continue
		}

		j := i
		for j < len(descriptors) && !descriptors[j].Aggregated {
			j++
		}

		var batches []domain.SourceBatch
		var names []string
		for _, gd := range descriptors[i:j] {
			p, err := r.attempt(ctx, gd, res)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if err != nil {
				failures = append(failures, err)
				continue
			}
			batches = append(batches, p.Batches...)
			names = append(names, gd.Name)
		}

		if len(names) > 0 {
			sort.SliceStable(batches, func(a, b int) bool {
				return batches[a].Domain.Order() < batches[b].Domain.Order()
			})
			res.Payload = &Payload{Kind: PayloadRecords, Batches: batches}
			res.Source = strings.Join(names, ",")
			if len(names) < j-i {
				r.logger.Warn("resolver: partial raw source success",
					zap.Strings("succeeded", names),
					zap.Int("failed", j-i-len(names)))
			}
			return res, nil
		}
		i = j
	}

	if r.fallback != nil {
		r.logger.Warn("resolver: all sources failed, serving fallback dataset",
			zap.Int("sources", len(descriptors)))
		res.Payload = &Payload{Kind: PayloadAggregated, Document: r.fallback.Clone()}
		res.Degraded = true
		res.Source = FallbackSource
		return res, nil
	}

	return res, errors.Join(append([]error{domain.ErrAllSourcesFailed}, failures...)...)
}

// attempt fetches one descriptor up to maxAttempts times and appends its
// FileStatus once the descriptor is finished
func (r *Resolver) attempt(ctx context.Context, d Descriptor, res *Result) (*Payload, error) {
	status := domain.FileStatus{Name: d.Name, Attempted: true}
	defer func() { res.Statuses = append(res.Statuses, status) }()

	var lastErr error
	for n := 1; n <= r.maxAttempts; n++ {
		if n > 1 {
			delay := r.backoff.Delay(n - 1)
			r.logger.Debug("resolver: retrying source",
				zap.String("source", d.Name),
				zap.Int("attempt", n),
				zap.Duration("backoff", delay))
			if err := r.sleep(ctx, delay); err != nil {
				status.Error = err.Error()
				return nil, err
			}
		}

		status.Attempts = n
		p, err := r.fetchOnce(ctx, d)
		if r.hook != nil {
			r.hook(d, n, err)
		}
		if err == nil {
			status.Succeeded = true
			r.logger.Debug("resolver: source resolved",
				zap.String("source", d.Name),
				zap.Int("attempt", n),
				zap.Stringer("kind", p.Kind))
			return p, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			status.Error = ctxErr.Error()
			return nil, ctxErr
		}

		lastErr = err
		r.logger.Warn("resolver: source attempt failed",
			zap.String("source", d.Name),
			zap.Int("attempt", n),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err))
	}

	status.Error = lastErr.Error()
	return nil, lastErr
}

func (r *Resolver) fetchOnce(ctx context.Context, d Descriptor) (*Payload, error) {
	resp, err := r.fetcher.Fetch(ctx, d.URL)
	if err != nil {
		var netErr *domain.NetworkError
		if !errors.As(err, &netErr) {
			err = &domain.NetworkError{URL: d.URL, Err: err}
		}
		return nil, err
	}
	if !resp.OK() {
		return nil, &domain.NetworkError{URL: d.URL, Status: resp.Status, StatusText: resp.StatusText}
	}
	return Decode(d, resp.Body)
}

func (r *Resolver) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := r.clock.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
