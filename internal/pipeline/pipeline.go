// Package pipeline drives load cycles: resolve a source, transform raw
// records when needed, and publish LoadState snapshots to observers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// FallbackPolicy controls how a degraded cycle is published
type FallbackPolicy string

const (
	// PolicyVisible publishes fallback data together with an error message
	PolicyVisible FallbackPolicy = "visible"
	// PolicySilent publishes fallback data with a null error
	PolicySilent FallbackPolicy = "silent"
	// PolicyDisabled never publishes fallback data
	PolicyDisabled FallbackPolicy = "disabled"
)

// ParseFallbackPolicy parses a policy name. Empty means visible.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(s); p {
	case "":
		return PolicyVisible, nil
	case PolicyVisible, PolicySilent, PolicyDisabled:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q (want visible, silent or disabled)", s)
	}
}

// DegradedMessage is the error published with visible fallback data
const DegradedMessage = "Data sources unavailable; showing fallback data"

// Resolver resolves a payload from an ordered descriptor list
type Resolver interface {
	Resolve(ctx context.Context, descriptors []source.Descriptor) (*source.Result, error)
}

// Transformer turns raw record batches into a document
type Transformer interface {
	TransformBatches(batches []domain.SourceBatch) (*domain.AnalyticsDocument, transform.IngestReport, error)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the clock used for lastUpdated and cycle timing
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithFallbackPolicy sets how degraded cycles are published
func WithFallbackPolicy(policy FallbackPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithFallback sets the document served when a fetched payload cannot be
// transformed. Resolution failures use the resolver's own fallback.
func WithFallback(doc *domain.AnalyticsDocument) Option {
	return func(p *Pipeline) { p.fallback = doc }
}

// DefaultHistorySize is the number of cycle records kept when WithHistory
// is not given
const DefaultHistorySize = 32

// WithHistory records cycle outcomes into h
func WithHistory(h *History) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.history = h
		}
	}
}

type subscriber struct {
	id int
	fn func(domain.LoadState)
}

// delivery is a published state and the observers subscribed at the time
type delivery struct {
	state     domain.LoadState
	observers []subscriber
}

// Pipeline runs at most one load cycle at a time. A newer Refresh
// supersedes the in-flight cycle and discards anything it would publish.
type Pipeline struct {
	resolver    Resolver
	transformer Transformer
	descriptors []source.Descriptor

	logger   *zap.Logger
	clock    clock.Clock
	metrics  *Metrics
	policy   FallbackPolicy
	fallback *domain.AnalyticsDocument
	history  *History

	mu        sync.Mutex
	state     domain.LoadState
	gen       uint64
	cancel    context.CancelFunc
	closed    bool
	observers []subscriber
	nextObs   int
	queue     []delivery

	ctx      context.Context
	stop     context.CancelFunc
	cycles   sync.WaitGroup
	notify   chan struct{}
	dispatch sync.WaitGroup
	once     sync.Once
}

// New creates a pipeline over the given descriptor priority list. The
// initial state is loading with no data until the first cycle finishes.
func New(resolver Resolver, transformer Transformer, descriptors []source.Descriptor, opts ...Option) *Pipeline {
	ctx, stop := context.WithCancel(context.Background())
	p := &Pipeline{
		resolver:    resolver,
		transformer: transformer,
		descriptors: slices.Clone(descriptors),
		logger:      zap.NewNop(),
		clock:       clock.New(),
		policy:      PolicyVisible,
		state:       domain.NewLoadingState(""),
		ctx:         ctx,
		stop:        stop,
		notify:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	if p.history == nil {
		p.history = NewHistory(DefaultHistorySize)
	}

	p.dispatch.Add(1)
	go p.dispatchLoop()
	return p
}

// Descriptors returns a copy of the priority list
func (p *Pipeline) Descriptors() []source.Descriptor {
	return slices.Clone(p.descriptors)
}

// History returns the cycle history
func (p *Pipeline) History() *History {
	return p.history
}

// State returns the current snapshot
func (p *Pipeline) State() domain.LoadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn for every state published from now on. Calls
// happen in publish order on one goroutine. The returned func unsubscribes.
func (p *Pipeline) Subscribe(fn func(domain.LoadState)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextObs++
	id := p.nextObs
	p.observers = append(p.observers, subscriber{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.observers = slices.DeleteFunc(p.observers, func(o subscriber) bool { return o.id == id })
	}
}

// Refresh starts a new cycle, superseding any in-flight one. The loading
// state is published before Refresh returns. The returned channel closes
// when the new cycle ends. After Close it returns a closed channel.
func (p *Pipeline) Refresh() <-chan struct{} {
	done := make(chan struct{})

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(done)
		return done
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel

	cycleID := uuid.NewString()
	p.state = domain.NewLoadingState(cycleID)
	p.enqueueLocked(p.state)
	p.cycles.Add(1)
	p.mu.Unlock()

	p.logger.Debug("pipeline: cycle started", zap.String("cycle", cycleID), zap.Uint64("generation", gen))

	go func() {
		defer p.cycles.Done()
		defer close(done)
		defer cancel()
		p.run(ctx, gen, cycleID)
	}()
	return done
}

// Load runs a cycle and waits for it. ctx bounds the wait only; the cycle
// keeps running if ctx ends first. If a newer Refresh superseded the cycle
// the returned state is whatever is current when it ended.
func (p *Pipeline) Load(ctx context.Context) (domain.LoadState, error) {
	done := p.Refresh()
	select {
	case <-done:
		return p.State(), nil
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}
}

// Close cancels the in-flight cycle and waits for every goroutine the
// pipeline started. Later Refresh calls are no-ops.
func (p *Pipeline) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.stop()
		p.cycles.Wait()
		close(p.notify)
		p.dispatch.Wait()
	})
}

func (p *Pipeline) run(ctx context.Context, gen uint64, cycleID string) {
	start := p.clock.Now()
	log := p.logger.With(zap.String("cycle", cycleID))

	res, err := p.resolver.Resolve(ctx, p.descriptors)
	if ctx.Err() != nil {
		log.Debug("pipeline: cycle superseded")
		p.record(cycleID, OutcomeSuperseded, "", start)
		return
	}

	state := domain.LoadState{CycleID: cycleID, FileStatus: domain.FileStatuses{}}
	if res != nil {
		state.FileStatus = res.Statuses
		state.Source = res.Source
	}

	if err == nil && (res == nil || res.Payload == nil) {
		err = errors.New("resolver returned no payload")
	}

	var outcome string
	switch {
	case err != nil:
		outcome = p.fail(&state, err)
	case res.Degraded:
		outcome = p.degrade(&state, res.Payload.Document)
	case res.Payload.Kind == source.PayloadAggregated:
		state.Data = res.Payload.Document
		outcome = OutcomeOK
	default:
		doc, report, terr := p.transformer.TransformBatches(res.Payload.Batches)
		p.metrics.observeIngest(report)
		switch {
		case terr == nil:
			state.Data = doc
			outcome = OutcomeOK
		case p.fallback != nil:
			log.Warn("pipeline: transform failed, serving fallback dataset", zap.Error(terr))
			state.Source = source.FallbackSource
			outcome = p.degrade(&state, p.fallback.Clone())
		default:
			outcome = p.fail(&state, terr)
		}
	}

	now := p.clock.Now()
	state.LastUpdated = &now

	if !p.publish(gen, state) {
		log.Debug("pipeline: stale cycle result discarded")
		p.record(cycleID, OutcomeSuperseded, state.Source, start)
		return
	}
	p.record(cycleID, outcome, state.Source, start)
	log.Info("pipeline: cycle finished",
		zap.String("outcome", outcome),
		zap.String("source", state.Source),
		zap.Int("failed_sources", state.FileStatus.Failed()),
		zap.Duration("elapsed", p.clock.Since(start)))
}

func (p *Pipeline) record(cycleID, outcome, src string, start time.Time) {
	now := p.clock.Now()
	elapsed := now.Sub(start)
	p.metrics.observeCycle(outcome, elapsed)
	p.history.Push(CycleRecord{CycleID: cycleID, Outcome: outcome, Source: src, Finished: now, Elapsed: elapsed})
}

func (p *Pipeline) fail(state *domain.LoadState, err error) string {
	msg := err.Error()
	if errors.Is(err, domain.ErrAllSourcesFailed) {
		msg = fmt.Sprintf("Failed to load data: all %d sources failed", len(state.FileStatus))
	}
	p.logger.Error("pipeline: cycle failed", zap.String("cycle", state.CycleID), zap.Error(err))
	state.Error = &msg
	return OutcomeFailed
}

func (p *Pipeline) degrade(state *domain.LoadState, doc *domain.AnalyticsDocument) string {
	state.Degraded = true
	switch p.policy {
	case PolicySilent:
		state.Data = doc
	case PolicyDisabled:
		msg := fmt.Sprintf("Failed to load data: all %d sources failed", len(state.FileStatus))
		state.Error = &msg
		return OutcomeFailed
	default:
		msg := DegradedMessage
		state.Error = &msg
		state.Data = doc
	}
	return OutcomeDegraded
}

// publish replaces the snapshot unless gen has been superseded
func (p *Pipeline) publish(gen uint64, state domain.LoadState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen {
		return false
	}
	p.state = state
	p.enqueueLocked(state)
	return true
}

func (p *Pipeline) enqueueLocked(state domain.LoadState) {
	if len(p.observers) == 0 {
		return
	}
	p.queue = append(p.queue, delivery{state: state, observers: slices.Clone(p.observers)})
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pipeline) dispatchLoop() {
	defer p.dispatch.Done()
	for range p.notify {
		p.drain()
	}
	p.drain()
}

func (p *Pipeline) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		d := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		for _, o := range d.observers {
			o.fn(d.state)
		}
	}
}
