package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// resolverFunc adapts a function to Resolver
type resolverFunc func(ctx context.Context, descriptors []source.Descriptor) (*source.Result, error)

func (f resolverFunc) Resolve(ctx context.Context, descriptors []source.Descriptor) (*source.Result, error) {
	return f(ctx, descriptors)
}

func aggregatedResult(doc *domain.AnalyticsDocument) *source.Result {
	return &source.Result{
		Payload:  &source.Payload{Kind: source.PayloadAggregated, Document: doc},
		Statuses: domain.FileStatuses{{Name: source.CompleteDataFile, Attempted: true, Succeeded: true, Attempts: 1}},
		Source:   source.CompleteDataFile,
	}
}

func failingFetcher() source.Fetcher {
	return source.FetcherFunc(func(ctx context.Context, url string) (*source.Response, error) {
		return &source.Response{Status: http.StatusNotFound, StatusText: "Not Found"}, nil
	})
}

func noWait() source.Option { return source.WithRetry(3, source.Backoff{}) }

// recorder collects published states
type recorder struct {
	mu     sync.Mutex
	states []domain.LoadState
}

func (r *recorder) observe(s domain.LoadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []domain.LoadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LoadState(nil), r.states...)
}

func TestParseFallbackPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FallbackPolicy
		wantErr bool
	}{
		{"", PolicyVisible, false},
		{"visible", PolicyVisible, false},
		{"silent", PolicySilent, false},
		{"disabled", PolicyDisabled, false},
		{"loud", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFallbackPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_AggregatedPassThrough(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	doc := &domain.AnalyticsDocument{Overview: domain.Overview{TotalRecords: 7, AnalysisStatus: domain.AnalysisComplete}}
	r := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		return aggregatedResult(doc), nil
	})

	p := New(r, transform.New(), nil, WithClock(mock))
	defer p.Close()

	initial := p.State()
	assert.True(t, initial.IsLoading)
	assert.Nil(t, initial.Data)
	assert.Nil(t, initial.Error)
	assert.NotNil(t, initial.FileStatus)

	state, err := p.Load(context.Background())
	require.NoError(t, err)

	assert.False(t, state.IsLoading)
	assert.Nil(t, state.Error)
	assert.Same(t, doc, state.Data)
	require.NotNil(t, state.LastUpdated)
	assert.Equal(t, mock.Now(), *state.LastUpdated)
	assert.NotEmpty(t, state.CycleID)
	assert.False(t, state.Degraded)
	assert.Equal(t, source.CompleteDataFile, state.Source)
}

func TestLoad_RawRecordsAreTransformed(t *testing.T) {
	stub := source.FetcherFunc(func(ctx context.Context, url string) (*source.Response, error) {
		switch url {
		case "internal.json":
			return &source.Response{Status: http.StatusOK, Body: []byte(`{"records":[
				{"id":1,"date":"2025-01-05","lot":"B1","department":"Production","errorType":"Missing Signature","status":"Fail"},
				{"id":2,"date":"2025-01-06","lot":"B1","department":"Production","status":"Pass"},
				{"id":3,"date":"2025-01-06","lot":"B2","department":"Production","status":"Maybe"}
			]}`)}, nil
		case "external.json":
			return &source.Response{Status: http.StatusOK, Body: []byte(`[{"id":"c1","date":"2025-01-10","lot":"B1","issueType":"Packaging","status":"Closed","sentiment":-0.2}]`)}, nil
		}
		return &source.Response{Status: http.StatusNotFound}, nil
	})

	descs := source.DefaultDescriptors("")
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := source.NewResolver(stub, noWait(), source.WithAttemptHook(m.AttemptHook()))

	p := New(r, transform.New(), descs, WithMetrics(m))
	defer p.Close()

	state, err := p.Load(context.Background())
	require.NoError(t, err)

	require.NotNil(t, state.Data)
	assert.Nil(t, state.Error)
	assert.Equal(t, 3, state.Data.Overview.TotalRecords)
	assert.Equal(t, 1, state.Data.Overview.DroppedRecords)
	assert.Equal(t, domain.AnalysisComplete, state.Data.Overview.AnalysisStatus)
	assert.Equal(t, "internal.json,external.json", state.Source)

	require.Len(t, state.FileStatus, 4)
	assert.False(t, state.FileStatus[0].Succeeded)
	assert.True(t, state.FileStatus[1].Succeeded)
	assert.True(t, state.FileStatus[2].Succeeded)
	assert.False(t, state.FileStatus[3].Succeeded)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("invalid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.attempts.WithLabelValues(source.CompleteDataFile, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues(source.InternalFile, "success")))
}

func TestLoad_AllSourcesFail(t *testing.T) {
	fallback, err := source.EmbeddedFallback()
	require.NoError(t, err)
	descs := source.DefaultDescriptors("")

	tests := []struct {
		name      string
		policy    FallbackPolicy
		wantError bool
		wantData  bool
		outcome   string
	}{
		{"visible", PolicyVisible, true, true, OutcomeDegraded},
		{"silent", PolicySilent, false, true, OutcomeDegraded},
		{"disabled", PolicyDisabled, true, false, OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics(prometheus.NewRegistry())
			r := source.NewResolver(failingFetcher(), noWait(), source.WithFallback(fallback))
			p := New(r, transform.New(), descs, WithFallbackPolicy(tt.policy), WithMetrics(m))
			defer p.Close()

			state, err := p.Load(context.Background())
			require.NoError(t, err)

			assert.False(t, state.IsLoading)
			assert.True(t, state.Degraded)
			assert.Equal(t, tt.wantError, state.Error != nil)
			if tt.wantData {
				require.NotNil(t, state.Data)
				assert.Equal(t, fallback.Overview, state.Data.Overview)
				assert.Equal(t, domain.AnalysisDegraded, state.Data.Overview.AnalysisStatus)
				assert.Equal(t, source.FallbackSource, state.Source)
			} else {
				assert.Nil(t, state.Data)
			}
			if tt.policy == PolicyVisible {
				assert.Equal(t, DegradedMessage, state.ErrorMessage())
			}

			require.Len(t, state.FileStatus, len(descs))
			for _, s := range state.FileStatus {
				assert.True(t, s.Attempted)
				assert.False(t, s.Succeeded)
				assert.Equal(t, 3, s.Attempts)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(tt.outcome)))
		})
	}

	t.Run("no fallback", func(t *testing.T) {
		r := source.NewResolver(failingFetcher(), noWait())
		p := New(r, transform.New(), descs)
		defer p.Close()

		state, err := p.Load(context.Background())
		require.NoError(t, err)

		assert.Nil(t, state.Data)
		assert.Equal(t, "Failed to load data: all 4 sources failed", state.ErrorMessage())
		assert.False(t, state.Degraded)
		assert.Len(t, state.FileStatus, 4)
	})
}

func TestLoad_TransformFailure(t *testing.T) {
	empty := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		return &source.Result{
			Payload:  &source.Payload{Kind: source.PayloadRecords, Batches: []domain.SourceBatch{{Source: "internal.json"}}},
			Statuses: domain.FileStatuses{{Name: "internal.json", Attempted: true, Succeeded: true, Attempts: 1}},
			Source:   "internal.json",
		}, nil
	})

	t.Run("fallback is served", func(t *testing.T) {
		fallback, err := source.EmbeddedFallback()
		require.NoError(t, err)

		core, logs := observer.New(zapcore.WarnLevel)
		p := New(empty, transform.New(), nil, WithFallback(fallback), WithLogger(zap.New(core)))
		defer p.Close()

		state, err := p.Load(context.Background())
		require.NoError(t, err)

		assert.True(t, state.Degraded)
		require.NotNil(t, state.Data)
		assert.Equal(t, DegradedMessage, state.ErrorMessage())
		assert.Equal(t, source.FallbackSource, state.Source)
		assert.Equal(t, 1, logs.FilterMessage("pipeline: transform failed, serving fallback dataset").Len())
	})

	t.Run("without fallback the error is published", func(t *testing.T) {
		p := New(empty, transform.New(), nil)
		defer p.Close()

		state, err := p.Load(context.Background())
		require.NoError(t, err)

		assert.Nil(t, state.Data)
		assert.Contains(t, state.ErrorMessage(), "empty dataset")
	})
}

func TestRefresh_LastCycleWins(t *testing.T) {
	first := &domain.AnalyticsDocument{Overview: domain.Overview{TotalRecords: 1}}
	second := &domain.AnalyticsDocument{Overview: domain.Overview{TotalRecords: 2}}

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0

	r := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(entered)
			// ignores cancellation and answers late
			<-release
			return aggregatedResult(first), nil
		}
		return aggregatedResult(second), nil
	})

	m := NewMetrics(prometheus.NewRegistry())
	p := New(r, transform.New(), nil, WithMetrics(m), WithLogger(zaptest.NewLogger(t)))
	rec := &recorder{}
	p.Subscribe(rec.observe)

	done1 := p.Refresh()
	loading1 := p.State()
	<-entered
	done2 := p.Refresh()
	loading2 := p.State()
	assert.NotEqual(t, loading1.CycleID, loading2.CycleID)

	<-done2
	close(release)
	<-done1

	state := p.State()
	assert.Same(t, second, state.Data)
	assert.Equal(t, loading2.CycleID, state.CycleID)
	p.Close()

	states := rec.all()
	require.Len(t, states, 3)
	assert.True(t, states[0].IsLoading)
	assert.Equal(t, loading1.CycleID, states[0].CycleID)
	assert.True(t, states[1].IsLoading)
	assert.Equal(t, loading2.CycleID, states[1].CycleID)
	assert.False(t, states[2].IsLoading)
	assert.Same(t, second, states[2].Data)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(OutcomeSuperseded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(OutcomeOK)))

	// the late first cycle is recorded after the second
	records := p.History().All()
	require.Len(t, records, 2)
	assert.Equal(t, loading2.CycleID, records[0].CycleID)
	assert.Equal(t, OutcomeOK, records[0].Outcome)
	assert.Equal(t, loading1.CycleID, records[1].CycleID)
	assert.Equal(t, OutcomeSuperseded, records[1].Outcome)
}

func TestSubscribe(t *testing.T) {
	doc := &domain.AnalyticsDocument{}
	r := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		return aggregatedResult(doc), nil
	})
	p := New(r, transform.New(), nil)

	a, b := &recorder{}, &recorder{}
	var order []string
	var mu sync.Mutex
	p.Subscribe(func(s domain.LoadState) {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
		a.observe(s)
	})
	cancelB := p.Subscribe(func(s domain.LoadState) {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
		b.observe(s)
	})

	<-p.Refresh()
	cancelB()
	<-p.Refresh()
	p.Close()

	assert.Len(t, a.all(), 4)
	assert.Len(t, b.all(), 2)
	assert.Equal(t, []string{"a", "b", "a", "b", "a", "a"}, order)
}

func TestObserverMayReadState(t *testing.T) {
	r := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		return aggregatedResult(&domain.AnalyticsDocument{}), nil
	})
	p := New(r, transform.New(), nil)

	seen := make(chan domain.LoadState, 4)
	p.Subscribe(func(s domain.LoadState) {
		seen <- p.State()
	})

	<-p.Refresh()
	p.Close()
	assert.Len(t, seen, 2)
}

func TestClose_StopsRetries(t *testing.T) {
	mock := clock.NewMock()
	fetched := make(chan struct{}, 8)
	fetcher := source.FetcherFunc(func(ctx context.Context, url string) (*source.Response, error) {
		fetched <- struct{}{}
		return &source.Response{Status: http.StatusServiceUnavailable}, nil
	})

	r := source.NewResolver(fetcher, source.WithClock(mock))
	p := New(r, transform.New(), source.DefaultDescriptors(""))

	done := p.Refresh()
	<-fetched

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return while a retry was pending")
	}
	<-done

	assert.Len(t, fetched, 0)
	assert.True(t, p.State().IsLoading)

	select {
	case <-p.Refresh():
	default:
		t.Fatal("refresh after close should return a closed channel")
	}
	assert.Len(t, fetched, 0)
}

func TestLoad_ContextBoundsWait(t *testing.T) {
	release := make(chan struct{})
	r := resolverFunc(func(ctx context.Context, _ []source.Descriptor) (*source.Result, error) {
		select {
		case <-release:
			return nil, errors.New("released")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	p := New(r, transform.New(), nil)
	defer p.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	state, err := p.Load(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, state.IsLoading)
}
