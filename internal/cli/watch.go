package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/qcdash/internal/config"
	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/output"
	"github.com/vburojevic/qcdash/internal/pipeline"
	"github.com/vburojevic/qcdash/internal/session"
)

// WatchCmd refreshes the dashboard data on an interval
type WatchCmd struct {
	RecordFilterFlags

	FillDefaults bool   `help:"Use fallback sections for domains that have no records"`
	Interval     string `help:"Refresh interval (default: watch.interval from config)"`
	Reload       bool   `help:"Rebuild the pipeline when the config file changes"`
	MetricsAddr  string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9090)"`
	Count        int    `help:"Exit after this many completed cycles (0 runs until interrupted)"`
	ShowLoading  bool   `help:"Also print loading states"`
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	if globals.Format == "text" {
		output.ConfigureStyles(globals.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interval, err := c.interval(globals.Config)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFlag, err.Error(), "Use a positive Go duration such as 30s or 5m")
	}
	if c.Count < 0 {
		return outputErrorCommon(globals, codeInvalidFlag, "--count must not be negative")
	}
	f, err := c.buildFilters()
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFilter, err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	history := pipeline.NewHistory(pipeline.DefaultHistorySize)
	opts := pipelineOptions{
		filter:       f,
		fillDefaults: c.FillDefaults,
		metrics:      pipeline.NewMetrics(reg),
		history:      history,
	}

	out := &lockedWriter{w: globals.Writer()}
	tracker := session.NewTracker(globals.Clock())
	var completed atomic.Int64
	observe := func(s domain.LoadState) {
		if s.IsLoading && !c.ShowLoading {
			return
		}
		if err := out.WriteState(s); err != nil {
			globals.Logger().Error("write state", zap.Error(err))
		}
		if s.IsLoading {
			return
		}
		if ch := tracker.CheckState(s); ch != nil {
			if err := out.WriteHealth(ch.EndSpan, ch.StartSpan); err != nil {
				globals.Logger().Error("write health", zap.Error(err))
			}
		}
		if n := completed.Add(1); c.Count > 0 && n >= int64(c.Count) {
			cancel()
		}
	}

	runner := &watchRunner{globals: globals, opts: opts, observe: observe}
	if err := runner.swap(globals.Config); err != nil {
		return outputErrorCommon(globals, codeInvalidConfig, err.Error(), hintForConfig(err))
	}
	defer runner.close()

	logger := globals.Logger()
	g, gctx := errgroup.WithContext(ctx)

	if c.MetricsAddr != "" {
		ln, err := net.Listen("tcp", c.MetricsAddr)
		if err != nil {
			return outputErrorCommon(globals, codeMetricsServer, err.Error(), "Pick a free address with --metrics-addr")
		}
		srv := &http.Server{Handler: metricsHandler(reg), ReadHeaderTimeout: 5 * time.Second}
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return &CLIError{Code: codeMetricsServer, Message: err.Error()}
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	reloads := make(chan *config.Config, 1)
	if c.Reload {
		if globals.ConfigFile == "" {
			warn(globals, "--reload ignored: no config file loaded")
		} else {
			path := globals.ConfigFile
			g.Go(func() error {
				err := config.Watch(gctx, path, logger.Named("config"), func(cfg *config.Config) {
					offerLatest(reloads, cfg)
				})
				if err != nil {
					return &CLIError{Code: codeConfigWatch, Message: err.Error()}
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		ticker := globals.Clock().Ticker(interval)
		defer ticker.Stop()

		runner.refresh()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				runner.refresh()
			case cfg := <-reloads:
				if err := runner.swap(cfg); err != nil {
					logger.Warn("config reload rejected", zap.Error(err))
					continue
				}
				logger.Info("config reloaded")
				if d := cfg.Watch.IntervalDuration(); c.Interval == "" && d > 0 && d != interval {
					interval = d
					ticker.Reset(d)
				}
				runner.refresh()
			}
		}
	})

	err = g.Wait()
	runner.close()
	if final := tracker.GetFinalSummary(); final != nil {
		_ = out.WriteHealth(final, nil)
	}
	if !globals.Quiet {
		_ = out.WriteInfo(summarizeHistory(history))
	}
	if err != nil {
		return outputCLIError(globals, codeInterrupted, err)
	}
	return nil
}

func summarizeHistory(h *pipeline.History) string {
	counts := h.CountByOutcome()
	return fmt.Sprintf("watch stopped after %d cycles: %d ok, %d degraded, %d failed, %d superseded",
		h.Count(),
		counts[pipeline.OutcomeOK],
		counts[pipeline.OutcomeDegraded],
		counts[pipeline.OutcomeFailed],
		counts[pipeline.OutcomeSuperseded],
	)
}

func (c *WatchCmd) interval(cfg *config.Config) (time.Duration, error) {
	if c.Interval == "" {
		d := cfg.Watch.IntervalDuration()
		if d <= 0 {
			return 0, fmt.Errorf("invalid watch.interval %q", cfg.Watch.Interval)
		}
		return d, nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid --interval %q", c.Interval)
	}
	return d, nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// offerLatest replaces any pending value so the receiver only sees the
// newest one
func offerLatest(ch chan *config.Config, cfg *config.Config) {
	for {
		select {
		case ch <- cfg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// watchRunner owns the active pipeline. A config reload builds a new
// pipeline and closes the old one.
type watchRunner struct {
	globals *Globals
	opts    pipelineOptions
	observe func(domain.LoadState)

	mu          sync.Mutex
	p           *pipeline.Pipeline
	unsubscribe func()
}

func (r *watchRunner) swap(cfg *config.Config) error {
	p, err := buildPipeline(r.globals, cfg, r.opts)
	if err != nil {
		return err
	}
	unsubscribe := p.Subscribe(r.observe)

	r.mu.Lock()
	old, oldUnsubscribe := r.p, r.unsubscribe
	r.p, r.unsubscribe = p, unsubscribe
	r.mu.Unlock()

	if old != nil {
		oldUnsubscribe()
		old.Close()
	}
	return nil
}

func (r *watchRunner) refresh() {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	p.Refresh()
}

func (r *watchRunner) close() {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Close()
	}
}

// lockedWriter serializes states coming from successive pipelines
type lockedWriter struct {
	mu sync.Mutex
	w  output.Writer
}

func (l *lockedWriter) WriteState(s domain.LoadState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteState(s)
}

func (l *lockedWriter) WriteHealth(end *domain.HealthSpanEnd, start *domain.HealthSpanStart) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteHealth(end, start)
}

func (l *lockedWriter) WriteInfo(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteInfo(msg)
}
