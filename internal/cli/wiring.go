package cli

import (
	"fmt"
	"os"
	"path"

	"go.uber.org/zap"

	"github.com/vburojevic/qcdash/internal/config"
	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/filter"
	"github.com/vburojevic/qcdash/internal/pipeline"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// descriptorsFromConfig returns the configured source list, or the default
// list under base_url when none is configured
func descriptorsFromConfig(cfg *config.Config) ([]source.Descriptor, error) {
	if len(cfg.Sources) == 0 {
		return source.DefaultDescriptors(cfg.BaseURL), nil
	}

	descs := make([]source.Descriptor, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		d := source.Descriptor{
			Name:       s.Name,
			URL:        source.JoinURL(cfg.BaseURL, s.URL),
			Aggregated: s.Aggregated,
		}
		if d.Name == "" {
			d.Name = path.Base(s.URL)
		}
		if s.Domain != "" {
			dom, ok := domain.ParseDomain(s.Domain)
			if !ok {
				return nil, fmt.Errorf("source %s: unknown domain %q", d.Name, s.Domain)
			}
			d.Domain = dom
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// loadFallback reads fallback.file when set, otherwise the embedded dataset
func loadFallback(cfg *config.Config) (*domain.AnalyticsDocument, error) {
	if cfg.Fallback.File == "" {
		return source.EmbeddedFallback()
	}
	data, err := os.ReadFile(cfg.Fallback.File)
	if err != nil {
		return nil, err
	}
	return source.LoadFallback(data)
}

func newFetcher(cfg *config.Config) source.Fetcher {
	return &source.Router{
		HTTP: source.NewHTTPFetcher(cfg.HTTP.TimeoutDuration(), cfg.HTTP.UserAgent),
		File: &source.FileFetcher{},
	}
}

// pipelineOptions are the per-command knobs that are not in the config file
type pipelineOptions struct {
	filter       filter.Filter
	fillDefaults bool
	metrics      *pipeline.Metrics
	history      *pipeline.History
}

// buildPipeline wires fetcher, resolver, transformer and pipeline from cfg
func buildPipeline(globals *Globals, cfg *config.Config, opts pipelineOptions) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := pipeline.ParseFallbackPolicy(cfg.Fallback.Policy)
	if err != nil {
		return nil, err
	}
	descs, err := descriptorsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var fallback *domain.AnalyticsDocument
	if policy != pipeline.PolicyDisabled || opts.fillDefaults {
		fallback, err = loadFallback(cfg)
		if err != nil {
			return nil, fmt.Errorf("fallback dataset: %w", err)
		}
	}

	logger := globals.Logger()
	clk := globals.Clock()

	fetcher := globals.fetcher
	if fetcher == nil {
		fetcher = newFetcher(cfg)
	}

	backoff := source.Backoff{
		Base:       cfg.Retry.BaseDelayDuration(),
		Multiplier: cfg.Retry.Multiplier,
		Max:        cfg.Retry.MaxDelayDuration(),
	}
	resolverOpts := []source.Option{
		source.WithLogger(logger.Named("source")),
		source.WithClock(clk),
		source.WithRetry(cfg.Retry.Attempts, backoff),
		source.WithAttemptHook(opts.metrics.AttemptHook()),
	}
	if policy != pipeline.PolicyDisabled {
		resolverOpts = append(resolverOpts, source.WithFallback(fallback))
	}
	resolver := source.NewResolver(fetcher, resolverOpts...)

	transformOpts := []transform.Option{
		transform.WithLogger(logger.Named("transform")),
		transform.WithFilter(opts.filter),
	}
	if opts.fillDefaults {
		transformOpts = append(transformOpts, transform.WithDefaults(fallback))
	}
	transformer := transform.New(transformOpts...)

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithClock(clk),
		pipeline.WithMetrics(opts.metrics),
		pipeline.WithFallbackPolicy(policy),
		pipeline.WithHistory(opts.history),
	}
	if policy != pipeline.PolicyDisabled {
		pipelineOpts = append(pipelineOpts, pipeline.WithFallback(fallback))
	}

	logger.Debug("pipeline configured",
		zap.Int("sources", len(descs)),
		zap.String("policy", string(policy)),
		zap.Int("attempts", cfg.Retry.Attempts),
		zap.Bool("fillDefaults", opts.fillDefaults),
	)
	return pipeline.New(resolver, transformer, descs, pipelineOpts...), nil
}
