// Package transform turns raw source batches into the analytics document.
package transform

import (
	"errors"

	"go.uber.org/zap"

	"github.com/vburojevic/qcdash/internal/aggregate"
	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/filter"
)

// Option configures a Transformer
type Option func(*Transformer)

// WithLogger sets the logger used for dropped-record diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(t *Transformer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithDefaults sets the historical document whose sections stand in for
// domains without records
func WithDefaults(doc *domain.AnalyticsDocument) Option {
	return func(t *Transformer) { t.defaults = doc }
}

// WithFilter restricts aggregation to records accepted by f
func WithFilter(f filter.Filter) Option {
	return func(t *Transformer) { t.filter = f }
}

// Transformer owns the raw-records to analytics-document transformation.
// It holds configuration only, so one instance may serve concurrent calls.
type Transformer struct {
	logger   *zap.Logger
	defaults *domain.AnalyticsDocument
	filter   filter.Filter
}

// New creates a Transformer
func New(opts ...Option) *Transformer {
	t := &Transformer{logger: zap.NewNop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// IngestReport counts what happened to the raw records of one ingest
type IngestReport struct {
	Total        int `json:"total"`
	Accepted     int `json:"accepted"`
	Invalid      int `json:"invalid"`
	Unattributed int `json:"unattributed"`
	Filtered     int `json:"filtered"`
}

// Dropped is the number of records removed by validation or attribution
func (r IngestReport) Dropped() int { return r.Invalid + r.Unattributed }

// Ingest tags every raw record with a domain and validates it. The batch
// domain wins over a record's own domain field; records with neither are
// dropped with an UnattributedRecordWarning. Invalid records are dropped
// and counted. Batch order is kept.
func (t *Transformer) Ingest(batches []domain.SourceBatch) ([]domain.Record, IngestReport) {
	var report IngestReport
	var records []domain.Record

	for _, b := range batches {
		for _, invalid := range b.Rejected {
			report.Total++
			report.Invalid++
			t.logger.Debug("transform: invalid record dropped",
				zap.String("source", b.Source),
				zap.String("field", invalid.Field),
				zap.Error(invalid))
		}
		for _, raw := range b.Records {
			report.Total++

			d := b.Domain
			if d == "" {
				parsed, ok := domain.ParseDomain(raw.Domain)
				if !ok {
					report.Unattributed++
					warn := &domain.UnattributedRecordWarning{ID: string(raw.ID), Source: b.Source}
					t.logger.Warn("transform: unattributed record dropped",
						zap.String("source", b.Source),
						zap.String("record", string(raw.ID)),
						zap.Error(warn))
					continue
				}
				d = parsed
			}

			rec, err := domain.NewRecord(raw, d)
			if err != nil {
				report.Invalid++
				var invalid *domain.InvalidRecordError
				field := ""
				if errors.As(err, &invalid) {
					field = invalid.Field
				}
				t.logger.Debug("transform: invalid record dropped",
					zap.String("source", b.Source),
					zap.String("field", field),
					zap.Error(err))
				continue
			}
			records = append(records, rec)
		}
	}

	if t.filter != nil {
		kept := filter.Apply(t.filter, records)
		report.Filtered = len(records) - len(kept)
		records = kept
	}
	report.Accepted = len(records)

	if report.Dropped() > 0 {
		t.logger.Warn("transform: records dropped during ingest",
			zap.Int("invalid", report.Invalid),
			zap.Int("unattributed", report.Unattributed),
			zap.Int("accepted", report.Accepted))
	}
	return records, report
}

// Transform aggregates records into a complete document. An empty input
// yields a copy of the defaults, or EmptyDatasetError when none are set.
func (t *Transformer) Transform(records []domain.Record) (*domain.AnalyticsDocument, error) {
	if len(records) == 0 {
		if t.defaults != nil {
			t.logger.Info("transform: no records, using default dataset")
			return normalize(t.defaults.Clone()), nil
		}
		return nil, &domain.EmptyDatasetError{}
	}

	internal := aggregate.ByDomain(records, domain.DomainInternal)
	external := aggregate.ByDomain(records, domain.DomainExternal)
	process := aggregate.ByDomain(records, domain.DomainProcess)

	lots := aggregate.LotSummaries(records)
	overall := aggregate.PassRate(records)

	doc := &domain.AnalyticsDocument{
		Overview: domain.Overview{
			TotalRecords:      overall.Total,
			TotalLots:         len(lots),
			OverallRFTRate:    overall.Rate,
			AnalysisStatus:    domain.AnalysisComplete,
			RFTPerformance:    aggregate.RFTPerformance(overall),
			IssueDistribution: aggregate.IssueDistribution(records),
			LotQuality:        aggregate.LotQuality(lots),
			ProcessTimeline:   aggregate.ProcessTimeline(records, lots),
		},
		InternalRFT: domain.InternalRFT{
			DepartmentPerformance: aggregate.DepartmentPerformance(internal),
			FormErrors:            aggregate.FormErrors(internal),
			ErrorTypePareto:       aggregate.ErrorTypePareto(internal),
		},
		ExternalRFT: domain.ExternalRFT{
			IssueCategories:  aggregate.IssueCategories(external),
			CustomerComments: aggregate.CustomerComments(external),
			CorrelationData:  aggregate.Correlation(records),
		},
		ProcessMetrics: domain.ProcessMetrics{
			ReviewTimes:        aggregate.ReviewTimes(process),
			CycleTimeBreakdown: aggregate.CycleTimeBreakdown(process),
			WaitingTimes:       aggregate.WaitingTimes(process),
		},
		LotData: lots,
	}

	if t.defaults != nil {
		t.fillDefaults(doc, len(internal), len(external), len(process))
	}
	return normalize(doc), nil
}

// TransformBatches runs Ingest and Transform and records the dropped counts
// in the overview
func (t *Transformer) TransformBatches(batches []domain.SourceBatch) (*domain.AnalyticsDocument, IngestReport, error) {
	records, report := t.Ingest(batches)
	doc, err := t.Transform(records)
	if err != nil {
		var empty *domain.EmptyDatasetError
		if errors.As(err, &empty) {
			empty.Dropped = report.Dropped()
		}
		return nil, report, err
	}
	doc.Overview.DroppedRecords = report.Invalid
	doc.Overview.UnattributedRecords = report.Unattributed
	return doc, report, nil
}

// fillDefaults substitutes the default section of every domain that
// contributed no records and marks the document partial
func (t *Transformer) fillDefaults(doc *domain.AnalyticsDocument, internal, external, process int) {
	defaults := t.defaults.Clone()
	var filled []string
	if internal == 0 {
		doc.InternalRFT = defaults.InternalRFT
		filled = append(filled, "internalRFT")
	}
	if external == 0 {
		doc.ExternalRFT = defaults.ExternalRFT
		filled = append(filled, "externalRFT")
	}
	if process == 0 {
		doc.ProcessMetrics = defaults.ProcessMetrics
		filled = append(filled, "processMetrics")
	}
	if len(filled) == 0 {
		return
	}
	t.logger.Info("transform: domains without records use default sections", zap.Strings("sections", filled))
	doc.Overview.AnalysisStatus = domain.AnalysisPartial
	doc.Overview.DefaultSections = filled
}

// normalize replaces nil collections with empty ones so documents encode
// arrays and objects instead of null
func normalize(doc *domain.AnalyticsDocument) *domain.AnalyticsDocument {
	o := &doc.Overview
	o.RFTPerformance = nonNil(o.RFTPerformance)
	o.IssueDistribution = nonNil(o.IssueDistribution)
	o.ProcessTimeline = nonNil(o.ProcessTimeline)

	in := &doc.InternalRFT
	in.DepartmentPerformance = nonNil(in.DepartmentPerformance)
	in.FormErrors = nonNil(in.FormErrors)
	in.ErrorTypePareto = nonNil(in.ErrorTypePareto)

	ex := &doc.ExternalRFT
	ex.IssueCategories = nonNil(ex.IssueCategories)
	ex.CustomerComments = nonNil(ex.CustomerComments)
	ex.CorrelationData = nonNil(ex.CorrelationData)

	pm := &doc.ProcessMetrics
	if pm.ReviewTimes == nil {
		pm.ReviewTimes = map[string][]float64{}
	}
	pm.CycleTimeBreakdown = nonNil(pm.CycleTimeBreakdown)
	pm.WaitingTimes = nonNil(pm.WaitingTimes)

	if doc.LotData == nil {
		doc.LotData = map[string]domain.LotSummary{}
	}
	return doc
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
