package transform

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/filter"
)

func fptr(f float64) *float64 { return &f }

func raw(id, date, lot, status string) domain.RawRecord {
	return domain.RawRecord{ID: domain.RecordID(id), Date: date, Lot: lot, Status: status}
}

func fixtureBatches() []domain.SourceBatch {
	in1 := raw("i1", "2025-01-05", "B1001", "Fail")
	in1.Department, in1.ErrorType, in1.Form = "Production", "Missing Signature", "Batch Release"
	in2 := raw("i2", "2025-01-06", "B1001", "Pass")
	in2.Department = "Production"
	in3 := raw("i3", "2025-02-02", "B1002", "Pass")
	in3.Department = "Quality"

	ex1 := raw("e1", "2025-01-20", "B1001", "Closed")
	ex1.IssueType, ex1.Sentiment = "Quality", fptr(-0.5)
	ex2 := raw("e2", "2025-02-11", "B1002", "Open")
	ex2.IssueType, ex2.Sentiment = "Delivery", fptr(0.3)

	p1 := raw("p1", "2025-01-07", "B1001", "Pass")
	p1.Stage, p1.DurationHours = "Assembly", fptr(3.5)
	p2 := raw("p2", "2025-01-08", "B1001", "Pass")
	p2.Stage, p2.DurationHours = "PCI Review", fptr(3)

	return []domain.SourceBatch{
		{Source: "internal.json", Domain: domain.DomainInternal, Records: []domain.RawRecord{in1, in2, in3}},
		{Source: "external.json", Domain: domain.DomainExternal, Records: []domain.RawRecord{ex1, ex2}},
		{Source: "process.json", Domain: domain.DomainProcess, Records: []domain.RawRecord{p1, p2}},
	}
}

func TestIngest(t *testing.T) {
	t.Run("tags records with the batch domain", func(t *testing.T) {
		tr := New(WithLogger(zaptest.NewLogger(t)))
		records, report := tr.Ingest(fixtureBatches())

		require.Len(t, records, 7)
		assert.Equal(t, IngestReport{Total: 7, Accepted: 7}, report)
		assert.Equal(t, domain.DomainInternal, records[0].Domain)
		assert.Equal(t, domain.DomainExternal, records[3].Domain)
		assert.Equal(t, domain.DomainProcess, records[6].Domain)
	})

	t.Run("batch domain wins over record field", func(t *testing.T) {
		r := raw("x", "2025-01-01", "L", "Pass")
		r.Domain = "External"
		records, _ := New().Ingest([]domain.SourceBatch{{Source: "internal.json", Domain: domain.DomainInternal, Records: []domain.RawRecord{r}}})
		require.Len(t, records, 1)
		assert.Equal(t, domain.DomainInternal, records[0].Domain)
	})

	t.Run("untagged batch uses record domain and drops unattributed", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		tr := New(WithLogger(zap.New(core)))

		tagged := raw("a", "2025-01-01", "L", "Open")
		tagged.Domain = "external"
		untagged := raw("b", "2025-01-01", "L", "Pass")

		records, report := tr.Ingest([]domain.SourceBatch{{Source: "complete-data.json", Records: []domain.RawRecord{tagged, untagged}}})
		require.Len(t, records, 1)
		assert.Equal(t, domain.DomainExternal, records[0].Domain)
		assert.Equal(t, 1, report.Unattributed)

		unattributed := logs.FilterMessage("transform: unattributed record dropped").All()
		require.Len(t, unattributed, 1)
		assert.Equal(t, "b", unattributed[0].ContextMap()["record"])
		assert.Equal(t, "complete-data.json", unattributed[0].ContextMap()["source"])
	})

	t.Run("invalid records are counted not fatal", func(t *testing.T) {
		bad := raw("bad", "someday", "L", "Pass")
		wrongStatus := raw("ws", "2025-01-01", "L", "Open")
		good := raw("ok", "2025-01-01", "L", "Pass")

		records, report := New().Ingest([]domain.SourceBatch{{Source: "internal.json", Domain: domain.DomainInternal, Records: []domain.RawRecord{bad, wrongStatus, good}}})
		require.Len(t, records, 1)
		assert.Equal(t, 2, report.Invalid)
		assert.Equal(t, 2, report.Dropped())
	})

	t.Run("undecodable elements count as invalid", func(t *testing.T) {
		b := domain.SourceBatch{
			Source:   "internal.json",
			Domain:   domain.DomainInternal,
			Records:  []domain.RawRecord{raw("ok", "2025-01-01", "L", "Pass")},
			Rejected: []*domain.InvalidRecordError{{ID: "2", Field: "sentiment", Reason: "decode"}},
		}
		records, report := New().Ingest([]domain.SourceBatch{b})
		require.Len(t, records, 1)
		assert.Equal(t, IngestReport{Total: 2, Accepted: 1, Invalid: 1}, report)
	})

	t.Run("filter removes records after validation", func(t *testing.T) {
		tr := New(WithFilter(filter.NewDomainFilter(domain.DomainInternal)))
		records, report := tr.Ingest(fixtureBatches())
		assert.Len(t, records, 3)
		assert.Equal(t, 4, report.Filtered)
		assert.Equal(t, 3, report.Accepted)
	})
}

func TestTransform(t *testing.T) {
	t.Run("builds every section", func(t *testing.T) {
		tr := New()
		doc, report, err := tr.TransformBatches(fixtureBatches())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Dropped())

		assert.Equal(t, 7, doc.Overview.TotalRecords)
		assert.Equal(t, 2, doc.Overview.TotalLots)
		assert.InDelta(t, 5.0/7.0, doc.Overview.OverallRFTRate, 1e-9)
		assert.Equal(t, domain.AnalysisComplete, doc.Overview.AnalysisStatus)

		require.Len(t, doc.InternalRFT.DepartmentPerformance, 2)
		assert.Equal(t, domain.DepartmentStat{Department: "Production", Pass: 1, Fail: 1, RFTRate: 0.5}, doc.InternalRFT.DepartmentPerformance[0])
		assert.Equal(t, []domain.ParetoEntry{{Type: "Missing Signature", Count: 1, Cumulative: 1}}, doc.InternalRFT.ErrorTypePareto)
		require.Len(t, doc.InternalRFT.FormErrors, 1)

		require.Len(t, doc.ExternalRFT.CustomerComments, 2)
		assert.Equal(t, "Very Negative", doc.ExternalRFT.CustomerComments[0].Label)
		assert.Equal(t, []domain.CorrelationPoint{
			{Month: "2025-01", InternalRFT: 0.5, ExternalRFT: 1},
			{Month: "2025-02", InternalRFT: 1, ExternalRFT: 0},
		}, doc.ExternalRFT.CorrelationData)

		assert.Equal(t, []domain.StageTime{{Step: "Assembly", Time: 3.5}, {Step: "PCI Review", Time: 3}}, doc.ProcessMetrics.CycleTimeBreakdown)
		assert.Contains(t, doc.ProcessMetrics.ReviewTimes, "PCI Review")

		b1 := doc.LotData["B1001"]
		assert.True(t, b1.HasErrors)
		assert.InDelta(t, 6.5, b1.CycleTime, 1e-9)
		assert.Equal(t, "2025-01-20", b1.ReleaseDate)
	})

	t.Run("production department scenario", func(t *testing.T) {
		fail := raw("1", "2025-01-01", "L", "Fail")
		fail.Department = "Production"
		pass := raw("2", "2025-01-01", "L", "Pass")
		pass.Department = "Production"

		doc, _, err := New().TransformBatches([]domain.SourceBatch{{Domain: domain.DomainInternal, Records: []domain.RawRecord{fail, pass}}})
		require.NoError(t, err)
		assert.Equal(t, []domain.DepartmentStat{{Department: "Production", Pass: 1, Fail: 1, RFTRate: 0.5}}, doc.InternalRFT.DepartmentPerformance)
	})

	t.Run("dropped counts land in overview", func(t *testing.T) {
		batches := fixtureBatches()
		batches[0].Records = append(batches[0].Records, raw("bad", "", "B1", "Pass"))
		batches = append(batches, domain.SourceBatch{Source: "mixed.json", Records: []domain.RawRecord{raw("u", "2025-01-01", "B1", "Pass")}})

		doc, _, err := New().TransformBatches(batches)
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Overview.DroppedRecords)
		assert.Equal(t, 1, doc.Overview.UnattributedRecords)
	})

	t.Run("empty input without defaults fails", func(t *testing.T) {
		_, err := New().Transform(nil)
		var empty *domain.EmptyDatasetError
		require.True(t, errors.As(err, &empty))
	})

	t.Run("empty dataset error carries dropped count", func(t *testing.T) {
		_, _, err := New().TransformBatches([]domain.SourceBatch{{Domain: domain.DomainInternal, Records: []domain.RawRecord{raw("x", "bad", "L", "Pass")}}})
		var empty *domain.EmptyDatasetError
		require.True(t, errors.As(err, &empty))
		assert.Equal(t, 1, empty.Dropped)
	})

	t.Run("empty input with defaults returns a copy", func(t *testing.T) {
		defaults := &domain.AnalyticsDocument{Overview: domain.Overview{TotalRecords: 10, AnalysisStatus: "Historical"}}
		tr := New(WithDefaults(defaults))

		doc, err := tr.Transform(nil)
		require.NoError(t, err)
		assert.Equal(t, 10, doc.Overview.TotalRecords)
		doc.Overview.TotalRecords = 1
		assert.Equal(t, 10, defaults.Overview.TotalRecords)
	})

	t.Run("domains without records use default sections", func(t *testing.T) {
		defaults := &domain.AnalyticsDocument{
			ExternalRFT: domain.ExternalRFT{IssueCategories: []domain.NamedCount{{Name: "Historical", Value: 5}}},
		}
		batches := fixtureBatches()
		batches[1].Records = nil

		doc, _, err := New(WithDefaults(defaults)).TransformBatches(batches)
		require.NoError(t, err)
		assert.Equal(t, []domain.NamedCount{{Name: "Historical", Value: 5}}, doc.ExternalRFT.IssueCategories)
		assert.NotEmpty(t, doc.InternalRFT.DepartmentPerformance)
		assert.Equal(t, domain.AnalysisPartial, doc.Overview.AnalysisStatus)
		assert.Equal(t, []string{"externalRFT"}, doc.Overview.DefaultSections)
	})

	t.Run("defaults unused when every domain has records", func(t *testing.T) {
		doc, _, err := New(WithDefaults(&domain.AnalyticsDocument{})).TransformBatches(fixtureBatches())
		require.NoError(t, err)
		assert.Equal(t, domain.AnalysisComplete, doc.Overview.AnalysisStatus)
		assert.Empty(t, doc.Overview.DefaultSections)
	})

	t.Run("collections encode as empty arrays", func(t *testing.T) {
		doc, err := New().Transform([]domain.Record{{Lot: "L", Domain: domain.DomainInternal, Status: domain.StatusPass}})
		require.NoError(t, err)

		b, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.NotContains(t, string(b), "null")
	})
}
