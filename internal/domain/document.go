package domain

import (
	"maps"
	"slices"
)

// Analysis status labels carried in Overview.AnalysisStatus
const (
	AnalysisComplete = "Complete"
	AnalysisPartial  = "Partial (Default Sections)"
	AnalysisDegraded = "Fallback Data (Sources Unavailable)"
)

// AnalyticsDocument is the aggregated dataset consumed by the dashboard views
type AnalyticsDocument struct {
	Version        int                   `json:"version,omitempty"`
	Overview       Overview              `json:"overview"`
	InternalRFT    InternalRFT           `json:"internalRFT"`
	ExternalRFT    ExternalRFT           `json:"externalRFT"`
	ProcessMetrics ProcessMetrics        `json:"processMetrics"`
	LotData        map[string]LotSummary `json:"lotData"`
}

// Overview holds the headline figures
type Overview struct {
	TotalRecords        int             `json:"totalRecords"`
	TotalLots           int             `json:"totalLots"`
	OverallRFTRate      float64         `json:"overallRFTRate"`
	AnalysisStatus      string          `json:"analysisStatus"`
	DroppedRecords      int             `json:"droppedRecords,omitempty"`
	UnattributedRecords int             `json:"unattributedRecords,omitempty"`
	DefaultSections     []string        `json:"defaultSections,omitempty"`
	RFTPerformance      []NamedShare    `json:"rftPerformance"`
	IssueDistribution   []NamedCount    `json:"issueDistribution"`
	LotQuality          LotQuality      `json:"lotQuality"`
	ProcessTimeline     []TimelinePoint `json:"processTimeline"`
}

// NamedShare is a count with its share of the total
type NamedShare struct {
	Name       string  `json:"name"`
	Value      int     `json:"value"`
	Percentage float64 `json:"percentage"`
}

// NamedCount is a labelled count
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// LotQuality summarises lots with and without errors
type LotQuality struct {
	Pass       int     `json:"pass"`
	Fail       int     `json:"fail"`
	Percentage float64 `json:"percentage"`
	Change     float64 `json:"change"`
}

// TimelinePoint is the monthly record and lot RFT
type TimelinePoint struct {
	Month     string  `json:"month"`
	RecordRFT float64 `json:"recordRFT"`
	LotRFT    float64 `json:"lotRFT"`
}

// InternalRFT is the internal review section
type InternalRFT struct {
	DepartmentPerformance []DepartmentStat `json:"departmentPerformance"`
	FormErrors            []FormError      `json:"formErrors"`
	ErrorTypePareto       []ParetoEntry    `json:"errorTypePareto"`
}

// DepartmentStat is the pass/fail tally of one department
type DepartmentStat struct {
	Department string  `json:"department"`
	Pass       int     `json:"pass"`
	Fail       int     `json:"fail"`
	RFTRate    float64 `json:"rftRate"`
}

// Trend values for FormError.Trend
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// FormError is the failure count raised against one form
type FormError struct {
	Name       string  `json:"name"`
	Errors     int     `json:"errors"`
	Percentage float64 `json:"percentage"`
	Trend      string  `json:"trend"`
}

// ParetoEntry is one bar of a Pareto chart
type ParetoEntry struct {
	Type       string `json:"type"`
	Count      int    `json:"count"`
	Cumulative int    `json:"cumulative"`
}

// ExternalRFT is the customer complaint section
type ExternalRFT struct {
	IssueCategories  []NamedCount       `json:"issueCategories"`
	CustomerComments []CommentSentiment `json:"customerComments"`
	CorrelationData  []CorrelationPoint `json:"correlationData"`
}

// CommentSentiment is the sentiment of one complaint category
type CommentSentiment struct {
	Category  string   `json:"category"`
	Count     int      `json:"count"`
	Scored    int      `json:"scored,omitempty"` // members carrying a score
	Sentiment *float64 `json:"sentiment"`        // nil when no member is scored
	Label     string   `json:"label,omitempty"`
}

// CorrelationPoint pairs internal and external RFT for one month
type CorrelationPoint struct {
	Month       string  `json:"month"`
	InternalRFT float64 `json:"internalRFT"`
	ExternalRFT float64 `json:"externalRFT"`
}

// ProcessMetrics is the commercial process section
type ProcessMetrics struct {
	ReviewTimes        map[string][]float64 `json:"reviewTimes"`
	CycleTimeBreakdown []StageTime          `json:"cycleTimeBreakdown"`
	WaitingTimes       []WaitingTime        `json:"waitingTimes"`
}

// StageTime is the average duration of a process stage in hours
type StageTime struct {
	Step string  `json:"step"`
	Time float64 `json:"time"`
}

// WaitingTime is the average idle time between two stages in hours
type WaitingTime struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Time float64 `json:"time"`
}

// LotSummary is the per-lot rollup
type LotSummary struct {
	RFTRate     float64 `json:"rftRate"`
	CycleTime   float64 `json:"cycleTime"`
	HasErrors   bool    `json:"hasErrors"`
	ReleaseDate string  `json:"releaseDate"`
	Department  string  `json:"department,omitempty"`
}

// Degraded reports whether the document is a fallback dataset
func (d *AnalyticsDocument) Degraded() bool {
	return d != nil && d.Overview.AnalysisStatus == AnalysisDegraded
}

// Clone returns a deep copy of the document
func (d *AnalyticsDocument) Clone() *AnalyticsDocument {
	if d == nil {
		return nil
	}
	c := *d
	c.Overview.DefaultSections = slices.Clone(d.Overview.DefaultSections)
	c.Overview.RFTPerformance = slices.Clone(d.Overview.RFTPerformance)
	c.Overview.IssueDistribution = slices.Clone(d.Overview.IssueDistribution)
	c.Overview.ProcessTimeline = slices.Clone(d.Overview.ProcessTimeline)
	c.InternalRFT.DepartmentPerformance = slices.Clone(d.InternalRFT.DepartmentPerformance)
	c.InternalRFT.FormErrors = slices.Clone(d.InternalRFT.FormErrors)
	c.InternalRFT.ErrorTypePareto = slices.Clone(d.InternalRFT.ErrorTypePareto)
	c.ExternalRFT.IssueCategories = slices.Clone(d.ExternalRFT.IssueCategories)
	c.ExternalRFT.CustomerComments = slices.Clone(d.ExternalRFT.CustomerComments)
	for i, cs := range c.ExternalRFT.CustomerComments {
		if cs.Sentiment != nil {
			v := *cs.Sentiment
			c.ExternalRFT.CustomerComments[i].Sentiment = &v
		}
	}
	c.ExternalRFT.CorrelationData = slices.Clone(d.ExternalRFT.CorrelationData)
	c.ProcessMetrics.CycleTimeBreakdown = slices.Clone(d.ProcessMetrics.CycleTimeBreakdown)
	c.ProcessMetrics.WaitingTimes = slices.Clone(d.ProcessMetrics.WaitingTimes)
	if d.ProcessMetrics.ReviewTimes != nil {
		c.ProcessMetrics.ReviewTimes = make(map[string][]float64, len(d.ProcessMetrics.ReviewTimes))
		for k, v := range d.ProcessMetrics.ReviewTimes {
			c.ProcessMetrics.ReviewTimes[k] = slices.Clone(v)
		}
	}
	c.LotData = maps.Clone(d.LotData)
	return &c
}
