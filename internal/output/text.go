package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// TextWriter writes pipeline output as a styled report
type TextWriter struct {
	w io.Writer
}

// NewTextWriter creates a new text writer
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// WriteState outputs a LoadState and, when present, its document
func (w *TextWriter) WriteState(s domain.LoadState) error {
	if s.IsLoading {
		line := Styles.Info.Render("Loading") + " " + Styles.Muted.Render("cycle "+s.CycleID) + "\n"
		_, err := io.WriteString(w.w, line)
		return err
	}

	failed := s.Data == nil
	var b strings.Builder
	b.WriteString("\n" + Styles.Header.Render("Load cycle") + "\n")
	b.WriteString(Styles.Label.Render("Status: ") + StatusText(s.Degraded, failed))
	if s.Source != "" {
		b.WriteString(Styles.Label.Render("  Source: ") + Styles.Source.Render(s.Source))
	}
	if s.LastUpdated != nil {
		b.WriteString(Styles.Label.Render("  Updated: ") + Styles.Timestamp.Render(s.LastUpdated.Format(time.RFC3339)))
	}
	b.WriteString("\n")
	if msg := s.ErrorMessage(); msg != "" {
		b.WriteString(StatusStyle(s.Degraded, failed).Render(msg) + "\n")
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}

	if len(s.FileStatus) > 0 {
		rows := make([][]string, 0, len(s.FileStatus))
		for _, fs := range s.FileStatus {
			result := "ok"
			if !fs.Succeeded {
				result = "failed"
			}
			rows = append(rows, []string{fs.Name, result, strconv.Itoa(fs.Attempts), fs.Error})
		}
		if err := w.table([]string{"Source", "Result", "Attempts", "Error"}, rows); err != nil {
			return err
		}
	}

	if s.Data != nil {
		return w.WriteDocument(s.Data)
	}
	return nil
}

// WriteDocument outputs the headline figures and the main breakdowns
func (w *TextWriter) WriteDocument(doc *domain.AnalyticsDocument) error {
	ov := doc.Overview

	var b strings.Builder
	b.WriteString("\n" + Styles.Header.Render("Overview") + "\n")
	b.WriteString(Styles.Label.Render("Records: ") + Styles.Value.Render(strconv.Itoa(ov.TotalRecords)) + " | ")
	b.WriteString(Styles.Label.Render("Lots: ") + Styles.Value.Render(strconv.Itoa(ov.TotalLots)) + " | ")
	b.WriteString(Styles.Label.Render("RFT: ") + RateStyle(ov.OverallRFTRate).Render(percent(ov.OverallRFTRate)) + "\n")
	b.WriteString(Styles.Label.Render("Status: ") + ov.AnalysisStatus)
	if ov.DroppedRecords > 0 || ov.UnattributedRecords > 0 {
		b.WriteString(" | " + Styles.Warning.Render(fmt.Sprintf("dropped %d invalid, %d unattributed", ov.DroppedRecords, ov.UnattributedRecords)))
	}
	b.WriteString("\n\n")
	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}

	if len(doc.InternalRFT.DepartmentPerformance) > 0 {
		rows := make([][]string, 0, len(doc.InternalRFT.DepartmentPerformance))
		for _, d := range doc.InternalRFT.DepartmentPerformance {
			rows = append(rows, []string{d.Department, strconv.Itoa(d.Pass), strconv.Itoa(d.Fail), percent(d.RFTRate)})
		}
		if err := w.section("Department performance", []string{"Department", "Pass", "Fail", "RFT"}, rows); err != nil {
			return err
		}
	}

	if len(doc.InternalRFT.ErrorTypePareto) > 0 {
		rows := make([][]string, 0, len(doc.InternalRFT.ErrorTypePareto))
		for _, p := range doc.InternalRFT.ErrorTypePareto {
			rows = append(rows, []string{p.Type, strconv.Itoa(p.Count), strconv.Itoa(p.Cumulative)})
		}
		if err := w.section("Error types", []string{"Type", "Count", "Cumulative"}, rows); err != nil {
			return err
		}
	}

	if len(doc.ExternalRFT.CustomerComments) > 0 {
		rows := make([][]string, 0, len(doc.ExternalRFT.CustomerComments))
		for _, c := range doc.ExternalRFT.CustomerComments {
			score := "-"
			if c.Sentiment != nil {
				score = strconv.FormatFloat(*c.Sentiment, 'f', 2, 64)
			}
			rows = append(rows, []string{c.Category, strconv.Itoa(c.Count), score, c.Label})
		}
		if err := w.section("Customer complaints", []string{"Category", "Count", "Sentiment", "Label"}, rows); err != nil {
			return err
		}
	}

	if len(doc.ProcessMetrics.CycleTimeBreakdown) > 0 {
		rows := make([][]string, 0, len(doc.ProcessMetrics.CycleTimeBreakdown))
		for _, st := range doc.ProcessMetrics.CycleTimeBreakdown {
			rows = append(rows, []string{st.Step, hours(st.Time)})
		}
		if err := w.section("Cycle time", []string{"Stage", "Average"}, rows); err != nil {
			return err
		}
	}

	if len(doc.LotData) > 0 {
		lots := make([]string, 0, len(doc.LotData))
		for lot := range doc.LotData {
			lots = append(lots, lot)
		}
		sort.Strings(lots)
		rows := make([][]string, 0, len(lots))
		for _, lot := range lots {
			s := doc.LotData[lot]
			errs := ""
			if s.HasErrors {
				errs = "yes"
			}
			rows = append(rows, []string{lot, percent(s.RFTRate), hours(s.CycleTime), errs, s.ReleaseDate})
		}
		if err := w.section("Lots", []string{"Lot", "RFT", "Cycle time", "Errors", "Released"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteSources outputs the source priority list
func (w *TextWriter) WriteSources(descs []source.Descriptor) error {
	rows := make([][]string, 0, len(descs))
	for i, d := range descs {
		kind := "records"
		if d.Aggregated {
			kind = "aggregated"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), d.Name, kind, string(d.Domain), d.URL})
	}
	return w.table([]string{"#", "Name", "Kind", "Domain", "URL"}, rows)
}

// WriteHealth outputs a health transition line. Either event may be nil.
func (w *TextWriter) WriteHealth(end *domain.HealthSpanEnd, start *domain.HealthSpanStart) error {
	var b strings.Builder
	if end != nil {
		b.WriteString(Styles.Muted.Render(fmt.Sprintf("span %d %s ended after %d cycles (%ds, %d failed sources)",
			end.Span, end.Health, end.Summary.Cycles, end.Summary.DurationSeconds, end.Summary.FailedSources)))
		b.WriteString("\n")
	}
	if start != nil {
		status := StatusText(start.Health != domain.HealthOK, start.Health == domain.HealthFailed)
		line := Styles.Label.Render(fmt.Sprintf("Health span %d: ", start.Span)) + status
		if start.Alert != "" {
			line += " " + Styles.Warning.Render("["+start.Alert+"]")
		}
		if start.Source != "" {
			line += Styles.Label.Render("  Source: ") + Styles.Source.Render(start.Source)
		}
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(w.w, b.String())
	return err
}

// WriteIngest outputs an ingest report
func (w *TextWriter) WriteIngest(r transform.IngestReport) error {
	line := Styles.Label.Render("Records: ") + Styles.Value.Render(strconv.Itoa(r.Total)) + " | "
	line += Styles.Label.Render("Accepted: ") + Styles.Value.Render(strconv.Itoa(r.Accepted))
	if r.Dropped() > 0 {
		line += " | " + Styles.Warning.Render(fmt.Sprintf("Invalid: %d  Unattributed: %d", r.Invalid, r.Unattributed))
	}
	if r.Filtered > 0 {
		line += " | " + Styles.Label.Render("Filtered: ") + Styles.Value.Render(strconv.Itoa(r.Filtered))
	}
	_, err := io.WriteString(w.w, line+"\n")
	return err
}

// WriteError outputs a styled error
func (w *TextWriter) WriteError(code, message string, hint ...string) error {
	errorLabel := Styles.Danger.Render("Error")
	codeStr := Styles.Warning.Render("[" + code + "]")
	line := errorLabel + " " + codeStr + ": " + message + "\n"
	if len(hint) > 0 && hint[0] != "" {
		line += Styles.Muted.Render("hint: "+hint[0]) + "\n"
	}
	_, err := io.WriteString(w.w, line)
	return err
}

// WriteWarning outputs a styled warning
func (w *TextWriter) WriteWarning(message string) error {
	_, err := io.WriteString(w.w, Styles.Warning.Render("Warning")+": "+message+"\n")
	return err
}

// WriteInfo outputs an informational line
func (w *TextWriter) WriteInfo(message string) error {
	_, err := io.WriteString(w.w, Styles.Info.Render(message)+"\n")
	return err
}

func (w *TextWriter) section(title string, header []string, rows [][]string) error {
	if _, err := io.WriteString(w.w, Styles.Header.Render(title)+"\n"); err != nil {
		return err
	}
	if err := w.table(header, rows); err != nil {
		return err
	}
	_, err := io.WriteString(w.w, "\n")
	return err
}

func (w *TextWriter) table(header []string, rows [][]string) error {
	t := tablewriter.NewWriter(w.w)
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	t.Header(cols...)
	for _, r := range rows {
		if err := t.Append(r); err != nil {
			return err
		}
	}
	return t.Render()
}

func percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 1, 64) + "%"
}

func hours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64) + "h"
}
