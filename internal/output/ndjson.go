package output

import (
	"encoding/json"
	"io"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// NDJSONWriter writes pipeline output as NDJSON
type NDJSONWriter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{
		w:       w,
		encoder: enc,
	}
}

// StateOutput is one published LoadState
type StateOutput struct {
	Type          string `json:"type"` // Always "state"
	SchemaVersion int    `json:"schemaVersion"`
	domain.LoadState
}

// DocumentOutput is a standalone analytics document
type DocumentOutput struct {
	Type          string `json:"type"` // Always "document"
	SchemaVersion int    `json:"schemaVersion"`
	Source        string `json:"source,omitempty"`
	*domain.AnalyticsDocument
}

// IngestOutput reports what happened to raw records during ingest
type IngestOutput struct {
	Type          string `json:"type"` // Always "ingest"
	SchemaVersion int    `json:"schemaVersion"`
	transform.IngestReport
}

// SourceOutput is one entry of the source priority list
type SourceOutput struct {
	Type          string `json:"type"` // Always "source"
	SchemaVersion int    `json:"schemaVersion"`
	Priority      int    `json:"priority"`
	source.Descriptor
}

// ErrorOutput represents an error message
type ErrorOutput struct {
	Type          string `json:"type"` // Always "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// WarningOutput represents a warning message
type WarningOutput struct {
	Type          string `json:"type"` // Always "warning"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
}

// InfoOutput represents an informational message
type InfoOutput struct {
	Type          string `json:"type"` // Always "info"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
}

// VersionOutput describes the running binary
type VersionOutput struct {
	Type          string `json:"type"` // Always "version"
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
}

// WriteState outputs a LoadState
func (w *NDJSONWriter) WriteState(s domain.LoadState) error {
	return w.encoder.Encode(&StateOutput{
		Type:          "state",
		SchemaVersion: SchemaVersion,
		LoadState:     s,
	})
}

// WriteDocument outputs an analytics document
func (w *NDJSONWriter) WriteDocument(doc *domain.AnalyticsDocument, src string) error {
	return w.encoder.Encode(&DocumentOutput{
		Type:              "document",
		SchemaVersion:     SchemaVersion,
		Source:            src,
		AnalyticsDocument: doc,
	})
}

// WriteIngest outputs an ingest report
func (w *NDJSONWriter) WriteIngest(r transform.IngestReport) error {
	return w.encoder.Encode(&IngestOutput{
		Type:          "ingest",
		SchemaVersion: SchemaVersion,
		IngestReport:  r,
	})
}

// WriteSources outputs one line per descriptor in priority order
func (w *NDJSONWriter) WriteSources(descs []source.Descriptor) error {
	for i, d := range descs {
		if err := w.encoder.Encode(&SourceOutput{
			Type:          "source",
			SchemaVersion: SchemaVersion,
			Priority:      i + 1,
			Descriptor:    d,
		}); err != nil {
			return err
		}
	}
	return nil
}

// WriteError outputs an error
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.encoder.Encode(out)
}

// WriteWarning outputs a warning message
func (w *NDJSONWriter) WriteWarning(message string) error {
	return w.encoder.Encode(&WarningOutput{
		Type:          "warning",
		SchemaVersion: SchemaVersion,
		Message:       message,
	})
}

// WriteInfo outputs an informational message
func (w *NDJSONWriter) WriteInfo(message string) error {
	return w.encoder.Encode(&InfoOutput{
		Type:          "info",
		SchemaVersion: SchemaVersion,
		Message:       message,
	})
}

// WriteHealth outputs a span end and/or a span start. Either may be nil.
func (w *NDJSONWriter) WriteHealth(end *domain.HealthSpanEnd, start *domain.HealthSpanStart) error {
	if end != nil {
		if err := w.encoder.Encode(end); err != nil {
			return err
		}
	}
	if start != nil {
		return w.encoder.Encode(start)
	}
	return nil
}

// WriteVersion outputs build metadata
func (w *NDJSONWriter) WriteVersion(version, commit string) error {
	return w.encoder.Encode(&VersionOutput{
		Type:          "version",
		SchemaVersion: SchemaVersion,
		Version:       version,
		Commit:        commit,
	})
}

// WriteRaw outputs raw JSON data
func (w *NDJSONWriter) WriteRaw(v any) error {
	return w.encoder.Encode(v)
}
