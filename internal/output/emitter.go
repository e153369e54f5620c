package output

import (
	"io"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// Writer is implemented by the NDJSON and text writers
type Writer interface {
	WriteState(s domain.LoadState) error
	WriteDocument(doc *domain.AnalyticsDocument, src string) error
	WriteIngest(r transform.IngestReport) error
	WriteSources(descs []source.Descriptor) error
	WriteHealth(end *domain.HealthSpanEnd, start *domain.HealthSpanStart) error
	WriteError(code, message string, hint ...string) error
	WriteWarning(message string) error
	WriteInfo(message string) error
}

// New returns the writer for format, "ndjson" or "text"
func New(format string, w io.Writer) Writer {
	if format == "text" {
		return &textAdapter{NewTextWriter(w)}
	}
	return NewNDJSONWriter(w)
}

// textAdapter drops the source label, which the report already shows
type textAdapter struct {
	*TextWriter
}

func (a *textAdapter) WriteDocument(doc *domain.AnalyticsDocument, _ string) error {
	return a.TextWriter.WriteDocument(doc)
}
