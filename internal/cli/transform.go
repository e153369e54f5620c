package cli

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vburojevic/qcdash/internal/domain"
	"github.com/vburojevic/qcdash/internal/source"
	"github.com/vburojevic/qcdash/internal/transform"
)

// TransformCmd aggregates local raw record files without the resolver
type TransformCmd struct {
	RecordFilterFlags

	Files        []string `arg:"" type:"existingfile" help:"Record files: a JSON array of records or an object with a records array"`
	As           string   `name:"as" help:"Domain for every file (Internal, External, Process). Default: inferred from each file name, else each record's own domain"`
	FillDefaults bool     `help:"Use fallback sections for domains that have no records"`
	Report       bool     `help:"Also print the ingest report"`
}

// Run executes the transform command
func (c *TransformCmd) Run(globals *Globals) error {
	var forced domain.Domain
	if c.As != "" {
		d, ok := domain.ParseDomain(c.As)
		if !ok {
			return outputErrorCommon(globals, codeInvalidFlag, "unknown domain: "+c.As, "Domains are Internal, External or Process")
		}
		forced = d
	}

	f, err := c.buildFilters()
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFilter, err.Error())
	}

	batches := make([]domain.SourceBatch, 0, len(c.Files))
	names := make([]string, 0, len(c.Files))
	for _, path := range c.Files {
		body, err := os.ReadFile(path)
		if err != nil {
			return outputErrorCommon(globals, codeReadFailed, err.Error())
		}

		d := source.Descriptor{Name: filepath.Base(path), URL: path, Domain: forced}
		if d.Domain == "" {
			d.Domain = inferDomain(d.Name)
		}
		p, err := source.Decode(d, body)
		if err != nil {
			return outputErrorCommon(globals, codeReadFailed, err.Error(), hintForTransform(err))
		}
		globals.Logger().Debug("decoded file",
			zap.String("file", d.Name),
			zap.String("domain", string(d.Domain)),
			zap.Int("records", len(p.Batches[0].Records)),
		)
		batches = append(batches, p.Batches...)
		names = append(names, d.Name)
	}

	opts := []transform.Option{
		transform.WithLogger(globals.Logger().Named("transform")),
		transform.WithFilter(f),
	}
	if c.FillDefaults {
		defaults, err := loadFallback(globals.Config)
		if err != nil {
			return outputErrorCommon(globals, codeFallback, err.Error())
		}
		opts = append(opts, transform.WithDefaults(defaults))
	}

	doc, report, err := transform.New(opts...).TransformBatches(batches)
	w := globals.Writer()
	if c.Report || err != nil {
		if werr := w.WriteIngest(report); werr != nil {
			return werr
		}
	}
	if err != nil {
		return outputErrorCommon(globals, codeTransform, err.Error(), hintForTransform(err))
	}
	return w.WriteDocument(doc, strings.Join(names, ","))
}

// inferDomain picks the domain named in a file name such as
// internal-2025.json, or "" when none or several match
func inferDomain(name string) domain.Domain {
	lower := strings.ToLower(name)
	var found domain.Domain
	for _, d := range domain.Domains {
		if strings.Contains(lower, strings.ToLower(string(d))) {
			if found != "" {
				return ""
			}
			found = d
		}
	}
	return found
}
