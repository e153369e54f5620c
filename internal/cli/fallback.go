package cli

import "github.com/vburojevic/qcdash/internal/source"

// FallbackCmd prints the fallback dataset
type FallbackCmd struct {
	File string `type:"existingfile" help:"Check this fallback file instead of the configured one"`
}

// Run executes the fallback command
func (c *FallbackCmd) Run(globals *Globals) error {
	cfg := *globals.Config
	if c.File != "" {
		cfg.Fallback.File = c.File
	}

	doc, err := loadFallback(&cfg)
	if err != nil {
		return outputErrorCommon(globals, codeFallback, err.Error(), "The fallback file must be an analytics document with \"version\": 1")
	}

	label := "embedded"
	if cfg.Fallback.File != "" {
		label = cfg.Fallback.File
	}
	return globals.Writer().WriteDocument(doc, source.FallbackSource+":"+label)
}
