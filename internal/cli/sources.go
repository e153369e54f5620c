package cli

// SourcesCmd lists the resolution priority list
type SourcesCmd struct{}

// Run executes the sources command
func (c *SourcesCmd) Run(globals *Globals) error {
	descs, err := descriptorsFromConfig(globals.Config)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidConfig, err.Error(), hintForConfig(err))
	}
	return globals.Writer().WriteSources(descs)
}
