package embedfiles

import _ "embed"

// FallbackJSON is the versioned dataset served when every source fails.
//
//go:embed data/fallback.json
var FallbackJSON []byte

//go:embed data/sample-config.yaml
var SampleConfigYAML []byte
