package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/qcdash/internal/cli"
	"github.com/vburojevic/qcdash/internal/config"
)

func main() {
	// Load configuration from files/environment (plus provenance metadata).
	cfg, meta, err := config.LoadWithMeta()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
		meta = nil
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format":    cfg.Format,
		"config_log_level": cfg.LogLevel,
	}

	ctx := kong.Parse(&c,
		kong.Name("qcdash"),
		kong.Description("qcdash: load, aggregate and watch quality-control analytics\n\nSources are tried in priority order; when all fail the fallback dataset is served."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	// Create globals with config fallbacks
	globals := cli.NewGlobalsWithConfig(&c, cfg)
	// Record which flags were explicitly provided so an explicit --config
	// does not override them.
	flagsSet := map[string]bool{}
	for _, p := range ctx.Path {
		if p.Flag != nil {
			flagsSet[p.Flag.Name] = true
		}
	}
	globals.FlagsSet = flagsSet

	if c.ConfigPath != "" {
		explicit, explicitMeta, err := config.LoadPath(c.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load config %s: %v\n", c.ConfigPath, err)
			os.Exit(2)
		}
		globals.ApplyConfig(explicit, explicitMeta)
	} else if meta != nil {
		globals.ConfigFile = meta.Path
		globals.ConfigEnv = meta.Env
	}

	err = ctx.Run(globals)
	_ = globals.Logger().Sync()
	if err != nil {
		os.Exit(1)
	}
}
