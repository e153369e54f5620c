package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/qcdash/internal/config"
	"github.com/vburojevic/qcdash/internal/output"
	"github.com/vburojevic/qcdash/internal/source"
)

// CLI is the root command structure for qcdash
type CLI struct {
	// Global flags
	Format     string `short:"f" default:"${config_format}" enum:"ndjson,text" help:"Output format"`
	LogLevel   string `short:"l" name:"log-level" default:"${config_log_level}" enum:"debug,info,warn,error" help:"Diagnostic log level (written to stderr)"`
	Quiet      bool   `short:"q" help:"Only log errors"`
	Verbose    bool   `short:"v" help:"Log every fetch attempt and cycle transition"`
	ConfigPath string `name:"config" short:"c" type:"path" help:"Config file to load instead of the search path"`

	// Commands
	Load      LoadCmd      `cmd:"" default:"withargs" help:"Run one load cycle and print the resulting state"`
	Watch     WatchCmd     `cmd:"" help:"Refresh on an interval and print every completed cycle"`
	Transform TransformCmd `cmd:"" help:"Aggregate local raw record files into an analytics document"`
	Sources   SourcesCmd   `cmd:"" help:"List sources in resolution order"`
	Fallback  FallbackCmd  `cmd:"" help:"Print the fallback dataset"`
	Config    ConfigCmd    `cmd:"" help:"Show or manage configuration"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// Globals holds shared state for all commands
type Globals struct {
	Format     string
	LogLevel   string
	Quiet      bool
	Verbose    bool
	Stdout     io.Writer
	Stderr     io.Writer
	Config     *config.Config
	ConfigFile string
	ConfigEnv  []string
	FlagsSet   map[string]bool

	logger *zap.Logger

	// test hooks
	clock   clock.Clock
	fetcher source.Fetcher
}

// NewGlobalsWithConfig creates a new Globals instance with config fallbacks
func NewGlobalsWithConfig(cli *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:   cli.Format,
		LogLevel: cli.LogLevel,
		Quiet:    cli.Quiet,
		Verbose:  cli.Verbose,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Config:   cfg,
	}

	// If quiet/verbose weren't set via CLI, use config values
	if !cli.Quiet && cfg.Quiet {
		g.Quiet = true
	}
	if !cli.Verbose && cfg.Verbose {
		g.Verbose = true
	}

	return g
}

// ApplyConfig replaces the loaded config. Flags that were set explicitly
// keep their values; the rest follow the new config.
func (g *Globals) ApplyConfig(cfg *config.Config, meta *config.Meta) {
	g.Config = cfg
	if meta != nil {
		g.ConfigFile = meta.Path
		g.ConfigEnv = meta.Env
	}
	if !g.FlagsSet["format"] {
		g.Format = cfg.Format
	}
	if !g.FlagsSet["log-level"] {
		g.LogLevel = cfg.LogLevel
	}
	if !g.FlagsSet["quiet"] {
		g.Quiet = cfg.Quiet
	}
	if !g.FlagsSet["verbose"] {
		g.Verbose = cfg.Verbose
	}
	g.logger = nil
}

// Logger returns the diagnostic logger, building it on first use
func (g *Globals) Logger() *zap.Logger {
	if g.logger == nil {
		g.logger = newLogger(g)
	}
	return g.logger
}

// Clock returns the clock used for timers and timestamps
func (g *Globals) Clock() clock.Clock {
	if g.clock == nil {
		return clock.New()
	}
	return g.clock
}

// Writer returns the output writer for the selected format
func (g *Globals) Writer() output.Writer {
	return output.New(g.Format, g.Stdout)
}

// Debug prints a debug message if verbose mode is enabled
func (g *Globals) Debug(format string, args ...interface{}) {
	if g.Verbose {
		g.Logger().Debug(fmt.Sprintf(format, args...))
	}
}

// VersionCmd shows version information
type VersionCmd struct{}

// Run executes the version command
func (v *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteVersion(Version, Commit)
	}
	_, err := io.WriteString(globals.Stdout, "qcdash version "+Version+" ("+Commit+")\n")
	return err
}

// Version information (set at build time)
var (
	Version = "dev"
	Commit  = "none"
)
