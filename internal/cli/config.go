package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	embedfiles "github.com/vburojevic/qcdash"
	"github.com/vburojevic/qcdash/internal/config"
	"github.com/vburojevic/qcdash/internal/output"
)

// ConfigCmd shows or manages configuration
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"withargs" help:"Show current configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show configuration file path"`
	Generate ConfigGenerateCmd `cmd:"" help:"Generate sample configuration file"`
}

// ConfigShowCmd shows current configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteRaw(map[string]interface{}{
			"type":          "config",
			"schemaVersion": output.SchemaVersion,
			"path":          globals.ConfigFile,
			"env":           globals.ConfigEnv,
			"config":        cfg,
		})
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprint(globals.Stdout, string(data))

	if globals.ConfigFile != "" {
		fmt.Fprintln(globals.Stdout, "")
		fmt.Fprintf(globals.Stdout, "Loaded from: %s\n", globals.ConfigFile)
	}
	if len(globals.ConfigEnv) > 0 {
		fmt.Fprintf(globals.Stdout, "Environment overrides: %v\n", globals.ConfigEnv)
	}
	return nil
}

// ConfigPathCmd shows config file path
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := globals.ConfigFile
	if path == "" {
		path = config.ConfigFile()
	}

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteRaw(map[string]interface{}{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "")
		fmt.Fprintln(globals.Stdout, "Create one at:")
		fmt.Fprintln(globals.Stdout, "  ./.qcdash.yaml")
		fmt.Fprintln(globals.Stdout, "  ~/.qcdash.yaml")
		fmt.Fprintln(globals.Stdout, "  ~/.config/qcdash/config.yaml")
	} else {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}
	return nil
}

// ConfigGenerateCmd generates a sample configuration file
type ConfigGenerateCmd struct {
	Output string `short:"o" type:"path" help:"Write to this file instead of stdout"`
	Force  bool   `help:"Overwrite an existing file"`
}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	if c.Output == "" {
		_, err := globals.Stdout.Write(embedfiles.SampleConfigYAML)
		return err
	}

	if !c.Force {
		if _, err := os.Stat(c.Output); err == nil {
			return outputErrorCommon(globals, codeWriteFailed, c.Output+" already exists", "Pass --force to overwrite it")
		} else if !errors.Is(err, fs.ErrNotExist) {
			return outputErrorCommon(globals, codeWriteFailed, err.Error())
		}
	}
	if err := os.WriteFile(c.Output, embedfiles.SampleConfigYAML, 0o644); err != nil {
		return outputErrorCommon(globals, codeWriteFailed, err.Error())
	}

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteInfo("wrote " + c.Output)
	}
	fmt.Fprintf(globals.Stdout, "Wrote %s\n", c.Output)
	return nil
}
