package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/chocorepack/pkg/errors"
	"github.com/matzehuels/chocorepack/pkg/integrations"
	"github.com/matzehuels/chocorepack/pkg/integrations/chocolatey"
	"github.com/matzehuels/chocorepack/pkg/repack"
)

// configFileName is the name of the config file in the config directory.
const configFileName = "config.toml"

// envPrefix prefixes environment overrides of every setting.
const envPrefix = "CHOCOREPACK"

// settings is the merged configuration of a command invocation.
type settings struct {
	Output          string        `mapstructure:"output"`
	Endpoint        string        `mapstructure:"endpoint"`
	Packer          string        `mapstructure:"packer"`
	Retries         int           `mapstructure:"retries"`
	Timeout         time.Duration `mapstructure:"timeout"`
	StrictPack      bool          `mapstructure:"strict_pack"`
	KeepWorkDirs    bool          `mapstructure:"keep_workdirs"`
	ExtensionMarker string        `mapstructure:"extension_marker"`
}

// flagKeys maps setting keys to the flags that override them.
var flagKeys = map[string]string{
	"output":           "output",
	"endpoint":         "endpoint",
	"packer":           "packer",
	"retries":          "retries",
	"timeout":          "timeout",
	"strict_pack":      "strict",
	"keep_workdirs":    "keep-workdirs",
	"extension_marker": "extension-marker",
}

// defaultOutputDir returns the shared repository of this machine,
// \\COMPUTERNAME\choco_repos, or the current directory when the machine
// name is unknown.
func defaultOutputDir() string {
	if host := os.Getenv("COMPUTERNAME"); host != "" {
		return `\\` + host + `\choco_repos`
	}
	return "."
}

// loadSettings merges defaults, the config file, the environment and the
// flags that were set, in increasing precedence. It returns the config file
// used, if any.
func loadSettings(configFile string, flags *pflag.FlagSet) (*settings, string, error) {
	v := viper.New()

	v.SetDefault("output", defaultOutputDir())
	v.SetDefault("endpoint", chocolatey.DefaultEndpoint)
	v.SetDefault("packer", strings.Join(repack.DefaultPackCommand, " "))
	v.SetDefault("retries", 0)
	v.SetDefault("timeout", integrations.DefaultTimeout)
	v.SetDefault("strict_pack", false)
	v.SetDefault("keep_workdirs", false)
	v.SetDefault("extension_marker", repack.DefaultExtensionMarker)

	resolved := ""
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, "", errors.New(errors.ErrCodeInvalidInput, "config file not found: %s", configFile)
		}
		resolved = configFile
	} else if dir, err := configDir(); err == nil {
		if p := filepath.Join(dir, configFileName); fileExists(p) {
			resolved = p
		}
	}
	if resolved != "" {
		v.SetConfigFile(resolved)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", resolved)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// Variables understood by earlier versions of the tool.
	_ = v.BindEnv("output", envPrefix+"_OUTPUT", "CHOCO_REPOS_LOCAL")
	_ = v.BindEnv("endpoint", envPrefix+"_ENDPOINT", "CHOCO_REPOS_ENDPOINT")

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "parse configuration")
	}
	return &s, resolved, nil
}

// repackConfig converts settings into a repack.Config.
func (s *settings) repackConfig() repack.Config {
	return repack.Config{
		OutputDir:       s.Output,
		Endpoint:        s.Endpoint,
		Retries:         s.Retries,
		Timeout:         s.Timeout,
		PackerCommand:   strings.Fields(s.Packer),
		StrictPack:      s.StrictPack,
		KeepWorkDirs:    s.KeepWorkDirs,
		ExtensionMarker: s.ExtensionMarker,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
