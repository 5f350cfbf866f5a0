package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Options control where Load looks for settings.
type Options struct {
	// Dir is the starting directory. Defaults to the working directory.
	Dir string
	// File is an explicit config file. It must exist.
	File string
	// Flags are command-line flags. Only flags that were set are applied.
	Flags *pflag.FlagSet
	// Environ replaces os.Environ when non-nil.
	Environ []string
}

// Load reads the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, searched upward unless given
	cfgFile := opts.File
	if cfgFile == "" {
		if root := FindProjectRoot(dir); root != "" {
			cfgFile = findConfigFile(root)
		}
	}
	projectRoot := dir
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			cfgFile = abs
		}
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, &Error{Path: cfgFile, Err: err}
		}
		projectRoot = filepath.Dir(cfgFile)
	}

	// 3. Environment (TEXMACROS_ prefix)
	// Transform: TEXMACROS_MAIN_FILE -> main_file
	if err := k.Load(envProvider(opts.Environ), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, &Error{Path: cfgFile, Err: err}
	}
	cfg.ConfigFile = cfgFile

	// Paths from flags are relative to the working directory, the rest to
	// the project root.
	base := projectRoot
	if opts.Flags != nil && opts.Flags.Changed("root") {
		base = dir
	}
	switch {
	case cfg.Root == "":
		cfg.Root = projectRoot
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(base, cfg.Root)
	}
	cfg.Root = filepath.Clean(cfg.Root)

	if cfg.MainFile != "" && !filepath.IsAbs(cfg.MainFile) {
		mainBase := cfg.Root
		if opts.Flags != nil && opts.Flags.Changed("main-file") {
			mainBase = dir
		}
		cfg.MainFile = filepath.Join(mainBase, cfg.MainFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: cfgFile, Err: err}
	}
	return cfg, nil
}

// LoadFromDir loads settings for dir without flags.
func LoadFromDir(dir string) (*Config, error) {
	return Load(Options{Dir: dir})
}

func envProvider(environ []string) koanf.Provider {
	transform := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if environ == nil {
		return env.Provider(EnvPrefix, ".", transform)
	}

	m := make(map[string]any)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		m[transform(key)] = val
	}
	return confmap.Provider(m, ".")
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// config file. Returns empty string if not found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if findConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}
