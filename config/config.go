package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "swg_asset_browser.yaml"

// Skeleton holds the transform conventions used when converting skeletons.
type Skeleton struct {
	// Order is "pre_bind_post" or "post_bind_pre".
	Order string `yaml:"order"`
	// MirrorX negates the X axis when materializing into a host scene.
	MirrorX bool `yaml:"mirror_x"`
	// Allocation is "preserve" or "fold".
	Allocation      string     `yaml:"allocation"`
	IdentityEpsilon float64    `yaml:"identity_epsilon"`
	TailFraction    float64    `yaml:"tail_fraction"`
	DefaultTail     [3]float64 `yaml:"default_tail,flow"`
}

type Config struct {
	AssetRoot string   `yaml:"asset_root"`
	Listen    string   `yaml:"listen"`
	Encoding  string   `yaml:"encoding"`
	Verbose   bool     `yaml:"verbose"`
	Skeleton  Skeleton `yaml:"skeleton"`
}

func Default() Config {
	return Config{
		AssetRoot: ".",
		Listen:    ":8000",
		Encoding:  EncodingUTF8,
		Skeleton: Skeleton{
			Order:           "pre_bind_post",
			MirrorX:         true,
			Allocation:      "preserve",
			IdentityEpsilon: 1e-6,
			TailFraction:    0.5,
			DefaultTail:     [3]float64{0, 0, 0.05},
		},
	}
}

// Load reads a yaml config on top of the defaults. A missing file is not an
// error when allowMissing is set.
func Load(path string, allowMissing bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "Failed to read config %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "Failed to parse config %q", path)
	}
	if cfg.AssetRoot != "" && !filepath.IsAbs(cfg.AssetRoot) {
		cfg.AssetRoot = filepath.Join(filepath.Dir(path), cfg.AssetRoot)
	}
	return cfg, nil
}

func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "Failed to write config %q", path)
}

// Flags holds command line values that override the file.
type Flags struct {
	AssetRoot string
	Listen    string
	Encoding  string
	Verbose   bool
}

// Resolve applies flags and falls back to defaults for anything still unset,
// then activates the configured string encoding.
func (c *Config) Resolve(flags Flags) error {
	if flags.AssetRoot != "" {
		c.AssetRoot = flags.AssetRoot
	}
	if flags.Listen != "" {
		c.Listen = flags.Listen
	}
	if flags.Encoding != "" {
		c.Encoding = flags.Encoding
	}
	if flags.Verbose {
		c.Verbose = true
	}

	def := Default()
	if c.AssetRoot == "" {
		c.AssetRoot = def.AssetRoot
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Skeleton.IdentityEpsilon <= 0 {
		c.Skeleton.IdentityEpsilon = def.Skeleton.IdentityEpsilon
	}
	if c.Skeleton.TailFraction <= 0 {
		c.Skeleton.TailFraction = def.Skeleton.TailFraction
	}
	if c.Skeleton.DefaultTail == ([3]float64{}) {
		c.Skeleton.DefaultTail = def.Skeleton.DefaultTail
	}
	return SetEncoding(c.Encoding)
}
