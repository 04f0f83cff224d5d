// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeydtaylor/steeze-serverfn/pkg/codegen"
	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	EnvListen   = "SERVERFN_LISTEN_ADDRESS"
	EnvRoot     = "SERVERFN_ROOT"
	EnvBasePath = "SERVERFN_BASE_PATH"
	EnvOutDir   = "SERVERFN_OUT_DIR"

	DefaultListen = ":4000"
)

// Config is the dev server configuration file (serverfn.toml).
type Config struct {
	Service       string   `toml:"service"`
	Listen        string   `toml:"listen"`
	Root          string   `toml:"root"`
	BasePath      string   `toml:"base_path"`
	OutDir        string   `toml:"out_dir"`
	Package       string   `toml:"package"`
	RuntimeImport string   `toml:"runtime_import"`
	Watch         []string `toml:"watch"`
	CORS          CORS     `toml:"cors"`
}

type CORS struct {
	Origins []string `toml:"origins"`
}

func Default() Config {
	return Config{
		Service:       "serverfn",
		Listen:        DefaultListen,
		Root:          ".",
		BasePath:      fn.DefaultBasePath,
		Package:       codegen.DefaultPackage,
		RuntimeImport: fn.ImportPath,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := toml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}

	cfg.Listen = envOr(EnvListen, cfg.Listen)
	cfg.Root = envOr(EnvRoot, cfg.Root)
	cfg.BasePath = envOr(EnvBasePath, cfg.BasePath)
	cfg.OutDir = envOr(EnvOutDir, cfg.OutDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address required")
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("config: base_path %q must start with /", c.BasePath)
	}
	if !isPackageName(c.Package) {
		return fmt.Errorf("config: invalid package %q", c.Package)
	}
	if c.RuntimeImport == "" {
		return errors.New("config: runtime_import required")
	}
	return nil
}

// OutputDir is where generated handlers go: out_dir, relative paths
// resolved against root, defaulting to <root>/api/serverFn.
func (c Config) OutputDir() string {
	switch {
	case c.OutDir == "":
		return filepath.Join(c.Root, codegen.DefaultOutDir)
	case filepath.IsAbs(c.OutDir):
		return c.OutDir
	default:
		return filepath.Join(c.Root, c.OutDir)
	}
}

// WatchPaths are the directories the change notifier watches; root by default.
func (c Config) WatchPaths() []string {
	if len(c.Watch) == 0 {
		return []string{c.Root}
	}
	out := make([]string, 0, len(c.Watch))
	for _, p := range c.Watch {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Root, p)
		}
		out = append(out, p)
	}
	return out
}

func isPackageName(s string) bool {
	if s == "" || s == "_" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
