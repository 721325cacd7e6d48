// Package config manages YAML-based configuration, CLI flags, and environment overrides.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/logging"
	"github.com/CageChen/finderhub/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. FINDERHUB_PORT.
const EnvPrefix = "FINDERHUB"

// Provider kinds.
const (
	ProviderLocal = "local"
	ProviderGit   = "git"
	ProviderMock  = "mock"
)

// Root describes the directory the browser is scoped to.
type Root struct {
	Path     string `yaml:"path" json:"path"`
	Provider string `yaml:"provider" json:"provider"`
	GitRef   string `yaml:"git_ref,omitempty" json:"git_ref,omitempty"`
	MockTree string `yaml:"mock_tree,omitempty" json:"mock_tree,omitempty"`
}

// Config holds all configuration options for FinderHub
type Config struct {
	// Legacy single path (for backward compatibility)
	Path string `yaml:"path,omitempty"`

	Root Root `yaml:"root" json:"root"`

	Port            int                   `yaml:"port"`
	Theme           string                `yaml:"theme"`
	Watch           bool                  `yaml:"watch"`
	Open            bool                  `yaml:"open"`
	AutoAccess      bool                  `yaml:"auto_access"`
	Exclude         []string              `yaml:"exclude"`
	Shortcuts       []session.ShortcutDef `yaml:"shortcuts,omitempty"`
	PreviewMaxBytes int                   `yaml:"preview_max_bytes,omitempty"`
	PreviewMaxImage int                   `yaml:"preview_max_image_bytes,omitempty"`
	SessionIdle     time.Duration         `yaml:"session_idle_timeout"`
	Log             logging.Config        `yaml:"log"`

	// Persist is set by -save: write the effective configuration back.
	Persist bool `yaml:"-"`

	// Internal: path to config file for saving
	configPath string
}

// envOverrides are read with envconfig after file and flags. Unset
// variables leave the configuration untouched.
type envOverrides struct {
	Port     int    `envconfig:"PORT"`
	Root     string `envconfig:"ROOT"`
	Provider string `envconfig:"PROVIDER"`
	GitRef   string `envconfig:"GIT_REF"`
	MockTree string `envconfig:"MOCK_TREE"`
	Theme    string `envconfig:"THEME"`
	Watch    *bool  `envconfig:"WATCH"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	LogDev   *bool  `envconfig:"LOG_DEV"`

	SessionIdle time.Duration `envconfig:"SESSION_IDLE_TIMEOUT"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Root:        Root{Provider: ProviderLocal},
		Port:        8080,
		Theme:       "light",
		Watch:       true,
		Open:        false,
		AutoAccess:  true,
		Exclude:     []string{"node_modules", ".git", ".svn", ".DS_Store"},
		SessionIdle: 30 * time.Minute,
		Log:         logging.DefaultConfig(),
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/finderhub"
	}
	return filepath.Join(home, ".config", "finderhub")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load builds the configuration from defaults, the config file, command line
// flags in args (without the program name) and FINDERHUB_* environment
// variables, in that order.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Accept `finderhub serve --path ...`
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}

	fset := flag.NewFlagSet("finderhub", flag.ContinueOnError)
	path := fset.String("path", "", "Root directory to browse")
	provider := fset.String("provider", "", "Backing store: local, git or mock")
	gitRef := fset.String("git-ref", "", "Browse this git ref instead of the working tree")
	mockTree := fset.String("mock-tree", "", "YAML file describing the mock tree")
	port := fset.Int("port", 0, "HTTP server port")
	theme := fset.String("theme", "", "Default theme (light/dark)")
	watch := fset.Bool("watch", true, "Enable file watching")
	open := fset.Bool("open", false, "Open browser on startup")
	logLevel := fset.String("log-level", "", "Log level (debug, info, warn, error)")
	configFile := fset.String("config", "", "Configuration file path")
	save := fset.Bool("save", false, "Write the effective configuration to the config file")

	fset.StringVar(path, "p", "", "Root directory to browse (shorthand)")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	// Determine config file path
	var cfgPath string
	if *configFile != "" {
		cfgPath = *configFile
	} else {
		// Try ~/.config/finderhub/config.yaml first
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("finderhub.yaml"); err == nil {
			cfgPath = "finderhub.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && *configFile != "" {
			// Only return error if user explicitly specified config file
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	// Command line flags override config file (only if explicitly set)
	if *path != "" {
		cfg.Path = ""
		cfg.Root.Path = *path
	}
	if *provider != "" {
		cfg.Root.Provider = *provider
	}
	if *gitRef != "" {
		cfg.Root.GitRef = *gitRef
	}
	if *mockTree != "" {
		cfg.Root.MockTree = *mockTree
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *theme != "" {
		cfg.Theme = *theme
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	// Bool flags - use command line value (they have explicit defaults)
	cfg.Watch = *watch
	cfg.Open = *open
	cfg.Persist = *save

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.migrateLegacyPath()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if env.Port != 0 {
		c.Port = env.Port
	}
	if env.Root != "" {
		c.Path = ""
		c.Root.Path = env.Root
	}
	if env.Provider != "" {
		c.Root.Provider = env.Provider
	}
	if env.GitRef != "" {
		c.Root.GitRef = env.GitRef
	}
	if env.MockTree != "" {
		c.Root.MockTree = env.MockTree
	}
	if env.Theme != "" {
		c.Theme = env.Theme
	}
	if env.Watch != nil {
		c.Watch = *env.Watch
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.LogDev != nil {
		c.Log.Development = *env.LogDev
	}
	if env.SessionIdle != 0 {
		c.SessionIdle = env.SessionIdle
	}
	return nil
}

// migrateLegacyPath moves a top-level path into Root and resolves the root
// path to an absolute one.
func (c *Config) migrateLegacyPath() {
	if c.Root.Path == "" && c.Path != "" {
		c.Root.Path = c.Path
	}
	c.Path = ""
	if c.Root.Path == "" && c.Root.Provider != ProviderMock {
		c.Root.Path = "."
	}
	if c.Root.Path != "" {
		if abs, err := filepath.Abs(c.Root.Path); err == nil {
			c.Root.Path = abs
		}
	}
	// A git ref only makes sense for the git provider.
	if c.Root.GitRef != "" && c.Root.Provider == ProviderLocal {
		c.Root.Provider = ProviderGit
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Root.Provider {
	case ProviderLocal, ProviderGit, ProviderMock:
	default:
		return fmt.Errorf("unknown provider %q", c.Root.Provider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	// Ensure config directory exists
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	saveConfig := struct {
		Root            Root                  `yaml:"root"`
		Port            int                   `yaml:"port"`
		Theme           string                `yaml:"theme"`
		Watch           bool                  `yaml:"watch"`
		Open            bool                  `yaml:"open"`
		AutoAccess      bool                  `yaml:"auto_access"`
		Exclude         []string              `yaml:"exclude"`
		Shortcuts       []session.ShortcutDef `yaml:"shortcuts,omitempty"`
		PreviewMaxBytes int                   `yaml:"preview_max_bytes,omitempty"`
		PreviewMaxImage int                   `yaml:"preview_max_image_bytes,omitempty"`
		SessionIdle     time.Duration         `yaml:"session_idle_timeout"`
		Log             logging.Config        `yaml:"log"`
	}{
		Root:            c.Root,
		Port:            c.Port,
		Theme:           c.Theme,
		Watch:           c.Watch,
		Open:            c.Open,
		AutoAccess:      c.AutoAccess,
		Exclude:         c.Exclude,
		Shortcuts:       c.Shortcuts,
		PreviewMaxBytes: c.PreviewMaxBytes,
		PreviewMaxImage: c.PreviewMaxImage,
		SessionIdle:     c.SessionIdle,
		Log:             c.Log,
	}

	data, err := yaml.Marshal(saveConfig)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// IsExcluded reports whether a root-relative path, or its base name, matches
// one of the exclude patterns.
func (c *Config) IsExcluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := rel[strings.LastIndexByte(rel, '/')+1:]
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// CodeStyle returns the chroma style matching the theme.
func (c *Config) CodeStyle() string {
	if c.Theme == "dark" {
		return "monokai"
	}
	return "github"
}

// Watchable reports whether the root is a live directory that can be watched.
func (c *Config) Watchable() bool {
	return c.Watch && c.Root.Provider == ProviderLocal
}

// NewProvider builds a fresh backing store for the configured root. Each
// call returns an independent provider.
func (c *Config) NewProvider() (fs.Provider, error) {
	switch c.Root.Provider {
	case ProviderLocal:
		return fs.NewLocalProvider(c.Root.Path), nil
	case ProviderGit:
		return fs.NewGitProvider(c.Root.Path, c.Root.GitRef), nil
	case ProviderMock:
		tree := fs.DefaultMockTree()
		if c.Root.MockTree != "" {
			var err error
			if tree, err = fs.LoadMockTree(c.Root.MockTree); err != nil {
				return nil, err
			}
		}
		return fs.NewMockProvider(tree)
	}
	return nil, errors.New("unknown provider " + c.Root.Provider)
}
