package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CageChen/finderhub/internal/fs"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"PORT", "ROOT", "PROVIDER", "GIT_REF", "MOCK_TREE", "THEME", "WATCH", "LOG_LEVEL", "LOG_DEV", "SESSION_IDLE_TIMEOUT"} {
		t.Setenv(EnvPrefix+"_"+k, "")
		os.Unsetenv(EnvPrefix + "_" + k)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Theme != "light" {
		t.Errorf("expected theme light, got %s", cfg.Theme)
	}
	if !cfg.Watch {
		t.Error("expected watch to be true")
	}
	if cfg.Root.Provider != ProviderLocal {
		t.Errorf("expected local provider, got %s", cfg.Root.Provider)
	}
}

func TestMigrateLegacyPath(t *testing.T) {
	cfg := &Config{
		Path: "./test_docs",
		Root: Root{Provider: ProviderLocal},
	}
	cfg.migrateLegacyPath()

	absExpected, _ := filepath.Abs("./test_docs")
	if cfg.Root.Path != absExpected {
		t.Errorf("expected path %s, got %s", absExpected, cfg.Root.Path)
	}
	if cfg.Path != "" {
		t.Errorf("expected legacy path cleared, got %s", cfg.Path)
	}
}

func TestMigrateLegacyPath_GitRefSwitchesProvider(t *testing.T) {
	cfg := &Config{Root: Root{Path: "/repo", Provider: ProviderLocal, GitRef: "main"}}
	cfg.migrateLegacyPath()
	assert.Equal(t, ProviderGit, cfg.Root.Provider)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	isolate(t)
	cfgFile := filepath.Join(t.TempDir(), "finderhub.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
root:
  path: /srv/files
  provider: local
port: 9000
theme: dark
exclude: ["*.tmp"]
log:
  level: warn
`), 0644))

	cfg, err := Load([]string{"serve", "-config", cfgFile, "-port", "9100", "-watch=false"})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/srv/files", cfg.Root.Path)
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, "monokai", cfg.CodeStyle())
	assert.Equal(t, []string{"*.tmp"}, cfg.Exclude)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Watch)
	assert.Equal(t, cfgFile, cfg.GetConfigFilePath())
}

func TestLoad_EnvOverridesFlags(t *testing.T) {
	isolate(t)
	t.Setenv("FINDERHUB_PORT", "7070")
	t.Setenv("FINDERHUB_PROVIDER", "mock")
	t.Setenv("FINDERHUB_LOG_LEVEL", "debug")
	t.Setenv("FINDERHUB_LOG_DEV", "true")
	t.Setenv("FINDERHUB_SESSION_IDLE_TIMEOUT", "5m")

	cfg, err := Load([]string{"-port", "9100"})
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, ProviderMock, cfg.Root.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdle)
	assert.False(t, cfg.Watchable(), "mock roots are never watched")
}

func TestLoad_MissingExplicitConfig(t *testing.T) {
	isolate(t)
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Root.Provider = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Exclude = []string{"[unclosed"}
	assert.Error(t, cfg.Validate())
}

func TestIsExcluded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude = []string{".git", "node_modules", "build/**"}

	if !cfg.IsExcluded("src/.git") {
		t.Error("expected .git to be excluded")
	}
	if !cfg.IsExcluded("node_modules") {
		t.Error("expected node_modules to be excluded")
	}
	if !cfg.IsExcluded("build/out/app") {
		t.Error("expected build/out/app to be excluded")
	}
	if cfg.IsExcluded("docs/README.md") {
		t.Error("expected README.md NOT to be excluded")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.configPath = tmpFile
	cfg.Port = 9999
	cfg.Root = Root{Path: "/tmp", Provider: ProviderGit, GitRef: "v1.0"}
	cfg.SessionIdle = 90 * time.Second

	err := cfg.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Manual load to verify
	cfg2 := &Config{}
	err = cfg2.loadFromFile(tmpFile)
	if err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}

	if cfg2.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg2.Port)
	}
	if cfg2.Root != cfg.Root {
		t.Errorf("root loading failed: %+v", cfg2.Root)
	}
	if cfg2.SessionIdle != 90*time.Second {
		t.Errorf("expected idle timeout 1m30s, got %s", cfg2.SessionIdle)
	}
}

func TestNewProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root.Path = t.TempDir()
	p, err := cfg.NewProvider()
	require.NoError(t, err)
	assert.IsType(t, &fs.LocalProvider{}, p)

	cfg.Root.Provider = ProviderGit
	p, err = cfg.NewProvider()
	require.NoError(t, err)
	assert.Equal(t, "git", p.Name())

	cfg.Root.Provider = ProviderMock
	p, err = cfg.NewProvider()
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	tree := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(tree, []byte("name: demo\ndir: true\nchildren:\n  - name: a.txt\n    size: 3\n"), 0644))
	cfg.Root.MockTree = tree
	p, err = cfg.NewProvider()
	require.NoError(t, err)
	a := fs.NewAdapter(p)
	g, err := a.RequestAccess(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "demo", g.RootPath)
}
