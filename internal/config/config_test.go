package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindEnvLocal_InCurrentDir(t *testing.T) {
	// Create temp directory structure
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=value"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to temp dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in current directory")
	}
}

func TestFindEnvLocal_InParentDir(t *testing.T) {
	// Create temp directory structure: parent/.env.local, parent/child/
	tmpDir := t.TempDir()
	childDir := filepath.Join(tmpDir, "child")
	if err := os.Mkdir(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to child dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in parent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_InGrandparentDir(t *testing.T) {
	// Create: grandparent/.env.local, grandparent/parent/child/
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(tmpDir, ".env.local")
	if err := os.WriteFile(envPath, []byte("TEST=grandparent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to grandchild dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result == "" {
		t.Error("expected to find .env.local in grandparent directory")
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(envPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected %s, got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_ClosestWins(t *testing.T) {
	// Create: grandparent/.env.local, grandparent/parent/.env.local, grandparent/parent/child/
	tmpDir := t.TempDir()
	parentDir := filepath.Join(tmpDir, "parent")
	childDir := filepath.Join(parentDir, "child")
	if err := os.MkdirAll(childDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Create .env.local in both grandparent and parent
	if err := os.WriteFile(filepath.Join(tmpDir, ".env.local"), []byte("TEST=grandparent"), 0644); err != nil {
		t.Fatal(err)
	}
	parentEnvPath := filepath.Join(parentDir, ".env.local")
	if err := os.WriteFile(parentEnvPath, []byte("TEST=parent"), 0644); err != nil {
		t.Fatal(err)
	}

	// Change to child dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(childDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	expectedResolved, _ := filepath.EvalSymlinks(parentEnvPath)
	resultResolved, _ := filepath.EvalSymlinks(result)
	if resultResolved != expectedResolved {
		t.Errorf("expected closest .env.local (%s), got %s", expectedResolved, resultResolved)
	}
}

func TestFindEnvLocal_NotFound(t *testing.T) {
	// Create temp directory with no .env.local
	tmpDir := t.TempDir()

	// Change to temp dir
	oldCwd, _ := os.Getwd()
	defer os.Chdir(oldCwd)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	result := findEnvLocal()
	if result != "" {
		t.Errorf("expected empty string when no .env.local found, got %s", result)
	}
}

// isolate points HOME at a fresh directory and clears SECTMERGE_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("CARGO_HOME", "")
	for _, v := range []string{
		"SECTMERGE_FILE", "SECTMERGE_FILE_FILE", "SECTMERGE_SECTION", "SECTMERGE_KEY",
		"SECTMERGE_JOURNAL", "SECTMERGE_LOG_LEVEL", "SECTMERGE_LOG_FORMAT",
		"SECTMERGE_LOCK_TIMEOUT", "SECTMERGE_OUTPUT",
	} {
		t.Setenv(v, "")
	}

	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	if err := os.Chdir(home); err != nil {
		t.Fatal(err)
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.File != filepath.Join(home, ".cargo", "config.toml") {
		t.Errorf("unexpected default file %s", cfg.File)
	}
	if cfg.Section != "build" || cfg.Key != "rustc-wrapper" {
		t.Errorf("unexpected default directive %s.%s", cfg.Section, cfg.Key)
	}
	if cfg.JournalPath != filepath.Join(home, ".local", "share", "sectmerge", "journal.db") {
		t.Errorf("unexpected default journal %s", cfg.JournalPath)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("unexpected lock timeout %s", cfg.LockTimeout)
	}
	if cfg.Source("file") != SourceDefault {
		t.Errorf("expected default source, got %s", cfg.Source("file"))
	}
}

func TestLoad_CargoHome(t *testing.T) {
	isolate(t)
	cargo := t.TempDir()
	t.Setenv("CARGO_HOME", cargo)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.File != filepath.Join(cargo, "config.toml") {
		t.Errorf("expected CARGO_HOME config, got %s", cfg.File)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	home := isolate(t)
	yamlDir := filepath.Join(home, ".config", "sectmerge")
	if err := os.MkdirAll(yamlDir, 0755); err != nil {
		t.Fatal(err)
	}
	yamlBody := "file: ~/alt/config.toml\nsection: target.x86_64-unknown-linux-gnu\nkey: linker\nlock_timeout: 250ms\n"
	if err := os.WriteFile(filepath.Join(yamlDir, "config.yaml"), []byte(yamlBody), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SECTMERGE_KEY", "ar")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.File != filepath.Join(home, "alt", "config.toml") {
		t.Errorf("expected ~ expanded yaml file, got %s", cfg.File)
	}
	if cfg.Section != "target.x86_64-unknown-linux-gnu" {
		t.Errorf("expected yaml section, got %s", cfg.Section)
	}
	if cfg.Key != "ar" {
		t.Errorf("expected env key to win, got %s", cfg.Key)
	}
	if cfg.LockTimeout != 250*time.Millisecond {
		t.Errorf("expected yaml lock timeout, got %s", cfg.LockTimeout)
	}
	if cfg.Source("section") != SourceYAML {
		t.Errorf("expected yaml source for section, got %s", cfg.Source("section"))
	}
	if cfg.Source("key") != "environment variable SECTMERGE_KEY" {
		t.Errorf("expected env source for key, got %s", cfg.Source("key"))
	}
}

func TestLoad_EnvLocal(t *testing.T) {
	home := isolate(t)
	if err := os.WriteFile(filepath.Join(home, ".env.local"), []byte("SECTMERGE_SECTION=net\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets the variable in the process; clear it afterwards.
	t.Cleanup(func() { os.Unsetenv("SECTMERGE_SECTION") })
	os.Unsetenv("SECTMERGE_SECTION")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Section != "net" {
		t.Errorf("expected section from .env.local, got %s", cfg.Section)
	}
}

func TestLoad_FileVariantAndBadTimeout(t *testing.T) {
	home := isolate(t)
	pathFile := filepath.Join(home, "path.txt")
	if err := os.WriteFile(pathFile, []byte("/etc/tool/config.toml\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SECTMERGE_FILE_FILE", pathFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.File != "/etc/tool/config.toml" {
		t.Errorf("expected file from _FILE variant, got %q", cfg.File)
	}

	t.Setenv("SECTMERGE_LOCK_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid lock timeout")
	}
}
