package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Game.Timer != nil || cfg.Report.ChildID != nil {
		t.Fatalf("expected unset values, got %+v", cfg)
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[game]
type = "arithmetic"
difficulty = "hard"
timer = 5
length = 12
audio = false
focus-weak = true
weak-factor = 1.5

[report]
api-url = "http://example.test"
child-id = 7
game-id = 2
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg.Game.Type != "arithmetic" || *cfg.Game.Difficulty != "hard" || *cfg.Game.Timer != 5 || *cfg.Game.Length != 12 {
		t.Fatalf("unexpected game section %+v", cfg.Game)
	}
	if *cfg.Game.Audio || !*cfg.Game.FocusWeak || *cfg.Game.WeakFactor != 1.5 {
		t.Fatalf("unexpected game flags %+v", cfg.Game)
	}
	if cfg.Game.WeakTop != nil || cfg.Game.Separate != nil {
		t.Fatalf("omitted keys must stay unset")
	}
	if *cfg.Report.APIURL != "http://example.test" || *cfg.Report.ChildID != 7 || *cfg.Report.GameID != 2 {
		t.Fatalf("unexpected report section %+v", cfg.Report)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[game]\nspeed = 3\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "game.speed") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "local.env")
	global := filepath.Join(dir, "global.env")
	writeFile(t, local, "SUBITISE_CHILD_ID=11\n")
	writeFile(t, global, "SUBITISE_CHILD_ID=22\nSUBITISE_GAME_ID=3\nSUBITISE_API_URL=http://global.test\nOTHER=1\n")
	t.Setenv(EnvAPIURL, "http://process.test")

	env, err := LoadEnv(local, global, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if env[EnvChildID] != "11" || env[EnvGameID] != "3" || env[EnvAPIURL] != "http://process.test" {
		t.Fatalf("unexpected env %v", env)
	}
	if _, ok := env["OTHER"]; ok {
		t.Fatalf("unknown keys must be ignored")
	}
}

func TestApplyEnv(t *testing.T) {
	url := "http://file.test"
	child := int64(1)
	cfg := FileConfig{Report: ReportConfig{APIURL: &url, ChildID: &child}}
	err := ApplyEnv(&cfg, map[string]string{EnvChildID: "9", EnvGameID: " 4 ", EnvAPIURL: ""})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if *cfg.Report.APIURL != "http://file.test" || *cfg.Report.ChildID != 9 || *cfg.Report.GameID != 4 {
		t.Fatalf("unexpected report config %+v", cfg.Report)
	}
	if err := ApplyEnv(&cfg, map[string]string{EnvGameID: "two"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "subitise", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "subitise", "subitise.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if paths := DefaultEnvPaths(); len(paths) != 2 || paths[1] != filepath.Join("/cfg", "subitise", ".env") {
		t.Fatalf("unexpected env paths %v", paths)
	}
}
