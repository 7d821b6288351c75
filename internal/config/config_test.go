package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
provider: gemini
model: gemini-3-flash-preview
source: ru
target: el
batch_size: 50
workers: 4
placement: footnote
temperature: 0.2
`)
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if s.Provider != "gemini" || s.Model != "gemini-3-flash-preview" || s.BatchSize != 50 || s.Workers != 4 {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.Placement != "footnote" || s.Source != "ru" || s.Target != "el" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.Temperature == nil || *s.Temperature != 0.2 {
		t.Fatalf("temperature not parsed: %v", s.Temperature)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "batchsize: 10\n")
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("expected error for unknown key")
		}
	})
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "")
		s, err := LoadFile(path)
		if err != nil {
			t.Fatalf("empty file should be accepted: %v", err)
		}
		if s != (Settings{}) {
			t.Fatalf("expected zero settings, got %+v", s)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("FB2LINGO_MODEL", "gpt-4o-mini")
	t.Setenv("FB2LINGO_WORKERS", "7")
	t.Setenv("FB2LINGO_TEMPERATURE", "0.5")

	s, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if s.Model != "gpt-4o-mini" || s.Workers != 7 {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.Temperature == nil || *s.Temperature != 0.5 {
		t.Fatalf("temperature not read: %v", s.Temperature)
	}
}

func TestLoadEnv_Invalid(t *testing.T) {
	t.Setenv("FB2LINGO_WORKERS", "many")
	if _, err := LoadEnv(); err == nil {
		t.Fatalf("expected error for non-numeric workers")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "model: gpt-4o\nworkers: 2\nbatch_size: 80\n")
	t.Setenv("FB2LINGO_WORKERS", "6")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Workers != 6 {
		t.Fatalf("env should win, got workers=%d", s.Workers)
	}
	if s.Model != "gpt-4o" || s.BatchSize != 80 {
		t.Fatalf("file values lost: %+v", s)
	}
}

func TestMerge(t *testing.T) {
	temp := 0.9
	base := Settings{Provider: "openai", Workers: 3}
	got := Merge(base, Settings{Workers: 5, Temperature: &temp})
	if got.Provider != "openai" || got.Workers != 5 || got.Temperature == nil || *got.Temperature != 0.9 {
		t.Fatalf("unexpected merge: %+v", got)
	}
	temp = 0.1
	if *got.Temperature != 0.9 {
		t.Fatalf("merge must copy the temperature")
	}
}

func TestLoadDotEnv_KeepsExisting(t *testing.T) {
	t.Setenv("FB2LINGO_QPS", "5")
	t.Cleanup(func() { os.Unsetenv("FB2LINGO_DOTENV_PROBE") })
	path := writeFile(t, ".env", "FB2LINGO_QPS=9\nFB2LINGO_DOTENV_PROBE=loaded\n")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("FB2LINGO_QPS"); got != "5" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
	if got := os.Getenv("FB2LINGO_DOTENV_PROBE"); got != "loaded" {
		t.Fatalf("dotenv variable not exported: %q", got)
	}
}
