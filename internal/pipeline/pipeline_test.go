package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ximaera/fb2lingo/internal/apperrors"
	"github.com/ximaera/fb2lingo/internal/files"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/metadata"
	"github.com/ximaera/fb2lingo/internal/reassembler"
	"github.com/ximaera/fb2lingo/internal/translator"
)

const testBook = `<?xml version="1.0" encoding="UTF-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">
  <description>
    <title-info>
      <book-title>Тест</book-title>
      %s
    </title-info>
  </description>
  <body>
    <section>
      <p>Первый</p>
      <p>Второй</p>
      <p>Третий</p>
    </section>
  </body>
</FictionBook>
`

// echoBackend answers "1. T1\n2. T2..." and fails prompts containing
// failOn. Failures are auth errors unless failAs says otherwise.
type echoBackend struct {
	mu      sync.Mutex
	prompts []string
	failOn  string
	failAs  func(error) error
}

func (b *echoBackend) count(marker string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

func (b *echoBackend) Complete(ctx context.Context, model, prompt string) (*llm.Completion, error) {
	b.mu.Lock()
	b.prompts = append(b.prompts, prompt)
	b.mu.Unlock()
	if b.failOn != "" && strings.Contains(prompt, b.failOn) {
		failAs := b.failAs
		if failAs == nil {
			failAs = apperrors.Auth
		}
		return nil, failAs(errors.New("rejected"))
	}
	var n int
	if _, err := fmt.Sscanf(prompt, "Translate the following %d paragraphs", &n); err != nil {
		return nil, err
	}
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "%d. T%d\n", i, i)
	}
	return &llm.Completion{Text: sb.String(), Usage: llm.Usage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14}}, nil
}

func setup(t *testing.T, backend llm.Backend, lang string) (Config, string) {
	t.Helper()
	oldBackend, oldRamp, oldRetry := newBackend, defaultRampUp, retryPolicy
	newBackend = func(ctx context.Context, cfg Config) (llm.Backend, func() error, error) {
		return backend, func() error { return nil }, nil
	}
	defaultRampUp = 0
	t.Cleanup(func() {
		newBackend, defaultRampUp, retryPolicy = oldBackend, oldRamp, oldRetry
	})

	dir := t.TempDir()
	in := filepath.Join(dir, "book.fb2")
	if err := os.WriteFile(in, []byte(fmt.Sprintf(testBook, lang)), 0644); err != nil {
		t.Fatalf("write book: %v", err)
	}
	return Config{
		InputPath:   in,
		OutputPath:  filepath.Join(dir, "book.el.fb2"),
		Provider:    metadata.ProviderOpenAI,
		APIKey:      "test",
		BatchSize:   2,
		Workers:     2,
		Temperature: 0.7,
		SourceLang:  "ru",
		TargetLang:  "el",
	}, dir
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestRunTranslation_InvalidConfig(t *testing.T) {
	cfg, dir := setup(t, &echoBackend{}, "")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"same input and output", func(c *Config) { c.OutputPath = c.InputPath }, "input and output files are the same"},
		{"unsupported source language", func(c *Config) { c.SourceLang = "xx" }, "unsupported language"},
		{"same source and target", func(c *Config) { c.TargetLang = "Russian" }, "source and target languages must be different"},
		{"missing key", func(c *Config) { c.APIKey = "" }, "API key is required"},
		{"bad placement", func(c *Config) { c.Placement = "sidebar" }, "unknown placement"},
		{"missing input", func(c *Config) { c.InputPath = filepath.Join(dir, "missing.fb2") }, "failed to load book"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			tt.mutate(&c)
			_, err := RunTranslation(context.Background(), c)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("RunTranslation() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunTranslation_Replace(t *testing.T) {
	backend := &echoBackend{}
	cfg, _ := setup(t, backend, "")

	result, err := RunTranslation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunTranslation failed: %v", err)
	}
	if result.Status != TranslationStatusSuccess || result.TotalBatches != 2 || result.Paragraphs != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Model != metadata.DefaultOpenAIModel {
		t.Fatalf("expected default model, got %q", result.Model)
	}
	if result.Usage.TotalTokens != 28 {
		t.Fatalf("usage not summed: %+v", result.Usage)
	}
	out := readOutput(t, result.OutputPath)
	for _, orig := range []string{"Первый", "Второй", "Третий"} {
		if strings.Contains(out, "<p>"+orig+"</p>") {
			t.Fatalf("paragraph %q was not replaced:\n%s", orig, out)
		}
	}
	if strings.Count(out, "<p>T1</p>") != 2 || strings.Count(out, "<p>T2</p>") != 1 {
		t.Fatalf("unexpected translations in output:\n%s", out)
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("output lacks XML declaration")
	}
}

func TestRunTranslation_FootnoteAndGlossary(t *testing.T) {
	backend := &echoBackend{}
	cfg, dir := setup(t, backend, "")
	cfg.Placement = reassembler.PlacementFootnote
	cfg.BatchSize = 10
	cfg.GlossaryPath = filepath.Join(dir, "names.json")
	if err := os.WriteFile(cfg.GlossaryPath, []byte(`[{"ru":"Пьер","el":"Πιερ"}]`), 0644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}

	result, err := RunTranslation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunTranslation failed: %v", err)
	}
	if len(backend.prompts) != 1 || !strings.Contains(backend.prompts[0], "- Пьер -> Πιερ") {
		t.Fatalf("glossary missing from prompt: %q", backend.prompts)
	}
	out := readOutput(t, result.OutputPath)
	if strings.Count(out, `name="notes"`) != 1 {
		t.Fatalf("expected one notes body:\n%s", out)
	}
	if !strings.Contains(out, `<p>T1<a l:href="#fb2lingo-n1" type="note">[1]</a></p>`) {
		t.Fatalf("missing note reference:\n%s", out)
	}
	if !strings.Contains(out, "<p>Первый</p>") {
		t.Fatalf("original text missing from notes:\n%s", out)
	}
}

func TestRunTranslation_AutoSource(t *testing.T) {
	t.Run("from description", func(t *testing.T) {
		cfg, _ := setup(t, &echoBackend{}, "<lang>ru-RU</lang>")
		cfg.SourceLang = "auto"
		old := detectLanguage
		detectLanguage = func(string) string { t.Fatalf("detector must not run"); return "" }
		t.Cleanup(func() { detectLanguage = old })

		result, err := RunTranslation(context.Background(), cfg)
		if err != nil {
			t.Fatalf("RunTranslation failed: %v", err)
		}
		if result.SourceLang.Code != "ru" {
			t.Fatalf("source = %q, want ru", result.SourceLang.Code)
		}
	})

	t.Run("detected", func(t *testing.T) {
		cfg, _ := setup(t, &echoBackend{}, "")
		cfg.SourceLang = "auto"
		old := detectLanguage
		var sample string
		detectLanguage = func(s string) string { sample = s; return "ru" }
		t.Cleanup(func() { detectLanguage = old })

		result, err := RunTranslation(context.Background(), cfg)
		if err != nil {
			t.Fatalf("RunTranslation failed: %v", err)
		}
		if result.SourceLang.Code != "ru" || !strings.Contains(sample, "Первый") {
			t.Fatalf("source = %q, sample = %q", result.SourceLang.Code, sample)
		}
	})

	t.Run("undetectable", func(t *testing.T) {
		cfg, _ := setup(t, &echoBackend{}, "")
		cfg.SourceLang = "auto"
		old := detectLanguage
		detectLanguage = func(string) string { return "" }
		t.Cleanup(func() { detectLanguage = old })

		if _, err := RunTranslation(context.Background(), cfg); err == nil {
			t.Fatalf("expected detection error")
		}
	})
}

func TestRunTranslation_PartialSuccess(t *testing.T) {
	backend := &echoBackend{failOn: "Второй"}
	cfg, _ := setup(t, backend, "")
	cfg.BatchSize = 1

	result, err := RunTranslation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("partial success must not be an error: %v", err)
	}
	if result.Status != TranslationStatusPartialSuccess || result.FailedBatches != 1 || result.TotalBatches != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if n := backend.count("Второй"); n != 1 {
		t.Fatalf("rejected key must not be retried, got %d attempts", n)
	}
	out := readOutput(t, result.OutputPath)
	if !strings.Contains(out, "<p>Второй</p>") || strings.Contains(out, "<p>Первый</p>") {
		t.Fatalf("failed batch should stay untranslated, others translated:\n%s", out)
	}
}

func TestRunTranslation_TransientFailureExhaustsRetries(t *testing.T) {
	backend := &echoBackend{failOn: "Второй", failAs: apperrors.Transient}
	cfg, _ := setup(t, backend, "")
	cfg.BatchSize = 1

	var mu sync.Mutex
	var waits []time.Duration
	retryPolicy = func() translator.RetryPolicy {
		p := translator.DefaultRetryPolicy()
		p.Sleep = func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			waits = append(waits, d)
			mu.Unlock()
			return nil
		}
		return p
	}

	result, err := RunTranslation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("partial success must not be an error: %v", err)
	}
	if result.Status != TranslationStatusPartialSuccess || result.FailedBatches != 1 || result.TotalBatches != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if n := backend.count("Второй"); n != 3 {
		t.Fatalf("expected 3 attempts for the failing batch, got %d", n)
	}
	if want := []time.Duration{5 * time.Second, 10 * time.Second}; !slices.Equal(waits, want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	out := readOutput(t, result.OutputPath)
	if !strings.Contains(out, "<p>Второй</p>") {
		t.Fatalf("failed batch should keep its original text:\n%s", out)
	}
	if strings.Contains(out, "<p>Первый</p>") || strings.Contains(out, "<p>Третий</p>") {
		t.Fatalf("other batches should be translated:\n%s", out)
	}
}

func TestRunTranslation_RefusesLinkedOutputDir(t *testing.T) {
	backendBuilt := false
	cfg, dir := setup(t, &echoBackend{}, "")
	newBackend = func(ctx context.Context, cfg Config) (llm.Backend, func() error, error) {
		backendBuilt = true
		return &echoBackend{}, func() error { return nil }, nil
	}

	actual := filepath.Join(dir, "actual")
	if err := os.Mkdir(actual, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	link := filepath.Join(dir, "out")
	if err := os.Symlink(actual, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"output", func(c *Config) { c.OutputPath = filepath.Join(link, "book.el.fb2") }},
		{"log", func(c *Config) { c.LogPath = filepath.Join(link, "run.log") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			tt.mutate(&c)
			_, err := RunTranslation(context.Background(), c)
			if !errors.Is(err, files.ErrSymlink) {
				t.Fatalf("expected ErrSymlink, got %v", err)
			}
		})
	}
	if backendBuilt {
		t.Fatalf("no backend should be created for a refused path")
	}
	if entries, _ := os.ReadDir(actual); len(entries) != 0 {
		t.Fatalf("nothing should be written through the link, found %d entries", len(entries))
	}
}

func TestRunTranslation_AllBatchesFailed(t *testing.T) {
	backend := &echoBackend{failOn: "Translate"}
	cfg, _ := setup(t, backend, "")

	result, err := RunTranslation(context.Background(), cfg)
	if !errors.Is(err, ErrAllBatchesFailed) {
		t.Fatalf("expected ErrAllBatchesFailed, got %v", err)
	}
	if result.Status != TranslationStatusFailure {
		t.Fatalf("unexpected status: %q", result.Status)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Fatalf("output should still be written: %v", err)
	}
}

func TestRunTranslation_ExistingOutput(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		backend := &echoBackend{}
		cfg, _ := setup(t, backend, "")
		if err := os.WriteFile(cfg.OutputPath, []byte("keep"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		asked := ""
		cfg.OnConfirmOverwrite = func(path string) bool { asked = path; return false }

		result, err := RunTranslation(context.Background(), cfg)
		if err != nil {
			t.Fatalf("RunTranslation failed: %v", err)
		}
		if result.Status != TranslationStatusSkipped || asked != cfg.OutputPath {
			t.Fatalf("expected skipped run after asking, got %+v", result)
		}
		if len(backend.prompts) != 0 {
			t.Fatalf("no request should be sent when skipped")
		}
		if readOutput(t, cfg.OutputPath) != "keep" {
			t.Fatalf("existing output was modified")
		}
	})

	t.Run("kept", func(t *testing.T) {
		cfg, dir := setup(t, &echoBackend{}, "")
		if err := os.WriteFile(cfg.OutputPath, []byte("keep"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		cfg.KeepExisting = true

		result, err := RunTranslation(context.Background(), cfg)
		if err != nil {
			t.Fatalf("RunTranslation failed: %v", err)
		}
		if want := filepath.Join(dir, "book.el_1.fb2"); result.OutputPath != want {
			t.Fatalf("output path = %q, want %q", result.OutputPath, want)
		}
		if readOutput(t, cfg.OutputPath) != "keep" {
			t.Fatalf("existing output was modified")
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		cfg, _ := setup(t, &echoBackend{}, "")
		if err := os.WriteFile(cfg.OutputPath, []byte("old"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		cfg.Overwrite = true

		result, err := RunTranslation(context.Background(), cfg)
		if err != nil {
			t.Fatalf("RunTranslation failed: %v", err)
		}
		if result.OutputPath != cfg.OutputPath || readOutput(t, cfg.OutputPath) == "old" {
			t.Fatalf("expected output to be replaced in place")
		}
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name        string
		workers     int
		batch       int
		wantWorkers int
		wantBatch   int
		wantNotes   int
	}{
		{"below_min", 0, 100, MinWorkers, 100, 1},
		{"above_max", MaxWorkers + 5, 100, MaxWorkers, 100, 1},
		{"batch_too_large", 3, MaxBatchSize + 1, 3, MaxBatchSize, 1},
		{"within_range", 3, 100, 3, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, notes := Config{Workers: tt.workers, BatchSize: tt.batch}.Normalize()
			if got.Workers != tt.wantWorkers || got.BatchSize != tt.wantBatch {
				t.Fatalf("Normalize() = workers %d, batch %d", got.Workers, got.BatchSize)
			}
			if len(notes) != tt.wantNotes {
				t.Fatalf("Normalize() notes = %v", notes)
			}
			if got.Provider != metadata.ProviderOpenAI || got.Placement != reassembler.PlacementReplace {
				t.Fatalf("Normalize() did not fill defaults: %+v", got)
			}
		})
	}
}
