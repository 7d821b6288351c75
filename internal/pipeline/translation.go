// Package pipeline wires loading, batching, translation, reassembly and
// saving of a book into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ximaera/fb2lingo/internal/chunker"
	"github.com/ximaera/fb2lingo/internal/fb2"
	"github.com/ximaera/fb2lingo/internal/files"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/logger"
	"github.com/ximaera/fb2lingo/internal/names"
	"github.com/ximaera/fb2lingo/internal/reassembler"
	"github.com/ximaera/fb2lingo/internal/scheduler"
	"github.com/ximaera/fb2lingo/internal/translator"
)

// ErrAllBatchesFailed is returned when no batch could be translated.
var ErrAllBatchesFailed = errors.New("all batches failed")

var defaultRampUp = 2 * time.Second

// retryPolicy is consulted once per run.
var retryPolicy = translator.DefaultRetryPolicy

func checkPaths(cfg Config) error {
	absIn, err := filepath.Abs(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if absIn == absOut || files.SameFile(absIn, absOut) {
		return fmt.Errorf("input and output files are the same (%s)", absIn)
	}
	if err := files.RejectSymlinkPath(cfg.OutputPath); err != nil {
		return err
	}
	if cfg.LogPath != "" {
		if err := files.RejectSymlinkPath(cfg.LogPath); err != nil {
			return err
		}
	}
	return nil
}

// RunTranslation translates a book end to end. Batches that fail are
// skipped and their paragraphs stay untranslated; the book is written
// regardless. An error is returned when nothing could be translated.
func RunTranslation(ctx context.Context, cfg Config) (TranslationResult, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return TranslationResult{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := checkPaths(cfg); err != nil {
		return TranslationResult{}, err
	}

	shouldOverwrite := cfg.Overwrite
	outputExists := false
	if _, err := os.Stat(cfg.OutputPath); err == nil {
		outputExists = true
		if !shouldOverwrite && cfg.OnConfirmOverwrite != nil {
			shouldOverwrite = cfg.OnConfirmOverwrite(cfg.OutputPath)
		}
		switch {
		case shouldOverwrite:
			logger.Info("Overwriting output book", "path", cfg.OutputPath)
		case cfg.KeepExisting:
			logger.Info("Output book exists and will be kept", "path", cfg.OutputPath)
		default:
			logger.Info("Output book exists. Aborted by user.", "path", cfg.OutputPath)
			return TranslationResult{Status: TranslationStatusSkipped}, nil
		}
	}

	doc, err := fb2.Load(cfg.InputPath)
	if err != nil {
		return TranslationResult{}, fmt.Errorf("failed to load book: %w", err)
	}

	srcLang, err := ResolveSource(doc, cfg.SourceLang)
	if err != nil {
		return TranslationResult{}, err
	}
	tgtLang, err := language.Resolve(cfg.TargetLang)
	if err != nil {
		return TranslationResult{}, err
	}
	if srcLang.Code == tgtLang.Code {
		return TranslationResult{}, fmt.Errorf("source and target languages must be different (%s)", srcLang.Code)
	}

	glossary := cfg.Glossary
	if len(glossary) == 0 && cfg.GlossaryPath != "" {
		glossary, err = names.LoadMappingFile(cfg.GlossaryPath, srcLang.Code, tgtLang.Code)
		if err != nil {
			return TranslationResult{}, err
		}
	}

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		return TranslationResult{}, err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	}()

	tr, err := translator.NewTranslator(backend, cfg.Model, srcLang, tgtLang)
	if err != nil {
		return TranslationResult{}, fmt.Errorf("failed to initialize translator: %w", err)
	}
	tr.SetRetryPolicy(retryPolicy())
	if len(glossary) > 0 {
		tr.SetGlossary(glossary)
		logger.Info("Loaded glossary", "count", len(glossary))
	}

	sched, err := scheduler.New(cfg.Workers)
	if err != nil {
		return TranslationResult{}, err
	}
	sched.SetRateLimit(cfg.QPS)
	sched.SetRampUp(defaultRampUp)
	sched.SetProgress(cfg.OnProgress)

	units := doc.TextUnits()
	batches := chunker.Split(units, cfg.BatchSize)
	re := reassembler.New(doc, cfg.Placement)

	logger.Info("Starting translation",
		"provider", cfg.Provider, "model", cfg.Model,
		"source", srcLang.Code, "target", tgtLang.Code,
		"paragraphs", len(units), "batches", len(batches),
		"placement", cfg.Placement)

	report := sched.Run(ctx, batches,
		func(ctx context.Context, b chunker.Batch) ([]string, error) {
			return tr.TranslateBatch(ctx, b.Texts())
		},
		func(b chunker.Batch, translations []string, firstIndex int) {
			re.Apply(b.Units, translations, firstIndex)
		})

	status := statusFor(len(report.Failed), report.Total)
	result := TranslationResult{
		Status:        status,
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		SourceLang:    srcLang,
		TargetLang:    tgtLang,
		Usage:         tr.GetUsage(),
		Paragraphs:    len(units),
		FailedBatches: len(report.Failed),
		TotalBatches:  report.Total,
	}
	logger.Info("Translation finished", "status", status, "failed_batches", len(report.Failed), "total_batches", report.Total)

	effectiveOutputPath := cfg.OutputPath
	if !(outputExists && shouldOverwrite) {
		safePath, changed, err := files.SafePath(cfg.OutputPath)
		if err != nil {
			return result, fmt.Errorf("failed to resolve output path: %w", err)
		}
		if changed {
			logger.Warn("Output path adjusted to avoid overwrite", "requested", cfg.OutputPath, "effective", safePath)
			effectiveOutputPath = safePath
		}
	}
	if err := doc.Save(effectiveOutputPath); err != nil {
		return result, fmt.Errorf("failed to save output book: %w", err)
	}
	result.OutputPath = effectiveOutputPath
	logger.Info("Saved book", "path", effectiveOutputPath)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("translation interrupted: %w", err)
	}
	if status == TranslationStatusFailure {
		return result, fmt.Errorf("%w (%d of %d)", ErrAllBatchesFailed, len(report.Failed), report.Total)
	}
	if status == TranslationStatusPartialSuccess {
		logger.Warn("Some batches failed; their paragraphs were left untranslated", "failed_batches", len(report.Failed))
	}
	return result, nil
}
