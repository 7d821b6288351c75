package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ximaera/fb2lingo/internal/config"
	"github.com/ximaera/fb2lingo/internal/files"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/logger"
	"github.com/ximaera/fb2lingo/internal/metadata"
	"github.com/ximaera/fb2lingo/internal/pipeline"
	"github.com/ximaera/fb2lingo/internal/prompt"
	"github.com/ximaera/fb2lingo/internal/reassembler"
	"github.com/ximaera/fb2lingo/internal/scheduler"
)

type translateOptions struct {
	provider      string
	modelName     string
	baseURL       string
	sourceLang    string
	targetLang    string
	batchSize     int
	workers       int
	qps           int
	temperature   float64
	originalFirst bool
	footnotes     bool
	glossaryPath  string
	yes           bool
	logFilePath   string
	debug         bool
	allowEnv      bool
	envOnly       bool
	envFile       string
	configPath    string
}

var runPipeline = pipeline.RunTranslation

func newTranslateCmd() *cobra.Command {
	opts := translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <input.fb2> [output.fb2]",
		Short: "Translate an FB2 book",
		Long: "Translate an FB2 book. Without an output path the translation is written\n" +
			"next to the input, named after the target language (book.el.fb2).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errors.New("an input book is required")
			}
			return runTranslate(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addTranslateFlags(cmd.Flags(), &opts)
	return cmd
}

func addTranslateFlags(f *pflag.FlagSet, opts *translateOptions) {
	f.StringVar(&opts.provider, "provider", string(metadata.ProviderOpenAI), "Translation backend (openai or gemini)")
	f.StringVar(&opts.modelName, "model", "", "Model name (default gpt-4o for openai, gemini-3-flash-preview for gemini)")
	f.StringVar(&opts.baseURL, "base-url", "", "OpenAI-compatible API endpoint")
	f.StringVar(&opts.sourceLang, "source", "ru", "Source language code or name, or \"auto\"")
	f.StringVar(&opts.targetLang, "target", "el", "Target language code or name")
	f.IntVar(&opts.batchSize, "batch-size", pipeline.DefaultBatchSize, "Paragraphs per request (max 500)")
	f.IntVar(&opts.workers, "workers", pipeline.DefaultWorkers, "Concurrent requests (1-20)")
	f.IntVar(&opts.qps, "qps", 0, "Max requests started per second (0 = unlimited)")
	f.Float64Var(&opts.temperature, "temperature", 0.7, "Sampling temperature")
	f.BoolVar(&opts.originalFirst, "original-first", false, "Keep each original paragraph followed by its translation")
	f.BoolVar(&opts.footnotes, "footnotes", false, "Move originals into notes linked from the translation (wins over --original-first)")
	f.StringVar(&opts.glossaryPath, "glossary", "", "Path to a character name glossary JSON file")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output book without asking")
	f.StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API key from environment variables")
	f.BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	f.StringVar(&opts.envFile, "env-file", "", "Load environment variables from a dotenv file")
	f.StringVar(&opts.configPath, "config", "", "YAML profile with default settings")
}

// placement maps the layout flags to a placement mode. Footnotes win when
// both flags are set.
func (o *translateOptions) placement(fallback string) (reassembler.Placement, error) {
	switch {
	case o.footnotes:
		return reassembler.PlacementFootnote, nil
	case o.originalFirst:
		return reassembler.PlacementOriginalFirst, nil
	default:
		return reassembler.ParsePlacement(fallback)
	}
}

// loadSettings reads the dotenv file, the YAML profile and FB2LINGO_*
// variables. The default profile is optional; an explicit one must exist.
func loadSettings(opts *translateOptions) (config.Settings, error) {
	if opts.envFile != "" {
		if err := config.LoadDotEnv(opts.envFile); err != nil {
			return config.Settings{}, err
		}
	}
	path := opts.configPath
	if path == "" {
		if def, err := config.DefaultPath(); err == nil {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}
	return config.Load(path)
}

// applySettings copies profile and environment values into options whose
// flags were not given explicitly.
func applySettings(flags *pflag.FlagSet, opts *translateOptions, s config.Settings) {
	changed := flags.Changed
	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, dst *int, v int) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}
	setString("provider", &opts.provider, s.Provider)
	setString("model", &opts.modelName, s.Model)
	setString("base-url", &opts.baseURL, s.BaseURL)
	setString("source", &opts.sourceLang, s.Source)
	setString("target", &opts.targetLang, s.Target)
	setString("glossary", &opts.glossaryPath, s.Glossary)
	setInt("batch-size", &opts.batchSize, s.BatchSize)
	setInt("workers", &opts.workers, s.Workers)
	setInt("qps", &opts.qps, s.QPS)
	if s.Temperature != nil && !changed("temperature") {
		opts.temperature = *s.Temperature
	}
}

func runTranslate(cmd *cobra.Command, args []string, opts *translateOptions) error {
	if len(args) == 0 {
		return errors.New("an input book is required")
	}
	if len(args) > 2 {
		fmt.Fprintf(os.Stderr, "Warning: expected at most 2 arguments but got %d. Did you forget quotes around file paths?\n", len(args))
		fmt.Fprintf(os.Stderr, "  Using input: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "  Using output: %s\n", args[1])
	}
	inputPath := args[0]
	if err := validateBookExtension("input", inputPath); err != nil {
		return err
	}

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	applySettings(cmd.Flags(), opts, settings)

	var outputPath string
	if len(args) > 1 {
		outputPath = args[1]
	} else if outputPath, err = defaultOutputPath(inputPath, opts.targetLang); err != nil {
		return err
	}
	if err := validateBookExtension("output", outputPath); err != nil {
		return err
	}

	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	} else if settings.LogLevel != "" {
		if logLevel, err = logger.ParseLevel(settings.LogLevel); err != nil {
			return err
		}
	}
	if err := initLogging(logLevel, opts.logFilePath); err != nil {
		return err
	}

	provider, err := metadata.ParseProvider(opts.provider)
	if err != nil {
		return err
	}
	placement, err := opts.placement(settings.Placement)
	if err != nil {
		return err
	}
	if opts.footnotes && opts.originalFirst {
		logger.Warn("Both --footnotes and --original-first given; using footnotes")
	}

	startTime := time.Now()

	key, err := resolveAPIKey(provider, opts.allowEnv, opts.envOnly)
	if err != nil {
		return err
	}

	interactive := isTerminal(int(os.Stdin.Fd()))
	cfg := pipeline.Config{
		InputPath:    inputPath,
		OutputPath:   outputPath,
		LogPath:      opts.logFilePath,
		Provider:     provider,
		APIKey:       key,
		Model:        opts.modelName,
		BaseURL:      opts.baseURL,
		Temperature:  opts.temperature,
		BatchSize:    opts.batchSize,
		Workers:      opts.workers,
		QPS:          opts.qps,
		Placement:    placement,
		SourceLang:   opts.sourceLang,
		TargetLang:   opts.targetLang,
		GlossaryPath: opts.glossaryPath,
		Overwrite:    opts.yes,
		KeepExisting: !interactive,
		OnProgress:   logProgress,
		OnConfirmOverwrite: func(path string) bool {
			if !interactive {
				return false
			}
			confirmed, err := prompt.DefaultConfirmer().ConfirmOverwrite(path, opts.yes)
			if err != nil {
				logger.Error("Overwrite confirmation failed", "error", err)
				return false
			}
			return confirmed
		},
	}

	ctx, stop := signalContext()
	defer stop()
	result, err := runPipeline(ctx, cfg)

	// Always print stats, even on partial success
	if result.Status != pipeline.TranslationStatusSkipped && result.Model != "" {
		printUsageStats(cmd.OutOrStdout(), result.Provider, result.Model, result.Usage, time.Since(startTime))
	}

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Translation canceled", "error", err)
			return nil
		}
		return err
	}
	if result.OutputPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Translated %d paragraphs from %s to %s: %s\n",
			result.Paragraphs, result.SourceLang.Name, result.TargetLang.Name, result.OutputPath)
	}
	return translationStatusError(result)
}

func logProgress(p scheduler.Progress) {
	switch p.State {
	case scheduler.StateCompleted:
		logger.Info("Batch completed", "batch", p.BatchIndex+1, "total", p.TotalBatches)
	case scheduler.StateFailed:
		logger.Warn("Batch failed", "batch", p.BatchIndex+1, "total", p.TotalBatches, "error", p.Error)
	case scheduler.StateCanceled:
		logger.Warn("Translation canceled before all batches finished")
	}
}

// translationStatusError maps a finished run to the command's exit status.
// Partial success exits cleanly; the failed batches were already reported.
func translationStatusError(result pipeline.TranslationResult) error {
	switch result.Status {
	case pipeline.TranslationStatusSuccess, pipeline.TranslationStatusSkipped:
		return nil
	case pipeline.TranslationStatusPartialSuccess:
		logger.Warn("Translation finished with failed batches",
			"failed_batches", result.FailedBatches, "total_batches", result.TotalBatches)
		return nil
	case pipeline.TranslationStatusFailure:
		return fmt.Errorf("translation finished with status: %s", result.Status)
	default:
		return fmt.Errorf("translation finished with unknown status: %q", result.Status)
	}
}

// defaultOutputPath names the translation after its target language,
// e.g. book.fb2 -> book.el.fb2.
func defaultOutputPath(inputPath, target string) (string, error) {
	lang, err := language.Resolve(target)
	if err != nil {
		return "", err
	}
	return files.OutputPath(inputPath, lang.Code), nil
}

func validateBookExtension(kind, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".fb2" {
		return nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Errorf("unsupported %s extension %q (supported: .fb2)", kind, ext)
}
