package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ximaera/fb2lingo/internal/fb2"
	"github.com/ximaera/fb2lingo/internal/files"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/logger"
	"github.com/ximaera/fb2lingo/internal/metadata"
	"github.com/ximaera/fb2lingo/internal/names"
	"github.com/ximaera/fb2lingo/internal/openai"
	"github.com/ximaera/fb2lingo/internal/pipeline"
	"github.com/ximaera/fb2lingo/internal/prompt"
)

type namesOptions struct {
	sourceLang string
	targetLang string
	modelName  string
	baseURL    string
	maxTokens  int
	allowEnv   bool
	envOnly    bool
	yes        bool
	debug      bool
}

// newExtractor is swapped in tests.
var newExtractor = func(key, baseURL, model string) *names.Extractor {
	var opts []openai.Option
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return names.NewExtractor(openai.NewClient(key, opts...), model)
}

func newNamesCmd() *cobra.Command {
	opts := namesOptions{}
	cmd := &cobra.Command{
		Use:   "names <book.fb2> <glossary.json>",
		Short: "Build a character name glossary for a book using web search",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				_ = cmd.Usage()
				return fmt.Errorf("book and glossary paths are required")
			}
			return runNames(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	f := cmd.Flags()
	f.StringVar(&opts.sourceLang, "source", "auto", "Source language code or name, or \"auto\"")
	f.StringVar(&opts.targetLang, "target", "el", "Target language code or name")
	f.StringVar(&opts.modelName, "model", metadata.NamesModel, "OpenAI model with web search support")
	f.StringVar(&opts.baseURL, "base-url", "", "OpenAI-compatible API endpoint")
	f.IntVar(&opts.maxTokens, "max-tokens", 16384, "Max output tokens including reasoning")
	f.BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API key from environment variables")
	f.BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output file without asking")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	return cmd
}

func runNames(cmd *cobra.Command, args []string, opts *namesOptions) error {
	startTime := time.Now()
	bookPath, outputPath := args[0], args[1]

	if err := validateBookExtension("input", bookPath); err != nil {
		return err
	}

	allowOverwrite := opts.yes
	if !allowOverwrite {
		if _, err := os.Stat(outputPath); err == nil {
			confirmed, err := prompt.DefaultConfirmer().ConfirmOverwrite(outputPath, false)
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			allowOverwrite = true
		}
	}
	originalOutputPath := outputPath
	pathChanged := false
	if !allowOverwrite {
		safePath, changed, err := files.SafePath(outputPath)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		outputPath, pathChanged = safePath, changed
	}
	if err := files.RejectSymlinkPath(outputPath); err != nil {
		return err
	}

	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	logger.Init(logLevel, nil)
	if pathChanged {
		logger.Warn("Output path adjusted to avoid overwrite", "requested", originalOutputPath, "effective", outputPath)
	}

	const openAIMaxTokens = 128000
	maxTokens := opts.maxTokens
	if maxTokens > openAIMaxTokens {
		logger.Warn("Max tokens clamped", "requested", maxTokens, "effective", openAIMaxTokens)
		maxTokens = openAIMaxTokens
	}

	doc, err := fb2.Load(bookPath)
	if err != nil {
		return fmt.Errorf("failed to load book: %w", err)
	}
	src, err := pipeline.ResolveSource(doc, opts.sourceLang)
	if err != nil {
		return err
	}
	tgt, err := language.Resolve(opts.targetLang)
	if err != nil {
		return err
	}
	if src.Code == tgt.Code {
		return fmt.Errorf("source and target languages must be different (%s)", src.Code)
	}

	key, err := resolveAPIKey(metadata.ProviderOpenAI, opts.allowEnv, opts.envOnly)
	if err != nil {
		return err
	}

	book := doc.Description()
	extractor := newExtractor(key, opts.baseURL, opts.modelName)
	extractor.SetMaxTokens(maxTokens)

	logger.Info("Extracting character names", "title", book.Title, "model", opts.modelName)
	ctx, stop := signalContext()
	defer stop()
	mappings, usage, err := extractor.Extract(ctx, book, src, tgt)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Name extraction canceled", "error", err)
			return nil
		}
		return err
	}

	if err := names.SaveMappingFile(outputPath, mappings, src.Code, tgt.Code); err != nil {
		return err
	}
	logger.Info("Glossary saved", "count", len(mappings), "path", outputPath)

	printUsageStats(cmd.OutOrStdout(), metadata.ProviderOpenAI, opts.modelName, usage, time.Since(startTime))
	return nil
}
