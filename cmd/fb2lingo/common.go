package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ximaera/fb2lingo/internal/auth"
	"github.com/ximaera/fb2lingo/internal/cleanup"
	"github.com/ximaera/fb2lingo/internal/files"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/logger"
	"github.com/ximaera/fb2lingo/internal/metadata"
	"golang.org/x/term"
)

var (
	isTerminal = term.IsTerminal
	resolveKey = auth.Resolve
	hasKey     = auth.HasKey
	getEnvKey  = auth.GetEnvKey
)

func keyMode(allowEnv, envOnly bool) auth.Mode {
	switch {
	case envOnly:
		return auth.EnvOnly
	case allowEnv:
		return auth.KeychainThenEnv
	default:
		return auth.KeychainOnly
	}
}

// resolveAPIKey finds the key for provider and logs where it came from.
func resolveAPIKey(p metadata.Provider, allowEnv, envOnly bool) (string, error) {
	key, source, err := resolveKey(p, keyMode(allowEnv, envOnly))
	if err != nil {
		return "", err
	}
	logger.Info("Using API key", "service", p, "source", source)
	return key, nil
}

// initLogging configures the global logger, optionally teeing JSONL records
// into logPath.
func initLogging(level slog.Level, logPath string) error {
	var logFileW io.Writer
	if logPath != "" {
		if err := files.RejectSymlinkPath(logPath); err != nil {
			return err
		}
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(level, logFileW)
	return nil
}

func printUsageStats(w io.Writer, p metadata.Provider, model string, usage llm.Usage, duration time.Duration) {
	fmt.Fprintln(w, "\n--- Execution Stats ---")
	fmt.Fprintf(w, "Time: %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Model: %s (%s)\n", model, p)
	if usage.TotalTokens == 0 && usage.InputTokens == 0 {
		return
	}
	fmt.Fprintf(w, "Tokens: In=%d, Out=%d, Total=%d\n", usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
	if usage.WebSearchCount > 0 {
		fmt.Fprintf(w, "Web Search Calls: %d\n", usage.WebSearchCount)
	}
	if _, known := metadata.Pricing(p, model); !known {
		fmt.Fprintln(w, "Pricing unknown for this model; using provider defaults.")
	}
	fmt.Fprintf(w, "Estimated Cost: $%.5f\n", metadata.EstimateCost(p, model, usage))
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
