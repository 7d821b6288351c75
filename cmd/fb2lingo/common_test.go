package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ximaera/fb2lingo/internal/auth"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/metadata"
)

func TestKeyMode(t *testing.T) {
	cases := []struct {
		allowEnv, envOnly bool
		want              auth.Mode
	}{
		{false, false, auth.KeychainOnly},
		{true, false, auth.KeychainThenEnv},
		{false, true, auth.EnvOnly},
		{true, true, auth.EnvOnly},
	}
	for _, tc := range cases {
		if got := keyMode(tc.allowEnv, tc.envOnly); got != tc.want {
			t.Errorf("keyMode(%v, %v) = %v, want %v", tc.allowEnv, tc.envOnly, got, tc.want)
		}
	}
}

func TestResolveAPIKey(t *testing.T) {
	prev := resolveKey
	t.Cleanup(func() { resolveKey = prev })

	var gotMode auth.Mode
	resolveKey = func(p metadata.Provider, mode auth.Mode) (string, auth.Source, error) {
		gotMode = mode
		if p == metadata.ProviderGemini {
			return "", auth.SourceNone, auth.ErrNoKey
		}
		return "sk-test", auth.SourceKeychain, nil
	}

	key, err := resolveAPIKey(metadata.ProviderOpenAI, true, false)
	if err != nil || key != "sk-test" || gotMode != auth.KeychainThenEnv {
		t.Fatalf("resolveAPIKey = %q, %v (mode %v)", key, err, gotMode)
	}
	if _, err := resolveAPIKey(metadata.ProviderGemini, false, false); !errors.Is(err, auth.ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}

func TestPrintUsageStats(t *testing.T) {
	var buf bytes.Buffer
	usage := llm.Usage{InputTokens: 1_000_000, OutputTokens: 100_000, TotalTokens: 1_100_000}
	printUsageStats(&buf, metadata.ProviderOpenAI, "gpt-4o", usage, 1500*time.Millisecond)

	out := buf.String()
	for _, want := range []string{
		"Model: gpt-4o (openai)",
		"Tokens: In=1000000, Out=100000, Total=1100000",
		"Estimated Cost: $3.50000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Pricing unknown") {
		t.Errorf("gpt-4o should have known pricing")
	}
}

func TestPrintUsageStats_NoUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsageStats(&buf, metadata.ProviderGemini, "gemini-3-flash-preview", llm.Usage{}, time.Second)
	if strings.Contains(buf.String(), "Estimated Cost") {
		t.Fatalf("no cost line expected without usage:\n%s", buf.String())
	}
}
