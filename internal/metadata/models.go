// Package metadata is the catalog of supported providers and models with
// their list prices.
package metadata

import (
	"fmt"
	"strings"

	"github.com/ximaera/fb2lingo/internal/llm"
)

// Provider names a translation backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ParseProvider validates a provider name. Empty means OpenAI.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderOpenAI, nil
	case ProviderOpenAI, ProviderGemini:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want openai or gemini)", s)
	}
}

type Model struct {
	Provider         Provider
	ID               string
	Label            string
	InputPerMillion  float64
	OutputPerMillion float64
}

var Models = []Model{
	{Provider: ProviderOpenAI, ID: "gpt-4o", Label: "GPT-4o", InputPerMillion: 2.50, OutputPerMillion: 10.00},
	{Provider: ProviderOpenAI, ID: "gpt-4o-mini", Label: "GPT-4o mini", InputPerMillion: 0.15, OutputPerMillion: 0.60},
	{Provider: ProviderOpenAI, ID: "gpt-4.1", Label: "GPT-4.1", InputPerMillion: 2.00, OutputPerMillion: 8.00},
	{Provider: ProviderOpenAI, ID: "gpt-5.2", Label: "GPT-5.2", InputPerMillion: 1.75, OutputPerMillion: 14.00},
	{Provider: ProviderGemini, ID: "gemini-3-flash-preview", Label: "Gemini 3 Flash (preview)", InputPerMillion: 0.50, OutputPerMillion: 3.00},
	{Provider: ProviderGemini, ID: "gemini-3-pro-preview", Label: "Gemini 3 Pro (preview)", InputPerMillion: 2.00, OutputPerMillion: 12.00},
}

const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultGeminiModel = "gemini-3-flash-preview"
	// NamesModel extracts character names; it needs the web search tool.
	NamesModel = "gpt-5.2"

	DefaultOpenAIInputPerMillion  = 2.50
	DefaultOpenAIOutputPerMillion = 10.00
	DefaultGeminiInputPerMillion  = 2.00
	DefaultGeminiOutputPerMillion = 12.00
	WebSearchCostPerCall          = 0.01
)

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	if p == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// ModelIDs lists the catalogued models of a provider.
func ModelIDs(p Provider) []string {
	var ids []string
	for _, m := range Models {
		if m.Provider == p {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Pricing returns the catalog entry for a model, or provider-wide default
// prices when the model is unknown.
func Pricing(p Provider, modelID string) (Model, bool) {
	for _, m := range Models {
		if m.Provider == p && m.ID == modelID {
			return m, true
		}
	}
	if p == ProviderGemini {
		return Model{
			Provider:         p,
			ID:               "default",
			Label:            "Default Gemini",
			InputPerMillion:  DefaultGeminiInputPerMillion,
			OutputPerMillion: DefaultGeminiOutputPerMillion,
		}, false
	}
	return Model{
		Provider:         ProviderOpenAI,
		ID:               "default",
		Label:            "Default OpenAI",
		InputPerMillion:  DefaultOpenAIInputPerMillion,
		OutputPerMillion: DefaultOpenAIOutputPerMillion,
	}, false
}

// EstimateCost prices usage in USD. Tokens the provider bills but does not
// split into input and output (Gemini thinking tokens) are charged as output.
func EstimateCost(p Provider, modelID string, usage llm.Usage) float64 {
	m, _ := Pricing(p, modelID)
	output := usage.OutputTokens
	if extra := usage.TotalTokens - usage.InputTokens - usage.OutputTokens; extra > 0 {
		output += extra
	}
	cost := float64(usage.InputTokens)/1e6*m.InputPerMillion + float64(output)/1e6*m.OutputPerMillion
	return cost + float64(usage.WebSearchCount)*WebSearchCostPerCall
}
