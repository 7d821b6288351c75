package names

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ximaera/fb2lingo/internal/apperrors"
	"github.com/ximaera/fb2lingo/internal/fb2"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/openai"
)

// Generator sends a raw Responses API request.
type Generator interface {
	Generate(ctx context.Context, req openai.RequestData) (*openai.ResponseData, error)
}

// Extractor asks a web-search capable model for the major characters of a
// book and their names in the target language.
type Extractor struct {
	client    Generator
	model     string
	maxTokens int
}

func NewExtractor(client Generator, model string) *Extractor {
	return &Extractor{client: client, model: model, maxTokens: 16384}
}

// SetMaxTokens caps the response size. Non-positive values keep the default.
func (e *Extractor) SetMaxTokens(n int) {
	if n > 0 {
		e.maxTokens = n
	}
}

type CharacterMapping struct {
	Source string
	Target string
}

var (
	urlPattern           = regexp.MustCompile(`https?://[^\s\]\)]+`)
	domainBracketPattern = regexp.MustCompile(`\[[^\]]*\.[a-z]{2,}[^\]]*\]|\([^\)]*\.[a-z]{2,}[^\)]*\)`)
	bracketPattern       = regexp.MustCompile(`\[.*?\]|\(.*?\)|<.*?>`)
)

func buildPrompt(book fb2.Description, src, tgt language.Language) string {
	by := ""
	if len(book.Authors) > 0 {
		by = " by " + strings.Join(book.Authors, ", ")
	}
	return fmt.Sprintf(`Search for the %s book titled "%s"%s.
Extract a list of its major characters. For each character, provide their name as written in the %s original and its established %s rendering (use the published translation if one exists, otherwise a standard transliteration).
IMPORTANT: Return ONLY the name itself. Do NOT include any URLs, source links, brackets, or explanations.`,
		src.Name, book.Title, by, src.Name, tgt.Name)
}

func characterSchema(sourceKey, targetKey string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"characters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						sourceKey: map[string]any{
							"type":        "string",
							"description": "The character name in the source language. ONLY the name.",
						},
						targetKey: map[string]any{
							"type":        "string",
							"description": "The character name in the target language. ONLY the name.",
						},
					},
					"required":             []string{sourceKey, targetKey},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"characters"},
		"additionalProperties": false,
	}
}

// Extract returns the character mappings for the described book together
// with the usage of the request.
func (e *Extractor) Extract(ctx context.Context, book fb2.Description, src, tgt language.Language) ([]CharacterMapping, llm.Usage, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, llm.Usage{}, apperrors.BadRequest(fmt.Errorf("book has no title in its description"))
	}
	req := openai.RequestData{
		Model: e.model,
		Input: []openai.InputItem{
			{Type: "message", Role: "user", Content: buildPrompt(book, src, tgt)},
		},
		Tools:      []openai.Tool{{Type: "web_search"}},
		ToolChoice: "required",
		Reasoning:  &openai.ReasoningOptions{Effort: "medium"},
		Text: &openai.TextOptions{
			Format: &openai.ResponseFormat{
				Type:   "json_schema",
				Name:   "character_extraction",
				Strict: true,
				Schema: characterSchema(src.Code, tgt.Code),
			},
		},
		MaxOutputTokens: e.maxTokens,
	}

	resp, err := e.client.Generate(ctx, req)
	if err != nil {
		return nil, llm.Usage{}, err
	}
	usage := llm.Usage{
		InputTokens:    resp.Usage.InputTokens,
		OutputTokens:   resp.Usage.OutputTokens,
		TotalTokens:    resp.Usage.TotalTokens,
		WebSearchCount: resp.Usage.WebSearchCalls,
	}

	if resp.Status == "incomplete" {
		reason := "unknown"
		if resp.IncompleteDetails != nil {
			reason = resp.IncompleteDetails.Reason
		}
		return nil, usage, apperrors.Validation(fmt.Errorf("response is incomplete (reason: %s)", reason))
	}
	content := resp.OutputText()
	if content == "" {
		return nil, usage, apperrors.Validation(fmt.Errorf("no assistant text found in output"))
	}

	var raw struct {
		Characters []map[string]string `json:"characters"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, usage, apperrors.Validation(fmt.Errorf("failed to parse character mapping: %w", err))
	}
	mappings, err := fromRaw(raw.Characters, src.Code, tgt.Code)
	if err != nil {
		return nil, usage, apperrors.Validation(err)
	}
	for i := range mappings {
		mappings[i].Source = cleanName(mappings[i].Source)
		mappings[i].Target = cleanName(mappings[i].Target)
	}
	return dedupe(mappings), usage, nil
}

func cleanName(name string) string {
	name = urlPattern.ReplaceAllString(name, "")
	name = domainBracketPattern.ReplaceAllString(name, "")
	name = bracketPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// dedupe drops empty names and repeated source names, keeping the first.
func dedupe(in []CharacterMapping) []CharacterMapping {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, m := range in {
		if m.Source == "" || m.Target == "" || seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		out = append(out, m)
	}
	return out
}
