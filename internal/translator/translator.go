package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ximaera/fb2lingo/internal/apperrors"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/logger"
)

// BuildPrompt renders the single instruction sent for one batch.
func BuildPrompt(sourceName, targetName string, texts []string, glossary map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %d paragraphs from %s to %s.\n", len(texts), sourceName, targetName)
	sb.WriteString("Return ONLY the translations, without any comments, explanations or notes.\n")
	sb.WriteString("Answer with a numbered list: every item starts with its number and a period (\"1.\", \"2.\", ...), ")
	sb.WriteString("numbering starts at 1, one item per paragraph, in the original order. ")
	sb.WriteString("Never merge or split paragraphs.\n")

	if len(glossary) > 0 {
		sb.WriteString("\nCRITICAL: The following names MUST be translated as specified:\n")
		keys := make([]string, 0, len(glossary))
		for src := range glossary {
			keys = append(keys, src)
		}
		sort.Strings(keys)
		for _, src := range keys {
			fmt.Fprintf(&sb, "- %s -> %s\n", src, glossary[src])
		}
	}

	sb.WriteString("\n")
	for i, text := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.Join(strings.Fields(text), " "))
	}
	return sb.String()
}

// Translator sends batches to a backend and turns the replies into one
// translation per input text.
type Translator struct {
	backend  llm.Backend
	model    string
	srcLang  language.Language
	tgtLang  language.Language
	glossary map[string]string
	retry    RetryPolicy
	usage    llm.Usage
	usageMu  sync.Mutex
}

// NewTranslator creates a new Translator instance.
func NewTranslator(backend llm.Backend, model string, srcLang, tgtLang language.Language) (*Translator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &Translator{
		backend: backend,
		model:   model,
		srcLang: srcLang,
		tgtLang: tgtLang,
		retry:   DefaultRetryPolicy(),
	}, nil
}

// SetGlossary sets names that must be translated a fixed way.
func (t *Translator) SetGlossary(glossary map[string]string) {
	t.glossary = glossary
}

// SetRetryPolicy replaces the default policy. Zero fields keep their defaults.
func (t *Translator) SetRetryPolicy(p RetryPolicy) {
	t.retry = p.normalized()
}

// TranslateBatch translates texts in a single request and returns exactly
// one translation per text, unless the backend returned more items than
// asked for. A count mismatch is retried; on the last attempt the result is
// padded instead. Backend errors that survive every attempt are returned.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prompt := BuildPrompt(t.srcLang.Name, t.tgtLang.Name, texts, t.glossary)
	policy := t.retry

	logger.Debug("Sending batch", "paragraphs", len(texts), "bytes", len(prompt))

	for attempt := 1; ; attempt++ {
		final := attempt >= policy.MaxAttempts

		resp, err := t.backend.Complete(ctx, t.model, prompt)
		if err == nil && resp == nil {
			err = apperrors.Validation(fmt.Errorf("backend returned no completion"))
		}
		if err != nil {
			if final || !retryableTransport(ctx, err) {
				return nil, fmt.Errorf("batch request failed after %d attempts: %w", attempt, err)
			}
			logger.Warn("Batch request failed, retrying", "attempt", attempt, "error", err)
			if err := policy.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		t.addUsage(resp.Usage)

		items := ParseNumberedList(resp.Text)
		if len(items) == len(texts) {
			return items, nil
		}
		if final {
			logger.Warn("Paragraph count mismatch persists, padding batch",
				"expected", len(texts), "got", len(items), "attempts", attempt)
			return RecoverCount(items, len(texts)), nil
		}
		logger.Warn("Paragraph count mismatch, retrying",
			"expected", len(texts), "got", len(items), "attempt", attempt)
		if err := policy.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (t *Translator) addUsage(u llm.Usage) {
	t.usageMu.Lock()
	t.usage.Add(u)
	t.usageMu.Unlock()
}

// GetUsage returns the total token usage.
func (t *Translator) GetUsage() llm.Usage {
	t.usageMu.Lock()
	defer t.usageMu.Unlock()
	return t.usage
}
