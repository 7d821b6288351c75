package pipeline

import (
	"fmt"
	"strings"

	"github.com/ximaera/fb2lingo/internal/fb2"
	"github.com/ximaera/fb2lingo/internal/langdetect"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/logger"
)

// detectSampleGraphemes bounds the text handed to the detector.
const detectSampleGraphemes = 4000

var detectLanguage = langdetect.DetectISO6391

// ResolveSource maps the configured source language to a Language. "auto"
// trusts the book's title-info/lang first and falls back to detection on
// the body text.
func ResolveSource(doc *fb2.Document, input string) (language.Language, error) {
	if !strings.EqualFold(strings.TrimSpace(input), language.Auto) {
		return language.Resolve(input)
	}
	if declared := doc.Description().Lang; declared != "" {
		primary, _, _ := strings.Cut(declared, "-")
		if lang, ok := language.GetLanguage(primary); ok {
			logger.Info("Source language taken from book description", "lang", lang.Code)
			return lang, nil
		}
		logger.Warn("Book declares an unsupported language, detecting instead", "lang", declared)
	}
	code := detectLanguage(doc.Sample(detectSampleGraphemes))
	if code == "" {
		return language.Language{}, fmt.Errorf("could not detect the source language; pass --source explicitly")
	}
	lang, ok := language.GetLanguage(code)
	if !ok {
		return language.Language{}, fmt.Errorf("detected source language %q is not supported", code)
	}
	logger.Info("Source language detected", "lang", lang.Code)
	return lang, nil
}
