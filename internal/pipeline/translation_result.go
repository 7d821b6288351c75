package pipeline

import (
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/metadata"
)

// TranslationStatus is the terminal state of a translation run.
type TranslationStatus string

const (
	TranslationStatusSuccess        TranslationStatus = "Success"
	TranslationStatusPartialSuccess TranslationStatus = "Partial Success"
	TranslationStatusFailure        TranslationStatus = "Failure"
	TranslationStatusSkipped        TranslationStatus = "Skipped"
)

// TranslationResult contains structured outputs from RunTranslation.
type TranslationResult struct {
	Status        TranslationStatus
	OutputPath    string
	Provider      metadata.Provider
	Model         string
	SourceLang    language.Language
	TargetLang    language.Language
	Usage         llm.Usage
	Paragraphs    int
	FailedBatches int
	TotalBatches  int
}

func statusFor(failed, total int) TranslationStatus {
	switch {
	case failed == 0:
		return TranslationStatusSuccess
	case failed < total:
		return TranslationStatusPartialSuccess
	default:
		return TranslationStatusFailure
	}
}
