package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/ximaera/fb2lingo/internal/apperrors"
	"google.golang.org/api/googleapi"
)

type statusRule struct {
	kind apperrors.Kind
	msg  string
}

// Codes missing here are transient from 500 up and bad requests below.
var statusRules = map[int]statusRule{
	http.StatusBadRequest:      {apperrors.KindBadRequest, "Gemini rejected the batch request (400)."},
	http.StatusUnauthorized:    {apperrors.KindAuth, "Gemini API key was rejected (401)."},
	http.StatusForbidden:       {apperrors.KindAuth, "Gemini API key has no access to this model (403)."},
	http.StatusNotFound:        {apperrors.KindBadRequest, "Gemini model not found (404). Check --model."},
	http.StatusTooManyRequests: {apperrors.KindRateLimit, "Gemini quota exceeded (429). Lower --workers or set --qps."},
}

// classifyGeminiError maps SDK failures to apperrors kinds. The safe
// message never carries the upstream body, which may quote book text.
func classifyGeminiError(err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("gemini batch request failed: %w", err)

	switch {
	case errors.Is(err, context.Canceled):
		return wrapped
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.New(apperrors.KindTransient, "Gemini did not answer in time.", wrapped)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		if blocked.Candidate == nil {
			// The batch text itself was refused; resending it cannot help.
			return apperrors.New(apperrors.KindBadRequest, "Gemini refused the batch text (prompt blocked).", wrapped)
		}
		return apperrors.New(apperrors.KindValidation, "Gemini withheld the translation (reply blocked).", wrapped)
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apperrors.New(apperrors.KindTransient, "Gemini request failed due to a network error.", wrapped)
	}
	if rule, ok := statusRules[gerr.Code]; ok {
		return apperrors.New(rule.kind, rule.msg, wrapped)
	}
	if gerr.Code >= 500 {
		return apperrors.New(apperrors.KindTransient, fmt.Sprintf("Gemini service error (%d).", gerr.Code), wrapped)
	}
	return apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("Gemini API error (%d).", gerr.Code), wrapped)
}
