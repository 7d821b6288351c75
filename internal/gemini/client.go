// Package gemini translates batches through the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/ximaera/fb2lingo/internal/apperrors"
	"github.com/ximaera/fb2lingo/internal/httpclient"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/logger"
	"google.golang.org/api/option"
)

// generateFunc sends one prompt to model. The SDK is reached only through
// this seam so Complete can be exercised without the network.
type generateFunc func(ctx context.Context, model string, temperature *float32, prompt string) (*genai.GenerateContentResponse, error)

// Client implements llm.Backend on top of the genai SDK.
type Client struct {
	sdk         *genai.Client
	generate    generateFunc
	temperature *float32
}

var _ llm.Backend = (*Client)(nil)

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	// option.WithHTTPClient breaks the SDK's API key header injection (403),
	// so timeouts are enforced through the context in Complete instead.
	sdk, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	c := &Client{sdk: sdk}
	c.generate = c.sdkGenerate
	return c, nil
}

func (c *Client) sdkGenerate(ctx context.Context, model string, temperature *float32, prompt string) (*genai.GenerateContentResponse, error) {
	m := c.sdk.GenerativeModel(model)
	if temperature != nil {
		m.SetTemperature(*temperature)
	}
	return m.GenerateContent(ctx, genai.Text(prompt))
}

// SetTemperature sets the sampling temperature for every request.
func (c *Client) SetTemperature(t float32) {
	c.temperature = &t
}

// Close releases the SDK connection.
func (c *Client) Close() error {
	if c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

// Complete sends one batch prompt and returns the numbered-list reply.
func (c *Client) Complete(ctx context.Context, model, prompt string) (*llm.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	resp, err := c.generate(ctx, model, c.temperature, prompt)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text, truncated, err := replyText(resp)
	if err != nil {
		return nil, apperrors.Validation(err)
	}
	if truncated {
		// A cut-off list is still usable: missing items are recovered by
		// the caller's count check.
		logger.Warn("Gemini reply hit the output token limit", "model", model)
	}

	out := &llm.Completion{Text: text}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// replyText joins the text parts of the first candidate that has any.
// truncated reports a reply that stopped at the token limit.
func replyText(resp *genai.GenerateContentResponse) (text string, truncated bool, err error) {
	if resp == nil {
		return "", false, fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", false, fmt.Errorf("no candidates returned from Gemini")
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if strings.TrimSpace(sb.String()) == "" {
			continue
		}
		return sb.String(), cand.FinishReason == genai.FinishReasonMaxTokens, nil
	}
	return "", false, fmt.Errorf("no text parts found in Gemini response")
}
