package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ximaera/fb2lingo/internal/apperrors"
	"github.com/ximaera/fb2lingo/internal/httpclient"
	"github.com/ximaera/fb2lingo/internal/llm"
	"github.com/ximaera/fb2lingo/internal/logger"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client talks to the OpenAI Responses API.
type Client struct {
	apiKey      string
	baseURL     string
	temperature *float64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url = strings.TrimRight(strings.TrimSpace(url), "/"); url != "" {
			c.baseURL = url
		}
	}
}

// WithTemperature sets the sampling temperature used by Complete.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = &t
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ llm.Backend = (*Client)(nil)

// Complete sends prompt as a single user message and returns the output text.
func (c *Client) Complete(ctx context.Context, model, prompt string) (*llm.Completion, error) {
	resp, err := c.Generate(ctx, RequestData{
		Model:       model,
		Input:       []InputItem{{Type: "message", Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == "incomplete" {
		reason := ""
		if resp.IncompleteDetails != nil {
			reason = resp.IncompleteDetails.Reason
		}
		logger.Warn("OpenAI response incomplete", "reason", reason, "response_id", resp.ID)
	}
	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.KindValidation, "OpenAI returned no text.", fmt.Errorf("empty output for response %s", resp.ID))
	}
	return &llm.Completion{
		Text: text,
		Usage: llm.Usage{
			InputTokens:    resp.Usage.InputTokens,
			OutputTokens:   resp.Usage.OutputTokens,
			TotalTokens:    resp.Usage.TotalTokens,
			WebSearchCount: resp.Usage.WebSearchCalls,
		},
	}, nil
}

// Generate posts req to /responses. req.Model must be set.
func (c *Client) Generate(ctx context.Context, req RequestData) (*ResponseData, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, apperrors.BadRequest(fmt.Errorf("openai model is empty"))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()
	body, resp, err := httpclient.PostJSON(ctx, httpclient.GetDefaultClient(), c.baseURL+"/responses", req, header)
	if err != nil {
		if resp == nil {
			return nil, apperrors.New(
				apperrors.KindTransient,
				"OpenAI request failed due to a temporary network/runtime error.",
				fmt.Errorf("request failed: %w", err),
			)
		}
		return nil, apperrors.New(apperrors.KindTransient, "OpenAI response could not be read.", err)
	}

	if resp.StatusCode != http.StatusOK {
		details := parseErrorDetails(body)
		return nil, classifyOpenAIError(resp.StatusCode, resp.Status, details)
	}

	var result ResponseData
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.New(
			apperrors.KindValidation,
			"OpenAI response format was invalid.",
			fmt.Errorf("failed to decode response: %w", err),
		)
	}

	logger.Debug("OpenAI API Response", "status", resp.Status, "usage_total", result.Usage.TotalTokens, "response_id", result.ID)

	for _, item := range result.Output {
		if item.Type == "web_search_call" {
			result.Usage.WebSearchCalls++
		}
	}

	return &result, nil
}
