package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultEndpoint      = "/chat/completions"
	defaultTimeout       = 120
)

// ChatRequest is the OpenAI-compatible chat completion request body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the OpenAI-compatible chat completion response body.
type ChatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// client implements Client over net/http for both provider kinds.
// The kinds differ only in how the request URL is resolved.
type client struct {
	profile    Profile
	opts       Options
	apiURL     string
	httpClient *http.Client
}

// New builds a translation client for the profile. The base URL and
// endpoint are resolved once, per the profile's provider kind:
//
//   - openai: explicit base URL override > api.openai.com; endpoint
//     override > /chat/completions.
//   - openai_compatible: base URL is required; a base already ending
//     in /chat/completions is used verbatim, an absolute endpoint URL
//     replaces the base entirely.
func New(profile Profile, opts Options) (Client, error) {
	kind, err := ParseKind(string(profile.Provider))
	if err != nil {
		return nil, err
	}
	profile.Provider = kind

	if profile.APIKey == "" {
		return nil, fmt.Errorf("profile %s: api key is required", profile.Name)
	}
	if profile.Model == "" {
		return nil, fmt.Errorf("profile %s: model is required", profile.Name)
	}

	var apiURL string
	switch kind {
	case KindOpenAI:
		base := profile.BaseURL
		if base == "" {
			base = defaultOpenAIBaseURL
		}
		apiURL = buildAPIURL(base, profile.Endpoint)
	case KindOpenAICompatible:
		if profile.BaseURL == "" {
			return nil, fmt.Errorf("profile %s: base_url is required for provider %s", profile.Name, kind)
		}
		apiURL = buildAPIURL(profile.BaseURL, profile.Endpoint)
	}

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &client{
		profile: profile,
		opts:    opts,
		apiURL:  apiURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

func (c *client) Profile() Profile {
	return c.profile
}

// TranslateBatch sends one chat completion request carrying the texts
// as a JSON array and parses the reply back into one output per
// input. The call is all-or-nothing; partial replies surface as a
// transient error.
func (c *client) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		return nil, newPermanent("marshal batch", err)
	}

	request := ChatRequest{
		Model:       c.profile.Model,
		Temperature: c.opts.Temperature,
		Messages: []Message{
			{Role: "system", Content: buildSystemPrompt(c.opts)},
			{Role: "user", Content: string(payload)},
		},
	}

	response, err := c.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, newTransient("no choices in response", nil)
	}

	translated, err := parseTranslatedContent(response.Choices[0].Message.Content, len(texts))
	if err != nil {
		return nil, newTransient(err.Error(), err)
	}
	return translated, nil
}

func (c *client) makeRequest(ctx context.Context, payload ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newPermanent("marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, newPermanent("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.profile.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, newTransient("request timed out", err)
		}
		return nil, newTransient("request failed", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransient("read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Class:      classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(responseBody)),
		}
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return nil, newTransient("parse response", err)
	}
	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return nil, newPermanent(chatResponse.Error.Message, nil)
	}
	return &chatResponse, nil
}

// buildAPIURL joins base URL and endpoint. A base already pointing at
// /chat/completions and an absolute endpoint URL are both honored
// verbatim.
func buildAPIURL(baseURL, endpoint string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, defaultEndpoint) {
		return base
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

func buildSystemPrompt(opts Options) string {
	var sb strings.Builder
	sb.WriteString("You are a professional technical document translator. ")
	if opts.Domain != "" {
		sb.WriteString(fmt.Sprintf("The documents belong to the %s domain. ", opts.Domain))
	}
	source := opts.SourceLang
	if source == "" {
		source = "the source language"
	}
	sb.WriteString(fmt.Sprintf("Translate every item of the input JSON array from %s to %s. ",
		source, opts.TargetLang))
	sb.WriteString("Keep the array length and order exactly the same. ")
	sb.WriteString("Output only a JSON array of strings with no extra text.")
	return sb.String()
}
