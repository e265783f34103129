package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/pkg/httpclient"
)

// DefaultBaseURL is the OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

const (
	describePrompt = "Describe the main product shown in this image in a short " +
		"phrase suitable as an e-commerce search query. Reply with the phrase only."
	intentPrompt = "Extract the product search query from the following spoken " +
		"request. Reply with the query only, no punctuation: "
)

// Client resolves images and natural language phrases into plain text search
// queries through the OpenAI chat API. The core consumes its output as an
// opaque free text term.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// New creates a vision client. An empty baseURL uses the public API; an empty
// model uses gpt-4o-mini.
func New(baseURL, apiKey, model string, hc *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    hc,
		logger:  logger,
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// DescribeImage turns an image URL into a short search phrase.
func (c *Client) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("describe image: image url is required")
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []map[string]any{
				{"type": "text", "text": describePrompt},
				{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
			},
		}},
		MaxTokens: 60,
	}

	return c.complete(ctx, &req)
}

// ExtractIntent turns a spoken or typed request into a search query.
func (c *Client) ExtractIntent(ctx context.Context, phrase string) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", fmt.Errorf("extract intent: phrase is required")
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: intentPrompt + phrase,
		}},
		MaxTokens: 60,
	}

	return c.complete(ctx, &req)
}

func (c *Client) complete(ctx context.Context, body *chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", httpclient.ParseResponseError(resp, "openai")
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	c.logger.DebugContext(ctx, "query extracted",
		slog.String("model", c.model),
		slog.String("query", text),
	)
	return text, nil
}
