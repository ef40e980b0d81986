package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"releasefinder/internal/domain"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 20 * time.Second
)

const folderPrompt = `You extract music release metadata from a folder name.
Reply with a single JSON object: {"artist": string, "album": string, "year": string}.
Use an empty string for anything you cannot determine. Do not guess.`

const intentPrompt = `You turn a user's message into a music release search.
Reply with a single JSON object: {"query": string, "engine": string}.
"query" is "artist album" with filler words removed. "engine" is one of
"musicbrainz", "discogs", "bandcamp" when the user names a source, otherwise "".`

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client asks a chat-completion model to normalize folder names and search text.
// Every method returns (nil, nil) when the model reply is unusable.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key not provided")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = base
	}
	clientConfig.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *Client) ParseFolder(ctx context.Context, name string) (*domain.FolderInfo, error) {
	var reply struct {
		Artist string `json:"artist"`
		Album  string `json:"album"`
		Year   string `json:"year"`
	}
	ok, err := c.complete(ctx, folderPrompt, name, &reply)
	if err != nil || !ok {
		return nil, err
	}
	info := &domain.FolderInfo{
		Artist: strings.TrimSpace(reply.Artist),
		Album:  strings.TrimSpace(reply.Album),
		Year:   strings.TrimSpace(reply.Year),
	}
	if !info.Complete() {
		return nil, nil
	}
	return info, nil
}

func (c *Client) ClassifySearch(ctx context.Context, text string) (*domain.SearchIntent, error) {
	var reply struct {
		Query  string `json:"query"`
		Engine string `json:"engine"`
	}
	ok, err := c.complete(ctx, intentPrompt, text, &reply)
	if err != nil || !ok {
		return nil, err
	}
	intent := &domain.SearchIntent{Query: strings.TrimSpace(reply.Query)}
	if intent.Query == "" {
		return nil, nil
	}
	if engine, known := domain.ParseSearchEngine(reply.Engine); known {
		intent.Engine = engine
	}
	return intent, nil
}

// complete sends one system+user exchange and decodes the JSON reply into out.
// It reports false when the reply is empty or not valid JSON.
func (c *Client) complete(ctx context.Context, system, user string, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return false, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return false, nil
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if content == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return false, nil
	}
	return true, nil
}
