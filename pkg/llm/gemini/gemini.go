// Package gemini implements pkg/llm's Client against the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/coldbrewlabs/engram/pkg/llm"
)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Config holds configuration for the Gemini client.
type Config struct {
	// APIKey is the Google AI API key. Required.
	APIKey string

	// Model is the generation model name. Defaults to DefaultModel.
	Model string
}

// Client wraps the Gemini generation API.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini-backed generation client. A missing API key
// yields llm.ErrUnconfigured so callers can degrade explicitly at wiring
// time.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrUnconfigured
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{client: client, model: model}, nil
}

// Generate sends the prompt content and returns the aggregated completion.
func (c *Client) Generate(ctx context.Context, msgs []llm.Message) (string, error) {
	cs, last, err := c.chatSession(msgs)
	if err != nil {
		return "", err
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	return responseText(resp), nil
}

// GenerateStream sends the prompt content and returns a fragment stream.
func (c *Client) GenerateStream(ctx context.Context, msgs []llm.Message) (llm.Stream, error) {
	cs, last, err := c.chatSession(msgs)
	if err != nil {
		return nil, err
	}

	return &stream{iter: cs.SendMessageStream(ctx, genai.Text(last))}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// chatSession splits msgs into Gemini chat history plus the live prompt,
// mapping roles onto Gemini's user/model vocabulary. The history order is
// preserved exactly as given.
func (c *Client) chatSession(msgs []llm.Message) (*genai.ChatSession, string, error) {
	if len(msgs) == 0 {
		return nil, "", errors.New("empty prompt content")
	}

	model := c.client.GenerativeModel(c.model)
	cs := model.StartChat()

	for _, m := range msgs[:len(msgs)-1] {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}

	return cs, msgs[len(msgs)-1].Text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var out string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	return out
}

// stream adapts the Gemini response iterator to llm.Stream.
type stream struct {
	iter *genai.GenerateContentResponseIterator
}

// Next returns the next text fragment, or io.EOF at exhaustion.
func (s *stream) Next() (string, error) {
	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}

		// Some chunks carry no text (e.g. safety metadata); skip them
		// rather than emitting empty fragments.
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

var _ llm.Client = (*Client)(nil)
