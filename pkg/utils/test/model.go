package testutils

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/coldbrewlabs/engram/pkg/llm"
)

// rule routes a scripted reply to prompts containing a substring.
type rule struct {
	contains  string
	text      string
	err       error
	streamErr error
}

// ScriptedClient is a test model client that answers prompts from a set of
// substring-matched rules. Rules make replies deterministic even when the
// engine issues concurrent calls (the distiller and the extractor run in
// parallel, so a plain FIFO queue would be racy).
type ScriptedClient struct {
	mu       sync.Mutex
	rules    []rule
	fallback string

	// Calls accumulates every prompt passed to Generate or GenerateStream.
	Calls [][]llm.Message
}

func NewScriptedClient(fallback string) *ScriptedClient {
	return &ScriptedClient{fallback: fallback}
}

// RespondWith registers a reply for any prompt whose messages contain the
// given substring. Later registrations win, so tests can override defaults.
func (c *ScriptedClient) RespondWith(contains, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{contains: contains, text: text})
}

// FailWith registers an error for any prompt whose messages contain the
// given substring.
func (c *ScriptedClient) FailWith(contains string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{contains: contains, err: err})
}

// FailStreamWith registers a reply whose stream yields the text's tokens and
// then fails with err instead of ending cleanly.
func (c *ScriptedClient) FailStreamWith(contains, text string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{contains: contains, text: text, streamErr: err})
}

// CallCount returns the number of calls made so far.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

func (c *ScriptedClient) Generate(_ context.Context, msgs []llm.Message) (string, error) {
	matched := c.reply(msgs)
	if matched.err != nil {
		return "", matched.err
	}
	return matched.text, nil
}

func (c *ScriptedClient) GenerateStream(_ context.Context, msgs []llm.Message) (llm.Stream, error) {
	matched := c.reply(msgs)
	if matched.err != nil {
		return nil, matched.err
	}
	return &scriptedStream{tokens: splitTokens(matched.text), err: matched.streamErr}, nil
}

func (c *ScriptedClient) Close() error {
	return nil
}

func (c *ScriptedClient) reply(msgs []llm.Message) rule {
	c.mu.Lock()
	defer c.mu.Unlock()

	recorded := make([]llm.Message, len(msgs))
	copy(recorded, msgs)
	c.Calls = append(c.Calls, recorded)

	for i := len(c.rules) - 1; i >= 0; i-- {
		r := c.rules[i]
		for _, msg := range msgs {
			if strings.Contains(msg.Text, r.contains) {
				return r
			}
		}
	}

	return rule{text: c.fallback}
}

// scriptedStream yields a fixed token sequence, then err if set, else io.EOF.
type scriptedStream struct {
	tokens []string
	pos    int
	err    error
}

func (s *scriptedStream) Next() (string, error) {
	if s.pos >= len(s.tokens) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	token := s.tokens[s.pos]
	s.pos++
	return token, nil
}

// splitTokens breaks text into word-sized chunks preserving whitespace, so
// streamed output concatenates back to the original text.
func splitTokens(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}
