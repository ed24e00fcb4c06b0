// Package llm defines the provider-agnostic message and client contracts
// used by the engine for text generation.
package llm

// Roles used in prompt content. Providers map these onto their native
// role vocabulary (e.g. "assistant" becomes Gemini's "model" role, and
// "system" is folded into a leading user turn for providers without a
// dedicated system channel).
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of prompt content.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewMessage creates a message with the given role and text.
func NewMessage(role, text string) Message {
	return Message{Role: role, Text: text}
}
