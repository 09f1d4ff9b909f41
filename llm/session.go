package llm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// Session holds one run's conversation with the model: an id for
// correlation, the model name, and the accumulated message history.
// A session lives exactly as long as its run.
type Session struct {
	id    string
	model string

	mu       sync.Mutex
	messages []llms.MessageContent
}

// NewSession creates a session for the given model with an optional
// system prompt as the first message.
func NewSession(model, systemPrompt string) *Session {
	s := &Session{
		id:    uuid.NewString(),
		model: model,
	}
	if systemPrompt != "" {
		s.messages = append(s.messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Model returns the model name requests are sent to.
func (s *Session) Model() string { return s.model }

// Append adds messages to the history.
func (s *Session) Append(msgs ...llms.MessageContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// Messages returns a copy of the history.
func (s *Session) Messages() []llms.MessageContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llms.MessageContent, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
