package history

import (
	"sync"

	"topic-chatter/internal/llm"
)

// Log is the append-only message history of one conversation. The first
// entry is always the system directive it was created with.
type Log struct {
	mu       sync.RWMutex
	messages []llm.Message
}

func New(systemDirective string) *Log {
	return &Log{messages: []llm.Message{{Role: llm.RoleSystem, Content: systemDirective}}}
}

func (l *Log) AppendUser(content string) {
	l.append(llm.Message{Role: llm.RoleUser, Content: content})
}

func (l *Log) AppendAssistant(content string) {
	l.append(llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (l *Log) append(msg llm.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// Messages returns the whole log, system directive included. This is what
// the completion endpoint receives.
func (l *Log) Messages() []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]llm.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Visible returns every message after the system directive, for display.
func (l *Log) Visible() []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]llm.Message, len(l.messages)-1)
	copy(out, l.messages[1:])
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
