package assistant

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"topic-chatter/internal/history"
	"topic-chatter/internal/llm"
	"topic-chatter/internal/storage"
	"topic-chatter/internal/topic"
)

type Kind string

const (
	Refused  Kind = "refused"
	Answered Kind = "answered"
	Failed   Kind = "failed"
)

// Outcome is the result of one turn. Message is what was appended to the log
// as the assistant reply; Err is set only for Failed.
type Outcome struct {
	Kind     Kind
	Message  string
	Err      error
	Response llm.Response
}

// FailureMessage renders the reply shown when the completion call fails.
func FailureMessage(err error) string {
	return "Prišlo je do napake pri povezavi z jezikovnim modelom. 😕\n\n" +
		"Poskusi znova čez nekaj trenutkov.\n\n" +
		fmt.Sprintf("Tehnična napaka: `%v`", err)
}

// Session is one conversation with one topic-restricted assistant. Turns are
// serialized: a turn finishes (refusal, answer or failure) before the next
// one starts.
type Session struct {
	ID string

	profile  topic.Config
	gate     topic.Gate
	history  *history.Log
	client   llm.Client
	recorder storage.Recorder

	turnMu sync.Mutex
}

// NewSession seeds a fresh log with the profile's system directive. recorder
// may be nil.
func NewSession(id string, profile topic.Config, client llm.Client, recorder storage.Recorder) *Session {
	return &Session{
		ID:       id,
		profile:  profile,
		gate:     profile.Gate(),
		history:  history.New(profile.SystemDirective),
		client:   client,
		recorder: recorder,
	}
}

// HandleTurn appends the user's text, then either appends the canned refusal
// (off-topic, the completion client is not called) or the completion reply.
// A completion error is absorbed into the conversation as a Failed outcome.
func (s *Session) HandleTurn(ctx context.Context, userText string) Outcome {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.history.AppendUser(userText)

	var out Outcome
	if !s.gate.InTopic(userText) {
		out = Outcome{Kind: Refused, Message: s.profile.Refusal}
		s.history.AppendAssistant(out.Message)
		log.Printf("[session %s] off-topic input refused: %q", s.ID, userText)
		s.record(userText, out)
		return out
	}

	resp, err := s.client.Generate(ctx, s.history.Messages())
	if err != nil {
		out = Outcome{Kind: Failed, Message: FailureMessage(err), Err: err}
		log.Printf("[session %s] completion failed: %v", s.ID, err)
	} else {
		out = Outcome{Kind: Answered, Message: resp.Content, Response: resp}
		log.Printf("[session %s] LLM response [model=%s, tokens: prompt=%d, completion=%d, total=%d]",
			s.ID, resp.Model, resp.PromptTokens, resp.CompletionTokens, resp.TotalTokens)
	}
	s.history.AppendAssistant(out.Message)
	s.record(userText, out)
	return out
}

func (s *Session) record(userText string, out Outcome) {
	if s.recorder == nil {
		return
	}
	ev := storage.Event{
		Timestamp:         time.Now().UTC(),
		SessionID:         s.ID,
		Profile:           s.profile.Name,
		Outcome:           string(out.Kind),
		UserMessage:       userText,
		AssistantResponse: out.Message,
		Model:             out.Response.Model,
		TotalTokens:       out.Response.TotalTokens,
	}
	if err := s.recorder.AppendInteraction(ev); err != nil {
		log.Printf("[session %s] failed to record turn: %v", s.ID, err)
	}
}

// Visible returns the transcript without the system directive.
func (s *Session) Visible() []llm.Message { return s.history.Visible() }

// Messages returns the full log as sent to the completion endpoint.
func (s *Session) Messages() []llm.Message { return s.history.Messages() }

func (s *Session) Profile() topic.Config { return s.profile }
