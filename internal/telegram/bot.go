package telegram

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"topic-chatter/internal/assistant"
	"topic-chatter/internal/auth"
	"topic-chatter/internal/llm"
	"topic-chatter/internal/storage"
	"topic-chatter/internal/topic"
)

const resetCmd = "reset_ctx"

const (
	msgNotAllowed = "Dostop do tega bota je omejen."
	msgReset      = "Pogovor je ponastavljen. Začniva znova."
)

// Bot serves the assistant over Telegram. Each chat gets its own session and
// its messages are handled in arrival order; different chats run
// concurrently, so a slow completion in one chat does not hold up another.
type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	authSvc   *auth.Service
	profile   topic.Config
	llmClient llm.Client
	recorder  storage.Recorder

	mu       sync.Mutex
	sessions map[int64]*assistant.Session
	// tails holds, per chat, a channel closed when the chat's latest queued
	// message has been handled.
	tails map[int64]chan struct{}
}

func New(botToken string, authSvc *auth.Service, profile topic.Config, llmClient llm.Client, recorder storage.Recorder) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:       api,
		s:         botAPISender{api: api},
		authSvc:   authSvc,
		profile:   profile,
		llmClient: llmClient,
		recorder:  recorder,
		sessions:  make(map[int64]*assistant.Session),
		tails:     make(map[int64]chan struct{}),
	}, nil
}

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("🤖 Telegram bot @%s started (profile %s)", b.api.Self.UserName, b.profile.Name)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.dispatch(ctx, update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
			}
		}
	}
}

// dispatch handles msg on its own goroutine once every earlier message of the
// same chat has been handled.
func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	done := make(chan struct{})

	b.mu.Lock()
	prev := b.tails[chatID]
	b.tails[chatID] = done
	b.mu.Unlock()

	go func() {
		defer func() {
			close(done)
			b.mu.Lock()
			if b.tails[chatID] == done {
				delete(b.tails, chatID)
			}
			b.mu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		b.handleIncomingMessage(ctx, msg)
	}()
}

func (b *Bot) session(chatID int64) *assistant.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[chatID]
	if !ok {
		s = assistant.NewSession(fmt.Sprintf("tg-%d", chatID), b.profile, b.llmClient, b.recorder)
		b.sessions[chatID] = s
	}
	return s
}

func (b *Bot) reset(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if !b.authSvc.IsAllowed(msg.From.ID) {
		log.Printf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, msgNotAllowed)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("💬 Pametni chatbot\n\nOdgovarjam izključno v slovenščini in samo o temi: %s.", b.profile.Description))
			return
		case "reset":
			b.reset(msg.Chat.ID)
			b.sendMessage(msg.Chat.ID, msgReset)
			return
		}
	}

	log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, msg.Text)

	out := b.session(msg.Chat.ID).HandleTurn(ctx, msg.Text)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Nova seja", resetCmd),
		),
	)
	msgOut := tgbotapi.NewMessage(msg.Chat.ID, out.Message)
	msgOut.ReplyMarkup = kb
	if _, err := b.s.Send(msgOut); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Data != resetCmd || cb.Message == nil {
		return
	}
	b.reset(cb.Message.Chat.ID)
	b.sendMessage(cb.Message.Chat.ID, msgReset)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
