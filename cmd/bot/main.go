package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"topic-chatter/internal/analytics"
	"topic-chatter/internal/auth"
	"topic-chatter/internal/config"
	"topic-chatter/internal/llm"
	"topic-chatter/internal/scheduler"
	"topic-chatter/internal/storage"
	"topic-chatter/internal/telegram"
	"topic-chatter/internal/topic"
	"topic-chatter/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no chat is possible without a key; stop before serving anything
		log.Fatalf("❌ %v", err)
	}

	profile, err := topic.Resolve(cfg.BotProfile, cfg.TopicFilePath)
	if err != nil {
		log.Fatalf("failed to load topic profile: %v", err)
	}
	model := profile.Model(cfg.Model)

	llmClient, err := llm.NewFactory(cfg).CreateClient(cfg.LLMProvider, model)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}
	log.Printf("Using profile %q, provider %s, model %s", profile.Name, cfg.LLMProvider, model)

	var rec storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			defer fr.Close()
			rec = fr
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := web.NewStore(profile, llmClient, rec, cfg.SessionIdleTTL)

	sched := scheduler.New(cfg.ReportCron)
	if rec != nil {
		sched.SetReportFunction(func(ctx context.Context) error {
			return logDailyReport(rec, time.Now().UTC().AddDate(0, 0, -1))
		})
	}
	if cfg.SessionIdleTTL > 0 {
		err := sched.AddJob("session sweep", cfg.SessionSweepCron, func(ctx context.Context) error {
			store.EvictIdle()
			return nil
		})
		if err != nil {
			log.Fatalf("failed to schedule session sweep: %v", err)
		}
	}
	if err := sched.Start(); err != nil {
		log.Printf("failed to start scheduler: %v", err)
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, auth.New(cfg.AllowedUsers), profile, llmClient, rec)
		if err != nil {
			log.Fatalf("failed to create telegram bot: %v", err)
		}
		go bot.Start(ctx)
	}

	srv := web.NewServer(store, cfg.HTTPAddr)
	go func() {
		<-ctx.Done()
		if err := srv.Stop(); err != nil {
			log.Printf("failed to stop web server: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("web server failed: %v", err)
	}
	sched.Stop()
	log.Println("👋 Shut down")
}

func logDailyReport(rec storage.Recorder, day time.Time) error {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	events, err := rec.LoadInteractions(from, from.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	log.Printf("📊 %s", analytics.AnalyzeDailyTurns(events, day).Summary())
	return nil
}
