package main

import (
	"context"
	"errors"
	logg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaam8/reaction_poll_bot/internal/api"
	"github.com/jaam8/reaction_poll_bot/internal/config"
	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/internal/repository"
	srv "github.com/jaam8/reaction_poll_bot/internal/service"
	"github.com/jaam8/reaction_poll_bot/pkg/discord"
	"github.com/jaam8/reaction_poll_bot/pkg/logger"
	"github.com/jaam8/reaction_poll_bot/pkg/mattermost"
	"github.com/jaam8/reaction_poll_bot/pkg/metrics"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	cfg, err := config.New(os.Args[1:])
	if err != nil {
		logg.Fatalf("failed to load config: %s", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		logg.Fatalf("failed to initalize logger: %s", err)
	}
	defer log.Sync()

	opts := srv.Options{
		PageLimit:    cfg.Poll.PageLimit,
		MaxNames:     cfg.Poll.MaxNames,
		Spacer:       srv.DefaultSpacer,
		HistoryLimit: cfg.Poll.HistoryLimit,
	}
	limiter := api.NewLimiter(cfg.Commands.RatePerMinute, cfg.Commands.Burst)

	var closeBot func()
	switch cfg.Platform {
	case config.PlatformDiscord:
		session, err := discord.New(cfg.BotToken)
		if err != nil {
			logg.Fatalf("failed to create discord session: %s", err)
		}
		me, err := discord.Self(session)
		if err != nil {
			logg.Fatalf("failed to get discord bot user: %s", err)
		}
		repo := repository.NewDiscord(session, log)
		service, err := srv.New(repo, models.Self{ID: me.ID}, opts, log)
		if err != nil {
			logg.Fatalf("failed to create poll service: %s", err)
		}
		commands := api.NewCommands(service, limiter, log)
		handler := api.NewDiscordHandler(ctx, service, repo, commands, cfg.Discord.GuildID, log)
		if err := discord.Connect(session, handler.Register); err != nil {
			logg.Fatalf("failed to open discord gateway: %s", err)
		}
		if err := handler.RegisterCommands(session); err != nil {
			log.Error("slash commands are unavailable", zap.Error(err))
		}
		closeBot = func() {
			if err := session.Close(); err != nil {
				log.Error("failed to close discord session", zap.Error(err))
			}
		}
		log.Info("discord bot started", zap.String("bot_id", me.ID))

	case config.PlatformMattermost:
		conn, err := mattermost.New(cfg.Mattermost, cfg.BotToken)
		if err != nil {
			logg.Fatalf("failed to connect to mattermost: %s", err)
		}
		repo := repository.NewMattermost(conn.Client, conn.Bot.Id, log)
		service, err := srv.New(repo, models.Self{ID: conn.Bot.Id}, opts, log)
		if err != nil {
			logg.Fatalf("failed to create poll service: %s", err)
		}
		commands := api.NewCommands(service, limiter, log)
		handler := api.NewMattermostHandler(service, repo, commands, conn.Bot.Id, log)
		conn.WebSocket.Listen()
		go handler.Listen(ctx, conn.WebSocket.EventChannel)
		closeBot = conn.WebSocket.Close
		log.Info("mattermost bot started", zap.String("bot_id", conn.Bot.Id))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              ":" + cfg.RestPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop metrics server", zap.Error(err))
	}
	closeBot()
	logg.Println("server graceful stopped")
}
