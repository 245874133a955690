package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurachat/aurachat/pkg/config"
	"github.com/aurachat/aurachat/pkg/db"
	"github.com/aurachat/aurachat/pkg/handler"
	"github.com/aurachat/aurachat/pkg/quota"
	"github.com/aurachat/aurachat/pkg/service"
	"github.com/aurachat/aurachat/pkg/upstream"
	"github.com/aurachat/aurachat/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("could not write default config", "error", err)
	}

	cfg, cfgPath, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		logger.Error("failed to resolve database path", "error", err)
		os.Exit(1)
	}
	gdb, err := db.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	users := db.NewUserStore(gdb)
	convs := db.NewConversationStore(gdb)
	instr := db.NewInstructionStore(gdb)

	tracker := quota.NewTracker(cfg.GuestDailyLimit(), nil)
	streamer := service.NewStreamer(cfg.TokenInterval())

	completer := upstream.NewClient(upstream.Config{
		BaseURL:       cfg.UpstreamBaseURL(),
		Model:         cfg.UpstreamModel(),
		FallbackModel: cfg.UpstreamFallbackModel(),
		APIKey:        cfg.UpstreamAPIKey(),
		Timeout:       cfg.UpstreamTimeout(),
		MaxRetries:    cfg.UpstreamMaxRetries(),
		MaxTokensCap:  cfg.MaxTokensCap(),
		HistoryWindow: cfg.HistoryWindow(),
	}, logger)

	sessions := service.NewSessionService(users, convs, instr, tracker, streamer, cfg.JWTSecret(), logger)
	chat := service.NewChatService(convs, instr, tracker, completer, streamer, cfg.HistoryWindow(), logger)
	instructions := service.NewInstructionService(instr, logger)

	chatHandler := handler.NewChatHandler(sessions, chat, instructions, logger)
	authHandler := handler.NewAuthHandler(cfg, logger)
	modelsHandler := handler.NewModelsHandler(completer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, chatHandler, authHandler, modelsHandler)
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	server.Shutdown()
}
