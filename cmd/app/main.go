package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskreward_bot/internal/api"
	"taskreward_bot/internal/bot"
	"taskreward_bot/internal/model"
	"taskreward_bot/internal/repository"
	"taskreward_bot/internal/service"
	"taskreward_bot/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	seedFile := flag.String("seed", "", "CSV file of credentials to append to the queue, then exit")
	flag.Parse()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	if *seedFile != "" {
		if err := seedCredentials(repo, *seedFile); err != nil {
			zapLogger.Fatal("Failed to seed credentials", zap.Error(err))
		}
		return
	}

	taskReward, err := decimal.NewFromString(cfg.Rewards.TaskReward)
	if err != nil {
		zapLogger.Fatal("Invalid task reward", zap.Error(err))
	}
	referralBonus, err := decimal.NewFromString(cfg.Rewards.ReferralBonus)
	if err != nil {
		zapLogger.Fatal("Invalid referral bonus", zap.Error(err))
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Telegram", zap.Error(err))
	}

	accountService := service.NewAccountService(repo)
	taskService := service.NewTaskService(repo, cfg.Tasks.Cooldown, cfg.Tasks.PendingTimeout)
	referralService := service.NewReferralService(repo)
	adminService := service.NewAdminService(
		repo,
		bot.NewSender(botAPI),
		taskReward,
		referralBonus,
		cfg.Payouts.AllowNegativeBalance,
		zapLogger,
	)
	svc := service.NewService(accountService, taskService, referralService, adminService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.New(botAPI, svc, bot.Config{
		AdminID:       cfg.Telegram.AdminID,
		SupportHandle: cfg.Telegram.SupportHandle,
		TaskURL:       cfg.Telegram.TaskURL,
	}, zapLogger)

	go func() {
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			zapLogger.Error("bot stopped", zap.Error(err))
			stop()
		}
	}()

	if cfg.Tasks.SweepInterval > 0 {
		go runSweeper(ctx, taskService, cfg.Tasks.SweepInterval, zapLogger)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodHead, http.MethodGet}
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	a := router.Group("/api/v1")
	api.NewStatsRoutes(a, adminService)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}

func runSweeper(ctx context.Context, tasks *service.TaskService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := tasks.SweepExpired(ctx)
			if err != nil {
				log.Error("task sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				log.Info("expired tasks dead-lettered", zap.Int("count", swept))
			}
		}
	}
}

// seedCredentials appends the rows of a provisioning CSV
// (first,last,email,password; header row tolerated) to the queue.
func seedCredentials(repo *repository.Repository, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	var creds []model.Credential
	for i, row := range rows {
		if len(row) < 4 {
			continue
		}
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		creds = append(creds, model.Credential{
			FirstName: strings.TrimSpace(row[0]),
			LastName:  strings.TrimSpace(row[1]),
			Email:     strings.TrimSpace(row[2]),
			Password:  strings.TrimSpace(row[3]),
		})
	}

	err = repo.InsertCredentials(context.Background(), creds)
	if err != nil {
		return err
	}

	logger.Logger().Info("credentials seeded", zap.Int("count", len(creds)))
	return nil
}

func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		cell = strings.ToLower(strings.TrimSpace(cell))
		for _, h := range []string{"first", "last", "email"} {
			if strings.HasPrefix(cell, h) {
				return true
			}
		}
	}
	return false
}
