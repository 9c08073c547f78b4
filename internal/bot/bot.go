package bot

import (
	"context"
	"fmt"
	"strconv"

	"taskreward_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Config struct {
	AdminID       int64
	SupportHandle string
	TaskURL       string
}

type Bot struct {
	api *tgbotapi.BotAPI
	svc *service.Service
	cfg Config
	log *zap.Logger
}

func New(api *tgbotapi.BotAPI, svc *service.Service, cfg Config, log *zap.Logger) *Bot {
	return &Bot{
		api: api,
		svc: svc,
		cfg: cfg,
		log: log,
	}
}

// Run consumes updates over long polling until ctx is cancelled. Each
// update is handled in isolation; a failure for one user never stops the
// loop.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)

	if msg.From.ID == b.cfg.AdminID && msg.IsCommand() {
		if b.handleAdminCommand(ctx, msg) {
			return
		}
	}

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg, userID)
	case "task":
		b.handleTaskRequest(ctx, msg, userID)
	case "balance":
		b.handleBalance(ctx, msg, userID)
	case "ref":
		b.handleReferralLink(msg, userID)
	case "support":
		b.reply(msg, fmt.Sprintf("Support: @%s", b.cfg.SupportHandle))
	case "":
		b.handleText(ctx, msg, userID)
	default:
		b.reply(msg, "Unknown command. Use /task, /balance, /ref or /support.")
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	_, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, text))
	if err != nil {
		b.log.Warn("failed to send reply",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err))
	}
}

func (b *Bot) notifyAdmin(text string) {
	_, err := b.api.Send(tgbotapi.NewMessage(b.cfg.AdminID, text))
	if err != nil {
		b.log.Warn("failed to notify admin", zap.Error(err))
	}
}

func (b *Bot) referralLink(userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", b.api.Self.UserName, b.svc.LinkSeed(userID))
}
