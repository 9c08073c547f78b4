package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskreward_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// handleAdminCommand dispatches the adjudication surface. Returns false
// for commands that are not admin commands so the regular dispatch can
// pick them up.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "accept":
		if len(args) != 1 {
			b.reply(msg, "Usage: /accept USERID")
			return true
		}
		b.adminReply(msg, b.svc.Accept(ctx, args[0]), "Accepted.")
	case "reject":
		if len(args) != 1 {
			b.reply(msg, "Usage: /reject USERID")
			return true
		}
		b.adminReply(msg, b.svc.Reject(ctx, args[0]), "Rejected.")
	case "pay":
		if len(args) != 2 {
			b.reply(msg, "Usage: /pay USERID AMOUNT")
			return true
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			b.reply(msg, "Invalid amount.")
			return true
		}
		b.adminReply(msg, b.svc.Pay(ctx, args[0], amount), "Sent.")
	case "stats":
		b.handleStats(ctx, msg)
	case "broadcast":
		text := strings.TrimSpace(msg.CommandArguments())
		if text == "" {
			b.reply(msg, "Usage: /broadcast TEXT")
			return true
		}
		sent, failed, err := b.svc.Broadcast(ctx, text)
		if err != nil {
			b.log.Error("broadcast failed", zap.Error(err))
			b.reply(msg, "Broadcast failed.")
			return true
		}
		b.reply(msg, fmt.Sprintf("Broadcast done: %d sent, %d failed.", sent, failed))
	default:
		return false
	}
	return true
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	stats, err := b.svc.Stats(ctx)
	if err != nil {
		b.log.Error("failed to collect stats", zap.Error(err))
		b.reply(msg, "Failed to collect stats.")
		return
	}
	b.reply(msg, fmt.Sprintf(
		"Accounts: %d\nQueue depth: %d\nPending tasks: %d\nProofs archived: %d",
		stats.Accounts, stats.QueueDepth, stats.PendingTasks, stats.Proofs))
}

func (b *Bot) adminReply(msg *tgbotapi.Message, err error, ok string) {
	switch {
	case err == nil:
		b.reply(msg, ok)
	case errors.Is(err, service.ErrUnknownUser):
		b.reply(msg, "Unknown user.")
	case errors.Is(err, service.ErrInvalidAmount):
		b.reply(msg, "Invalid amount.")
	case errors.Is(err, service.ErrInsufficientBalance):
		b.reply(msg, "Insufficient balance for this payout.")
	default:
		b.log.Error("admin command failed", zap.Error(err))
		b.reply(msg, "Command failed, see logs.")
	}
}
