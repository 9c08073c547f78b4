package bot

import (
	"context"
	"errors"
	"fmt"

	"taskreward_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, userID string) {
	_, err := b.svc.Ensure(ctx, userID)
	if err != nil {
		b.log.Error("failed to ensure account", zap.String("user_id", userID), zap.Error(err))
		b.reply(msg, "Something went wrong, please try again later.")
		return
	}

	if payload := msg.CommandArguments(); payload != "" {
		err = b.svc.Attribute(ctx, userID, payload)
		if err != nil {
			b.log.Error("failed to attribute referral", zap.String("user_id", userID), zap.Error(err))
		}
	}

	b.reply(msg, fmt.Sprintf(
		"Welcome! Request a task with /task, check your balance with /balance.\n\n"+
			"Your referral link: %s\n(you earn a bonus when an invited user completes their first task)",
		b.referralLink(userID)))
}

func (b *Bot) handleTaskRequest(ctx context.Context, msg *tgbotapi.Message, userID string) {
	cred, err := b.svc.Assign(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoTaskAvailable):
			b.reply(msg, "No tasks available right now, check back later.")
		case errors.Is(err, service.ErrAlreadyPending):
			b.reply(msg, "You already have a task in progress. Send your proof here first.")
		case errors.Is(err, service.ErrRateLimited):
			b.reply(msg, "You are requesting tasks too quickly. Wait a bit and try again.")
		default:
			b.log.Error("failed to assign task", zap.String("user_id", userID), zap.Error(err))
			b.reply(msg, "Something went wrong, please try again later.")
		}
		return
	}

	b.reply(msg, fmt.Sprintf(
		"Your task:\n1) Open: %s\n2) Log in with the account below and complete it\n3) Send your proof here as a message.\n\n"+
			"First: %s\nLast: %s\nEmail: %s\nPassword: %s",
		b.cfg.TaskURL, cred.FirstName, cred.LastName, cred.Email, cred.Password))
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message, userID string) {
	balance, err := b.svc.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) {
			b.reply(msg, "Send /start first.")
			return
		}
		b.log.Error("failed to get balance", zap.String("user_id", userID), zap.Error(err))
		b.reply(msg, "Something went wrong, please try again later.")
		return
	}
	b.reply(msg, fmt.Sprintf("Your balance: %s$", balance.String()))
}

func (b *Bot) handleReferralLink(msg *tgbotapi.Message, userID string) {
	b.reply(msg, b.referralLink(userID))
}

// handleText routes free text. While a task is pending it is the proof;
// otherwise it is unrecognized input, never forwarded for adjudication.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message, userID string) {
	proof, err := b.svc.SubmitProof(ctx, userID, msg.Text)
	if err != nil {
		if errors.Is(err, service.ErrNoPendingTask) {
			b.reply(msg, "I didn't understand that. Use /task, /balance, /ref or /support.")
			return
		}
		b.log.Error("failed to submit proof", zap.String("user_id", userID), zap.Error(err))
		b.reply(msg, "Something went wrong, please try again later.")
		return
	}

	b.notifyAdmin(fmt.Sprintf(
		"Proof submitted by %s\nAccount: %s %s / %s\nProof: %s\n\nUse /accept %s or /reject %s",
		proof.UserID,
		proof.Credential.FirstName, proof.Credential.LastName, proof.Credential.Email,
		proof.ProofText,
		proof.UserID, proof.UserID))

	b.reply(msg, "Proof received, it is now waiting for review.")
}
