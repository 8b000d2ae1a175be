// Package notifier pushes moderator alerts for harmful submissions to a
// Telegram chat. It is optional: a nil *Bot silently drops alerts.
package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moderator/internal/config"
	"moderator/internal/models"
)

// Bot wraps the Telegram bot API for outbound alerts.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewBot creates the alert bot, or (nil, nil) when alerts are disabled.
func NewBot(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	if !cfg.Alerts.Enabled || cfg.Alerts.TelegramBotToken == "" {
		logger.Info("Telegram alerts are disabled (alerts.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Alerts.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram alert bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:    botAPI,
		chatID: cfg.Alerts.ChatID,
		logger: logger,
	}, nil
}

// SubmissionFlagged sends an alert for a submission classified as harmful.
func (b *Bot) SubmissionFlagged(sub *models.Submission) {
	if b == nil {
		return
	}

	msg := tgbotapi.NewMessage(b.chatID, alertText(sub))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send Telegram alert",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
	}
}

// alertText formats the alert message for a flagged submission.
func alertText(sub *models.Submission) string {
	var score float64
	if sub.Cyberbullying != nil {
		score = sub.Cyberbullying.Score
	}

	text := fmt.Sprintf(
		"⚠️ Harmful content detected\n\nSubmission: %s\nSource: %s\nCyberbullying score: %.2f",
		sub.ID, sub.SourceKind, score,
	)
	if sub.ToxicitySignals != nil {
		text += fmt.Sprintf("\nToxicity: %.2f  Threat: %.2f  Identity attack: %.2f",
			sub.ToxicitySignals.Toxicity, sub.ToxicitySignals.Threat, sub.ToxicitySignals.IdentityAttack)
		if sub.ToxicitySignals.Degraded {
			text += "\n(signals degraded: scoring service was unavailable)"
		}
	}
	return text
}
