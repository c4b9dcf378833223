// Package notify sends optional completion notifications once a run's
// Outcome reaches a terminal appraisal. It is inert when no Telegram token
// is configured.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/an0x03e8/avred/model"
)

// TelegramNotifier posts run-completion summaries to a single chat. It is
// optional: callers construct one only when a bot token is configured.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logrus.Entry
}

// NewTelegramNotifier builds a notifier from a bot token. Returns an error
// if the token is invalid or the Telegram API is unreachable at startup.
func NewTelegramNotifier(token string, chatID int64, logger *logrus.Entry) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// NotifyCompletion sends a one-line summary of outcome's appraisal and
// match count.
func (n *TelegramNotifier) NotifyCompletion(outcome *model.Outcome) error {
	message := formatCompletionMessage(outcome)
	msg := tgbotapi.NewMessage(n.chatID, message)
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send completion notification: %w", err)
	}
	return nil
}

// NotifyFailure sends a one-line summary of a run abandoned with a fatal
// error.
func (n *TelegramNotifier) NotifyFailure(filename string, cause error) error {
	message := fmt.Sprintf("❌ *Run Failed*\n\n📄 File: %s\n⚠️ Error: %s", filename, cause.Error())
	msg := tgbotapi.NewMessage(n.chatID, message)
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send failure notification: %w", err)
	}
	return nil
}

func formatCompletionMessage(outcome *model.Outcome) string {
	switch outcome.Appraisal {
	case model.AppraisalUndetected:
		return fmt.Sprintf("✅ *Scan Complete*\n\n📄 File: %s\nNot detected by %s.", outcome.File.Name, outcome.ScannerName)
	case model.AppraisalHash:
		return fmt.Sprintf("🔎 *Scan Complete*\n\n📄 File: %s\nDetected by a whole-file hash signature.", outcome.File.Name)
	default:
		return fmt.Sprintf("🔎 *Scan Complete*\n\n📄 File: %s\nAppraisal: %s\nMatches: %d",
			outcome.File.Name, outcome.Appraisal, len(outcome.Matches))
	}
}
