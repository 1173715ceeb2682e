package alert

import (
	"context"
	"fmt"
	"time"

	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/adapter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var _ adapter.Alerter = (*TelegramAlerter)(nil)

// TelegramAlerter pushes operator alerts into a Telegram chat. All sends
// are best-effort; callers swallow the returned error after logging.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramAlerter(token string, chatID int64, logger *zerolog.Logger) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram alerter: %w", err)
	}
	l := logger.With().Str("component", "TelegramAlerter").Logger()
	return &TelegramAlerter{bot: bot, chatID: chatID, log: &l}, nil
}

func (a *TelegramAlerter) JobDeadLettered(ctx context.Context, job *model.Job) error {
	text := fmt.Sprintf(
		"❌ job %s dead-lettered after %d attempts\ninput: %s\nlast error: %s",
		job.ID, job.Attempt(), job.Filepath, job.LastError)
	return a.send(text)
}

func (a *TelegramAlerter) ShutdownTriggered(ctx context.Context, host string, idleFor time.Duration) error {
	text := fmt.Sprintf("💤 fleet idle for %s, shutting down %s", idleFor.Round(time.Second), host)
	return a.send(text)
}

func (a *TelegramAlerter) send(text string) error {
	msg := tgbotapi.NewMessage(a.chatID, text)
	_, err := a.bot.Send(msg)
	return err
}
