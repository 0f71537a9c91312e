package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"game-pulse/internal/infra/metrics"
)

// TelegramNotifier шлёт алерты о падениях воркеров в чат дежурных.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram создаёт нотификатор.
func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("создание бота для алертов: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyFailure отправляет сообщение о падении запуска.
func (n *TelegramNotifier) NotifyFailure(_ context.Context, jobType, runID, message string) error {
	text := fmt.Sprintf("⚠️ Запуск %s упал\nrun_id: %s\n%s", jobType, runID, message)
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true

	start := time.Now()
	_, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_alert", strconv.FormatInt(n.chatID, 10), start, err)
	if err != nil {
		return fmt.Errorf("отправка алерта: %w", err)
	}
	return nil
}
