package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// TGBotAPIAdapter направляет вывод библиотеки go-telegram-bot-api/v5 в slog.
// Сообщения библиотеки содержат URL с токеном бота, поэтому логгер
// должен быть создан через NewMaskedLogger.
type TGBotAPIAdapter struct {
	Logger *slog.Logger
}

// Println реализует метод интерфейса tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Println(v ...interface{}) {
	a.Logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)), "component", "tgbotapi")
}

// Printf реализует метод интерфейса tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Printf(format string, v ...interface{}) {
	a.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "tgbotapi")
}
