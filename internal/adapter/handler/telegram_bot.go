package handler

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeoutSeconds = 30

// TelegramBot long-polls the Telegram API and feeds commands to the
// router. Each update is handled in its own goroutine: commands are
// independent units of work and may run concurrently. Run does not
// return until every in-flight handler has finished, so callers can
// sequence shutdown behind it.
type TelegramBot struct {
	api    *tgbotapi.BotAPI
	router *TelegramRouter
	log    *zap.Logger
	wg     sync.WaitGroup
}

func NewTelegramBot(api *tgbotapi.BotAPI, router *TelegramRouter, log *zap.Logger) *TelegramBot {
	return &TelegramBot{api: api, router: router, log: log}
}

func (b *TelegramBot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	b.log.Info("telegram poller started", zap.String("bot", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info("telegram poller stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *TelegramBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	args := strings.Fields(msg.CommandArguments())

	reply := b.router.Handle(ctx, userID, msg.Command(), args)
	if reply == "" {
		return
	}

	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		b.log.Warn("send reply failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err))
	}
}
