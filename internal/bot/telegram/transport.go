// Package telegram adapts Telegram long-polling updates to dispatcher events
// and dispatcher replies back to Telegram messages. It owns nothing about the
// conversation itself; all decisions live behind the Dispatcher interface.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	boterr "github.com/ggonzalez94/bark-bot/internal/errors"
	"github.com/ggonzalez94/bark-bot/internal/model"
)

const (
	updateTimeoutSeconds = 30
	fallbackMenuText     = "Choose an option:"
)

// Dispatcher turns one inbound event into one reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.Event) model.Reply
}

// Bot runs the long-polling loop. Updates from different users are handled
// concurrently; updates from the same user are queued in arrival order and
// each one is processed to completion before the next is considered.
type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher Dispatcher
	logger     *zap.Logger
	events     *sequencer
}

func New(token string, dispatcher Dispatcher, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeAuth, "authenticate telegram bot", err)
	}
	b := &Bot{api: api, dispatcher: dispatcher, logger: logger}
	b.events = newSequencer(b.handle)
	return b, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", zap.String("username", b.api.Self.UserName))

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = updateTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return boterr.New(boterr.CodeTransport, "update channel closed")
			}
			ev, chatID, recognized := eventFromUpdate(update)
			if !recognized {
				continue
			}
			if update.CallbackQuery != nil {
				// Ack the button press so the client stops its spinner.
				if _, err := b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
					b.logger.Warn("callback ack failed", zap.Error(err))
				}
			}
			b.events.Enqueue(ctx, ev, chatID)
		}
	}
}

func (b *Bot) handle(ctx context.Context, ev model.Event, chatID int64) {
	correlationID := uuid.NewString()
	logger := b.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("user_id", string(ev.UserID)),
		zap.String("token", ev.Token),
	)
	logger.Debug("dispatching event", zap.String("kind", string(ev.Kind)))

	reply := b.dispatcher.Dispatch(ctx, ev)
	if err := b.send(chatID, reply); err != nil {
		logger.Warn("reply delivery failed", zap.Error(err))
		return
	}
	logger.Debug("reply delivered", zap.Int("artifacts", len(reply.Artifacts)))
}

// send delivers artifacts in order. The menu, when present, rides on the last
// text artifact; a reply with a menu but no text gets a small prompt message
// to carry the keyboard.
func (b *Bot) send(chatID int64, reply model.Reply) error {
	markup := menuMarkup(reply.Menu)
	lastText := lastTextIndex(reply.Artifacts)

	for i, artifact := range reply.Artifacts {
		switch artifact.Kind {
		case model.ArtifactText:
			msg := tgbotapi.NewMessage(chatID, artifact.Text)
			if markup != nil && i == lastText {
				msg.ReplyMarkup = *markup
			}
			if _, err := b.api.Send(msg); err != nil {
				return boterr.Wrap(boterr.CodeTransport, "send message", err)
			}
		case model.ArtifactImage:
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
				Name:  "chart.png",
				Bytes: artifact.Image,
			})
			photo.Caption = artifact.Caption
			if _, err := b.api.Send(photo); err != nil {
				return boterr.Wrap(boterr.CodeTransport, "send photo", err)
			}
		default:
			return boterr.New(boterr.CodeTransport, fmt.Sprintf("unknown artifact kind %q", artifact.Kind))
		}
	}

	if markup != nil && lastText < 0 {
		msg := tgbotapi.NewMessage(chatID, fallbackMenuText)
		msg.ReplyMarkup = *markup
		if _, err := b.api.Send(msg); err != nil {
			return boterr.Wrap(boterr.CodeTransport, "send menu", err)
		}
	}
	return nil
}

func lastTextIndex(artifacts []model.Artifact) int {
	for i := len(artifacts) - 1; i >= 0; i-- {
		if artifacts[i].Kind == model.ArtifactText {
			return i
		}
	}
	return -1
}

// eventFromUpdate maps a Telegram update to a dispatcher event. Callback
// queries become menu events, commands become command events, and everything
// else with text becomes a free-text message.
func eventFromUpdate(update tgbotapi.Update) (model.Event, int64, bool) {
	if cq := update.CallbackQuery; cq != nil && cq.Message != nil {
		return model.Event{
			Kind:     model.EventMenu,
			UserID:   model.UserID(fmt.Sprint(cq.From.ID)),
			Token:    cq.Data,
			FromName: cq.From.FirstName,
		}, cq.Message.Chat.ID, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return model.Event{}, 0, false
	}
	ev := model.Event{
		UserID:   model.UserID(fmt.Sprint(msg.From.ID)),
		FromName: msg.From.FirstName,
	}
	switch {
	case msg.IsCommand():
		ev.Kind = model.EventCommand
		ev.Token = msg.Command()
	case msg.Text != "":
		ev.Kind = model.EventMessage
		ev.Text = msg.Text
	default:
		return model.Event{}, 0, false
	}
	return ev, msg.Chat.ID, true
}

func menuMarkup(menu *model.Menu) *tgbotapi.InlineKeyboardMarkup {
	if menu == nil {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu.Rows))
	for _, row := range menu.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, item := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(item.Label, item.Token))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
