package telegram

import (
	"context"
	"fmt"
	"io"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	api *tgbotapi.BotAPI
}

type CommandUpdate struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Command   string
	Args      string
}

type TextUpdate struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Text      string
}

type Handlers struct {
	OnCommand func(context.Context, CommandUpdate) error
	OnText    func(context.Context, TextUpdate) error
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}

			if update.Message.IsCommand() && handlers.OnCommand != nil {
				err := handlers.OnCommand(ctx, CommandUpdate{
					ChatID:    update.Message.Chat.ID,
					UserID:    update.Message.From.ID,
					Username:  update.Message.From.UserName,
					FirstName: update.Message.From.FirstName,
					Command:   update.Message.Command(),
					Args:      update.Message.CommandArguments(),
				})
				if err != nil {
					return err
				}
				continue
			}

			text := strings.TrimSpace(update.Message.Text)
			if text != "" && handlers.OnText != nil {
				err := handlers.OnText(ctx, TextUpdate{
					ChatID:    update.Message.Chat.ID,
					UserID:    update.Message.From.ID,
					Username:  update.Message.From.UserName,
					FirstName: update.Message.From.FirstName,
					Text:      text,
				})
				if err != nil {
					return err
				}
			}
		}
	}
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

// SendDocument streams a file to the chat under the given name.
func (b *Bot) SendDocument(ctx context.Context, chatID int64, name string, body io.Reader, size int64, caption string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || body == nil {
		return fmt.Errorf("chat id and document body are required")
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{
		Name:   name,
		Reader: body,
	})
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send telegram document: %w", err)
	}

	_ = ctx
	_ = size
	return nil
}

// IsChannelMember reports whether the user belongs to the channel
// (member, administrator or creator).
func (b *Bot) IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if b == nil || b.api == nil {
		return false, fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(channel) == "" {
		return true, nil
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	default:
		return false, nil
	}
}
