// Package telegram connects the dialogue engine to the Telegram Bot API
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/dialogue"
	"github.com/codegangsta/packagesbot/internal/types"
)

const (
	parseModeMarkdownV2 = "MarkdownV2"

	// Telegram allows 4096 characters; leave room for escaping
	maxMessageLength = 3500
)

// reactionEmoji maps reactions to Telegram emoji
var reactionEmoji = map[types.Reaction]string{
	types.ReactionLike: "👍",
}

// MessageHandler is called for every text message from an allowed user
type MessageHandler func(ctx context.Context, msg dialogue.Message)

// Bot wraps the Telegram bot functionality
type Bot struct {
	bot     *gotgbot.Bot
	updater *ext.Updater
	allowed func(userID int64) bool
	handler MessageHandler
	logger  *slog.Logger
}

// New creates a new Telegram bot. allowed decides which users may talk to
// it; nil admits everyone.
func New(token string, allowed func(userID int64) bool, logger *slog.Logger) (*Bot, error) {
	// Create HTTP client with longer timeout for long-polling
	httpClient := http.Client{
		Timeout: 60 * time.Second,
	}

	bot, err := gotgbot.NewBot(token, &gotgbot.BotOpts{
		BotClient: &gotgbot.BaseBotClient{
			Client: httpClient,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating bot: %w", err)
	}

	return &Bot{
		bot:     bot,
		allowed: allowed,
		logger:  logger,
	}, nil
}

// SetHandler sets the message handler function
func (b *Bot) SetHandler(h MessageHandler) {
	b.handler = h
}

// Start begins polling for updates and blocks until context is cancelled
func (b *Bot) Start(ctx context.Context) error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(bot *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			b.logger.Error("dispatcher error", "error", err)
			return ext.DispatcherActionNoop
		},
		Panic: func(bot *gotgbot.Bot, ctx *ext.Context, r interface{}) {
			b.logger.Error("panic while handling update",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		},
	})

	b.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewMessage(message.Text, b.handleMessage))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.All, b.handleCallback))

	err := b.updater.StartPolling(b.bot, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 30,
			AllowedUpdates: []string{
				"message",
				"callback_query",
			},
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 60 * time.Second,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("starting polling: %w", err)
	}

	b.logger.Info("telegram bot started",
		"username", b.bot.Username,
	)

	<-ctx.Done()

	b.updater.Stop()
	b.logger.Info("telegram bot stopped")

	return nil
}

func (b *Bot) isAllowed(userID int64) bool {
	return b.allowed == nil || b.allowed(userID)
}

// handleMessage processes incoming text messages
func (b *Bot) handleMessage(bot *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || msg.Text == "" || msg.From == nil {
		return nil
	}

	userID := msg.From.Id
	chatID := msg.Chat.Id

	if !b.isAllowed(userID) {
		b.logger.Debug("ignoring message from non-allowed user",
			"user_id", userID,
			"chat_id", chatID,
			"username", msg.From.Username,
		)
		return nil
	}

	if b.handler != nil {
		b.handler(context.Background(), dialogue.Message{
			ChatID:    chatID,
			SenderID:  userID,
			MessageID: msg.MessageId,
			Text:      msg.Text,
		})
	}
	return nil
}

// handleCallback turns a quick answer button press into a text message
func (b *Bot) handleCallback(bot *gotgbot.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	if cq == nil || cq.Message == nil {
		return nil
	}

	if !b.isAllowed(cq.From.Id) {
		_, _ = cq.Answer(bot, &gotgbot.AnswerCallbackQueryOpts{Text: "Not allowed"})
		return nil
	}

	cb, err := ParseCallbackData(cq.Data)
	if err != nil {
		b.logger.Warn("failed to parse callback data", "error", err, "data", cq.Data)
		_, _ = cq.Answer(bot, &gotgbot.AnswerCallbackQueryOpts{Text: "Unknown button"})
		return nil
	}

	if _, err := cq.Answer(bot, nil); err != nil {
		b.logger.Debug("failed to answer callback query", "error", err)
	}

	chat := cq.Message.GetChat()
	chatID := chat.Id
	msgID := cq.Message.GetMessageId()

	// drop the buttons so the question cannot be answered twice
	if _, _, err := bot.EditMessageReplyMarkup(&gotgbot.EditMessageReplyMarkupOpts{
		ChatId:    chatID,
		MessageId: msgID,
	}); err != nil {
		b.logger.Debug("failed to remove keyboard", "chat_id", chatID, "error", err)
	}

	if b.handler != nil {
		// no message id: there is no user message to react to
		b.handler(context.Background(), dialogue.Message{
			ChatID:   chatID,
			SenderID: cq.From.Id,
			Text:     cb.Answer,
		})
	}
	return nil
}

// Send delivers a reply, converting markdown to MarkdownV2. Long replies
// are split; quick answers become an inline keyboard on the last part.
func (b *Bot) Send(ctx context.Context, chatID int64, reply dialogue.Reply) error {
	chunks := splitMessage(reply.Text, maxMessageLength)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		opts := &gotgbot.SendMessageOpts{ParseMode: parseModeMarkdownV2}
		if i == len(chunks)-1 && len(reply.Answers) > 0 {
			opts.ReplyMarkup = BuildAnswerKeyboard(reply.Answers)
		}

		_, err := b.bot.SendMessage(chatID, FormatMarkdownV2(chunk), opts)
		if err != nil && strings.Contains(err.Error(), "can't parse entities") {
			// fall back to plain text rather than lose the message
			b.logger.Warn("markdown rejected, sending plain text", "chat_id", chatID, "error", err)
			opts.ParseMode = ""
			_, err = b.bot.SendMessage(chatID, chunk, opts)
		}
		if err != nil {
			return fmt.Errorf("sending message to chat %d: %w", chatID, err)
		}
	}
	return nil
}

// React places a reaction on a message. A zero message id is ignored.
func (b *Bot) React(ctx context.Context, chatID int64, messageID int64, reaction types.Reaction) error {
	if messageID == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	emoji, ok := reactionEmoji[reaction]
	if !ok {
		return fmt.Errorf("unknown reaction %d", reaction)
	}

	_, err := b.bot.SetMessageReaction(chatID, messageID, &gotgbot.SetMessageReactionOpts{
		Reaction: []gotgbot.ReactionType{gotgbot.ReactionTypeEmoji{Emoji: emoji}},
	})
	if err != nil {
		return fmt.Errorf("reacting to message %d: %w", messageID, err)
	}
	return nil
}

// RegisterCommands publishes the command menu shown by Telegram clients
func (b *Bot) RegisterCommands(specs []commands.Spec) error {
	botCommands := make([]gotgbot.BotCommand, 0, len(specs))
	for _, s := range specs {
		botCommands = append(botCommands, gotgbot.BotCommand{
			Command:     s.Name,
			Description: s.Description,
		})
	}

	if _, err := b.bot.SetMyCommands(botCommands, nil); err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}
	b.logger.Info("registered bot commands", "count", len(botCommands))
	return nil
}

// startTyping sends a typing indicator
func (b *Bot) startTyping(chatID int64) {
	_, _ = b.bot.SendChatAction(chatID, "typing", nil)
}

// TypingLoop starts a goroutine that sends typing indicators every 4 seconds
// Returns a cancel function to stop the loop
func (b *Bot) TypingLoop(chatID int64) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()

		b.startTyping(chatID)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.startTyping(chatID)
			}
		}
	}()

	return cancel
}
