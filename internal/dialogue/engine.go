// Package dialogue runs the per-chat conversation: it turns parsed commands
// into replies and searches, and remembers what the bot is waiting for.
package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/replies"
	"github.com/codegangsta/packagesbot/internal/types"
)

// Message is one incoming text message
type Message struct {
	ChatID    int64
	SenderID  int64
	MessageID int64
	Text      string
}

// Reply is one outgoing message
type Reply struct {
	Text    string
	Answers []string // quick answers the transport may offer as buttons
}

// Messenger delivers replies and reactions
type Messenger interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
	React(ctx context.Context, chatID int64, messageID int64, reaction types.Reaction) error
}

// Searcher queries a package registry for one page of results
type Searcher interface {
	Search(ctx context.Context, platform types.Platform, query string, page int) (types.PagedResult, error)
}

// Options configures an Engine
type Options struct {
	Version        string
	FeedbackChatID int64 // 0 disables /feedback
	Started        time.Time
	Now            func() time.Time
	Logger         *slog.Logger
}

// Engine handles incoming messages one chat at a time
type Engine struct {
	store          Store
	messenger      Messenger
	searcher       Searcher
	logger         *slog.Logger
	helpText       string
	servicesText   string
	feedbackChatID int64
	started        time.Time
	now            func() time.Time
	locks          *chatLocks
}

// NewEngine creates an Engine
func NewEngine(store Store, messenger Messenger, searcher Searcher, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	started := opts.Started
	if started.IsZero() {
		started = now()
	}

	specs := commands.Specs()
	return &Engine{
		store:          store,
		messenger:      messenger,
		searcher:       searcher,
		logger:         logger,
		helpText:       replies.Help(opts.Version, specs),
		servicesText:   replies.Services(specs),
		feedbackChatID: opts.FeedbackChatID,
		started:        started,
		now:            now,
		locks:          newChatLocks(),
	}
}

// HelpText returns the help message, also sent when a user first starts the bot
func (e *Engine) HelpText() string {
	return e.helpText
}

// HandleText processes one message to completion. Messages for the same chat
// are handled in arrival order; other chats proceed concurrently.
func (e *Engine) HandleText(ctx context.Context, msg Message) {
	unlock := e.locks.lock(msg.ChatID)
	defer unlock()

	cmd := commands.Parse(msg.Text)

	var pending *Pending
	if p, ok := e.store.Get(msg.ChatID); ok {
		pending = &p
	}

	res := Resolve(pending, cmd)

	e.logger.Debug("message resolved",
		"chat_id", msg.ChatID,
		"kind", cmd.Kind.String(),
		"pending", pending != nil,
		"dispatch", res.Dispatch != nil,
	)

	if res.React {
		if err := e.messenger.React(ctx, msg.ChatID, msg.MessageID, types.ReactionLike); err != nil {
			e.logger.Warn("failed to send reaction",
				"chat_id", msg.ChatID,
				"msg_id", msg.MessageID,
				"error", err,
			)
		}
	}
	if res.Reply != "" {
		e.send(ctx, msg.ChatID, Reply{Text: res.Reply})
	}

	next := res.Pending
	if res.Dispatch != nil {
		next = e.dispatch(ctx, msg, *res.Dispatch)
	}

	if next == nil {
		e.store.Clear(msg.ChatID)
		return
	}
	e.store.Set(msg.ChatID, *next)
}

// dispatch runs a request and returns the chat's next pending dialogue
func (e *Engine) dispatch(ctx context.Context, msg Message, req Request) *Pending {
	switch req.Kind {
	case commands.KindHelp:
		e.send(ctx, msg.ChatID, Reply{Text: e.helpText})
		return nil
	case commands.KindServices:
		e.send(ctx, msg.ChatID, Reply{Text: e.servicesText})
		return nil
	case commands.KindUptime:
		e.send(ctx, msg.ChatID, Reply{Text: replies.Uptime(e.now().Sub(e.started))})
		return nil
	case commands.KindSearch:
		return e.search(ctx, msg.ChatID, req)
	case commands.KindFeedback:
		return e.feedback(ctx, msg, req)
	case commands.KindUnknown:
		e.send(ctx, msg.ChatID, Reply{Text: replies.UnknownCommand(req.Token)})
		return nil
	case commands.KindNoCommand, commands.KindAnswerYes, commands.KindAnswerNo:
		return nil
	}

	e.logger.Error("unhandled command kind", "chat_id", msg.ChatID, "kind", req.Kind.String())
	return nil
}

func (e *Engine) search(ctx context.Context, chatID int64, req Request) *Pending {
	query := strings.TrimSpace(req.Argument)
	if query == "" {
		e.send(ctx, chatID, Reply{Text: replies.SearchPrompt(req.Platform)})
		return &Pending{
			Kind:             commands.KindSearch,
			Platform:         req.Platform,
			Page:             1,
			AwaitingArgument: true,
		}
	}

	page := req.Page
	if page < 1 {
		page = 1
	}

	e.send(ctx, chatID, Reply{Text: replies.Searching(query, req.Platform)})

	start := time.Now()
	result, err := e.searcher.Search(ctx, req.Platform, query, page)
	if err != nil {
		e.logger.Error("search failed",
			"chat_id", chatID,
			"platform", string(req.Platform),
			"query", query,
			"page", page,
			"error", err,
		)
		e.send(ctx, chatID, Reply{Text: replies.TryAgainLater})
		return nil
	}

	e.logger.Info("search completed",
		"chat_id", chatID,
		"platform", string(req.Platform),
		"page", page,
		"remaining", result.Remaining,
		"duration", time.Since(start),
	)

	text := result.Text
	if strings.TrimSpace(text) == "" {
		text = replies.NoResults(query, req.Platform)
	}

	if result.Remaining > 0 {
		text += replies.MorePages(result.Remaining, result.PerPage)
		e.send(ctx, chatID, Reply{
			Text:    text,
			Answers: []string{commands.AnswerYes, commands.AnswerNo},
		})
		return &Pending{
			Kind:     commands.KindSearch,
			Platform: req.Platform,
			Argument: query,
			Page:     page,
		}
	}

	e.send(ctx, chatID, Reply{Text: text})
	return nil
}

func (e *Engine) feedback(ctx context.Context, msg Message, req Request) *Pending {
	if e.feedbackChatID == 0 {
		e.send(ctx, msg.ChatID, Reply{Text: replies.FeedbackDisabled})
		return nil
	}

	text := strings.TrimSpace(req.Argument)
	if text == "" {
		e.send(ctx, msg.ChatID, Reply{Text: replies.FeedbackPrompt})
		return &Pending{
			Kind:             commands.KindFeedback,
			Page:             1,
			AwaitingArgument: true,
		}
	}

	forward := Reply{Text: replies.FeedbackForward(msg.SenderID, text)}
	if err := e.messenger.Send(ctx, e.feedbackChatID, forward); err != nil {
		e.logger.Error("failed to forward feedback",
			"chat_id", msg.ChatID,
			"feedback_chat_id", e.feedbackChatID,
			"error", err,
		)
		e.send(ctx, msg.ChatID, Reply{Text: replies.TryAgainLater})
		return nil
	}

	e.logger.Info("feedback forwarded", "chat_id", msg.ChatID, "sender_id", msg.SenderID)
	e.send(ctx, msg.ChatID, Reply{Text: replies.FeedbackThanks})
	return nil
}

// send delivers a reply, logging failures. Delivery is best effort.
func (e *Engine) send(ctx context.Context, chatID int64, reply Reply) {
	if err := e.messenger.Send(ctx, chatID, reply); err != nil {
		e.logger.Error("failed to send message",
			"chat_id", chatID,
			"error", err,
		)
	}
}
