package dialogue

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/replies"
	"github.com/codegangsta/packagesbot/internal/types"
)

const (
	testChat     = int64(100)
	testSender   = int64(7)
	testMsg      = int64(55)
	feedbackChat = int64(-900)
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	engine    *Engine
	store     *MemoryStore
	messenger *fakeMessenger
	searcher  *fakeSearcher
}

func newHarness(t *testing.T, feedbackChatID int64) *harness {
	t.Helper()
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &harness{
		store:     NewMemoryStore(),
		messenger: &fakeMessenger{},
		searcher:  &fakeSearcher{results: make(map[int]types.PagedResult)},
	}
	h.engine = NewEngine(h.store, h.messenger, h.searcher, Options{
		Version:        "1.0.0",
		FeedbackChatID: feedbackChatID,
		Started:        started,
		Now: func() time.Time {
			return started.Add(time.Hour + 2*time.Minute + 3*time.Second)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func (h *harness) say(text string) {
	h.engine.HandleText(context.Background(), Message{
		ChatID:    testChat,
		SenderID:  testSender,
		MessageID: testMsg,
		Text:      text,
	})
}

func (h *harness) pending(t *testing.T) (Pending, bool) {
	t.Helper()
	return h.store.Get(testChat)
}

func TestSearchWithMoreResults(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **left-pad**: String left pad", Remaining: 15, PerPage: 10}

	h.say("/npm left-pad")

	texts := h.messenger.texts(testChat)
	require.Len(t, texts, 2)
	assert.Equal(t, `Searching for "left-pad" on npm ...`, texts[0])
	assert.True(t, strings.HasPrefix(texts[1], "\n- **left-pad**: String left pad"))
	assert.Contains(t, texts[1], "There are 15 more results. Would you like to see 10 more?")
	assert.Equal(t, []string{"yes", "no"}, h.messenger.last(testChat).Answers)

	assert.Equal(t, searchCall{Platform: types.PlatformNpm, Query: "left-pad", Page: 1}, h.searcher.lastCall())

	p, ok := h.pending(t)
	require.True(t, ok)
	assert.Equal(t, Pending{Kind: commands.KindSearch, Platform: types.PlatformNpm, Argument: "left-pad", Page: 1}, p)
	assert.Len(t, h.messenger.reactions, 1)
}

func TestSearchWithoutArgumentPrompts(t *testing.T) {
	h := newHarness(t, 0)

	h.say("/bower")

	assert.Equal(t, []string{"What would you like to search on Bower?"}, h.messenger.texts(testChat))
	assert.Equal(t, 0, h.searcher.callCount())
	p, ok := h.pending(t)
	require.True(t, ok)
	assert.True(t, p.AwaitingArgument)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, types.PlatformBower, p.Platform)

	h.messenger.reset()
	h.say("jquery")

	assert.Equal(t, searchCall{Platform: types.PlatformBower, Query: "jquery", Page: 1}, h.searcher.lastCall())
	_, ok = h.pending(t)
	assert.False(t, ok, "single page result should leave the chat idle")
	assert.Len(t, h.messenger.reactions, 1)
}

func TestEveryArgumentCommandPromptsThenAcceptsText(t *testing.T) {
	for _, spec := range commands.Specs() {
		if !spec.RequiresArgument() {
			continue
		}
		t.Run(spec.Name, func(t *testing.T) {
			h := newHarness(t, feedbackChat)

			h.say("/" + spec.Name)
			p, ok := h.pending(t)
			require.True(t, ok)
			require.True(t, p.AwaitingArgument)
			assert.Equal(t, spec.Kind, p.Kind)

			h.say("some free text")

			switch spec.Kind {
			case commands.KindSearch:
				assert.Equal(t, searchCall{Platform: spec.Platform, Query: "some free text", Page: 1}, h.searcher.lastCall())
			case commands.KindFeedback:
				assert.Equal(t, []string{replies.FeedbackForward(testSender, "some free text")}, h.messenger.texts(feedbackChat))
			}
			_, ok = h.pending(t)
			assert.False(t, ok)
		})
	}
}

func TestRemainingCountDrivesPendingState(t *testing.T) {
	for _, platform := range types.Platforms {
		spec, ok := commands.SearchSpec(platform)
		require.True(t, ok)

		t.Run(string(platform)+"/last page", func(t *testing.T) {
			h := newHarness(t, 0)
			h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 0, PerPage: 10}

			h.say("/" + spec.Name + " thing")

			_, ok := h.pending(t)
			assert.False(t, ok)
			assert.NotContains(t, h.messenger.last(testChat).Text, "more result")
			assert.Empty(t, h.messenger.last(testChat).Answers)
		})

		t.Run(string(platform)+"/more pages", func(t *testing.T) {
			h := newHarness(t, 0)
			h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 1, PerPage: 10}

			h.say("/" + spec.Name + " thing")

			p, ok := h.pending(t)
			require.True(t, ok)
			assert.False(t, p.AwaitingArgument)
			assert.Equal(t, "thing", p.Argument)
			assert.Contains(t, h.messenger.last(testChat).Text, "There is 1 more result.")
		})
	}
}

func TestAnswerYesFetchesNextPage(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **p1**", Remaining: 25, PerPage: 10}
	h.searcher.results[2] = types.PagedResult{Text: "\n- **p2**", Remaining: 15, PerPage: 10}
	h.searcher.results[3] = types.PagedResult{Text: "\n- **p3**", Remaining: 5, PerPage: 10}
	h.searcher.results[4] = types.PagedResult{Text: "\n- **p4**", Remaining: 0, PerPage: 10}

	h.say("/crates serde")
	for page := 2; page <= 4; page++ {
		h.say("Yes")
		assert.Equal(t, searchCall{Platform: types.PlatformCrates, Query: "serde", Page: page}, h.searcher.lastCall())
		if page < 4 {
			p, ok := h.pending(t)
			require.True(t, ok)
			assert.Equal(t, page, p.Page)
		}
	}

	assert.Contains(t, h.messenger.texts(testChat), "\n- **p3**\n\nThere are 5 more results. Would you like to see 5 more? Answer with \"yes\" or \"no\".")
	_, ok := h.pending(t)
	assert.False(t, ok)
	assert.Len(t, h.messenger.reactions, 4)
}

func TestAnswerNoEndsPagination(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 3, PerPage: 10}
	h.say("/npm a")
	h.messenger.reset()

	h.say("no")

	assert.Equal(t, []string{"Okay."}, h.messenger.texts(testChat))
	assert.Len(t, h.messenger.reactions, 1)
	assert.Equal(t, 1, h.searcher.callCount())
	_, ok := h.pending(t)
	assert.False(t, ok)
}

func TestAnswersWhileIdleAreIgnored(t *testing.T) {
	for _, text := range []string{"yes", "no", "YES"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t, 0)

			h.say(text)

			assert.Empty(t, h.messenger.sent)
			assert.Empty(t, h.messenger.reactions)
			assert.Equal(t, 0, h.store.Len())
		})
	}
}

func TestPlainTextWhileIdleIsIgnored(t *testing.T) {
	h := newHarness(t, 0)

	h.say("foobar")

	assert.Empty(t, h.messenger.sent)
	assert.Empty(t, h.messenger.reactions)
	assert.Equal(t, 0, h.store.Len())
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, 0)

	h.say("/zzz")

	assert.Equal(t, []string{`Sorry, I don't know the command "zzz" yet.`}, h.messenger.texts(testChat))
	assert.Empty(t, h.messenger.reactions)
}

func TestStaticCommands(t *testing.T) {
	h := newHarness(t, 0)

	h.say("/help")
	h.say("/start")
	h.say("/services")
	h.say("/uptime")

	texts := h.messenger.texts(testChat)
	require.Len(t, texts, 4)
	assert.Equal(t, h.engine.HelpText(), texts[0])
	assert.Equal(t, texts[0], texts[1])
	assert.Contains(t, texts[0], "packages bot v1.0.0")
	assert.Equal(t, replies.Services(commands.Specs()), texts[2])
	assert.Equal(t, "Current uptime: 01:02:03", texts[3])
	assert.Len(t, h.messenger.reactions, 4)
}

func TestExplicitCommandDiscardsPendingDialogue(t *testing.T) {
	t.Run("page confirmation", func(t *testing.T) {
		h := newHarness(t, 0)
		h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 3, PerPage: 10}
		h.say("/npm a")
		h.messenger.reset()

		h.say("/services")

		assert.Equal(t, []string{replies.Services(commands.Specs())}, h.messenger.texts(testChat))
		_, ok := h.pending(t)
		assert.False(t, ok)

		h.say("yes")
		assert.Equal(t, 1, h.searcher.callCount(), "yes after abandonment must not fetch another page")
	})

	t.Run("awaiting argument", func(t *testing.T) {
		h := newHarness(t, 0)
		h.say("/npm")

		h.say("/uptime")

		assert.Equal(t, "Current uptime: 01:02:03", h.messenger.last(testChat).Text)
		_, ok := h.pending(t)
		assert.False(t, ok)
	})

	t.Run("new search replaces old one", func(t *testing.T) {
		h := newHarness(t, 0)
		h.say("/npm")

		h.say("/bower")

		p, ok := h.pending(t)
		require.True(t, ok)
		assert.Equal(t, types.PlatformBower, p.Platform)
		assert.True(t, p.AwaitingArgument)
	})
}

func TestUnknownCommandAnswersPrompt(t *testing.T) {
	h := newHarness(t, 0)
	h.say("/npm")

	h.say("/foo")

	assert.Equal(t, searchCall{Platform: types.PlatformNpm, Query: "/foo", Page: 1}, h.searcher.lastCall())
}

func TestUnknownCommandDuringPaginationDiscards(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 3, PerPage: 10}
	h.say("/npm a")
	h.messenger.reset()

	h.say("/zzz")

	assert.Equal(t, []string{`Sorry, I don't know the command "zzz" yet.`}, h.messenger.texts(testChat))
	_, ok := h.pending(t)
	assert.False(t, ok)
}

func TestChatterDuringPaginationKeepsQuestionOpen(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 3, PerPage: 10}
	h.say("/npm a")
	before, _ := h.pending(t)
	h.messenger.reset()

	h.say("hmm, let me think")

	assert.Empty(t, h.messenger.sent)
	after, ok := h.pending(t)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestSearchFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.err = errors.New("dial tcp: connection refused")

	h.say("/npm left-pad")

	texts := h.messenger.texts(testChat)
	require.Len(t, texts, 2)
	assert.Equal(t, replies.TryAgainLater, texts[1])
	for _, text := range texts {
		assert.NotContains(t, text, "connection refused")
	}
	_, ok := h.pending(t)
	assert.False(t, ok)
}

func TestSearchFailureOnLaterPageClearsPending(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 30, PerPage: 10}
	h.say("/npm a")
	h.searcher.err = errors.New("status 502")

	h.say("yes")

	assert.Equal(t, replies.TryAgainLater, h.messenger.last(testChat).Text)
	_, ok := h.pending(t)
	assert.False(t, ok)
}

func TestEmptySearchPage(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "", Remaining: 0, PerPage: 10}

	h.say("/npm zzzzzz")

	assert.Equal(t, `No results for "zzzzzz" on npm.`, h.messenger.last(testChat).Text)
}

func TestFeedback(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		h := newHarness(t, 0)

		h.say("/feedback")
		h.say("/feedback hello")

		assert.Equal(t, []string{replies.FeedbackDisabled, replies.FeedbackDisabled}, h.messenger.texts(testChat))
		assert.Equal(t, 0, h.store.Len())
	})

	t.Run("with text", func(t *testing.T) {
		h := newHarness(t, feedbackChat)

		h.say("/feedback Great bot!")

		assert.Equal(t, []string{"Feedback from user \"7\":\n\"Great bot!\""}, h.messenger.texts(feedbackChat))
		assert.Equal(t, []string{replies.FeedbackThanks}, h.messenger.texts(testChat))
		assert.Equal(t, 0, h.store.Len())
	})

	t.Run("prompt", func(t *testing.T) {
		h := newHarness(t, feedbackChat)

		h.say("/feedback")
		assert.Equal(t, []string{replies.FeedbackPrompt}, h.messenger.texts(testChat))

		h.say("It works")
		assert.Equal(t, []string{"Feedback from user \"7\":\n\"It works\""}, h.messenger.texts(feedbackChat))
		assert.Equal(t, replies.FeedbackThanks, h.messenger.last(testChat).Text)
		assert.Equal(t, 0, h.store.Len())
	})

	t.Run("forward fails", func(t *testing.T) {
		h := newHarness(t, feedbackChat)
		h.messenger.failChat = feedbackChat

		h.say("/feedback hi")

		assert.Equal(t, []string{replies.TryAgainLater}, h.messenger.texts(testChat))
	})
}

func TestChatsAreIndependent(t *testing.T) {
	h := newHarness(t, 0)
	h.searcher.results[1] = types.PagedResult{Text: "\n- **a**", Remaining: 3, PerPage: 10}

	h.say("/npm a")
	h.engine.HandleText(context.Background(), Message{ChatID: 200, Text: "no"})

	assert.Empty(t, h.messenger.texts(200))
	_, ok := h.pending(t)
	assert.True(t, ok)
}

func TestDispatchCoversEveryKind(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t, feedbackChat)
	h.engine.logger = slog.New(slog.NewTextHandler(&buf, nil))

	for _, kind := range commands.Kinds {
		h.engine.dispatch(context.Background(), Message{ChatID: testChat}, Request{
			Kind:     kind,
			Platform: types.PlatformNpm,
			Argument: "x",
			Token:    "x",
			Page:     1,
		})
	}

	assert.NotContains(t, buf.String(), "unhandled command kind")
}

// blockingSearcher parks every search until released
type blockingSearcher struct {
	entered chan int64
	release chan struct{}
}

func (s *blockingSearcher) Search(ctx context.Context, _ types.Platform, query string, _ int) (types.PagedResult, error) {
	s.entered <- int64(len(query))
	select {
	case <-s.release:
	case <-ctx.Done():
		return types.PagedResult{}, ctx.Err()
	}
	return types.PagedResult{Text: "\n- **" + query + "**", Remaining: 2, PerPage: 10}, nil
}

func TestHandlingIsSerializedPerChat(t *testing.T) {
	store := NewMemoryStore()
	messenger := &fakeMessenger{}
	searcher := &blockingSearcher{entered: make(chan int64, 4), release: make(chan struct{})}
	engine := NewEngine(store, messenger, searcher, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.HandleText(ctx, Message{ChatID: 1, Text: "/npm slow"})
	}()
	<-searcher.entered

	// same chat: must wait for the search above
	go func() {
		defer wg.Done()
		engine.HandleText(ctx, Message{ChatID: 1, Text: "no"})
	}()

	// another chat proceeds while chat 1 is blocked
	engine.HandleText(ctx, Message{ChatID: 2, Text: "/help"})
	assert.Len(t, messenger.texts(2), 1)
	assert.NotContains(t, messenger.texts(1), replies.Okay)

	close(searcher.release)
	wg.Wait()

	texts := messenger.texts(1)
	require.NotEmpty(t, texts)
	assert.Equal(t, replies.Okay, texts[len(texts)-1])
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, engine.locks.len())
}
