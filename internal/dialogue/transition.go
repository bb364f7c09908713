package dialogue

import (
	"strings"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/replies"
	"github.com/codegangsta/packagesbot/internal/types"
)

// Request is a command ready to be dispatched
type Request struct {
	Kind     commands.Kind
	Platform types.Platform
	Argument string
	Token    string
	Page     int
}

// Resolution is the outcome of applying one parsed message to a chat's
// pending dialogue, before anything is dispatched.
type Resolution struct {
	Dispatch *Request // nil when nothing runs
	Reply    string   // sent directly, without dispatching
	React    bool     // acknowledge the triggering message
	Pending  *Pending // dialogue left after resolution; dispatch may replace it
}

// Resolve decides what an incoming message means given the chat's pending
// dialogue. A nil pending means the chat is idle. An explicit command always
// wins over the pending dialogue, which is then dropped without notice.
func Resolve(pending *Pending, cmd commands.Parsed) Resolution {
	if pending != nil {
		if pending.AwaitingArgument {
			switch cmd.Kind {
			case commands.KindNoCommand, commands.KindUnknown, commands.KindAnswerYes, commands.KindAnswerNo:
				return Resolution{
					React: true,
					Dispatch: &Request{
						Kind:     pending.Kind,
						Platform: pending.Platform,
						Argument: strings.TrimSpace(cmd.Raw),
						Page:     1,
					},
				}
			}
		} else {
			switch cmd.Kind {
			case commands.KindAnswerYes:
				return Resolution{
					React: true,
					Dispatch: &Request{
						Kind:     pending.Kind,
						Platform: pending.Platform,
						Argument: pending.Argument,
						Page:     pending.Page + 1,
					},
				}
			case commands.KindAnswerNo:
				return Resolution{React: true, Reply: replies.Okay}
			case commands.KindNoCommand:
				// chatter while a page question is open leaves it open
				kept := *pending
				return Resolution{Pending: &kept}
			}
		}
	}

	switch {
	case cmd.Kind == commands.KindUnknown:
		return Resolution{Dispatch: &Request{Kind: commands.KindUnknown, Token: cmd.Token}}
	case cmd.Kind.Explicit():
		return Resolution{
			React: true,
			Dispatch: &Request{
				Kind:     cmd.Kind,
				Platform: cmd.Platform,
				Argument: cmd.Argument,
				Token:    cmd.Token,
				Page:     1,
			},
		}
	}
	return Resolution{}
}
