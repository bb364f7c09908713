// Package replies renders every text the bot sends back to users.
// The exact wording is user-visible, so changes here are behavior changes.
package replies

import (
	"fmt"
	"strings"
	"time"

	"github.com/codegangsta/packagesbot/internal/commands"
	"github.com/codegangsta/packagesbot/internal/types"
)

const (
	Okay              = "Okay."
	TryAgainLater     = "Sorry, an error occurred. Please try again later."
	FeedbackPrompt    = "What would you like to tell the developer?"
	FeedbackThanks    = "Thank you for your feedback."
	FeedbackDisabled  = "Sorry, the developer did not specify a feedback channel."
	noServicesMessage = "No services available."
)

// Help builds the help message shown for /help and /start
func Help(version string, specs []commands.Spec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Hello!** 😎 This is packages bot v%s speaking.\n", version)
	sb.WriteString("Here you can search for all the packages on Bower, npm and crates.io. 📦\n\n")
	sb.WriteString("Available commands:\n")
	sb.WriteString(commands.FormatHelp(specs))
	return sb.String()
}

// Services lists the search commands, one per line
func Services(specs []commands.Spec) string {
	var lines []string
	for _, s := range specs {
		if s.Kind == commands.KindSearch {
			lines = append(lines, "- **/"+s.Name+"**")
		}
	}
	if len(lines) == 0 {
		return noServicesMessage
	}
	return "Available services:\n" + strings.Join(lines, "\n")
}

// Uptime renders elapsed time as "Current uptime: HH:MM:SS"
func Uptime(elapsed time.Duration) string {
	return "Current uptime: " + FormatHHMMSS(elapsed)
}

// FormatHHMMSS formats a duration as zero padded hours, minutes and seconds.
// Hours are not wrapped at 24.
func FormatHHMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// MorePages is appended to a result page when more results exist
func MorePages(remaining, perPage int) string {
	next := remaining
	if perPage > 0 && perPage < remaining {
		next = perPage
	}
	if remaining == 1 {
		return fmt.Sprintf("\n\nThere is 1 more result. Would you like to see %d more? Answer with \"yes\" or \"no\".", next)
	}
	return fmt.Sprintf("\n\nThere are %d more results. Would you like to see %d more? Answer with \"yes\" or \"no\".", remaining, next)
}

// SearchPrompt asks for the missing search term
func SearchPrompt(p types.Platform) string {
	return fmt.Sprintf("What would you like to search on %s?", p.DisplayName())
}

// Searching acknowledges a search before results arrive
func Searching(query string, p types.Platform) string {
	return fmt.Sprintf("Searching for \"%s\" on %s ...", query, p.DisplayName())
}

// NoResults is sent when a search page comes back empty
func NoResults(query string, p types.Platform) string {
	return fmt.Sprintf("No results for \"%s\" on %s.", query, p.DisplayName())
}

// UnknownCommand answers a slash command that is not in the grammar
func UnknownCommand(token string) string {
	return fmt.Sprintf("Sorry, I don't know the command \"%s\" yet.", token)
}

// FeedbackForward is the message delivered to the feedback conversation
func FeedbackForward(senderID int64, text string) string {
	return fmt.Sprintf("Feedback from user \"%d\":\n\"%s\"", senderID, text)
}
