// Package commands defines the bot's command grammar and parses incoming text
package commands

import (
	"sort"
	"strings"

	"github.com/codegangsta/packagesbot/internal/types"
)

// Kind identifies what a parsed message asks the bot to do
type Kind int

const (
	KindNoCommand Kind = iota
	KindHelp
	KindServices
	KindUptime
	KindSearch
	KindFeedback
	KindAnswerYes
	KindAnswerNo
	KindUnknown
)

// Kinds lists every Kind, used to check dispatch covers them all
var Kinds = []Kind{
	KindNoCommand,
	KindHelp,
	KindServices,
	KindUptime,
	KindSearch,
	KindFeedback,
	KindAnswerYes,
	KindAnswerNo,
	KindUnknown,
}

func (k Kind) String() string {
	switch k {
	case KindNoCommand:
		return "no_command"
	case KindHelp:
		return "help"
	case KindServices:
		return "services"
	case KindUptime:
		return "uptime"
	case KindSearch:
		return "search"
	case KindFeedback:
		return "feedback"
	case KindAnswerYes:
		return "answer_yes"
	case KindAnswerNo:
		return "answer_no"
	case KindUnknown:
		return "unknown"
	}
	return "invalid"
}

// Explicit reports whether the kind is a recognized slash command
func (k Kind) Explicit() bool {
	switch k {
	case KindHelp, KindServices, KindUptime, KindSearch, KindFeedback:
		return true
	}
	return false
}

// Spec describes one slash command
type Spec struct {
	Name        string // lowercase, without the slash
	Argument    string // placeholder shown in help; empty if the command takes none
	Description string
	Kind        Kind
	Platform    types.Platform // set for search commands
	Aliases     []string
}

// RequiresArgument reports whether the command needs an argument to run
func (s Spec) RequiresArgument() bool {
	return s.Argument != ""
}

// Answer tokens accepted as replies to a yes/no question
const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

// grammar is the ordered list of commands the bot understands
var grammar = []Spec{
	{Name: "help", Description: "Display this message.", Kind: KindHelp, Aliases: []string{"start"}},
	{Name: "services", Description: "List the available services.", Kind: KindServices},
	{Name: "uptime", Description: "Get the current uptime of this bot.", Kind: KindUptime},
	{Name: "npm", Argument: "name", Description: "Search for a package on npm.", Kind: KindSearch, Platform: types.PlatformNpm},
	{Name: "bower", Argument: "name", Description: "Search for a package on Bower.", Kind: KindSearch, Platform: types.PlatformBower},
	{Name: "crates", Argument: "name", Description: "Search for a package on crates.io.", Kind: KindSearch, Platform: types.PlatformCrates},
	{Name: "feedback", Argument: "text", Description: "Send feedback to the developer.", Kind: KindFeedback},
}

// Specs returns a copy of the grammar in declaration order
func Specs() []Spec {
	out := make([]Spec, len(grammar))
	copy(out, grammar)
	return out
}

// Lookup returns the spec for a command name or alias
func Lookup(name string) (Spec, bool) {
	name = strings.ToLower(name)
	for _, s := range grammar {
		if s.Name == name {
			return s, true
		}
		for _, alias := range s.Aliases {
			if alias == name {
				return s, true
			}
		}
	}
	return Spec{}, false
}

// SearchSpec returns the search command for a platform
func SearchSpec(p types.Platform) (Spec, bool) {
	for _, s := range grammar {
		if s.Kind == KindSearch && s.Platform == p {
			return s, true
		}
	}
	return Spec{}, false
}

// FormatHelp renders the command list, one line per command, sorted by name
func FormatHelp(specs []Spec) string {
	sorted := make([]Spec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	lines := make([]string, 0, len(sorted))
	for _, s := range sorted {
		usage := "/" + s.Name
		if s.RequiresArgument() {
			usage += " <" + s.Argument + ">"
		}
		lines = append(lines, "- **"+usage+"**: "+s.Description)
	}
	return strings.Join(lines, "\n")
}
