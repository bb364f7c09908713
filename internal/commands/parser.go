package commands

import (
	"regexp"
	"strings"

	"github.com/codegangsta/packagesbot/internal/types"
)

// Parsed is the classified form of one incoming message
type Parsed struct {
	Kind     Kind
	Platform types.Platform // set when Kind is KindSearch
	Argument string
	Token    string // command word as typed, lowercased
	Raw      string // the original message text
}

// commandRegex matches "/word" with an optional whitespace separated remainder.
// The remainder may span lines.
var commandRegex = regexp.MustCompile(`(?s)^/(\w+)(?:@\w+)?(?:\s+(.*))?$`)

// Parse classifies a message. It is stateless: whether an empty argument
// leads to a prompt is decided by the dialogue, not here.
func Parse(text string) Parsed {
	trimmed := strings.TrimSpace(text)

	switch strings.ToLower(trimmed) {
	case AnswerYes:
		return Parsed{Kind: KindAnswerYes, Token: AnswerYes, Raw: text}
	case AnswerNo:
		return Parsed{Kind: KindAnswerNo, Token: AnswerNo, Raw: text}
	}

	m := commandRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return Parsed{Kind: KindNoCommand, Argument: text, Raw: text}
	}

	token := strings.ToLower(m[1])
	spec, ok := Lookup(token)
	if !ok {
		return Parsed{Kind: KindUnknown, Token: token, Raw: text}
	}

	p := Parsed{
		Kind:     spec.Kind,
		Platform: spec.Platform,
		Token:    token,
		Raw:      text,
	}
	if spec.RequiresArgument() {
		p.Argument = m[2]
	}
	return p
}
