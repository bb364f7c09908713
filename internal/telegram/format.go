package telegram

import (
	"fmt"
	"regexp"
	"strings"
)

// MarkdownV2 special characters that need escaping
const markdownV2SpecialChars = `_*[]()~` + "`" + `>#+-=|{}.!\`

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var result strings.Builder
	for _, r := range text {
		if strings.ContainsRune(markdownV2SpecialChars, r) {
			result.WriteRune('\\')
		}
		result.WriteRune(r)
	}
	return result.String()
}

// escapeCode escapes characters inside inline code and code blocks (only ` and \)
func escapeCode(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "`", "\\`")
	return text
}

// converter protects one markdown construct from plain-text escaping
type converter struct {
	name   string
	re     *regexp.Regexp
	render func(parts []string) string
}

// converters run in order; earlier ones win (code before bold, etc.)
var converters = []converter{
	{
		name: "CODEBLOCK",
		re:   regexp.MustCompile("(?s)```([a-zA-Z]*)\\n?(.*?)```"),
		render: func(parts []string) string {
			if parts[1] != "" {
				return fmt.Sprintf("```%s\n%s```", parts[1], escapeCode(parts[2]))
			}
			return fmt.Sprintf("```\n%s```", escapeCode(parts[2]))
		},
	},
	{
		name: "CODE",
		re:   regexp.MustCompile("`([^`]+)`"),
		render: func(parts []string) string {
			return "`" + escapeCode(parts[1]) + "`"
		},
	},
	{
		name: "LINK",
		re:   regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`),
		render: func(parts []string) string {
			// URLs in links need only ) and \ escaped
			link := strings.ReplaceAll(parts[2], "\\", "\\\\")
			link = strings.ReplaceAll(link, ")", "\\)")
			return fmt.Sprintf("[%s](%s)", escapeMarkdownV2(parts[1]), link)
		},
	},
	{
		name: "BOLD",
		re:   regexp.MustCompile(`\*\*(.+?)\*\*`),
		render: func(parts []string) string {
			return "*" + escapeMarkdownV2(parts[1]) + "*"
		},
	},
	{
		name: "STRIKE",
		re:   regexp.MustCompile(`~~(.+?)~~`),
		render: func(parts []string) string {
			return "~" + escapeMarkdownV2(parts[1]) + "~"
		},
	},
}

// FormatMarkdownV2 converts the bot's markdown replies to Telegram MarkdownV2
func FormatMarkdownV2(text string) string {
	type placeholder struct {
		key     string
		content string
	}
	var placeholders []placeholder

	for _, c := range converters {
		c := c
		text = c.re.ReplaceAllStringFunc(text, func(match string) string {
			key := fmt.Sprintf("\x00%s%d\x00", c.name, len(placeholders))
			placeholders = append(placeholders, placeholder{key: key, content: c.render(c.re.FindStringSubmatch(match))})
			return key
		})
	}

	text = escapeMarkdownV2(text)

	// restore newest first: a later construct may wrap an earlier placeholder
	for i := len(placeholders) - 1; i >= 0; i-- {
		text = strings.ReplaceAll(text, escapeMarkdownV2(placeholders[i].key), placeholders[i].content)
	}

	return strings.TrimSpace(text)
}

// splitMessage breaks text into chunks of at most limit runes, preferring
// line boundaries. Telegram rejects messages above 4096 characters.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if currentLen+len(runes) > limit {
			flush()
		}
		for len(runes) > limit {
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		current.WriteString(string(runes))
		currentLen += len(runes)
	}
	flush()

	return chunks
}
