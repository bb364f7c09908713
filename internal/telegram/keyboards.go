package telegram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

// callbackTypeAnswer marks a quick answer button
const callbackTypeAnswer = "a"

// CallbackData stores callback information for keyboard buttons
type CallbackData struct {
	Type   string `json:"t"`           // "a" for a quick answer
	Answer string `json:"a,omitempty"` // text delivered as if the user typed it
}

// BuildAnswerKeyboard creates a single-row inline keyboard with one button
// per quick answer
func BuildAnswerKeyboard(answers []string) gotgbot.InlineKeyboardMarkup {
	row := make([]gotgbot.InlineKeyboardButton, 0, len(answers))
	for _, answer := range answers {
		data, _ := json.Marshal(CallbackData{Type: callbackTypeAnswer, Answer: answer})
		row = append(row, gotgbot.InlineKeyboardButton{
			Text:         buttonLabel(answer),
			CallbackData: string(data),
		})
	}

	return gotgbot.InlineKeyboardMarkup{
		InlineKeyboard: [][]gotgbot.InlineKeyboardButton{row},
	}
}

// ParseCallbackData parses the callback_data from a button press
func ParseCallbackData(data string) (*CallbackData, error) {
	var cb CallbackData
	if err := json.Unmarshal([]byte(data), &cb); err != nil {
		return nil, err
	}
	if cb.Type != callbackTypeAnswer || cb.Answer == "" {
		return nil, fmt.Errorf("unsupported callback %q", data)
	}
	return &cb, nil
}

// buttonLabel capitalizes the first letter of an answer ("yes" -> "Yes")
func buttonLabel(answer string) string {
	if answer == "" {
		return answer
	}
	return strings.ToUpper(answer[:1]) + answer[1:]
}
