package usecase

import (
	"strings"

	"safety-chatbot/internal/domain"
)

const promptTemplate = `ChatBot can have a conversation with you about any topic.
It can give explicit instructions or say 'I don't know' if it does not have an answer.
%HISTORY%
User: %USER_MESSAGE%
ChatBot: `

// FormatTranscript renders turns as alternating "User: …" / "ChatBot: …"
// lines. The input order is preserved, so the most-recent-first order of
// a history read puts the latest exchange first in the transcript.
func FormatTranscript(turns []domain.ChatTurn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, "User: "+turn.UserMessage+"\nChatBot: "+turn.BotResponse)
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt embeds the transcript and the current user message into
// the fixed chat template.
func BuildPrompt(userMessage, transcript string) string {
	prompt := strings.Replace(promptTemplate, "%HISTORY%", transcript, 1)
	return strings.Replace(prompt, "%USER_MESSAGE%", userMessage, 1)
}

// promptMessages wraps the rendered prompt as a single user message for
// the completion service.
func promptMessages(userMessage, transcript string) []domain.ChatMessage {
	return []domain.ChatMessage{{
		Role:    "user",
		Content: BuildPrompt(userMessage, transcript),
	}}
}
