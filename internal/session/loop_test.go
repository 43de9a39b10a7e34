package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"safety-chatbot/internal/domain"
	"safety-chatbot/internal/usecase"
)

type fakePipeline struct {
	reply      usecase.Reply
	processErr error
	history    []domain.ChatTurn
	historyErr error
	clearErr   error

	processedMessages []string
	historyCalls      int
	clearCalls        int
}

func (f *fakePipeline) ProcessMessage(_ context.Context, _, message string) (usecase.Reply, error) {
	f.processedMessages = append(f.processedMessages, message)
	return f.reply, f.processErr
}

func (f *fakePipeline) History(_ context.Context, _ string) ([]domain.ChatTurn, error) {
	f.historyCalls++
	return f.history, f.historyErr
}

func (f *fakePipeline) ClearHistory(_ context.Context, _ string) error {
	f.clearCalls++
	return f.clearErr
}

func safeReply(response string) usecase.Reply {
	return usecase.Reply{
		Verdict:  domain.NewSafetyVerdict(map[domain.Category]int{}, 2),
		Response: response,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func runLoop(t *testing.T, p Pipeline, input string) (string, error) {
	t.Helper()
	var out strings.Builder
	l, err := NewLoop(p, strings.NewReader(input), &out, testLogger())
	require.NoError(t, err)
	err = l.Run(context.Background())
	return out.String(), err
}

func TestNewLoop_Validation(t *testing.T) {
	_, err := NewLoop(nil, strings.NewReader(""), &strings.Builder{}, testLogger())
	require.Error(t, err)

	_, err = NewLoop(&fakePipeline{}, nil, &strings.Builder{}, testLogger())
	require.Error(t, err)
}

func TestRun_ExitEndsSession(t *testing.T) {
	p := &fakePipeline{}
	out, err := runLoop(t, p, "alice\nEXIT\n")
	require.NoError(t, err)
	require.Contains(t, out, "User ID: ")
	require.Contains(t, out, "You: ")
	require.Empty(t, p.processedMessages, "exit must not reach the pipeline")
}

func TestRun_EOFEndsSession(t *testing.T) {
	p := &fakePipeline{}
	_, err := runLoop(t, p, "alice\n")
	require.NoError(t, err)
}

func TestRun_BlankUserIDReprompted(t *testing.T) {
	p := &fakePipeline{reply: safeReply("hi")}
	out, err := runLoop(t, p, "\n  \nalice\nexit\n")
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(out, "User ID: "))
}

func TestRun_EmptyLineSkipsPipeline(t *testing.T) {
	p := &fakePipeline{}
	_, err := runLoop(t, p, "alice\n\n   \nexit\n")
	require.NoError(t, err)
	require.Empty(t, p.processedMessages)
	require.Zero(t, p.historyCalls)
}

func TestRun_MessagePrintsVerdictAndResponse(t *testing.T) {
	p := &fakePipeline{reply: safeReply("Hi! How can I help?")}
	out, err := runLoop(t, p, "alice\nHello\nexit\n")
	require.NoError(t, err)
	require.Equal(t, []string{"Hello"}, p.processedMessages)
	require.Contains(t, out, "<-- Content Safety Analysis Results -->")
	require.Contains(t, out, "Hate severity: 0")
	require.Contains(t, out, "Self_harm severity: 0", "self-harm uses the display label")
	require.Contains(t, out, "Sexual severity: 0")
	require.Contains(t, out, "Violence severity: 0")
	require.Contains(t, out, "<-- End of Content Safety Analysis Results -->")
	require.Contains(t, out, "Chatbot: Hi! How can I help?")
}

func TestRun_UnsafeMessagePrintsRefusal(t *testing.T) {
	p := &fakePipeline{reply: usecase.Reply{
		Verdict: domain.NewSafetyVerdict(map[domain.Category]int{domain.CategoryHate: 3}, 2),
	}}
	out, err := runLoop(t, p, "alice\nsomething nasty\nexit\n")
	require.NoError(t, err)
	require.Contains(t, out, "Hate severity: 3")
	require.Contains(t, out, refusalNotice)
	require.NotContains(t, out, "Chatbot: \n", "no response line for a refused message")
}

func TestRun_ClassifierOutageAbortsTurnOnly(t *testing.T) {
	p := &fakePipeline{processErr: &usecase.Error{Code: usecase.ErrorServiceUnavailable, Reason: "classification_failed"}}
	out, err := runLoop(t, p, "alice\nHello\nstill here\nexit\n")
	require.NoError(t, err, "a classifier outage must not end the session")
	require.Contains(t, out, "Failed to analyze your message.")
	require.Len(t, p.processedMessages, 2, "the loop keeps accepting input")
}

func TestRun_GenerationFailureIsFatal(t *testing.T) {
	p := &fakePipeline{processErr: &usecase.Error{Code: usecase.ErrorGeneration, Reason: "completion_failed"}}
	_, err := runLoop(t, p, "alice\nHello\nexit\n")
	require.Error(t, err)
	require.Equal(t, usecase.ErrorGeneration, usecase.CodeOf(err))
}

func TestRun_StoreFailureIsFatal(t *testing.T) {
	p := &fakePipeline{processErr: &usecase.Error{Code: usecase.ErrorStore, Reason: "turn_write_failed"}}
	_, err := runLoop(t, p, "alice\nHello\nexit\n")
	require.Error(t, err)
}

func TestRun_HistoryCommand(t *testing.T) {
	p := &fakePipeline{history: []domain.ChatTurn{
		{UserMessage: "Hello", BotResponse: "Hi there!"},
	}}
	out, err := runLoop(t, p, "alice\nHISTORY\nexit\n")
	require.NoError(t, err)
	require.Equal(t, 1, p.historyCalls)
	require.Contains(t, out, "<-- Chat history of user ID: alice -->")
	require.Contains(t, out, "User: Hello\nChatBot: Hi there!")
	require.Contains(t, out, "<-- End of chat history of user ID: alice -->")
}

func TestRun_HistoryErrorIsFatal(t *testing.T) {
	p := &fakePipeline{historyErr: errors.New("dynamodb down")}
	_, err := runLoop(t, p, "alice\nhistory\nexit\n")
	require.Error(t, err)
}

func TestRun_ClearCommand(t *testing.T) {
	p := &fakePipeline{}
	out, err := runLoop(t, p, "alice\nClear\nexit\n")
	require.NoError(t, err)
	require.Equal(t, 1, p.clearCalls)
	require.Contains(t, out, "Chat history cleared.")
}

func TestRun_ClearErrorIsFatal(t *testing.T) {
	p := &fakePipeline{clearErr: errors.New("delete failed")}
	_, err := runLoop(t, p, "alice\nclear\nexit\n")
	require.Error(t, err)
}
