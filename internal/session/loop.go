// Package session drives the interactive command loop for one user.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"safety-chatbot/internal/domain"
	"safety-chatbot/internal/usecase"
)

const refusalNotice = "Chatbot: Your message is not safe to process. Please rephrase and try again."

// Pipeline is the session-facing surface of the conversation service.
type Pipeline interface {
	ProcessMessage(ctx context.Context, userID, message string) (usecase.Reply, error)
	History(ctx context.Context, userID string) ([]domain.ChatTurn, error)
	ClearHistory(ctx context.Context, userID string) error
}

// Loop owns one interactive session: it prompts for a user id once,
// then routes each input line to exit, history, clear, or the message
// pipeline. One line is processed to completion before the next read.
type Loop struct {
	pipeline Pipeline
	scanner  *bufio.Scanner
	out      io.Writer
	logger   *slog.Logger
}

func NewLoop(pipeline Pipeline, in io.Reader, out io.Writer, logger *slog.Logger) (*Loop, error) {
	if pipeline == nil {
		return nil, errors.New("session: pipeline must not be nil")
	}
	if in == nil || out == nil {
		return nil, errors.New("session: input and output must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		pipeline: pipeline,
		scanner:  bufio.NewScanner(in),
		out:      out,
		logger:   logger,
	}, nil
}

// Run executes the session until the user exits or input ends. A safety
// classification outage aborts only the current turn; generation and
// store failures end the whole session.
func (l *Loop) Run(ctx context.Context) error {
	userID := l.promptUserID()
	if userID == "" {
		return nil
	}
	l.logger.Info("session started", "user_id", userID)

	for {
		line, ok := l.prompt("You: ")
		if !ok {
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit":
			return nil

		case "history":
			turns, err := l.pipeline.History(ctx, userID)
			if err != nil {
				return err
			}
			l.printHistory(userID, turns)

		case "clear":
			if err := l.pipeline.ClearHistory(ctx, userID); err != nil {
				return err
			}
			fmt.Fprintln(l.out, "Chat history cleared.")

		default:
			if err := l.processTurn(ctx, userID, input); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) processTurn(ctx context.Context, userID, input string) error {
	reply, err := l.pipeline.ProcessMessage(ctx, userID, input)
	if err != nil {
		if usecase.CodeOf(err) == usecase.ErrorServiceUnavailable {
			// Fail closed: the unclassified message is dropped, the session continues.
			l.logger.Error("failed to analyze message", "user_id", userID, "error", err)
			fmt.Fprintln(l.out, "Failed to analyze your message. Please try again.")
			return nil
		}
		return err
	}

	l.printVerdict(reply.Verdict)
	if !reply.Verdict.Safe {
		fmt.Fprintln(l.out, refusalNotice)
		return nil
	}
	fmt.Fprintln(l.out, "Chatbot:", reply.Response)
	return nil
}

// promptUserID reads the session's user id, re-prompting on blank input.
func (l *Loop) promptUserID() string {
	for {
		line, ok := l.prompt("User ID: ")
		if !ok {
			return ""
		}
		if userID := strings.TrimSpace(line); userID != "" {
			return userID
		}
	}
}

func (l *Loop) prompt(label string) (string, bool) {
	fmt.Fprint(l.out, label)
	if !l.scanner.Scan() {
		return "", false
	}
	return l.scanner.Text(), true
}

func (l *Loop) printHistory(userID string, turns []domain.ChatTurn) {
	fmt.Fprintf(l.out, "\n<-- Chat history of user ID: %s -->\n", userID)
	if transcript := usecase.FormatTranscript(turns); transcript != "" {
		fmt.Fprintln(l.out, transcript)
	}
	fmt.Fprintf(l.out, "<-- End of chat history of user ID: %s -->\n\n", userID)
}

// printVerdict prints the per-category severity block. Nothing is
// printed for an unscored verdict (classifier outage with fail-open).
func (l *Loop) printVerdict(v domain.SafetyVerdict) {
	if len(v.Severities) == 0 {
		return
	}
	fmt.Fprintln(l.out, "\n<-- Content Safety Analysis Results -->")
	for _, c := range domain.Categories {
		fmt.Fprintf(l.out, "%s severity: %d\n", c.Label(), v.Severity(c))
	}
	fmt.Fprintln(l.out, "<-- End of Content Safety Analysis Results -->")
	fmt.Fprintln(l.out)
}
