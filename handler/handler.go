// Package handler adapts the conversation pipeline to API Gateway proxy
// events for the Lambda deployment.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"safety-chatbot/internal/domain"
	"safety-chatbot/internal/usecase"
)

// Pipeline is the slice of the conversation service the handler needs.
type Pipeline interface {
	ProcessMessage(ctx context.Context, userID, message string) (usecase.Reply, error)
}

type Handler struct {
	pipeline Pipeline
}

func NewHandler(pipeline Pipeline) (*Handler, error) {
	if pipeline == nil {
		return nil, errors.New("handler: pipeline must not be nil")
	}
	return &Handler{pipeline: pipeline}, nil
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type chatResponse struct {
	Response   string                  `json:"response"`
	Severities map[domain.Category]int `json:"severities"`
}

type errorResponse struct {
	Error      string                  `json:"error"`
	Reason     string                  `json:"reason,omitempty"`
	Severities map[domain.Category]int `json:"severities,omitempty"`
}

// Handle processes one chat message. An unsafe message maps to a 400
// with the per-category severities so the caller can show them.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationID(event.Headers)

	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return respond(http.StatusBadRequest, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "malformed_body",
		}, correlationID), nil
	}

	reply, err := h.pipeline.ProcessMessage(ctx, req.UserID, req.Message)
	if err != nil {
		status, body := mapError(err)
		return respond(status, body, correlationID), nil
	}

	if !reply.Verdict.Safe {
		return respond(http.StatusBadRequest, errorResponse{
			Error:      string(usecase.ErrorUnsafeMessage),
			Reason:     "severity_threshold_exceeded",
			Severities: reply.Verdict.Severities,
		}, correlationID), nil
	}

	return respond(http.StatusOK, chatResponse{
		Response:   reply.Response,
		Severities: reply.Verdict.Severities,
	}, correlationID), nil
}

func mapError(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorStore)}
	}
	body := errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorUnsafeMessage:
		return http.StatusBadRequest, body
	case usecase.ErrorServiceUnavailable, usecase.ErrorGeneration:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"error":"` + string(usecase.ErrorStore) + `"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": correlationID,
		},
		Body: string(payload),
	}
}

// correlationID reuses the caller's id when present, header name
// case-insensitive per HTTP, and mints one otherwise.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "X-Correlation-Id" && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
