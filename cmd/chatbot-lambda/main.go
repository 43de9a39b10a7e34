package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"safety-chatbot/handler"
	"safety-chatbot/internal/config"
	"safety-chatbot/internal/integrations/contentsafety"
	"safety-chatbot/internal/integrations/openai"
	"safety-chatbot/internal/integrations/paramstore"
	"safety-chatbot/internal/repository"
	"safety-chatbot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	historyClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.HistoryTable)
	if err != nil {
		logger.Error("failed to create history client", "err", err)
		os.Exit(1)
	}
	safetyClient, err := contentsafety.NewClient(cfg.ContentSafetyEndpoint, ssmClient, cfg.ParamPrefix,
		contentsafety.WithThreshold(cfg.SafetyThreshold))
	if err != nil {
		logger.Error("failed to create content safety client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(cfg.OpenAIEndpoint, cfg.OpenAIDeployment, ssmClient, cfg.ParamPrefix,
		openai.WithAPIVersion(cfg.OpenAIAPIVersion))
	if err != nil {
		logger.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	svc, err := usecase.NewSessionService(safetyClient, openaiClient, historyClient, logger,
		usecase.WithHistoryTurns(cfg.HistoryTurns),
		usecase.WithFailOpen(cfg.SafetyFailOpen))
	if err != nil {
		logger.Error("failed to create session service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(svc)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
