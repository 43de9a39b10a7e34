package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"safety-chatbot/internal/config"
	"safety-chatbot/internal/integrations/contentsafety"
	"safety-chatbot/internal/integrations/openai"
	"safety-chatbot/internal/integrations/paramstore"
	"safety-chatbot/internal/repository"
	"safety-chatbot/internal/session"
	"safety-chatbot/internal/usecase"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Interactive safety-gated chatbot",
		Long: "Starts an interactive chat session. Each message is scored for harmful\n" +
			"content before a response is generated; safe turns are kept in a\n" +
			"per-user conversation history.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFile(configFile, cfg)
				if err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}

	safetyClient, err := contentsafety.NewClient(cfg.ContentSafetyEndpoint, ssmClient, cfg.ParamPrefix,
		contentsafety.WithThreshold(cfg.SafetyThreshold))
	if err != nil {
		return err
	}

	openaiClient, err := openai.NewClient(cfg.OpenAIEndpoint, cfg.OpenAIDeployment, ssmClient, cfg.ParamPrefix,
		openai.WithAPIVersion(cfg.OpenAIAPIVersion))
	if err != nil {
		return err
	}

	historyClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.HistoryTable)
	if err != nil {
		return err
	}
	store := session.NewStoreExecutor(historyClient, cfg.StoreWorkers)
	defer store.Close()

	svc, err := usecase.NewSessionService(safetyClient, openaiClient, store, logger,
		usecase.WithHistoryTurns(cfg.HistoryTurns),
		usecase.WithFailOpen(cfg.SafetyFailOpen))
	if err != nil {
		return err
	}

	loop, err := session.NewLoop(svc, os.Stdin, os.Stdout, logger)
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}
