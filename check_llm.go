package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/llm"
)

var checkLLMCmd = &cobra.Command{
	Use:   "check-llm",
	Short: "Verify the configured model provider accepts our credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		generator, err := llm.NewGenerator(cmd.Context(), llmSettings(cfg), logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := generator.Close(); err != nil {
				logger.Warn("Failed to close model client", zap.Error(err))
			}
		}()

		if !generator.ValidateCredentials(cmd.Context()) {
			return fmt.Errorf("%s rejected the credentials for model %s", cfg.LLM.Provider, generator.Model())
		}

		cmd.Printf("%s credentials OK (model %s)\n", cfg.LLM.Provider, generator.Model())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkLLMCmd)
}
