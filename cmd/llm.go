package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonpath/internal/llm"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/validator"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect the model grader configuration",
}

var llmCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Grade a sample submission with the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.LLM.Enabled() {
			fmt.Println("No LLM provider configured; model-graded problems will fail as upstream unavailable.")
			return nil
		}

		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		provider, err := llm.NewProvider(cmd.Context(), cfg.LLM, log)
		if err != nil {
			return fmt.Errorf("build provider: %w", err)
		}

		graderCfg := validator.DefaultGraderConfig()
		graderCfg.Timeout = cfg.LLM.Timeout
		grader := validator.NewModelGrader(provider, graderCfg)

		prompt, _ := cmd.Flags().GetString("prompt")
		answer, _ := cmd.Flags().GetString("answer")
		submission, _ := cmd.Flags().GetString("submission")

		start := time.Now()
		v, err := grader.Judge(cmd.Context(), validator.Input{
			Prompt:     prompt,
			Answer:     answer,
			Submission: submission,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Provider: %s\n", cfg.LLM.Provider)
		fmt.Printf("Model:    %s\n", provider.ModelID())
		fmt.Printf("Latency:  %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("OK:       %t\n", v.OK)
		if fb, ok := v.Details["feedback"].(string); ok && fb != "" {
			fmt.Printf("Feedback: %s\n", fb)
		}
		if c := llm.LookupCost(provider.ModelID()); c != nil {
			fmt.Printf("Pricing:  $%.2f in / $%.2f out per MTok\n", c.InputPerMTok, c.OutputPerMTok)
		}
		return nil
	},
}

func init() {
	llmCheckCmd.Flags().String("prompt", "What is 3/4 written as a decimal?", "Problem prompt")
	llmCheckCmd.Flags().String("answer", "0.75", "Reference answer")
	llmCheckCmd.Flags().String("submission", ".75", "Submission to grade")
	llmCmd.AddCommand(llmCheckCmd)
}
