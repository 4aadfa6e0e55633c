package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resumind-backend/internal/analysis"
	"resumind-backend/internal/bootstrap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume.pdf>",
	Short: "Run the full analysis pipeline on a local PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("company", "", "company name")
	analyzeCmd.Flags().String("title", "", "job title")
	analyzeCmd.Flags().String("jd", "", "job description text")
	analyzeCmd.Flags().String("jd-file", "", "file holding the job description")
	analyzeCmd.Flags().String("scorer", "", "scorer provider (openai, gemini, none)")
	analyzeCmd.Flags().String("model", "", "scorer model")

	viper.BindPFlag("scorer", analyzeCmd.Flags().Lookup("scorer"))
	viper.BindPFlag("model", analyzeCmd.Flags().Lookup("model"))
}

func runAnalyze(cmd *cobra.Command, path string) error {
	submission, err := readSubmission(cmd, path)
	if err != nil {
		return err
	}

	cfg := loadConfig()
	configureLogging(cfg)
	a, err := bootstrap.BuildContext(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	// Failed runs queue their uploads for cleanup; sweep them before exit.
	defer a.SweepPending(context.WithoutCancel(cmd.Context()))

	errOut := cmd.ErrOrStderr()
	rec, err := a.Orchestrator.Analyze(cmd.Context(), submission, func(s analysis.Status) {
		if text := s.Stage.Text(); text != "" {
			fmt.Fprintln(errOut, text)
		}
	})
	if err != nil {
		return err
	}

	if err := writeRecord(cmd, rec); err != nil {
		return err
	}
	if rec.Feedback != nil {
		fmt.Fprintf(errOut, "Overall %.0f/100 (%s)\n", rec.Feedback.OverallScore, analysis.ScoreLabel(rec.Feedback.OverallScore))
	}
	return nil
}

func readSubmission(cmd *cobra.Command, path string) (analysis.Submission, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return analysis.Submission{}, fmt.Errorf("%s: only PDF files are supported", path)
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return analysis.Submission{}, fmt.Errorf("read resume: %w", err)
	}

	company, _ := cmd.Flags().GetString("company")
	title, _ := cmd.Flags().GetString("title")
	jd, _ := cmd.Flags().GetString("jd")
	if jdFile, _ := cmd.Flags().GetString("jd-file"); jdFile != "" {
		data, err := os.ReadFile(jdFile)
		if err != nil {
			return analysis.Submission{}, fmt.Errorf("read job description: %w", err)
		}
		jd = string(data)
	}

	return analysis.Submission{
		CompanyName:    strings.TrimSpace(company),
		JobTitle:       strings.TrimSpace(title),
		JobDescription: strings.TrimSpace(jd),
		Document:       doc,
	}, nil
}

func writeRecord(cmd *cobra.Command, rec analysis.Record) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
