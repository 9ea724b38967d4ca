package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"askace/internal/ace"
	"askace/internal/types"

	"github.com/spf13/cobra"
)

const evalMaxSources = 6

var evalSeeds string

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run a list of questions and print bullets with citation coverage",
	Long: `Reads a JSON array of questions and answers each one with fresh results,
printing the bullets and the validation coverage. Runs feed the playbook like
any other answer.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalSeeds, "seeds", "data/seeds/questions.json", "Path to a JSON array of questions")
}

func runEval(cmd *cobra.Command, args []string) error {
	questions, err := readQuestions(evalSeeds)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := evaluate(ctx, a.svc, questions, cmd.OutOrStdout())
	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(questions))
	}
	return nil
}

func readQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds: %w", err)
	}
	var questions []string
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse seeds %s: %w", path, err)
	}
	return questions, nil
}

// answerer is the part of ace.Service evaluate needs.
type answerer interface {
	Answer(ctx context.Context, req types.QueryRequest) (*types.AnswerResponse, error)
}

var _ answerer = (*ace.Service)(nil)

// evaluate answers each question in turn and returns how many failed.
func evaluate(ctx context.Context, svc answerer, questions []string, out io.Writer) int {
	failed := 0
	for _, q := range questions {
		req := types.NewQueryRequest(q)
		req.FreshOnly = true
		req.MaxSources = evalMaxSources

		fmt.Fprintln(out, "===")
		fmt.Fprintln(out, q)
		answer, err := svc.Answer(ctx, req)
		if err != nil {
			failed++
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		for _, b := range answer.Bullets {
			fmt.Fprintf(out, "- %s\n", b.Text)
		}
		if report, ok := answer.Metadata["validation"].(types.ValidationReport); ok {
			fmt.Fprintf(out, "Coverage: %.2f\n", report.Coverage)
		} else {
			fmt.Fprintln(out, "Coverage: n/a")
		}
	}
	return failed
}
