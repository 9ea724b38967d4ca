package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"askace/internal/logging"
	"askace/internal/types"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	askFresh      bool
	askMaxSources int
	askNoPlaybook bool
	askPlain      bool
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and learn from the run",
	Long: `Runs the full pipeline for a question and prints the cited bullets.

Example:
  askace ask "What's new with open weight models on huggingface"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askFresh, "fresh", false, "Only use results inside each source's freshness window")
	askCmd.Flags().IntVar(&askMaxSources, "max-sources", types.DefaultMaxSources, "Search results to read (1-20)")
	askCmd.Flags().BoolVar(&askNoPlaybook, "no-playbook", false, "Do not pass learned heuristics to the planner")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Print markdown without terminal rendering")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the raw answer as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	req := types.NewQueryRequest(joinArgs(args))
	req.FreshOnly = askFresh
	req.MaxSources = askMaxSources
	if askNoPlaybook {
		off := false
		req.IncludePlaybook = &off
	}

	answer, err := a.svc.Answer(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	md := formatAnswer(answer)
	if askPlain {
		_, err := fmt.Fprint(out, md)
		return err
	}
	rendered, err := renderMarkdown(md)
	if err != nil {
		logging.Get(logging.CategoryBoot).Debug("glamour render failed, printing plain markdown: %v", err)
		rendered = md
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

// formatAnswer renders an answer as markdown: bullets, sources, then the
// validation and playbook summary.
func formatAnswer(a *types.AnswerResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", a.Question)
	for _, b := range a.Bullets {
		fmt.Fprintf(&sb, "- %s\n", b.Text)
	}

	if len(a.Sources) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for _, s := range a.Sources {
			fmt.Fprintf(&sb, "%s. [%s](%s) _%s_", s.Label, s.Title, s.URL, s.SourceType)
			if s.PublishedAt != nil {
				fmt.Fprintf(&sb, " %s", s.PublishedAt.Format("2006-01-02"))
			}
			sb.WriteString("\n")
		}
	}

	if report, ok := a.Metadata["validation"].(types.ValidationReport); ok {
		fmt.Fprintf(&sb, "\nCoverage: %.2f", report.Coverage)
		if !report.Passed {
			sb.WriteString(" (below threshold)")
		}
		sb.WriteString("\n")
	}
	if block, ok := a.Metadata["ace"].(map[string][]string); ok {
		fmt.Fprintf(&sb, "\nPlaybook: %d proposed, %d merged", len(block["deltas_proposed"]), len(block["deltas_merged"]))
		for _, id := range block["deltas_merged"] {
			fmt.Fprintf(&sb, "\n- `%s`", id)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n_run %s_\n", a.RunID)
	return sb.String()
}

func renderMarkdown(md string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if os.Getenv("GLAMOUR_STYLE") == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithEnvironmentConfig())
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}
