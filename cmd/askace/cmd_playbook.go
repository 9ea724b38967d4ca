package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var playbookTag string

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect and seed learned heuristics",
}

var playbookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List heuristics, most helpful first",
	RunE:  runPlaybookList,
}

var playbookSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the starter heuristics into the playbook",
	RunE:  runPlaybookSeed,
}

func init() {
	playbookListCmd.Flags().StringVar(&playbookTag, "tag", "", "Only items whose tags contain this text")
	playbookCmd.AddCommand(playbookListCmd)
	playbookCmd.AddCommand(playbookSeedCmd)
}

func runPlaybookList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.List(ctx, playbookTag)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "Playbook is empty. Run `askace playbook seed` or ask some questions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HELPFUL\tHARMFUL\tID\tTAGS\tCONTENT")
	for _, it := range items {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", it.Helpful, it.Harmful, it.ID, strings.Join(it.Tags, ","), it.Content)
	}
	return w.Flush()
}

func runPlaybookSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d playbook items into %s\n", n, cfg.ACE.DBPath)
	return nil
}
