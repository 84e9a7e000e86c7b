package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/ffi-bindgen/typegraph"
)

var orderCmd = &cobra.Command{
	Use:   "order [flags] <model.yaml>",
	Short: "Print the emission order of a component's types",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrder,
}

func init() {
	orderCmd.Flags().Bool("edges", false, "also print the dependency edges")
}

func runOrder(cmd *cobra.Command, args []string) error {
	showEdges, err := cmd.Flags().GetBool("edges")
	if err != nil {
		return fmt.Errorf("failed to get edges flag: %w", err)
	}
	cis, err := loadModels(args)
	if err != nil {
		return err
	}
	order := typegraph.ForComponent(cis[0])

	out := cmd.OutOrStdout()
	residual := make(map[string]bool, len(order.Residual))
	for _, t := range order.Residual {
		residual[t.String()] = true
	}
	for i, id := range order.Identities() {
		if residual[id] {
			warnColor.Fprintf(out, "%4d  %s (cycle)\n", i, id)
			continue
		}
		fmt.Fprintf(out, "%4d  %s\n", i, id)
	}

	if showEdges {
		fmt.Fprintln(out)
		for _, e := range order.Edges {
			dimColor.Fprintf(out, "%s -> %s\n", e.From, e.To)
		}
	}
	if order.HasCycle() {
		warnColor.Fprintf(out, "\nwarning: %d types left on a dependency cycle, appended in identity order\n", len(order.Residual))
	}
	return nil
}
