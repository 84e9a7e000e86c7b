package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/ffi-bindgen/ir"
	"github.com/wippyai/ffi-bindgen/lower"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <model.yaml>...",
	Short: "Browse the lowered types, ABI definitions and bridge slots of a component",
	Long: `Lower a component without rendering it and show what the renderers would
consume. Extra documents resolve external types. Opens an interactive browser
when stdout is a terminal, and prints a plain listing otherwise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("component", "", "namespace to inspect (default: the first document)")
	inspectCmd.Flags().Bool("plain", false, "print a plain listing even on a terminal")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ns, err := cmd.Flags().GetString("component")
	if err != nil {
		return fmt.Errorf("failed to get component flag: %w", err)
	}
	plain, err := cmd.Flags().GetBool("plain")
	if err != nil {
		return fmt.Errorf("failed to get plain flag: %w", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cis, err := loadModels(args)
	if err != nil {
		return err
	}
	idx, err := findModel(cis, ns)
	if err != nil {
		return err
	}
	results, _ := lower.GenerateAll(cmd.Context(), cis, lower.Options{Config: cfg})
	if len(results) <= idx {
		return fmt.Errorf("component %q was not lowered", cis[idx].Namespace)
	}
	r := results[idx]
	if r.Err != nil {
		return r.Err
	}

	secs := sections(r.Model)
	if plain || !isTerminal(os.Stdout) {
		writeListing(cmd.OutOrStdout(), r.Namespace, secs)
		return nil
	}
	return runInteractive(r.Namespace, secs)
}

type section struct {
	title   string
	entries []entry
}

type entry struct {
	label  string
	detail []string
}

// sections flattens a model into the browsable views: types in emission
// order, ABI definitions in declaration order and bridge slots.
func sections(m *lower.Model) []section {
	return []section{
		{title: "Types", entries: typeEntries(m)},
		{title: "Definitions", entries: definitionEntries(m)},
		{title: "Slots", entries: slotEntries(m)},
	}
}

func typeEntries(m *lower.Model) []entry {
	deps := make(map[string][]string)
	for _, e := range m.Order.Edges {
		deps[e.From] = append(deps[e.From], e.To)
	}
	residual := make(map[string]bool, len(m.Order.Residual))
	for _, t := range m.Order.Residual {
		residual[t.String()] = true
	}

	var out []entry
	for _, id := range m.Order.Identities() {
		e := entry{label: id}
		if ct, ok := m.CodeType(id); ok {
			e.detail = append(e.detail,
				"label:     "+ct.Label,
				"converter: "+ct.Converter)
			if ct.Init != "" {
				e.detail = append(e.detail, "init:      "+ct.Init)
			}
		} else {
			e.detail = append(e.detail, "external")
		}
		if residual[id] {
			e.detail = append(e.detail, "on a dependency cycle")
		}
		for _, d := range deps[id] {
			e.detail = append(e.detail, "depends on "+d)
		}
		out = append(out, e)
	}
	return out
}

func definitionEntries(m *lower.Model) []entry {
	var out []entry
	for _, def := range m.Definitions {
		switch d := def.(type) {
		case *ir.FfiFunction:
			e := entry{label: "fn " + d.Name, detail: argLines(d.Arguments)}
			e.detail = append(e.detail, "returns "+returnLabel(d.Return))
			if d.HasCallStatus {
				e.detail = append(e.detail, "call status")
			}
			if d.IsAsync {
				e.detail = append(e.detail, "async")
			}
			out = append(out, e)
		case *ir.FfiCallbackFunction:
			e := entry{label: "callback " + d.Name, detail: argLines(d.Arguments)}
			e.detail = append(e.detail, "returns "+returnLabel(d.Return))
			if d.HasCallStatus {
				e.detail = append(e.detail, "call status")
			}
			out = append(out, e)
		case *ir.FfiStruct:
			e := entry{label: "struct " + d.Name}
			for _, f := range d.Fields {
				e.detail = append(e.detail, f.Name+": "+f.Type.String())
			}
			out = append(out, e)
		}
	}
	return out
}

func slotEntries(m *lower.Model) []entry {
	var out []entry
	for _, s := range m.Bridge.Slots() {
		e := entry{
			label: s.Role.String() + " " + s.Name,
			detail: []string{
				"direction: " + s.Direction.String(),
				"threading: " + s.Threading.String(),
				"lifetime:  " + s.Lifetime.String(),
				"namespace: " + s.Namespace,
			},
		}
		if s.Field != "" {
			e.detail = append(e.detail, "field:     "+s.Field)
		}
		if s.Method != "" {
			e.detail = append(e.detail, "method:    "+s.Method)
		}
		if s.Async {
			e.detail = append(e.detail, "async")
		}
		out = append(out, e)
	}
	return out
}

func argLines(args []ir.FfiArgument) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, a.Name+": "+a.Type.String())
	}
	return out
}

func returnLabel(t *ir.AbiType) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

func writeListing(w io.Writer, ns string, secs []section) {
	fmt.Fprintf(w, "component %s\n", ns)
	for _, s := range secs {
		fmt.Fprintf(w, "\n%s (%d)\n", s.title, len(s.entries))
		for _, e := range s.entries {
			fmt.Fprintf(w, "  %s\n", e.label)
			for _, d := range e.detail {
				fmt.Fprintf(w, "      %s\n", d)
			}
		}
	}
}

func (e entry) matches(filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(e.label), strings.ToLower(filter))
}
