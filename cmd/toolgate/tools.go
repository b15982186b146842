package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codefionn/toolgate/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the guarded tools and their parameters",
	Long: `List the tools that 'toolgate call' accepts. With --json the function-calling
schema is printed so it can be handed to a model as is.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, a.registry.ToJSONSchema())
	}

	for i, spec := range a.registry.ListSpecs() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, headerStyle.Render(spec.Name()))
		fmt.Fprintln(out, spec.Description())
		for _, line := range describeParams(spec) {
			fmt.Fprintln(out, "  "+line)
		}
	}
	return nil
}

// describeParams renders one line per top-level parameter, required ones
// marked with "*".
func describeParams(spec tools.ToolSpec) []string {
	schema := spec.Parameters()
	props, _ := schema["properties"].(map[string]interface{})
	required := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []interface{}:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]interface{})
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		marker := " "
		if required[name] {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s %s", marker, codeStyle.Render(name), labelStyle.Render(typ))
		if desc != "" {
			line += "  " + strings.TrimSpace(desc)
		}
		lines = append(lines, line)
	}
	return lines
}
