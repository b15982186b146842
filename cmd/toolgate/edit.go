package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codefionn/toolgate/internal/editmatch"
	"github.com/codefionn/toolgate/internal/tools"
)

var (
	oldTextFlag    string
	newTextFlag    string
	editsFileFlag  string
	replaceAllFlag bool
)

var editCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Replace text in a file using whitespace-tolerant matching",
	Long: `Apply one replacement (--old/--new) or a list of replacements read from a JSON
file (--edits, an array of {"old_text": ..., "new_text": ...}). Each old text
must match exactly one location unless --replace-all is set. Either every edit
applies or the file is left unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&oldTextFlag, "old", "", "Text to replace")
	editCmd.Flags().StringVar(&newTextFlag, "new", "", "Replacement text")
	editCmd.Flags().StringVar(&editsFileFlag, "edits", "", "JSON file with a list of edits")
	editCmd.Flags().BoolVar(&replaceAllFlag, "replace-all", false, "Replace every occurrence")
	editCmd.MarkFlagsMutuallyExclusive("old", "edits")
	rootCmd.AddCommand(editCmd)
}

func readEditsFile(path string) ([]editmatch.Edit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var edits []editmatch.Edit
	if err := json.Unmarshal(data, &edits); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return edits, nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	params := map[string]interface{}{
		"path":        args[0],
		"replace_all": replaceAllFlag,
	}
	switch {
	case editsFileFlag != "":
		edits, err := readEditsFile(editsFileFlag)
		if err != nil {
			return err
		}
		params["edits"] = edits
	case cmd.Flags().Changed("old"):
		params["old_text"] = oldTextFlag
		params["new_text"] = newTextFlag
	default:
		return fmt.Errorf("either --old/--new or --edits is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	// Running edit from the command line is the user's own approval.
	res := a.registry.ExecuteWithApproval(cmd.Context(), &tools.ToolCall{Name: tools.ToolNameEditFile, Parameters: params})
	return printToolResult(cmd, res)
}
