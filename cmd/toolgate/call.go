package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codefionn/toolgate/internal/config"
	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/tools"
)

var (
	inputFlag string
	yesFlag   bool
)

var errToolFailed = errors.New("tool failed")

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Run a JSON tool call through the guard",
	Long: `Read a tool call such as

  {"name": "shell", "parameters": {"command": "go test ./..."}}

from --input or stdin (a JSON array runs several calls in order) and run it.
Calls that need approval are refused unless --yes is given or the call was
read from --input and stdin is a terminal, in which case you are asked.`,
	Args: cobra.NoArgs,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "File with the tool call (default: stdin)")
	callCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Approve calls that need approval")
	rootCmd.AddCommand(callCmd)
}

func readCalls(r io.Reader) ([]*tools.ToolCall, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("no tool call given")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if data[0] == '[' {
		var calls []*tools.ToolCall
		if err := dec.Decode(&calls); err != nil {
			return nil, fmt.Errorf("parse tool calls: %w", err)
		}
		return calls, nil
	}
	var call tools.ToolCall
	if err := dec.Decode(&call); err != nil {
		return nil, fmt.Errorf("parse tool call: %w", err)
	}
	return []*tools.ToolCall{&call}, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	interactive := false
	if inputFlag != "" {
		f, err := os.Open(inputFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
		interactive = stdinIsTerminal()
	}

	calls, err := readCalls(in)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	var firstErr error
	for _, call := range calls {
		res := a.registry.Execute(cmd.Context(), call)
		if res.RequiresUserInput {
			approved := yesFlag
			if !approved && interactive {
				approved, err = a.prompt(cmd, res)
				if err != nil {
					return err
				}
			}
			if approved {
				res = a.registry.ExecuteWithApproval(cmd.Context(), call)
			}
		}
		if err := printToolResult(cmd, res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// prompt asks whether to run a call that needs approval. Answering "a"
// remembers the suggested command prefixes in the user config.
func (a *app) prompt(cmd *cobra.Command, res *tools.ToolResult) (bool, error) {
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, warnStyle.Render("approval required: ")+res.AuthReason)
	choices := "[y/N]"
	if res.SuggestedCommandPrefix != "" {
		choices = "[y/N/a=always allow " + strings.ReplaceAll(res.SuggestedCommandPrefix, "\n", ", ") + "]"
	}
	fmt.Fprintf(w, "Run it? %s ", choices)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "a", "always":
		if res.SuggestedCommandPrefix == "" {
			return true, nil
		}
		return true, a.rememberPrefixes(strings.Split(res.SuggestedCommandPrefix, "\n"))
	default:
		return false, nil
	}
}

func (a *app) rememberPrefixes(prefixes []string) error {
	path := configFile
	if path == "" {
		path = config.GetConfigPath()
	}
	// Only the user file is rewritten, never the merged view.
	userCfg, err := config.Load(path, "")
	if err != nil {
		return err
	}
	for _, p := range prefixes {
		a.session.AuthorizeCommand(p)
		userCfg.AuthorizeCommand(p)
	}
	if err := userCfg.Save(path); err != nil {
		return fmt.Errorf("save approved commands: %w", err)
	}
	logger.Info("call: remembered command prefixes %v in %s", prefixes, path)
	return nil
}

// printToolResult prints res and turns a failed call into an error for the
// exit code.
func printToolResult(cmd *cobra.Command, res *tools.ToolResult) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		printHumanResult(out, res)
	}

	switch {
	case res.RequiresUserInput:
		return errRefused
	case res.Error != "" && res.ErrorCode != "":
		return errRefused
	case res.Error != "":
		return errToolFailed
	}
	return nil
}

func printHumanResult(w io.Writer, res *tools.ToolResult) {
	switch {
	case res.RequiresUserInput:
		fmt.Fprintln(w, warnStyle.Render("approval required")+" "+res.AuthReason)
		return
	case res.Error != "":
		header := errorStyle.Render("error")
		if res.ErrorCode != "" {
			header += " " + codeStyle.Render(res.ErrorCode)
		}
		fmt.Fprintln(w, header)
		fmt.Fprintln(w, res.Error)
		return
	}

	if diff, ok := res.UIResult.(string); ok && diff != "" {
		fmt.Fprintln(w, colorDiff(diff))
		return
	}

	result, ok := res.Result.(map[string]interface{})
	if !ok {
		_ = printJSON(w, res.Result)
		return
	}
	if content, ok := result["content"].(string); ok {
		fmt.Fprintln(w, content)
		return
	}
	if stdout, ok := result["stdout"].(string); ok {
		fmt.Fprint(w, stdout)
		if stderr, _ := result["stderr"].(string); stderr != "" {
			fmt.Fprint(w, labelStyle.Render(stderr))
		}
		printField(w, "exit code", fmt.Sprint(result["exit_code"]))
		if timedOut, _ := result["timeout"].(bool); timedOut {
			fmt.Fprintln(w, warnStyle.Render("timed out"))
		}
		return
	}
	_ = printJSON(w, result)
}
