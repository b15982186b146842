// Package tools exposes the sandbox, the edit matcher and the command
// classifier as callable tools: read_file, create_file, edit_file,
// apply_patch and shell. A Registry dispatches ToolCalls to executors after
// asking an Authorizer whether the call may run.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/toolgate/internal/logger"
	"github.com/codefionn/toolgate/internal/toolerr"
)

// ToolSpec represents the static specification of a tool (name, description, parameters).
// This is used for schema generation and does not require any runtime dependencies.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
}

// ToolExecutor handles the actual execution of a tool with specific runtime dependencies.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) *ToolResult
}

// ToolFactory creates tool executors with specific runtime dependencies.
// The factory receives the registry so executors can reach other tools.
//
// Example:
//
//	func NewMyToolFactory(fs fs.FileSystem, sess *session.Session) ToolFactory {
//	    return func(reg *Registry) ToolExecutor {
//	        return &MyToolExecutor{fs: fs, session: sess}
//	    }
//	}
type ToolFactory func(registry *Registry) ToolExecutor

// ToolCall represents a request to run one tool
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	ID                     string      `json:"id"`
	Result                 interface{} `json:"result,omitempty"`
	Error                  string      `json:"error,omitempty"`
	ErrorCode              string      `json:"error_code,omitempty"`
	RequiresUserInput      bool        `json:"requires_user_input,omitempty"`      // If true, user approval is needed
	AuthReason             string      `json:"auth_reason,omitempty"`              // Reason for requiring authorization
	SuggestedCommandPrefix string      `json:"suggested_command_prefix,omitempty"` // Suggested prefix to remember for future use

	ExecutionMetadata *ExecutionMetadata `json:"execution_metadata,omitempty"`

	// UIResult, when set, is shown to a human instead of Result (for
	// example a unified diff of an edit).
	UIResult interface{} `json:"ui_result,omitempty"`
}

// ExecutionMetadata captures detailed information about tool execution
type ExecutionMetadata struct {
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`

	// Command/process information (shell only)
	Command  string `json:"command,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	PID      int    `json:"pid,omitempty"`

	OutputSizeBytes int  `json:"output_size_bytes,omitempty"`
	OutputLineCount int  `json:"output_line_count,omitempty"`
	HasStderr       bool `json:"has_stderr,omitempty"`
	StderrSizeBytes int  `json:"stderr_size_bytes,omitempty"`

	WorkingDir     string `json:"working_dir,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	WasTimedOut    bool   `json:"was_timed_out,omitempty"`
	Confined       bool   `json:"confined,omitempty"`

	ToolType string                 `json:"tool_type,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Error classification
	ErrorType    string `json:"error_type,omitempty"` // a toolerr code, or "timeout", "permission", "not_found", ...
	ErrorContext string `json:"error_context,omitempty"`
}

func newMetadata(toolType string) *ExecutionMetadata {
	now := time.Now()
	return &ExecutionMetadata{StartTime: &now, ToolType: toolType}
}

func (m *ExecutionMetadata) finish() {
	if m == nil || m.StartTime == nil {
		return
	}
	end := time.Now()
	m.EndTime = &end
	m.DurationMs = end.Sub(*m.StartTime).Milliseconds()
}

// Registry manages available tools
type Registry struct {
	specs      map[string]ToolSpec
	executors  map[string]ToolExecutor
	authorizer Authorizer
}

// NewRegistry creates a new tool registry with an optional authorizer
func NewRegistry(authorizer Authorizer) *Registry {
	return &Registry{
		specs:      make(map[string]ToolSpec),
		executors:  make(map[string]ToolExecutor),
		authorizer: authorizer,
	}
}

// RegisterSpec adds a tool spec with a factory to the registry
func (r *Registry) RegisterSpec(spec ToolSpec, factory ToolFactory) {
	r.specs[spec.Name()] = spec
	r.executors[spec.Name()] = factory(r)
}

// GetExecutor retrieves a tool executor by name
func (r *Registry) GetExecutor(name string) (ToolExecutor, bool) {
	executor, ok := r.executors[name]
	return executor, ok
}

// ListSpecs returns all registered tool specs sorted by name
func (r *Registry) ListSpecs() []ToolSpec {
	result := make([]ToolSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		result = append(result, spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Execute authorizes and executes a tool call
func (r *Registry) Execute(ctx context.Context, call *ToolCall) *ToolResult {
	return r.execute(ctx, call, false)
}

// ExecuteWithApproval executes a tool call, bypassing the approval prompt
// (used when the user has manually approved). Hard denials still apply.
func (r *Registry) ExecuteWithApproval(ctx context.Context, call *ToolCall) *ToolResult {
	return r.execute(ctx, call, true)
}

func (r *Registry) execute(ctx context.Context, call *ToolCall, approved bool) *ToolResult {
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	log := logger.Global().WithField("call_id", call.ID).WithField("tool", call.Name)

	executor, ok := r.executors[call.Name]
	if !ok || executor == nil {
		return &ToolResult{ID: call.ID, Error: "tool not found: " + call.Name}
	}

	if r.authorizer != nil {
		decision, err := r.authorizer.Authorize(ctx, call.Name, call.Parameters)
		if err != nil {
			log.Warn("authorization error: %v", err)
			return &ToolResult{ID: call.ID, Error: "authorization error: " + err.Error()}
		}

		if decision != nil && !decision.Allowed {
			if decision.RequiresUserInput && !approved {
				log.Info("approval required: %s", decision.Reason)
				return &ToolResult{
					ID:                     call.ID,
					RequiresUserInput:      true,
					AuthReason:             decision.Reason,
					SuggestedCommandPrefix: decision.SuggestedCommandPrefix,
				}
			}
			if !decision.RequiresUserInput {
				log.Info("denied: %s", decision.Reason)
				return &ToolResult{
					ID:                     call.ID,
					Error:                  decision.Reason,
					ErrorCode:              decision.Code,
					SuggestedCommandPrefix: decision.SuggestedCommandPrefix,
				}
			}
		}
	}

	result := executor.Execute(ctx, call.Parameters)
	if result == nil {
		return &ToolResult{ID: call.ID, Error: "tool returned nil result"}
	}
	result.ID = call.ID
	if result.Error != "" {
		log.Debug("failed: %s", result.Error)
	}
	return result
}

// ToJSONSchema converts tools to function-calling JSON schema format
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	specs := r.ListSpecs()
	schemas := make([]map[string]interface{}, 0, len(specs))
	for _, spec := range specs {
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        spec.Name(),
				"description": spec.Description(),
				"parameters":  spec.Parameters(),
			},
		})
	}
	return schemas
}

// NewToolResultWithMetadata creates a ToolResult with execution metadata
func NewToolResultWithMetadata(id string, result interface{}, err error, metadata *ExecutionMetadata) *ToolResult {
	metadata.finish()
	toolResult := &ToolResult{
		ID:                id,
		Result:            result,
		ExecutionMetadata: metadata,
	}

	if err != nil {
		toolResult.Error = err.Error()
		toolResult.ErrorCode = string(toolerr.CodeOf(err))
		if metadata != nil {
			metadata.ErrorType = classifyError(err)
			metadata.ErrorContext = extractErrorContext(err)
		}
	}

	return toolResult
}

// errorResult is NewToolResultWithMetadata for failures.
func errorResult(err error, metadata *ExecutionMetadata) *ToolResult {
	return NewToolResultWithMetadata("", nil, err, metadata)
}

// classifyError categorizes errors: typed refusals by their code, anything
// else by its message.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if code := toolerr.CodeOf(err); code != "" {
		return string(code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied"):
		return "permission"
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such file"):
		return "not_found"
	case strings.Contains(errStr, "syntax") || strings.Contains(errStr, "parse"):
		return "syntax"
	case strings.Contains(errStr, "exit status") || strings.Contains(errStr, "exit code"):
		return "process_exit"
	default:
		return "unknown"
	}
}

// extractErrorContext pulls the offending path or command out of an error.
func extractErrorContext(err error) string {
	var te *toolerr.Error
	if errors.As(err, &te) {
		return te.Path
	}
	return ""
}

// CalculateOutputStats computes statistics for output content
func CalculateOutputStats(content string) (bytes int, lines int) {
	if content == "" {
		return 0, 0
	}
	bytes = len(content)
	lines = strings.Count(content, "\n") + 1
	if strings.HasSuffix(content, "\n") {
		lines--
	}
	return bytes, lines
}

// Helper function to get string parameter
func GetStringParam(params map[string]interface{}, key string, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// Helper function to get int parameter
func GetIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

// Helper function to get bool parameter
func GetBoolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := params[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// decodeParam re-marshals params[key] into out. A JSON-encoded string is
// accepted too, since models sometimes double-encode arrays.
func decodeParam(params map[string]interface{}, key string, out interface{}) (bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return false, nil
	}
	if str, isString := raw.(string); isString {
		if err := json.Unmarshal([]byte(str), out); err != nil {
			return true, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		return true, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return true, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return true, nil
}
