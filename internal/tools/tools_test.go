package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/toolgate/internal/toolerr"
)

type stubAuthorizer struct {
	decision *AuthorizationDecision
	err      error
}

func (s stubAuthorizer) Authorize(ctx context.Context, toolName string, params map[string]interface{}) (*AuthorizationDecision, error) {
	return s.decision, s.err
}

type echoSpec struct{}

func (echoSpec) Name() string                       { return "echo" }
func (echoSpec) Description() string                { return "echoes" }
func (echoSpec) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }

type echoExecutor struct{ calls int }

func (e *echoExecutor) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	e.calls++
	return &ToolResult{Result: params["value"]}
}

func newEchoRegistry(auth Authorizer) (*Registry, *echoExecutor) {
	exec := &echoExecutor{}
	reg := NewRegistry(auth)
	reg.RegisterSpec(echoSpec{}, func(*Registry) ToolExecutor { return exec })
	return reg, exec
}

func TestRegistryExecute(t *testing.T) {
	reg, exec := newEchoRegistry(nil)

	res := reg.Execute(context.Background(), &ToolCall{Name: "echo", Parameters: map[string]interface{}{"value": "hi"}})
	assert.Equal(t, "hi", res.Result)
	assert.True(t, strings.HasPrefix(res.ID, "call_"), res.ID)
	assert.Equal(t, 1, exec.calls)

	res = reg.Execute(context.Background(), &ToolCall{ID: "abc", Name: "echo"})
	assert.Equal(t, "abc", res.ID)

	res = reg.Execute(context.Background(), &ToolCall{Name: "missing"})
	assert.Equal(t, "tool not found: missing", res.Error)
}

func TestRegistryAuthorization(t *testing.T) {
	tests := []struct {
		name         string
		auth         stubAuthorizer
		approved     bool
		wantCalls    int
		wantUser     bool
		wantError    string
		wantCode     string
		wantSuggests string
	}{
		{
			name:      "allowed",
			auth:      stubAuthorizer{decision: &AuthorizationDecision{Allowed: true}},
			wantCalls: 1,
		},
		{
			name:         "needs approval",
			auth:         stubAuthorizer{decision: &AuthorizationDecision{Reason: "mutating", RequiresUserInput: true, SuggestedCommandPrefix: "rm"}},
			wantUser:     true,
			wantSuggests: "rm",
		},
		{
			name:      "approval given",
			auth:      stubAuthorizer{decision: &AuthorizationDecision{Reason: "mutating", RequiresUserInput: true}},
			approved:  true,
			wantCalls: 1,
		},
		{
			name:      "hard denial survives approval",
			auth:      stubAuthorizer{decision: &AuthorizationDecision{Reason: "outside", Code: string(toolerr.CodeOutsideAllowedRoots)}},
			approved:  true,
			wantError: "outside",
			wantCode:  string(toolerr.CodeOutsideAllowedRoots),
		},
		{
			name:      "authorizer failure",
			auth:      stubAuthorizer{err: errors.New("boom")},
			wantError: "authorization error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, exec := newEchoRegistry(tt.auth)
			call := &ToolCall{Name: "echo"}

			var res *ToolResult
			if tt.approved {
				res = reg.ExecuteWithApproval(context.Background(), call)
			} else {
				res = reg.Execute(context.Background(), call)
			}

			assert.Equal(t, tt.wantCalls, exec.calls)
			assert.Equal(t, tt.wantUser, res.RequiresUserInput)
			assert.Equal(t, tt.wantError, res.Error)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.Equal(t, tt.wantSuggests, res.SuggestedCommandPrefix)
		})
	}
}

func TestBuiltinRegistrySchema(t *testing.T) {
	env := newTestEnv(t, ApprovalMutating)

	var names []string
	for _, spec := range env.reg.ListSpecs() {
		names = append(names, spec.Name())
	}
	assert.Equal(t, []string{ToolNameApplyPatch, ToolNameCreateFile, ToolNameEditFile, ToolNameReadFile, ToolNameShell}, names)

	schemas := env.reg.ToJSONSchema()
	require.Len(t, schemas, 5)
	fn := schemas[0]["function"].(map[string]interface{})
	assert.Equal(t, ToolNameApplyPatch, fn["name"])
	assert.NotEmpty(t, fn["description"])
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{
		"s":     "text",
		"f":     float64(12),
		"i":     7,
		"b":     true,
		"list":  []interface{}{map[string]interface{}{"old_text": "a", "new_text": "b"}},
		"coded": `[{"old_text":"c","new_text":"d"}]`,
	}

	assert.Equal(t, "text", GetStringParam(params, "s", "x"))
	assert.Equal(t, "x", GetStringParam(params, "f", "x"))
	assert.Equal(t, 12, GetIntParam(params, "f", 0))
	assert.Equal(t, 7, GetIntParam(params, "i", 0))
	assert.Equal(t, 3, GetIntParam(params, "missing", 3))
	assert.True(t, GetBoolParam(params, "b", false))

	var edits []editParam
	found, err := decodeParam(params, "list", &edits)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, edits, 1)
	assert.Equal(t, "a", *edits[0].OldText)

	edits = nil
	found, err = decodeParam(params, "coded", &edits)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "d", *edits[0].NewText)

	found, err = decodeParam(params, "missing", &edits)
	assert.NoError(t, err)
	assert.False(t, found)

	_, err = decodeParam(map[string]interface{}{"x": "not json"}, "x", &edits)
	assert.Error(t, err)
}

func TestCalculateOutputStats(t *testing.T) {
	tests := []struct {
		in    string
		bytes int
		lines int
	}{
		{"", 0, 0},
		{"one", 3, 1},
		{"one\n", 4, 1},
		{"one\ntwo", 7, 2},
	}
	for _, tt := range tests {
		b, l := CalculateOutputStats(tt.in)
		assert.Equal(t, tt.bytes, b, tt.in)
		assert.Equal(t, tt.lines, l, tt.in)
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "", classifyError(nil))
	assert.Equal(t, string(toolerr.CodeAmbiguousMatch), classifyError(toolerr.New(toolerr.CodeAmbiguousMatch, "", "x")))
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "permission", classifyError(errors.New("open x: permission denied")))
	assert.Equal(t, "not_found", classifyError(errors.New("no such file or directory")))
	assert.Equal(t, "unknown", classifyError(errors.New("weird")))

	assert.Equal(t, "/etc/passwd", extractErrorContext(toolerr.New(toolerr.CodeOutsideAllowedRoots, "/etc/passwd", "outside")))
}

func TestParseApprovalMode(t *testing.T) {
	for in, want := range map[string]ApprovalMode{
		"":         ApprovalMutating,
		"mutating": ApprovalMutating,
		" Always ": ApprovalAlways,
		"never":    ApprovalNever,
	} {
		got, err := ParseApprovalMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseApprovalMode("sometimes")
	assert.Error(t, err)
}
