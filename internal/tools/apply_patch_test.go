package tools

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/toolgate/internal/toolerr"
)

func TestParsePatch(t *testing.T) {
	patch := `diff --git a/old.txt b/old.txt
--- a/old.txt
+++ b/old.txt
@@ -1,2 +1,2 @@
 keep
-drop
+add
--- /dev/null
+++ b/new.txt
@@ -0,0 +1,2 @@
+hello
+world
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`
	files, err := parsePatch(patch)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "old.txt", files[0].path())
	assert.False(t, files[0].isNew())
	assert.False(t, files[0].isDelete())

	assert.Equal(t, "new.txt", files[1].path())
	assert.True(t, files[1].isNew())
	assert.Equal(t, "", files[1].origPath())

	assert.Equal(t, "gone.txt", files[2].path())
	assert.True(t, files[2].isDelete())

	oldText, newText, err := hunkText(files[0].diff.Hunks[0])
	require.NoError(t, err)
	assert.Equal(t, "keep\ndrop\n", oldText)
	assert.Equal(t, "keep\nadd\n", newText)

	_, err = parsePatch("just some text\n")
	assert.True(t, toolerr.Has(err, toolerr.CodeInvalidEdit), "%v", err)
}

func TestInsertAt(t *testing.T) {
	assert.Equal(t, "new\na\nb\n", insertAt("a\nb\n", 0, "new\n"))
	assert.Equal(t, "a\nnew\nb\n", insertAt("a\nb\n", 1, "new\n"))
	assert.Equal(t, "a\nb\nnew\n", insertAt("a\nb\n", 2, "new\n"))
	assert.Equal(t, "a\nb\nnew\n", insertAt("a\nb", 5, "new\n"))
}

func TestApplyPatch(t *testing.T) {
	env := newTestEnv(t, ApprovalMutating)
	env.write(t, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	env.write(t, "gone.txt", "bye\n")
	env.markRead(t, "main.go")
	env.markRead(t, "gone.txt")

	// Line numbers are deliberately off; hunks are found by content.
	patch := `--- a/main.go
+++ b/main.go
@@ -10,3 +10,3 @@
 func main() {
-	println("hi")
+	println("hello")
 }
--- /dev/null
+++ b/pkg/new.go
@@ -0,0 +1 @@
+package pkg
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`
	res := env.call(ToolNameApplyPatch, map[string]interface{}{"patch": patch})
	out := resultMap(t, res)
	files := out["files"].([]map[string]interface{})
	require.Len(t, files, 3)
	assert.Equal(t, "updated", files[0]["action"])
	assert.Equal(t, "created", files[1]["action"])
	assert.Equal(t, "deleted", files[2]["action"])

	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n", env.read(t, "main.go"))
	assert.Equal(t, "package pkg\n", env.read(t, "pkg/new.go"))
	_, err := os.Stat(env.path("gone.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, res.UIResult, "+\tprintln(\"hello\")")
	assert.ElementsMatch(t, []string{env.path("main.go"), env.path("pkg/new.go")}, env.session.GetModifiedFiles())
}

func TestApplyPatchIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t, ApprovalMutating)
	env.write(t, "a.txt", "one\ntwo\n")
	env.write(t, "b.txt", "three\n")
	env.markRead(t, "a.txt")
	env.markRead(t, "b.txt")

	patch := `--- a/a.txt
+++ b/a.txt
@@ -1,2 +1,2 @@
 one
-two
+TWO
--- a/b.txt
+++ b/b.txt
@@ -1 +1 @@
-not in the file
+x
`
	res := env.call(ToolNameApplyPatch, map[string]interface{}{"patch": patch})
	assert.Equal(t, string(toolerr.CodeOldTextNotFound), res.ErrorCode)
	assert.Contains(t, res.Error, "b.txt")
	assert.Equal(t, "one\ntwo\n", env.read(t, "a.txt"))
	assert.Equal(t, "three\n", env.read(t, "b.txt"))
}

func TestApplyPatchRejects(t *testing.T) {
	env := newTestEnv(t, ApprovalMutating)
	env.write(t, "exists.txt", "x\n")
	env.write(t, "dup.txt", "same\nother\nsame\n")
	env.markRead(t, "dup.txt")

	tests := []struct {
		name     string
		patch    string
		contains string
		code     toolerr.Code
	}{
		{
			name:     "create over existing",
			patch:    "--- /dev/null\n+++ b/exists.txt\n@@ -0,0 +1 @@\n+y\n",
			contains: "already exists",
		},
		{
			name:  "ambiguous hunk",
			patch: "--- a/dup.txt\n+++ b/dup.txt\n@@ -1 +1 @@\n-same\n+changed\n",
			code:  toolerr.CodeAmbiguousMatch,
		},
		{
			name:  "outside sandbox",
			patch: "--- a/../outside.txt\n+++ b/../outside.txt\n@@ -1 +1 @@\n-a\n+b\n",
			code:  toolerr.CodeOutsideAllowedRoots,
		},
		{
			name:     "same file twice",
			patch:    "--- a/dup.txt\n+++ b/dup.txt\n@@ -2 +2 @@\n-other\n+o\n--- a/dup.txt\n+++ b/dup.txt\n@@ -2 +2 @@\n-other\n+p\n",
			contains: "more than once",
		},
		{
			name:     "rename then edit source",
			patch:    "--- a/dup.txt\n+++ b/moved.txt\n@@ -2 +2 @@\n-other\n+o\n--- a/dup.txt\n+++ b/dup.txt\n@@ -2 +2 @@\n-other\n+p\n",
			contains: "more than once",
		},
		{
			name:     "edit source then rename",
			patch:    "--- a/dup.txt\n+++ b/dup.txt\n@@ -2 +2 @@\n-other\n+p\n--- a/dup.txt\n+++ b/moved.txt\n@@ -2 +2 @@\n-other\n+o\n",
			contains: "more than once",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.reg.ExecuteWithApproval(t.Context(), &ToolCall{Name: ToolNameApplyPatch, Parameters: map[string]interface{}{"patch": tt.patch}})
			require.NotEmpty(t, res.Error)
			assert.Contains(t, res.Error, tt.contains)
			if tt.code != "" {
				assert.Equal(t, string(tt.code), res.ErrorCode)
			}
			assert.Equal(t, "x\n", env.read(t, "exists.txt"))
			assert.Equal(t, "same\nother\nsame\n", env.read(t, "dup.txt"))
			assert.NoFileExists(t, env.path("moved.txt"))
		})
	}
}

func TestApplyPatchRename(t *testing.T) {
	env := newTestEnv(t, ApprovalMutating)
	env.write(t, "old/name.txt", "alpha\nbeta\n")
	env.markRead(t, "old/name.txt")

	patch := "--- a/old/name.txt\n+++ b/new/name.txt\n@@ -1,2 +1,2 @@\n alpha\n-beta\n+gamma\n"
	out := resultMap(t, env.call(ToolNameApplyPatch, map[string]interface{}{"patch": patch}))
	files := out["files"].([]map[string]interface{})
	assert.Equal(t, "renamed", files[0]["action"])
	assert.Equal(t, "new/name.txt", files[0]["path"])

	assert.Equal(t, "alpha\ngamma\n", env.read(t, "new/name.txt"))
	_, err := os.Stat(env.path("old/name.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyPatchNoNewlineAtEnd(t *testing.T) {
	env := newTestEnv(t, ApprovalMutating)
	env.write(t, "n.txt", "first\nlast")
	env.markRead(t, "n.txt")

	patch := "--- a/n.txt\n+++ b/n.txt\n@@ -1,2 +1,2 @@\n first\n-last\n\\ No newline at end of file\n+final\n\\ No newline at end of file\n"
	resultMap(t, env.call(ToolNameApplyPatch, map[string]interface{}{"patch": patch}))
	assert.Equal(t, "first\nfinal", env.read(t, "n.txt"))
}
