package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/toolgate/internal/toolerr"
)

func TestSplitSegments(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		programs []string
		seps     []string
	}{
		{"single", "ls -la", []string{"ls"}, []string{""}},
		{"and list", "ls && pwd", []string{"ls", "pwd"}, []string{"&&", ""}},
		{"or list", "npm test || echo failed", []string{"npm", "echo"}, []string{"||", ""}},
		{"sequence", "cd src; go test", []string{"cd", "go"}, []string{";", ""}},
		{"pipeline", "cat go.mod | grep module", []string{"cat", "grep"}, []string{"|", ""}},
		{"pipe stderr", "make |& tee log", []string{"make", "tee"}, []string{"|&", ""}},
		{"background", "sleep 1 & ls", []string{"sleep", "ls"}, []string{"&", ""}},
		{"newlines", "ls\n\npwd\n", []string{"ls", "pwd"}, []string{"\n", "\n"}},
		{"quoted operators", `echo "a && b; c | d"`, []string{"echo"}, []string{""}},
		{"single quoted", `grep 'x || y' file`, []string{"grep"}, []string{""}},
		{"escaped separator", `find . -exec grep x {} \;`, []string{"find"}, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Split(tt.command)
			require.NoError(t, err)

			var programs, seps []string
			for _, s := range segs {
				programs = append(programs, s.Program)
				seps = append(seps, s.Separator)
			}
			assert.Equal(t, tt.programs, programs)
			assert.Equal(t, tt.seps, seps)
		})
	}
}

func TestSplitWords(t *testing.T) {
	segs, err := Split(`git commit -m "fix the \"thing\"" --author='A B'`)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "git", segs[0].Program)
	assert.Equal(t, []string{"commit", "-m", `fix the "thing"`, "--author=A B"}, segs[0].Args)
}

func TestSplitRedirects(t *testing.T) {
	tests := []struct {
		command   string
		args      []string
		redirects []string
	}{
		{"echo hi > out.txt", []string{"hi"}, []string{">out.txt"}},
		{"echo hi >>out.txt", []string{"hi"}, []string{">>out.txt"}},
		{"go test 2>&1", []string{"test"}, []string{"2>&1"}},
		{"make &> build.log", nil, []string{"&>build.log"}},
		{"wc -l < input.txt", []string{"-l"}, []string{"<input.txt"}},
		{"cmd 2> /dev/null", nil, []string{"2>/dev/null"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			segs, err := Split(tt.command)
			require.NoError(t, err)
			require.Len(t, segs, 1)
			assert.Equal(t, tt.args, segs[0].Args)
			assert.Equal(t, tt.redirects, segs[0].Redirects)
		})
	}
}

func TestSplitAssignments(t *testing.T) {
	segs, err := Split("GOOS=linux CGO_ENABLED=0 go build ./...")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"GOOS=linux", "CGO_ENABLED=0"}, segs[0].Assignments)
	assert.Equal(t, "go", segs[0].Program)

	segs, err = Split("env -i FOO=1 ls -la")
	require.NoError(t, err)
	assert.Equal(t, "ls", segs[0].Program)
	assert.Equal(t, []string{"FOO=1"}, segs[0].Assignments)
	assert.Equal(t, []string{"-la"}, segs[0].Args)
	assert.Equal(t, "env", segs[0].Wrapper)

	segs, err = Split("env")
	require.NoError(t, err)
	assert.Equal(t, "env", segs[0].Program)
	assert.Empty(t, segs[0].Wrapper)

	segs, err = Split("FOO=1")
	require.NoError(t, err)
	assert.Equal(t, "", segs[0].Program)
}

func TestSplitRejects(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"unterminated single", "echo 'oops"},
		{"unterminated double", `echo "oops`},
		{"subshell", "(cd /tmp && ls)"},
		{"group", "{ ls; } ; (pwd)"},
		{"trailing and", "ls &&"},
		{"leading pipe", "| grep x"},
		{"double separator", "ls ;; pwd"},
		{"redirect without target", "echo hi >"},
		{"redirect into separator", "echo hi > ; ls"},
		{"path hijack", "PATH=/tmp/evil ls"},
		{"preload", "LD_PRELOAD=/tmp/x.so ls"},
		{"env path hijack", "env PATH=/tmp ls"},
		{"env split string", "env -S 'rm -rf /'"},
		{"env split string bundled", "env -iS 'rm -rf /'"},
		{"env chdir short", "env -C /etc touch x"},
		{"env chdir attached", "env -C/etc touch x"},
		{"env chdir bundled", "env -iC /etc touch x"},
		{"env chdir long", "env --chdir /etc touch x"},
		{"env chdir long equals", "env --chdir=/etc touch x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(tt.command)
			require.Error(t, err)
			assert.ErrorIs(t, err, toolerr.ErrDangerousPattern)
		})
	}
}
