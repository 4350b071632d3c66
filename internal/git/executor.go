package git

import (
	"bytes"
	"os"
	"os/exec"

	"github.com/gravitational/trace"
)

// gitCommandExecutor runs git commands in a repository directory. Tests
// substitute a mock keyed by the command line.
type gitCommandExecutor interface {
	execute(command string, args ...string) ([]byte, error)
	executeWith(env []string, input []byte, command string, args ...string) ([]byte, error)
}

type realGitExecutor struct {
	dir string
}

func newRealGitExecutor(dir string) *realGitExecutor {
	return &realGitExecutor{dir: dir}
}

func (e *realGitExecutor) execute(command string, args ...string) ([]byte, error) {
	return e.executeWith(nil, nil, command, args...)
}

func (e *realGitExecutor) executeWith(env []string, input []byte, command string, args ...string) ([]byte, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = e.dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, trace.Wrap(err, "git %v: %s", args, stderr.String())
	}
	return stdout.Bytes(), nil
}
