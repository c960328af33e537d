// Package bridge delivers a transcript to the remote conversational agent and
// extracts the reply from the agent's JSON envelope.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Fallback is spoken when the agent answered without any text payload.
const Fallback = "I heard you, but I don't have a reply yet."

// SnippetLen bounds the raw output carried in diagnostics.
const SnippetLen = 1200

// Result is the outcome of a single agent invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports a zero exit status.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Invoker sends one message to the agent. The error is reserved for failures
// to run the agent at all; a non-zero exit status is reported in Result.
type Invoker interface {
	Invoke(ctx context.Context, message, sessionID string) (Result, error)
}

// Config describes how to reach the agent entry point.
type Config struct {
	// Distro and User select the WSL environment. Empty Distro runs the
	// script with the local bash.
	Distro string
	User   string

	// Runtime is the interpreter that runs EntryPoint (node for openclaw).
	Runtime    string
	EntryPoint string

	// Launcher replaces the wsl/bash prefix entirely; the script is appended
	// as the last argument.
	Launcher []string

	// Timeout bounds a single invocation. Zero waits for the agent forever.
	Timeout time.Duration
}

// Shell invokes the agent CLI through a nested shell.
type Shell struct {
	cfg Config
}

var _ Invoker = (*Shell)(nil)

func NewShell(cfg Config) *Shell {
	return &Shell{cfg: cfg}
}

// Invoke runs `agent --session-id <id> --message <msg> --json` and captures
// both output streams.
func (s *Shell) Invoke(ctx context.Context, message, sessionID string) (Result, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	argv := s.Command(message, sessionID)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: decode(stdout.Bytes()),
		Stderr: decode(stderr.Bytes()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode == 0 {
			res.ExitCode = -1
		}
	default:
		return res, fmt.Errorf("run %s: %w", argv[0], err)
	}

	return res, nil
}

// Command returns the full argv for one invocation.
func (s *Shell) Command(message, sessionID string) []string {
	script := "export LANG=C.UTF-8 LC_ALL=C.UTF-8; " + s.script(message, sessionID)

	var argv []string
	switch {
	case len(s.cfg.Launcher) > 0:
		argv = append(argv, s.cfg.Launcher...)
	case s.cfg.Distro != "":
		argv = append(argv, "wsl.exe", "-d", s.cfg.Distro)
		if s.cfg.User != "" {
			argv = append(argv, "-u", s.cfg.User)
		}
		argv = append(argv, "bash", "-lc")
	default:
		argv = append(argv, "bash", "-lc")
	}

	return append(argv, script)
}

func (s *Shell) script(message, sessionID string) string {
	return fmt.Sprintf("%s %s agent --session-id %s --message %s --json",
		Quote(s.cfg.Runtime), Quote(s.cfg.EntryPoint), Quote(sessionID), Quote(message))
}

var dqEscaper = strings.NewReplacer("$", `\$`, "`", "\\`")

// Quote renders s as a JSON string literal for use inside double quotes in a
// POSIX shell. Shell expansion is disabled, but JSON escapes such as \t,
// \n or \u2028 reach the agent as literal backslash sequences.
func Quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return dqEscaper.Replace(strings.TrimSuffix(b.String(), "\n"))
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
