package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type shellInput struct {
	Command string `json:"command"`
}

type shellOutput struct {
	ReturnCode int    `json:"returncode"`
	Output     string `json:"output"`
	Stderr     string `json:"stderr,omitempty"`
}

const shellOutputLimit = 8000

// NewShellExecutor returns the restricted shell executor: the command's
// first token must be allowlisted and no blocked pattern may appear.
// This is policy, not isolation.
func NewShellExecutor(policy ShellPolicy) ExecutorFunc {
	allowed := make(map[string]bool, len(policy.AllowedCommands))
	for _, c := range policy.AllowedCommands {
		allowed[c] = true
	}

	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		if !policy.Enabled {
			return nil, fmt.Errorf("shell tool is disabled by policy")
		}

		var in shellInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		command := strings.TrimSpace(in.Command)
		if command == "" {
			return nil, fmt.Errorf("command is empty")
		}

		for _, pattern := range policy.BlockedPatterns {
			if pattern != "" && strings.Contains(command, pattern) {
				return nil, fmt.Errorf("blocked pattern detected: %s", pattern)
			}
		}

		fields := strings.Fields(command)
		if !allowed[fields[0]] {
			return nil, fmt.Errorf("%q is not in allowlist", fields[0])
		}

		timeout := time.Duration(policy.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, "sh", "-c", command)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command timed out after %s", timeout)
		}

		out := shellOutput{
			Output: truncate(stdout.String(), shellOutputLimit),
			Stderr: truncate(stderr.String(), shellOutputLimit),
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			out.ReturnCode = exitErr.ExitCode()
		} else if err != nil {
			return nil, err
		}
		if out.ReturnCode != 0 {
			return nil, fmt.Errorf("command exited %d: %s", out.ReturnCode, truncate(stderr.String(), 4000))
		}
		return json.Marshal(out)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
