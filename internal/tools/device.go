package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

type deviceInput struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	Text   string `json:"text,omitempty"`
}

// NewDeviceExecutor returns the desktop-control executor. Best effort and
// macOS only; elsewhere it returns an error rather than guessing.
func NewDeviceExecutor(policy DevicePolicy) ExecutorFunc {
	allowed := make(map[string]bool, len(policy.AllowedActions))
	for _, a := range policy.AllowedActions {
		allowed[a] = true
	}

	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		if !policy.Enabled {
			return nil, fmt.Errorf("device tool is disabled by policy")
		}

		var in deviceInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		action := strings.TrimSpace(in.Action)
		if !allowed[action] {
			return nil, fmt.Errorf("action %q not allowed by policy", action)
		}
		if runtime.GOOS != "darwin" {
			return nil, fmt.Errorf("device control is only available on macOS")
		}

		var cmd *exec.Cmd
		switch action {
		case "open_app":
			if in.Target == "" {
				return nil, fmt.Errorf("target is required")
			}
			cmd = exec.CommandContext(ctx, "open", "-a", in.Target)
		case "open_url":
			if !strings.HasPrefix(in.Target, "http://") && !strings.HasPrefix(in.Target, "https://") {
				return nil, fmt.Errorf("target must be an http(s) URL")
			}
			cmd = exec.CommandContext(ctx, "open", in.Target)
		case "notify":
			script := fmt.Sprintf("display notification %q with title %q", in.Text, "jarvisd")
			cmd = exec.CommandContext(ctx, "osascript", "-e", script)
		default:
			return nil, fmt.Errorf("unknown action: %s", action)
		}

		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("%s failed: %s", action, strings.TrimSpace(string(out)))
		}
		return json.Marshal(map[string]string{"action": action, "status": "done"})
	}
}
